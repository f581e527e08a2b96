// Package credential keeps the staff token in the operating system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	serviceName = "orderbell"
	tokenKey    = "token"
)

// ErrNoToken is returned by Token when nobody has logged in.
var ErrNoToken = errors.New("not logged in")

// Opener opens the backing keyring. Tests swap it for keyring.NewArrayKeyring.
var Opener = openKeyring

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/orderbell/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("orderbell-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Token returns the stored staff token, or ErrNoToken.
func Token() (string, error) {
	ring, err := Opener()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(tokenKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("reading token: %w", err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoToken
	}
	return string(item.Data), nil
}

// SaveToken stores token, replacing any previous one.
func SaveToken(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	ring, err := Opener()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:         tokenKey,
		Data:        []byte(token),
		Label:       "orderbell staff token",
		Description: "Bearer token for the orderbell server",
	})
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// DeleteToken forgets the stored token. Deleting a missing token is not an
// error.
func DeleteToken() error {
	ring, err := Opener()
	if err != nil {
		return err
	}

	err = ring.Remove(tokenKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}
