package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useArrayKeyring(t *testing.T) {
	t.Helper()
	ring := keyring.NewArrayKeyring(nil)
	prev := Opener
	Opener = func() (keyring.Keyring, error) { return ring, nil }
	t.Cleanup(func() { Opener = prev })
}

func TestToken_Lifecycle(t *testing.T) {
	useArrayKeyring(t)

	_, err := Token()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, SaveToken("abc"))
	tok, err := Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	require.NoError(t, SaveToken("def"))
	tok, err = Token()
	require.NoError(t, err)
	assert.Equal(t, "def", tok)

	require.NoError(t, DeleteToken())
	_, err = Token()
	assert.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, DeleteToken())
}

func TestSaveToken_Empty(t *testing.T) {
	useArrayKeyring(t)
	assert.Error(t, SaveToken(""))
}

func TestToken_OpenFailure(t *testing.T) {
	prev := Opener
	Opener = func() (keyring.Keyring, error) { return nil, errors.New("no backend") }
	t.Cleanup(func() { Opener = prev })

	_, err := Token()
	assert.ErrorContains(t, err, "no backend")
	assert.NotErrorIs(t, err, ErrNoToken)
}
