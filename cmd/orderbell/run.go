package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/alert"
	"github.com/nhle/orderbell/internal/apiclient"
	"github.com/nhle/orderbell/internal/app"
	"github.com/nhle/orderbell/internal/credential"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/notify"
	"github.com/nhle/orderbell/internal/session"
)

func runTUI(cfgPath string) error {
	logFile, err := openLog(model.DefaultLogPath())
	if err != nil {
		return err
	}
	defer logFile.Close()

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	token, err := credential.Token()
	if errors.Is(err, credential.ErrNoToken) {
		return errors.New("not logged in, run `orderbell login` first")
	}
	if err != nil {
		return err
	}

	sess, err := session.New(session.Options{
		ServerURL: cfg.Server.URL,
		Token:     token,
		Reconnect: cfg.Reconnect,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	alerts := alert.New(alert.Options{
		Preference: cfg.Alerts.Desktop,
		Chime:      cfg.Alerts.Chime,
		QueueSize:  cfg.Alerts.QueueSize,
		Prompt:     alert.AskDesktop,
		Save: func(pref string) error {
			cfg.Alerts.Desktop = pref
			return model.SaveConfig(cfgPath, cfg)
		},
	})
	defer alerts.Close()

	// the prompt needs the terminal before the TUI takes it over
	alerts.Negotiate()

	zlog.Logger.Info().Str("server", cfg.Server.URL).Str("user", cfg.Server.User).Msg("starting")

	m := app.New(app.Options{
		Config:  cfg,
		Store:   notify.New(),
		Session: sess,
		Alerts:  alerts,
		Orders:  apiclient.New(cfg.Server.URL, token),
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("running ui: %w", err)
	}
	return nil
}

// openLog points the global logger at path; stdout belongs to the TUI.
func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	zlog.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, nil
}
