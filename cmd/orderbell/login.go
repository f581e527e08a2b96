package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/orderbell/internal/credential"
	"github.com/nhle/orderbell/internal/model"
	"github.com/nhle/orderbell/internal/session"
	"github.com/nhle/orderbell/internal/theme"
)

func newLoginCmd(cfgPath *string) *cobra.Command {
	var server, user, token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the server address and your staff token",
		Long: "Saves the server URL to the config file and the staff token to the\n" +
			"system keyring. Without flags an interactive form is shown.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if server == "" {
				server = cfg.Server.URL
			}
			if user == "" {
				user = cfg.Server.User
			}

			if token == "" {
				if err := loginForm(&server, &user, &token); err != nil {
					if errors.Is(err, huh.ErrUserAborted) {
						return nil
					}
					return err
				}
			}
			if err := validateServer(server); err != nil {
				return err
			}

			if err := credential.SaveToken(strings.TrimSpace(token)); err != nil {
				return err
			}
			cfg.Server.URL = strings.TrimSpace(server)
			cfg.Server.User = strings.TrimSpace(user)
			if err := model.SaveConfig(*cfgPath, cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s. Run `orderbell` to start.\n", cfg.Server.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "server base URL, e.g. https://orders.example.com")
	cmd.Flags().StringVar(&user, "user", "", "label shown in the help screen")
	cmd.Flags().StringVar(&token, "token", "", "staff token from `orderbelld token`")
	return cmd
}

func loginForm(server, user, token *string) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server URL").
				Placeholder("http://localhost:8080").
				Value(server).
				Validate(validateServer),
			huh.NewInput().
				Title("Your name").
				Description("Only used as a label.").
				Value(user),
			huh.NewInput().
				Title("Staff token").
				EchoMode(huh.EchoModePassword).
				Value(token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("token is required")
					}
					return nil
				}),
		),
	).WithTheme(theme.HuhTheme()).Run()
}

func validateServer(s string) error {
	_, err := session.WSURL(strings.TrimSpace(s))
	return err
}
