package alert

import (
	"github.com/charmbracelet/huh"

	"github.com/nhle/orderbell/internal/theme"
)

// AskDesktop shows a one-off confirm prompt in the terminal. It must run
// before the TUI takes over the screen.
func AskDesktop() (bool, error) {
	allow := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Show desktop notifications for new orders?").
				Description("You will only be asked once. Change it later in config.yaml.").
				Affirmative("Allow").
				Negative("Not now").
				Value(&allow),
		),
	).WithTheme(theme.HuhTheme()).Run()
	if err != nil {
		return false, err
	}
	return allow, nil
}
