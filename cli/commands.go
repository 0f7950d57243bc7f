package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yllada/vpn-client/arbiter"
	"github.com/yllada/vpn-client/auth"
	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/deeplink"
	"github.com/yllada/vpn-client/keyring"
)

func newDebugCmd(a *app) *cobra.Command {
	debug := &cobra.Command{
		Use:   "debug",
		Short: "Developer and support tools",
		Args:  cobra.NoArgs,
	}

	debug.AddCommand(&cobra.Command{
		Use:   "set-autostart <true|false>",
		Short: "Start the client when the desktop session starts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("expected true or false: %w", err)
			}
			dir, err := autostartDir()
			if err != nil {
				return err
			}
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			if err := setAutostart(dir, exe, enabled); err != nil {
				return err
			}

			a.settings.AutoStart = enabled
			if err := a.settings.SaveTo(a.settingsPath); err != nil {
				return err
			}
			printf(cmd, "Autostart %s\n", map[bool]string{true: "enabled", false: "disabled"}[enabled])
			return nil
		},
	})

	debug.AddCommand(&cobra.Command{
		Use:   "replicate-issue",
		Short: "Run a sign-in round trip against the real credential store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return replicateSignIn(cmd)
		},
	})

	return debug
}

// replicateSignIn signs in and out with a made-up callback, using the real
// keyring and a throwaway session file.
func replicateSignIn(cmd *cobra.Command) error {
	dir, err := os.MkdirTemp("", "vpn-client-replicate-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	creds, err := keyring.New(keyring.DefaultService+"-debug", filepath.Join(dir, common.CredentialsFileName))
	if err != nil {
		return err
	}

	a, err := auth.New(creds, filepath.Join(dir, common.SessionFileName))
	if err != nil {
		return err
	}
	req, err := a.StartSignIn()
	if err != nil {
		return err
	}
	if req == nil {
		return errors.New("fresh auth store is already signed in")
	}

	token, err := a.HandleResponse(&deeplink.AuthResponse{
		ActorName:   "Debug User",
		AccountSlug: "debug",
		Fragment:    common.NewSecret("fragment"),
		State:       req.State,
	})
	if err != nil {
		return fmt.Errorf("handle response: %w", err)
	}
	printf(cmd, "Signed in as %s\n", a.Session().ActorName)

	stored, ok, err := a.Token()
	switch {
	case err != nil:
		return fmt.Errorf("load token: %w", err)
	case !ok:
		return errors.New("token was not persisted")
	case !stored.Equal(token):
		return errors.New("persisted token doesn't match")
	}
	printf(cmd, "Token round trip OK\n")

	if err := a.SignOut(); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if _, ok, _ := a.Token(); ok {
		return errors.New("token survived sign-out")
	}
	printf(cmd, "Sign-out OK\n")
	return nil
}

func newOpenDeepLinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-deep-link <url>",
		Short: "Hand a sign-in callback URL to the running client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := arbiter.Send(cmd.Context(), common.GUISocketName, arbiter.Deeplink{URL: args[0]})
			if errors.Is(err, arbiter.ErrNotRunning) {
				return fmt.Errorf("%s isn't running: %w", common.AppName, err)
			}
			return err
		},
	}
}

func newElevatedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "elevated",
		Short: "Run the client even when started as root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.opts.noElevationCheck = true
			return a.runGUI(cmd.Context())
		},
	}
}

func newSmokeTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "smoke-test",
		Short: "Start without a tray, exercise a few requests and quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a.opts.smokeTest = true
			a.opts.noDeepLinks = true
			if a.opts.quitAfter == 0 {
				a.opts.quitAfter = int(common.SmokeTestDuration / time.Second)
			}
			return a.runGUI(cmd.Context())
		},
	}
}
