// Package cli is the process entry: the command tree, startup wiring and
// how fatal errors reach the user.
package cli

import (
	"context"
	"fmt"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/spf13/cobra"

	"github.com/yllada/vpn-client/common"
	"github.com/yllada/vpn-client/config"
	"github.com/yllada/vpn-client/controller"
)

// BuildInfo is stamped in at link time.
type BuildInfo struct {
	Version   string
	BuildTime string
	Commit    string
}

// options are the hidden flags used by tests and CI.
type options struct {
	crash     bool
	fail      bool
	panic     bool
	quitAfter int

	noDeepLinks            bool
	noElevationCheck       bool
	debugUpdateCheck       bool
	testUpdateNotification bool

	// smokeTest runs headless and drives a few requests itself.
	smokeTest bool
}

// failure returns the deliberate fault selected on the command line.
func (o options) failure() (controller.Failure, bool) {
	switch {
	case o.crash:
		return controller.FailureCrash, true
	case o.fail:
		return controller.FailureError, true
	case o.panic:
		return controller.FailurePanic, true
	}
	return 0, false
}

func (o options) quitAfterDuration() time.Duration {
	return time.Duration(o.quitAfter) * time.Second
}

// app is shared by all commands once PersistentPreRunE ran.
type app struct {
	info         BuildInfo
	opts         options
	settings     *config.Settings
	settingsPath string
}

func newRootCmd(info BuildInfo) *cobra.Command {
	a := &app{info: info}

	root := &cobra.Command{
		Use:           "vpn-client",
		Short:         common.AppName + " tray client",
		Long:          common.AppName + " signs in through the browser and drives the tunnel service from the system tray.",
		Version:       info.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runGUI(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.BoolVar(&a.opts.crash, "crash", false, "crash on purpose after startup")
	f.BoolVar(&a.opts.fail, "error", false, "return an error on purpose after startup")
	f.BoolVar(&a.opts.panic, "panic", false, "panic on purpose after startup")
	f.IntVar(&a.opts.quitAfter, "quit-after", 0, "quit gracefully after this many seconds")
	f.BoolVar(&a.opts.noDeepLinks, "no-deep-links", false, "don't listen for deep links or other instances")
	f.BoolVar(&a.opts.noElevationCheck, "no-elevation-check", false, "allow running as root")
	f.BoolVar(&a.opts.debugUpdateCheck, "debug-update-check", false, "check for updates every few seconds")
	f.BoolVar(&a.opts.testUpdateNotification, "test-update-notification", false, "pretend a new version is out")
	for _, name := range []string{"crash", "error", "panic", "quit-after", "no-deep-links", "no-elevation-check", "debug-update-check", "test-update-notification"} {
		_ = f.MarkHidden(name)
	}

	root.AddCommand(
		newDebugCmd(a),
		newOpenDeepLinkCmd(),
		newElevatedCmd(a),
		newSmokeTestCmd(a),
	)
	return root
}

func (a *app) init() error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	a.settingsPath = path

	settings, loadErr := config.LoadFrom(path)
	if loadErr != nil {
		settings = config.DefaultSettings()
	}
	a.settings = settings

	logErr := common.InitLogger(common.LogConfig{
		Filter:     settings.LogFilter,
		EnableFile: true,
	})
	common.LogInfo("%s %s (%s, built %s)", common.AppName, a.info.Version, a.info.Commit, a.info.BuildTime)
	if logErr != nil {
		common.LogWarn("Logging setup: %v", logErr)
	}
	if loadErr != nil {
		common.LogWarn("Using default settings: %v", loadErr)
	}
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute(info BuildInfo) int {
	defer common.CloseLogger()

	root := newRootCmd(info)
	cc.Init(&cc.Config{
		RootCmd:         root,
		Headings:        cc.HiBlue + cc.Bold,
		Commands:        cc.HiBlue + cc.Bold,
		CmdShortDescr:   cc.HiBlue,
		Example:         cc.HiBlue + cc.Italic,
		ExecName:        cc.HiBlue + cc.Bold,
		Flags:           cc.HiBlue + cc.Bold,
		FlagsDescr:      cc.HiBlue,
		NoExtraNewlines: true,
		NoBottomNewline: true,
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		showFatal(err)
		return 1
	}
	return 0
}

func printf(cmd *cobra.Command, format string, args ...interface{}) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
