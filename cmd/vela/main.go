// Command vela is the test runner's CLI entrypoint: it wires discover ->
// pool -> reporting behind a single cobra root command, following the
// same PersistentPreRunE-builds-a-zap.Logger pattern as codenerd's
// cmd/nerd/main.go, and binds its flags into viper the way falcon's
// cmd/falcon/main.go does.
package main

import (
	"context"
	"fmt"
	"os"

	"code.cloudfoundry.org/clock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"vela/internal/config"
	"vela/internal/discover"
	"vela/internal/pool"
	"vela/internal/reporting"
	"vela/internal/term"
)

var (
	verbose bool
	quiet   bool
	logger  *zap.Logger

	version = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:     "vela",
		Short:   "Run test files through the programmable test execution engine",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			zcfg := zap.NewProductionConfig()
			if verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapNewAtomicDebugLevel())
			}
			var err error
			logger, err = zcfg.Build()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), v)
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "enable debug logging")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress the status terminal")

	if err := config.BindFlags(root, v); err != nil {
		panic(err)
	}

	return root
}

func runRun(ctx context.Context, v *viper.Viper) error {
	cfgPath := v.GetString("config")
	cfg, err := config.Load(v, cfgPath)
	if err != nil {
		return err
	}

	if cfg.Watch {
		return fmt.Errorf("vela: --watch is not supported by this engine (watch mode is out of scope)")
	}

	files, err := discover.Files(cfg.Pattern, cfg.Exclude, cfg.Files)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("vela: no files matched --pattern/--file")
	}

	logger.Info("discovered files", zap.Int("count", len(files)))

	requires, err := loadRequires(cfg.Require)
	if err != nil {
		return fmt.Errorf("load --require modules: %w", err)
	}

	view := term.NewView(quiet)
	p := pool.New(view)

	run := p.Run(ctx, files, pool.Options{
		Concurrency:    cfg.Concurrency,
		Timeout:        msToDuration(cfg.Timeout),
		Echo:           false,
		Clock:          clock.NewClock(),
		RequireSources: requires,
		UserContext:    cfg.Context,
	})
	view.Stop()
	logger.Info("run complete", zap.String("run_id", run.ID), zap.Int("exit_code", run.ExitCode))

	reporters := []reporting.Reporter{
		reporting.NewConsoleReporter(),
		reporting.NewJSONReporter(""),
		reporting.NewJUnitReporter(""),
	}
	if err := reporting.Dispatch(ctx, reporters, run, cfg.Output); err != nil {
		logger.Error("reporter failed", zap.Error(err))
	}

	if run.ExitCode != 0 {
		os.Exit(run.ExitCode)
	}
	return nil
}
