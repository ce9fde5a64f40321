package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"spendbook/internal/cli"
	"spendbook/internal/config"
	"spendbook/internal/log"
	"spendbook/internal/store"
)

// opener returns an open store and the function that releases it.
type opener func(ctx context.Context) (*store.Store, func() error, error)

type app struct {
	open    opener
	now     func() time.Time
	asJSON  bool
	verbose bool
	backend string
	dataDir string
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := cli.SignalContext(context.Background(), log.Discard())
	err := newRootCmd(nil).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A nil open uses the configured
// storage backend.
func newRootCmd(open opener) *cobra.Command {
	a := &app{open: open, now: time.Now}
	if a.open == nil {
		a.open = a.openConfigured
	}

	root := &cobra.Command{
		Use:           "spendbookctl",
		Short:         "Manage spendbook categories and expenses",
		Long:          `spendbookctl edits the same data the spendbook server uses, read from the backend configured in the environment (or .env).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print JSON instead of tables")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log store activity to stderr")
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "override DATA_BACKEND (file, sqlite, memory)")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "override DATA_DIR")

	root.AddCommand(a.categoryCmd())
	root.AddCommand(a.expenseCmd())
	root.AddCommand(a.statsCmd())
	root.AddCommand(a.exportCmd())
	root.AddCommand(a.resetCmd())
	return root
}

func (a *app) openConfigured(ctx context.Context) (*store.Store, func() error, error) {
	cfg, err := cli.LoadAndValidateConfig(a.applyFlags)
	if err != nil {
		return nil, nil, err
	}

	logger := cli.SetupLogger(cfg, os.Stderr).WithComponent(log.ComponentCLI)
	st, res, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		return nil, nil, err
	}
	return st, res.Close, nil
}

// applyFlags lets the persistent flags win over the environment.
func (a *app) applyFlags(cfg *config.Config) {
	if a.backend != "" {
		cfg.DataBackend = a.backend
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if !a.verbose {
		cfg.LogLevel = "warn"
	}
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(st *store.Store) error) (err error) {
	st, closeFn, err := a.open(cmd.Context())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := closeFn(); cerr != nil && err == nil {
			err = fmt.Errorf("close store: %w", cerr)
		}
	}()
	return fn(st)
}
