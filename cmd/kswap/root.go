package main

import (
	"io"
	"os"

	"github.com/bietkhonhungvandi212/kswap/internal/config"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/file"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

type app struct {
	configPath string
	envFiles   []string
	logLevel   string

	opts util.Options
	out  io.Writer
	log  *logrus.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "kswap",
		Short:        "Physical page allocator with clock eviction to swap",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringSliceVar(&a.envFiles, "env", nil, ".env files with KSWAP_* overrides")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (overrides the configuration)")

	root.AddCommand(newRunCmd(a), newServeCmd(a), newConfigCmd(a))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	opts, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if opts, err = config.LoadEnv(opts, a.envFiles...); err != nil {
		return err
	}
	if a.logLevel != "" {
		opts.LogLevel = a.logLevel
	}
	a.opts = opts

	log, err := util.NewLogger(opts.LogLevel, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.log = log
	a.out = cmd.OutOrStdout()
	return nil
}

// openStore opens the configured swap store and closes it at exit.
func (a *app) openStore() (file.Filer, error) {
	if err := a.opts.Validate(); err != nil {
		return nil, err
	}
	store, err := file.Open(a.opts)
	if err != nil {
		return nil, err
	}
	atexit.Register(func() {
		if err := store.Close(); err != nil {
			a.log.WithError(err).Warn("closing swap store")
		}
	})
	if a.opts.SwapBackend != util.BackendMemory {
		atexit.Register(func() { _ = os.Remove(a.opts.SwapPath) })
	}
	return store, nil
}
