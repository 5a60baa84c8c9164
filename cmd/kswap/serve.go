package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bietkhonhungvandi212/kswap/internal/monitor"
	"github.com/bietkhonhungvandi212/kswap/internal/sim"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		open bool
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workload with the HTTP monitor attached",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.opts.MonitorAddr = addr
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			s, err := sim.New(a.opts, store, a.log)
			if err != nil {
				return err
			}

			srv := monitor.NewServer(s.Allocator(), s.Processes(), a.log)
			bound, err := srv.Start(a.opts.MonitorAddr)
			if err != nil {
				return err
			}
			atexit.Register(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = srv.Shutdown(ctx)
			})

			url := "http://" + bound + "/api/stats"
			if open {
				if err := browser.OpenURL(url); err != nil {
					a.log.WithError(err).Warn("could not open a browser")
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := s.Run(ctx)
			if err != nil {
				return err
			}
			printReport(a.out, a.opts, report)

			a.log.WithField("url", url).Info("workload finished, monitor still serving; interrupt to exit")
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&open, "open", false, "open the monitor in a browser")
	cmd.Flags().StringVar(&addr, "addr", "", "monitor listen address (overrides the configuration)")
	return cmd
}
