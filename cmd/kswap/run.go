package main

import (
	"github.com/bietkhonhungvandi212/kswap/internal/sim"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		cpus, procs, pages, rounds int
		backend, cpuProfile        string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the multi-CPU workload and print a report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("cpus") {
				a.opts.CPUs = cpus
			}
			if flags.Changed("processes") {
				a.opts.Processes = procs
			}
			if flags.Changed("pages") {
				a.opts.PagesPerProc = pages
			}
			if flags.Changed("rounds") {
				a.opts.Rounds = rounds
			}
			if flags.Changed("backend") {
				a.opts.SwapBackend = backend
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			s, err := sim.New(a.opts, store, a.log)
			if err != nil {
				return err
			}

			var report *sim.Report
			run := func() (err error) {
				report, err = s.Run(cmd.Context())
				return err
			}

			if cpuProfile == "" {
				if err := run(); err != nil {
					return err
				}
				printReport(a.out, a.opts, report)
				return nil
			}

			hs, err := withCPUProfile(cpuProfile, run)
			if err != nil {
				return err
			}
			printReport(a.out, a.opts, report)
			printHotspots(a.out, hs)
			return nil
		},
	}

	cmd.Flags().IntVar(&cpus, "cpus", 0, "simulated CPUs")
	cmd.Flags().IntVar(&procs, "processes", 0, "processes in the workload")
	cmd.Flags().IntVar(&pages, "pages", 0, "pages per process")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "workload rounds")
	cmd.Flags().StringVar(&backend, "backend", "", "swap backend: memory, file or sqlite")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile and print its hottest functions")
	return cmd
}
