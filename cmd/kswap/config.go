package main

import (
	"github.com/bietkhonhungvandi212/kswap/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.opts.Validate(); err != nil {
				return err
			}
			data, err := config.Marshal(a.opts)
			if err != nil {
				return err
			}
			_, err = a.out.Write(data)
			return err
		},
	}
}
