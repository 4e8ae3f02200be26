package main

import (
	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/app"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var arm bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the loopback control API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("arm") {
				cfg.Preroll.ArmOnStart = arm
			}
			a, err := app.New(cfg, app.WithControlAPI())
			if err != nil {
				return err
			}
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&arm, "arm", false, "arm pre-roll as soon as the API is up (overrides preroll.arm_on_start)")
	return cmd
}
