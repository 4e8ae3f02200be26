package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/app"
	"github.com/kbukum/voicememo/bootstrap"
	"github.com/kbukum/voicememo/config"
	"github.com/kbukum/voicememo/version"
)

type rootFlags struct {
	configFile string
	envFile    string
	json       bool
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	cmd := &cobra.Command{
		Use:           "voicememo",
		Short:         "Offline voice memos with pre-roll capture",
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&f.configFile, "config", "", "config file (default: voicememo.yml in the working or user config dir)")
	cmd.PersistentFlags().StringVar(&f.envFile, "env-file", "", "dotenv file to load before the environment")
	cmd.PersistentFlags().BoolVar(&f.json, "json", false, "print results as JSON")

	cmd.AddCommand(
		newRecordCmd(f),
		newImportCmd(f),
		newReprocessCmd(f),
		newTierCmd(f),
		newPromptCmd(f),
		newServeCmd(f),
		newVersionCmd(),
	)
	return cmd
}

func (f *rootFlags) load() (*app.Config, error) {
	var opts []config.LoaderOption
	if f.configFile != "" {
		opts = append(opts, config.WithConfigFile(f.configFile))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}
	cfg := &app.Config{}
	if err := config.LoadConfig("voicememo", cfg, opts...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// run wires the services, runs fn and shuts everything down again.
func (f *rootFlags) run(cmd *cobra.Command, fn func(ctx context.Context, s *app.Services) error) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, app.WithBootstrap(bootstrap.WithoutSummary()))
	if err != nil {
		return err
	}
	return a.RunTask(cmd.Context(), func(ctx context.Context) error {
		return fn(ctx, a.Services)
	})
}

// print writes v as indented JSON when --json is set, else calls text.
func (f *rootFlags) print(w io.Writer, v any, text func(w io.Writer)) error {
	if !f.json {
		text(w)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
