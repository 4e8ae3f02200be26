package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/app"
	"github.com/kbukum/voicememo/prompt"
)

type promptsView struct {
	Usage    prompt.Usage                        `json:"usage"`
	Counters map[prompt.Kind]prompt.CounterState `json:"counters"`
	Shown    []prompt.Kind                       `json:"shown,omitempty"`
}

func newPromptCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prompt",
		Aliases: []string{"prompts"},
		Short:   "Show upsell prompt counters and usage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx context.Context, s *app.Services) error {
				return printPrompts(ctx, f, cmd.OutOrStdout(), s, nil)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Evaluate every prompt as at app launch and notify for the ones that fire",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx context.Context, s *app.Services) error {
				shown, err := s.CheckUpsells(ctx)
				if err != nil {
					return err
				}
				return printPrompts(ctx, f, cmd.OutOrStdout(), s, shown)
			})
		},
	})
	return cmd
}

func printPrompts(ctx context.Context, f *rootFlags, w io.Writer, s *app.Services, shown []prompt.Kind) error {
	usage, err := s.Usage(ctx)
	if err != nil {
		return err
	}
	v := promptsView{Usage: usage, Counters: s.Prompts.Counters(), Shown: shown}
	return f.print(w, v, func(w io.Writer) {
		fmt.Fprintf(w, "recordings: %d (%d multi-speaker), months subscribed: %d\n",
			usage.TotalRecordings, usage.MultiSpeakerRecordings, usage.MonthsSubscribed)
		for _, k := range prompt.Kinds() {
			c := v.Counters[k]
			last := "never"
			if c.LastShownAt != nil {
				last = c.LastShownAt.Format(time.DateTime)
			}
			fmt.Fprintf(w, "  %-16s shown %d, last %s\n", k, c.Count, last)
		}
		for _, k := range shown {
			fmt.Fprintf(w, "shown now: %s\n", k)
		}
	})
}
