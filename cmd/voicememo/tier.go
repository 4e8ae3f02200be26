package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/app"
	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
)

type tierView struct {
	Tier             entitlement.Tier         `json:"tier"`
	Since            *time.Time               `json:"since,omitempty"`
	MonthsSubscribed int                      `json:"months_subscribed"`
	Capabilities     []entitlement.Capability `json:"capabilities"`
}

func newTierCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier",
		Short: "Show the current tier and its capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(_ context.Context, s *app.Services) error {
				return printTier(f, cmd.OutOrStdout(), s)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "upgrade <free|speaker|pro|lifetime>",
		Short: "Switch to another tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := entitlement.ParseTier(args[0])
			if err != nil {
				return errors.InvalidInput("tier", err.Error())
			}
			return f.run(cmd, func(ctx context.Context, s *app.Services) error {
				if err := s.Entitlements.Upgrade(ctx, tier); err != nil {
					return err
				}
				return printTier(f, cmd.OutOrStdout(), s)
			})
		},
	})
	return cmd
}

func printTier(f *rootFlags, w io.Writer, s *app.Services) error {
	st := s.Entitlements.State()
	v := tierView{
		Tier:             st.Tier,
		MonthsSubscribed: s.Entitlements.MonthsSubscribed(time.Now()),
		Capabilities:     s.Entitlements.Capabilities().Sorted(),
	}
	if !st.Since.IsZero() {
		v.Since = &st.Since
	}
	return f.print(w, v, func(w io.Writer) {
		fmt.Fprintf(w, "tier: %s", v.Tier)
		if v.Since != nil {
			fmt.Fprintf(w, " since %s (%d months)", v.Since.Format(time.DateOnly), v.MonthsSubscribed)
		}
		fmt.Fprintln(w)
		for _, c := range entitlement.AllCapabilities() {
			mark := "-"
			if s.Entitlements.CanAccess(c) {
				mark = "+"
			}
			fmt.Fprintf(w, "  %s %s\n", mark, c)
		}
	})
}
