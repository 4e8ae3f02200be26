package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/app"
	"github.com/kbukum/voicememo/recording"
)

func newRecordCmd(f *rootFlags) *cobra.Command {
	var req app.RecordRequest
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a memo, merge pre-roll and process it",
		Long: `Record arms pre-roll (when preroll.window_seconds > 0), waits --lead,
then records live audio for --duration. Ctrl-C ends the take early and
saves what was captured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.Title == "" {
				req.Title = "Memo " + time.Now().Format("2006-01-02 15:04")
			}
			return f.run(cmd, func(ctx context.Context, s *app.Services) error {
				out, err := s.Record(ctx, req)
				if err != nil {
					return err
				}
				return f.print(cmd.OutOrStdout(), out, func(w io.Writer) { printOutcome(w, out) })
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "recording title")
	cmd.Flags().DurationVar(&req.Duration, "duration", 30*time.Second, "maximum length of the live take")
	cmd.Flags().DurationVar(&req.Lead, "lead", 0, "how long pre-roll captures before the take starts")
	return cmd
}

func newImportCmd(f *rootFlags) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "import <file.wav>",
		Short: "Save and process an existing WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			return f.run(cmd, func(ctx context.Context, s *app.Services) error {
				file, err := os.Open(path)
				if err != nil {
					return err
				}
				defer file.Close()

				out, err := s.Import(ctx, title, file)
				if err != nil {
					return err
				}
				return f.print(cmd.OutOrStdout(), out, func(w io.Writer) { printOutcome(w, out) })
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "recording title (default: file name)")
	return cmd
}

func printOutcome(w io.Writer, out *app.Outcome) {
	fmt.Fprintf(w, "saved %s (%s", out.Saved.Handle, out.Saved.Audio.Duration().Round(10*time.Millisecond))
	if out.Saved.Merged {
		fmt.Fprint(w, ", with pre-roll")
	}
	fmt.Fprintln(w, ")")

	for _, r := range out.Result.Stages {
		line := fmt.Sprintf("  %-16s %s", r.Stage, r.Outcome)
		switch {
		case r.Reason != "":
			line += " (" + r.Reason + ")"
		case r.Err != nil:
			line += " (" + r.Err.Error() + ")"
		}
		fmt.Fprintln(w, line)
	}
	if t := out.Result.Transcript; t != nil {
		fmt.Fprintf(w, "\n%s\n", *t)
	}
	if a := out.Result.Analytics; a != nil {
		fmt.Fprintf(w, "\nwords: %d  fillers: %d\n", a.WordCount, a.FillerWordCount)
	}
}

func newReprocessCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <handle>",
		Short: "Run the pipeline again over a saved recording with the current tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h := recording.Handle(args[0])
			return f.run(cmd, func(ctx context.Context, s *app.Services) error {
				if err := s.Reprocess(ctx, h); err != nil {
					return err
				}
				s.Pipeline.Wait()
				rec, err := s.Recordings.Get(ctx, h)
				if err != nil {
					return err
				}
				return f.print(cmd.OutOrStdout(), rec, func(w io.Writer) { printRecording(w, rec) })
			})
		},
	}
}

func printRecording(w io.Writer, rec *recording.Recording) {
	fmt.Fprintf(w, "%s %q (%s), %d speaker(s)\n", rec.Handle, rec.Title, rec.Duration.Round(10*time.Millisecond), rec.SpeakerCount)
	if rec.WordCount != nil {
		fmt.Fprintf(w, "words: %d", *rec.WordCount)
		if rec.FillerWordCount != nil {
			fmt.Fprintf(w, "  fillers: %d", *rec.FillerWordCount)
		}
		fmt.Fprintln(w)
	}
	if rec.Transcript != nil {
		fmt.Fprintf(w, "\n%s\n", *rec.Transcript)
	}
}
