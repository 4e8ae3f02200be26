package app

import (
	"context"
	"io"
	"time"

	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/preroll"
	"github.com/kbukum/voicememo/processing"
	"github.com/kbukum/voicememo/prompt"
	"github.com/kbukum/voicememo/recording"
)

// RecordRequest describes one take.
type RecordRequest struct {
	Title    string
	Duration time.Duration
	// Lead is how long pre-roll captures before the live take starts.
	Lead time.Duration
}

// Outcome is what a finished take produced.
type Outcome struct {
	Saved   processing.Saved   `json:"-"`
	Result  *processing.Result `json:"result"`
	Prompts []prompt.Kind      `json:"prompts,omitempty"`
}

// Record arms pre-roll (when configured), hands the device to a live take,
// saves the merged audio and runs the pipeline with the current tier's
// capabilities. Cancelling ctx ends the take early; what was captured is
// still saved.
func (s *Services) Record(ctx context.Context, req RecordRequest) (*Outcome, error) {
	if req.Duration <= 0 {
		return nil, errors.InvalidInput("duration", "must be positive")
	}

	window := s.Cfg.Preroll.WindowSeconds
	if window > 0 {
		rearm := s.Preroll.Status().State == preroll.StateArmed
		if err := s.Preroll.Arm(window); err != nil {
			return nil, err
		}
		defer s.restorePreroll(rearm, window)
		if req.Lead > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(req.Lead):
			}
		}
	}

	live, err := s.takeLive(ctx, req.Duration)
	if err != nil {
		return nil, err
	}

	var pre *audio.Buffer
	if window > 0 && s.Preroll.HasContent() {
		if pre, err = s.Preroll.Export(); err != nil {
			s.Log.Warn("pre-roll export failed", logger.ErrorFields("export", err))
		}
	}
	return s.finish(context.WithoutCancel(ctx), processing.Capture{Title: req.Title, Preroll: pre, Live: live})
}

// restorePreroll leaves the buffer the way the take found it: armed
// again when it was armed before, disarmed otherwise.
func (s *Services) restorePreroll(rearm bool, window int) {
	if !rearm {
		s.Preroll.Disarm()
		return
	}
	if err := s.Preroll.Arm(window); err != nil {
		s.Log.Warn("pre-roll re-arm failed", logger.ErrorFields("arm", err))
	}
}

func (s *Services) takeLive(ctx context.Context, d time.Duration) (*audio.Buffer, error) {
	lease, err := s.Preroll.Handoff(audio.OwnerRecording)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	chunk := s.Format.FramesFor(s.Cfg.Audio.ChunkDuration)
	stream, err := lease.Open(ctx, s.Format, chunk)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	live, err := audio.Record(ctx, stream, s.Format, chunk, d)
	if err != nil {
		return nil, errors.HardwareUnavailable(s.Device.Name(), err)
	}
	if live.Empty() {
		return nil, errors.CaptureEmpty()
	}
	return live, nil
}

// Import saves and processes an existing WAV file.
func (s *Services) Import(ctx context.Context, title string, r io.Reader) (*Outcome, error) {
	buf, err := audio.DecodeWAV(r)
	if err != nil {
		return nil, errors.InvalidInput("file", err.Error())
	}
	return s.finish(ctx, processing.Capture{Title: title, Live: buf})
}

func (s *Services) finish(ctx context.Context, c processing.Capture) (*Outcome, error) {
	saved, res, err := s.Pipeline.Process(ctx, c, s.Entitlements.Capabilities(), s.Cfg.Settings())
	if err != nil {
		return nil, err
	}

	out := &Outcome{Saved: saved, Result: res}
	// A finished recording is a prompt trigger point. Counter persistence
	// failures do not fail the recording.
	if out.Prompts, err = s.CheckUpsells(ctx); err != nil {
		s.Log.Warn("upsell check failed", logger.ErrorFields("prompts", err))
	}
	return out, nil
}

// Reprocess queues a background pipeline run over a saved recording with
// the current tier's capabilities, e.g. after an upgrade unlocked stages.
func (s *Services) Reprocess(ctx context.Context, h recording.Handle) error {
	rec, err := s.Recordings.Get(ctx, h)
	if err != nil {
		return err
	}
	original := rec.OriginalRef
	if original == "" {
		original = rec.AudioRef
	}
	// Transforms start again from the saved audio; the previous output is
	// replaced.
	job := processing.Job{
		Handle:       rec.Handle,
		Artifact:     artifact.Artifact{Key: original, Duration: rec.Duration},
		Capabilities: s.Entitlements.Capabilities(),
		Settings:     s.Cfg.Settings(),
		Replaces:     rec.AudioRef,
	}
	log := s.Log.WithFields(logger.Fields(logger.FieldHandle, string(h)))
	return s.Pipeline.Submit(context.WithoutCancel(ctx), job, func(res *processing.Result, err error) {
		if err != nil {
			log.Error("reprocess failed", logger.ErrorFields("reprocess", err))
			return
		}
		log.Info("reprocess finished", logger.Fields("stages", len(res.Stages), "failed", len(res.Failed())))
	})
}
