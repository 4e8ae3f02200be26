package processing

import (
	"context"
	"time"

	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/recording"
	"github.com/kbukum/voicememo/resilience"
)

// Capture is a committed recording waiting to be saved.
type Capture struct {
	Title string
	// Preroll is the exported pre-roll audio, nil when there is none.
	Preroll *audio.Buffer
	Live    *audio.Buffer
}

// Saved describes a recording after Save.
type Saved struct {
	Handle   recording.Handle
	Artifact artifact.Artifact
	Audio    *audio.Buffer
	// Merged is true when pre-roll audio was crossfaded in.
	Merged bool
}

// Save merges pre-roll and live audio, stores the artifact and creates
// the recording. A failed merge falls back to the live audio alone.
func (p *Pipeline) Save(ctx context.Context, c Capture) (Saved, error) {
	ctx = context.WithoutCancel(ctx)
	if c.Live.Empty() {
		return Saved{}, errors.InvalidInput("live", "no audio captured")
	}

	final, merged := p.merge(c.Preroll, c.Live)

	art, err := resilience.Retry(ctx, p.cfg.StoreRetry, func() (artifact.Artifact, error) {
		return p.artifacts.Put(ctx, final)
	})
	if err != nil {
		return Saved{}, errors.Persistence("store artifact", err)
	}

	title := c.Title
	if title == "" {
		title = "Recording " + art.CreatedAt.Local().Format(time.DateTime)
	}
	h, err := resilience.Retry(ctx, p.cfg.StoreRetry, func() (recording.Handle, error) {
		return p.store.Create(ctx, title, art.Ref(), art.Duration)
	})
	if err != nil {
		p.discard(ctx, art)
		if errors.IsCode(err, errors.ErrCodePersistence) {
			return Saved{}, err
		}
		return Saved{}, errors.Persistence("create recording", err)
	}

	p.log.Info("Recording saved", logger.Fields(
		logger.FieldHandle, string(h),
		logger.FieldArtifact, art.Ref(),
		logger.FieldDuration, art.Duration.Milliseconds(),
		"merged", merged,
	))
	return Saved{Handle: h, Artifact: art, Audio: final, Merged: merged}, nil
}

// merge crossfades pre-roll into live. Pre-roll is best-effort: any
// failure yields the live audio unchanged.
func (p *Pipeline) merge(pre, live *audio.Buffer) (*audio.Buffer, bool) {
	if pre.Empty() {
		return live, false
	}
	out, err := audio.Crossfade(pre, live, p.cfg.Crossfade)
	if err != nil {
		p.log.Warn("Pre-roll merge failed, using live audio only", logger.ErrorFields("merge", err))
		return live, false
	}
	return out, true
}

// Process saves c and runs the pipeline on the result.
func (p *Pipeline) Process(ctx context.Context, c Capture, caps entitlement.Set, s Settings) (Saved, *Result, error) {
	saved, err := p.Save(ctx, c)
	if err != nil {
		return Saved{}, nil, err
	}
	res, err := p.Run(ctx, Job{
		Handle:       saved.Handle,
		Artifact:     saved.Artifact,
		Audio:        saved.Audio,
		Capabilities: caps,
		Settings:     s,
	})
	return saved, res, err
}

// Submit runs job in the background and reports through done. It fails
// with SERVICE_UNAVAILABLE when no run slot frees up within QueueWait.
func (p *Pipeline) Submit(ctx context.Context, job Job, done func(*Result, error)) error {
	p.wg.Add(1)
	err := p.bulkhead.Go(ctx, func() {
		defer p.wg.Done()
		res, err := p.Run(ctx, job)
		if done != nil {
			done(res, err)
		}
	})
	if err != nil {
		p.wg.Done()
		return errors.ServiceUnavailable("pipeline").WithCause(err)
	}
	return nil
}
