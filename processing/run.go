package processing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/entitlement"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/recording"
	"github.com/kbukum/voicememo/resilience"
	"github.com/kbukum/voicememo/transcription"
)

// Job describes one pipeline run.
type Job struct {
	Handle   recording.Handle
	Artifact artifact.Artifact
	// Audio is the decoded artifact. It is loaded from Artifact when nil.
	Audio        *audio.Buffer
	Capabilities entitlement.Set
	Settings     Settings
	// Replaces is the audio ref the recording points at when it differs
	// from Artifact, e.g. the final artifact of an earlier run. It is
	// deleted once this run commits a new ref.
	Replaces string
}

// runState is the accumulator threaded through the stage fold.
type runState struct {
	job      Job
	original artifact.Artifact
	current  artifact.Artifact
	buf      *audio.Buffer
	res      *Result
	// stale is the replaced ref still awaiting deletion.
	stale string
	// spoken is the transcript without speaker labels.
	spoken string

	diarizationFailed bool
}

// commit is the store write a successful stage hands back to the fold.
// write is retried; done runs after it succeeds, undo after it gives up.
type commit struct {
	write func(ctx context.Context) error
	done  func()
	undo  func()
}

type stepFunc func(ctx context.Context, st *runState) (*commit, error)

// Run executes the planned stages for job and returns the accumulated
// result. The returned error is a PERSISTENCE AppError when a commit
// failed after retries; the result then holds everything committed so far.
func (p *Pipeline) Run(ctx context.Context, job Job) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun,
		attribute.String(observability.AttrHandle, string(job.Handle)))

	res, err := p.run(ctx, job)
	observability.EndSpan(span, err)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, job Job) (*Result, error) {
	log := p.log.WithFields(logger.Fields(logger.FieldHandle, string(job.Handle)))
	st := &runState{
		job:      job,
		original: job.Artifact,
		current:  job.Artifact,
		buf:      job.Audio,
		res:      &Result{Handle: job.Handle, FinalArtifact: job.Artifact},
	}
	if job.Replaces != job.Artifact.Ref() {
		st.stale = job.Replaces
	}

	plan := Plan(job.Capabilities, job.Settings)
	if len(plan) == 0 {
		log.Debug("Nothing to run")
		return st.res, nil
	}

	if st.buf == nil {
		buf, err := p.artifacts.Load(ctx, job.Artifact.Ref())
		if err != nil {
			// Every stage needs the audio; report them all as failed.
			stageErr := errors.StageBlocking("load", err)
			for _, stage := range plan {
				st.res.Stages = append(st.res.Stages, StageReport{Stage: stage, Outcome: OutcomeFailed, Err: stageErr})
			}
			log.Error("Failed to load artifact", logger.ErrorFields("load", err))
			return st.res, nil
		}
		st.buf = buf
	}

	for _, stage := range plan {
		rep, err := p.step(ctx, stage, st, log)
		st.res.Stages = append(st.res.Stages, rep)
		if err != nil {
			return st.res, err
		}
	}
	if err := p.restoreOriginal(ctx, st); err != nil {
		return st.res, err
	}

	log.Info("Pipeline finished", logger.Fields(
		"stages", len(st.res.Stages),
		"failed", len(st.res.Failed()),
		logger.FieldArtifact, st.res.FinalArtifact.Ref(),
	))
	return st.res, nil
}

// step runs one stage and applies the failure policy. It only returns an
// error when the stage's commit could not be persisted.
func (p *Pipeline) step(ctx context.Context, stage Stage, st *runState, log *logger.Logger) (StageReport, error) {
	rep := StageReport{Stage: stage}
	if reason := p.skipReason(stage, st); reason != "" {
		rep.Outcome = OutcomeSkipped
		rep.Reason = reason
		log.Debug("Stage skipped", logger.Fields(logger.FieldStage, string(stage), "reason", reason))
		p.metrics.RecordStage(ctx, string(stage), string(rep.Outcome), 0)
		return rep, nil
	}

	start := time.Now()
	sctx, span := observability.StartSpan(ctx, observability.SpanPipelineStage,
		attribute.String(observability.AttrStage, string(stage)))

	c, err := p.stepFor(stage)(sctx, st)
	var persistErr error
	if err == nil && c != nil {
		persistErr = p.commit(sctx, stage, c)
	}

	switch {
	case persistErr != nil:
		rep.Outcome = OutcomeFailed
		rep.Err = persistErr
	case err != nil:
		rep.Outcome = OutcomeFailed
		rep.Err = p.stageError(stage, err, st)
		log.Warn("Stage failed", logger.Fields(
			logger.FieldStage, string(stage), logger.FieldError, err.Error()))
	default:
		rep.Outcome = OutcomeCompleted
	}
	rep.Duration = time.Since(start)

	span.SetAttributes(attribute.String(observability.AttrOutcome, string(rep.Outcome)))
	observability.EndSpan(span, rep.Err)
	p.metrics.RecordStage(ctx, string(stage), string(rep.Outcome), rep.Duration)
	return rep, persistErr
}

// stageError classifies a stage failure and records what it blocks.
func (p *Pipeline) stageError(stage Stage, err error, st *runState) error {
	switch stage {
	case StageDiarization:
		st.diarizationFailed = true
		return errors.StageBlocking(string(stage), err)
	case StageTranscription:
		return errors.StageBlocking(string(stage), err)
	default:
		return errors.StageTransient(string(stage), err)
	}
}

func (p *Pipeline) skipReason(stage Stage, st *runState) string {
	switch stage {
	case StageEnhancement:
		if p.enhancer == nil {
			return "no enhancer configured"
		}
	case StageNoiseReduction:
		if p.denoiser == nil {
			return "no noise reducer configured"
		}
	case StageDiarization:
		if p.diarizer == nil {
			return "no diarization backend configured"
		}
	case StageTranscription:
		if st.diarizationFailed && !p.cfg.ContinueAfterDiarizationFailure {
			return "diarization failed"
		}
		if p.transcriber == nil {
			return "no transcription backend configured"
		}
	case StageAnalytics:
		if st.res.Transcript == nil {
			return "no transcript"
		}
	}
	return ""
}

func (p *Pipeline) stepFor(stage Stage) stepFunc {
	switch stage {
	case StageEnhancement:
		return p.transformStep(p.enhancer)
	case StageNoiseReduction:
		return p.transformStep(p.denoiser)
	case StageDiarization:
		return p.diarize
	case StageTranscription:
		return p.transcribe
	default:
		return p.analyze
	}
}

// commit persists a stage result with retry. On final failure it runs undo
// and returns a PERSISTENCE error.
func (p *Pipeline) commit(ctx context.Context, stage Stage, c *commit) error {
	err := p.withStoreRetry(ctx, c.write)
	if err != nil {
		if c.undo != nil {
			c.undo()
		}
		p.log.Error("Commit failed", logger.Fields(
			logger.FieldStage, string(stage), logger.FieldError, err.Error()))
		if errors.IsCode(err, errors.ErrCodePersistence) {
			return err
		}
		return errors.Persistence("commit "+string(stage), err)
	}
	if c.done != nil {
		c.done()
	}
	return nil
}

func (p *Pipeline) withStoreRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return resilience.RetryFunc(ctx, p.cfg.StoreRetry, func() error { return fn(ctx) })
}

func (p *Pipeline) transformStep(t Transform) stepFunc {
	return func(ctx context.Context, st *runState) (*commit, error) {
		out, err := t.Execute(ctx, st.buf)
		if err != nil {
			return nil, err
		}
		if out.Empty() {
			return nil, fmt.Errorf("%s produced no audio", t.Name())
		}
		art, err := p.artifacts.Put(ctx, out)
		if err != nil {
			return nil, err
		}
		prev := st.current
		return &commit{
			write: func(ctx context.Context) error {
				return p.store.UpdateAudioRef(ctx, st.job.Handle, art.Ref())
			},
			done: func() {
				st.current, st.buf = art, out
				st.res.FinalArtifact = art
				if prev.Ref() != st.original.Ref() {
					p.discard(ctx, prev)
				}
				p.dropStale(ctx, st)
			},
			undo: func() { p.discard(ctx, art) },
		}, nil
	}
}

// discard deletes a superseded intermediate artifact. Failures only leak
// storage, so they are logged.
func (p *Pipeline) discard(ctx context.Context, a artifact.Artifact) {
	if err := p.artifacts.Delete(ctx, a.Ref()); err != nil {
		p.log.Warn("Failed to delete intermediate artifact", logger.Fields(
			logger.FieldArtifact, a.Ref(), logger.FieldError, err.Error()))
	}
}

func (p *Pipeline) dropStale(ctx context.Context, st *runState) {
	if st.stale == "" {
		return
	}
	p.discard(ctx, artifact.Artifact{Key: st.stale})
	st.stale = ""
}

// restoreOriginal points the recording back at the original when no
// transform of this run replaced the earlier output.
func (p *Pipeline) restoreOriginal(ctx context.Context, st *runState) error {
	if st.stale == "" {
		return nil
	}
	return p.commit(ctx, "audio_ref", &commit{
		write: func(ctx context.Context) error {
			return p.store.UpdateAudioRef(ctx, st.job.Handle, st.original.Ref())
		},
		done: func() { p.dropStale(ctx, st) },
	})
}

func (p *Pipeline) diarize(ctx context.Context, st *runState) (*commit, error) {
	resp, err := p.diarizer.Execute(ctx, diarization.Request{
		Audio:       st.buf,
		NumSpeakers: st.job.Settings.NumSpeakers,
		Language:    st.job.Settings.Language,
		Advanced:    st.job.Capabilities.Has(entitlement.AdvancedSpeakerDiarization),
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("diarization returned no response")
	}
	segs := diarization.Normalize(resp.Segments)
	if segs == nil {
		segs = []diarization.Segment{}
	}
	return &commit{
		write: func(ctx context.Context) error {
			return p.store.UpdateResults(ctx, st.job.Handle, recording.Results{SpeakerSegments: segs})
		},
		done: func() { st.res.SpeakerSegments = segs },
	}, nil
}

func (p *Pipeline) transcribe(ctx context.Context, st *runState) (*commit, error) {
	resp, err := p.transcriber.Execute(ctx, transcription.Request{
		Audio:    st.buf,
		Language: st.job.Settings.Language,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("transcription returned no response")
	}

	spoken := strings.TrimSpace(resp.Text)
	text := spoken
	var perSegment map[int]string
	if len(st.res.SpeakerSegments) > 0 && len(resp.Segments) > 0 {
		perSegment = transcription.AlignToSpeakers(resp.Segments, st.res.SpeakerSegments)
		text = transcription.SpeakerTranscript(st.res.SpeakerSegments, perSegment)
	}

	return &commit{
		write: func(ctx context.Context) error {
			return p.store.UpdateResults(ctx, st.job.Handle, recording.Results{
				Transcript:         &text,
				SegmentTranscripts: perSegment,
			})
		},
		done: func() {
			st.spoken = spoken
			st.res.Transcript = &text
			st.res.PerSegmentTranscripts = perSegment
		},
	}, nil
}

func (p *Pipeline) analyze(_ context.Context, st *runState) (*commit, error) {
	report := p.analyzer.Analyze(st.spoken, st.res.SpeakerSegments, st.res.PerSegmentTranscripts)
	return &commit{
		write: func(ctx context.Context) error {
			return p.store.UpdateAnalytics(ctx, st.job.Handle, recording.Analytics{
				WordCount:       &report.WordCount,
				FillerWordCount: &report.FillerWordCount,
			})
		},
		done: func() { st.res.Analytics = &report },
	}, nil
}
