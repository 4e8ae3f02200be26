package processing

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/entitlement"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/provider"
	"github.com/kbukum/voicememo/recording"
	"github.com/kbukum/voicememo/resilience"
	"github.com/kbukum/voicememo/storage/local"
	"github.com/kbukum/voicememo/transcription"
)

var testFormat = audio.Format{SampleRate: 8000, Channels: 1}

// --- fakes ---

type fakeDiarizer struct {
	segs     []diarization.Segment
	err      error
	calls    atomic.Int32
	advanced atomic.Bool
	first    atomic.Int32
}

func (f *fakeDiarizer) Name() string                     { return "fake-diarizer" }
func (f *fakeDiarizer) IsAvailable(context.Context) bool { return true }
func (f *fakeDiarizer) Diarize(_ context.Context, req diarization.Request) (*diarization.Response, error) {
	f.calls.Add(1)
	f.advanced.Store(req.Advanced)
	if len(req.Audio.Samples) > 0 {
		f.first.Store(int32(req.Audio.Samples[0]))
	}
	if f.err != nil {
		return nil, f.err
	}
	return &diarization.Response{Segments: f.segs, NumSpeakers: len(diarization.Speakers(f.segs))}, nil
}

type fakeTranscriber struct {
	resp  *transcription.Response
	err   error
	calls atomic.Int32
}

func (f *fakeTranscriber) Name() string                     { return "fake-transcriber" }
func (f *fakeTranscriber) IsAvailable(context.Context) bool { return true }
func (f *fakeTranscriber) Transcribe(context.Context, transcription.Request) (*transcription.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// failingStore rejects the selected writes.
type failingStore struct {
	*recording.MemoryStore
	failResults  bool
	failAudioRef bool
	attempts     atomic.Int32
}

func (f *failingStore) UpdateResults(ctx context.Context, h recording.Handle, r recording.Results) error {
	if f.failResults {
		f.attempts.Add(1)
		return apperrors.Persistence("update results", fmt.Errorf("disk full"))
	}
	return f.MemoryStore.UpdateResults(ctx, h, r)
}

func (f *failingStore) UpdateAudioRef(ctx context.Context, h recording.Handle, ref string) error {
	if f.failAudioRef {
		f.attempts.Add(1)
		return apperrors.Persistence("update audio ref", fmt.Errorf("disk full"))
	}
	return f.MemoryStore.UpdateAudioRef(ctx, h, ref)
}

func scaleBy(name string, gain int16) Transform {
	return provider.Func(name, func(_ context.Context, in *audio.Buffer) (*audio.Buffer, error) {
		out := in.Clone()
		for i := range out.Samples {
			out.Samples[i] *= gain
		}
		return out, nil
	})
}

func failing(name string) Transform {
	return provider.Func(name, func(context.Context, *audio.Buffer) (*audio.Buffer, error) {
		return nil, fmt.Errorf("%s exploded", name)
	})
}

func twoSpeakers() []diarization.Segment {
	return []diarization.Segment{
		{Speaker: "SPEAKER_00", Start: 0, End: 2},
		{Speaker: "SPEAKER_01", Start: 2, End: 4},
	}
}

func transcript() *transcription.Response {
	return &transcription.Response{
		Text: "um hello there like you know",
		Segments: []transcription.Segment{
			{Start: 0, End: 1.9, Text: "um hello there"},
			{Start: 2.1, End: 3.9, Text: "like you know"},
		},
	}
}

// --- harness ---

type harness struct {
	p         *Pipeline
	artifacts *artifact.Store
	store     recording.Store
	mem       *recording.MemoryStore
}

func fastConfig() Config {
	return Config{
		StoreRetry:    resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		ProviderRetry: resilience.RetryConfig{MaxAttempts: 1},
	}
}

func newHarness(t *testing.T, store recording.Store, opts ...Option) *harness {
	t.Helper()
	backend, err := local.NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	arts := artifact.NewStore(backend)
	mem := recording.NewMemoryStore()
	if store == nil {
		store = mem
	} else if fs, ok := store.(*failingStore); ok {
		mem = fs.MemoryStore
	}
	opts = append([]Option{WithConfig(fastConfig()), WithLogger(logger.Nop())}, opts...)
	return &harness{p: New(arts, store, opts...), artifacts: arts, store: store, mem: mem}
}

func tone(frames int, level int16) *audio.Buffer {
	b := audio.NewBuffer(testFormat, frames)
	for i := range b.Samples {
		b.Samples[i] = level
	}
	return b
}

// saved stores a 4s recording and returns the job for it.
func (h *harness) saved(t *testing.T, tier entitlement.Tier) Job {
	t.Helper()
	s, err := h.p.Save(context.Background(), Capture{Title: "test", Live: tone(4*8000, 100)})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return Job{
		Handle:       s.Handle,
		Artifact:     s.Artifact,
		Capabilities: entitlement.Capabilities(tier),
		Settings:     DefaultSettings(),
	}
}

func (h *harness) refs(t *testing.T) []string {
	t.Helper()
	refs, err := h.artifacts.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return refs
}

// --- tests ---

func TestPlan(t *testing.T) {
	all := DefaultSettings()
	noTranscription := all
	noTranscription.Transcription = false
	noEnhance := all
	noEnhance.Enhancement = false

	tests := []struct {
		name     string
		tier     entitlement.Tier
		settings Settings
		want     []Stage
	}{
		{"free runs nothing", entitlement.TierFree, all, nil},
		{"speaker diarizes only", entitlement.TierSpeaker, all, []Stage{StageDiarization}},
		{"pro runs everything", entitlement.TierPro, all, Stages()},
		{"lifetime runs everything", entitlement.TierLifetime, all, Stages()},
		{"setting disables stage", entitlement.TierPro, noEnhance,
			[]Stage{StageNoiseReduction, StageDiarization, StageTranscription, StageAnalytics}},
		{"analytics needs transcription", entitlement.TierPro, noTranscription,
			[]Stage{StageEnhancement, StageNoiseReduction, StageDiarization}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(entitlement.Capabilities(tt.tier), tt.settings)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Plan = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRunAllStages(t *testing.T) {
	d := &fakeDiarizer{segs: twoSpeakers()}
	h := newHarness(t, nil,
		WithEnhancer(scaleBy("double", 2)),
		WithNoiseReducer(scaleBy("triple", 3)),
		WithDiarizer(d),
		WithTranscriber(&fakeTranscriber{resp: transcript()}),
	)
	job := h.saved(t, entitlement.TierLifetime)

	res, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, rep := range res.Stages {
		if rep.Outcome != OutcomeCompleted {
			t.Errorf("%s: %s (%v)", rep.Stage, rep.Outcome, rep.Err)
		}
	}
	if got := d.first.Load(); got != 600 {
		t.Errorf("diarizer saw sample %d, want 600 (both transforms applied)", got)
	}
	if !d.advanced.Load() {
		t.Error("lifetime tier should request advanced diarization")
	}

	if res.FinalArtifact.Ref() == job.Artifact.Ref() {
		t.Error("final artifact should be the noise-reduced one")
	}
	// original and final remain; the enhanced intermediate is gone
	refs := h.refs(t)
	if len(refs) != 2 || !slices.Contains(refs, job.Artifact.Ref()) || !slices.Contains(refs, res.FinalArtifact.Ref()) {
		t.Errorf("artifacts = %v", refs)
	}

	if res.Transcript == nil || *res.Transcript != "SPEAKER_00: um hello there\nSPEAKER_01: like you know" {
		t.Errorf("transcript = %v", res.Transcript)
	}
	if res.PerSegmentTranscripts[1] != "like you know" {
		t.Errorf("per segment = %v", res.PerSegmentTranscripts)
	}
	if res.Analytics == nil || res.Analytics.WordCount != 6 {
		t.Fatalf("analytics = %+v", res.Analytics)
	}

	rec, _ := h.store.Get(context.Background(), job.Handle)
	if rec.AudioRef != res.FinalArtifact.Ref() {
		t.Errorf("stored ref %q, want %q", rec.AudioRef, res.FinalArtifact.Ref())
	}
	if rec.SpeakerCount != 2 || rec.Transcript == nil || rec.WordCount == nil || *rec.WordCount != 6 {
		t.Errorf("stored recording = %+v", rec)
	}
	if rec.FillerWordCount == nil || *rec.FillerWordCount != res.Analytics.FillerWordCount {
		t.Errorf("filler count = %v", rec.FillerWordCount)
	}
}

func TestEnhancementFailureUsesUnenhancedArtifact(t *testing.T) {
	d := &fakeDiarizer{segs: twoSpeakers()}
	h := newHarness(t, nil,
		WithEnhancer(failing("enhancer")),
		WithDiarizer(d),
		WithTranscriber(&fakeTranscriber{resp: transcript()}),
	)
	job := h.saved(t, entitlement.TierPro)

	res, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep, _ := res.Report(StageEnhancement)
	if rep.Outcome != OutcomeFailed || !apperrors.IsCode(rep.Err, apperrors.ErrCodeStageTransient) {
		t.Errorf("enhancement report = %+v", rep)
	}
	if res.Outcome(StageNoiseReduction) != OutcomeSkipped {
		t.Errorf("noise reduction without a reducer should skip, got %s", res.Outcome(StageNoiseReduction))
	}
	if got := d.first.Load(); got != 100 {
		t.Errorf("diarizer saw sample %d, want the original 100", got)
	}
	if res.FinalArtifact.Ref() != job.Artifact.Ref() {
		t.Error("final artifact should stay the original")
	}
	if res.SpeakerSegments == nil || res.Transcript == nil || res.Analytics == nil {
		t.Errorf("expected full analysis results, got %+v", res)
	}
}

func TestNoiseReductionFailureUsesItsInput(t *testing.T) {
	d := &fakeDiarizer{segs: twoSpeakers()}
	h := newHarness(t, nil,
		WithEnhancer(scaleBy("double", 2)),
		WithNoiseReducer(failing("denoiser")),
		WithDiarizer(d),
		WithTranscriber(&fakeTranscriber{resp: transcript()}),
	)
	job := h.saved(t, entitlement.TierPro)

	res, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome(StageEnhancement) != OutcomeCompleted {
		t.Errorf("enhancement = %s", res.Outcome(StageEnhancement))
	}
	rep, _ := res.Report(StageNoiseReduction)
	if rep.Outcome != OutcomeFailed || !apperrors.IsCode(rep.Err, apperrors.ErrCodeStageTransient) {
		t.Errorf("noise reduction report = %+v", rep)
	}
	if got := d.first.Load(); got != 200 {
		t.Errorf("diarizer saw sample %d, want the enhanced 200", got)
	}
	if res.FinalArtifact.Ref() == job.Artifact.Ref() {
		t.Fatal("final artifact should be the enhanced one")
	}
	enhanced, err := h.artifacts.Load(context.Background(), res.FinalArtifact.Ref())
	if err != nil {
		t.Fatal(err)
	}
	if enhanced.Samples[0] != 200 {
		t.Errorf("final artifact sample %d, want 200", enhanced.Samples[0])
	}
	refs := h.refs(t)
	if len(refs) != 2 || !slices.Contains(refs, job.Artifact.Ref()) || !slices.Contains(refs, res.FinalArtifact.Ref()) {
		t.Errorf("artifacts = %v, want original and enhanced only", refs)
	}
	if res.Transcript == nil || res.Analytics == nil {
		t.Errorf("later stages should still run, got %+v", res)
	}
}

func TestRerunStartsFromOriginal(t *testing.T) {
	d := &fakeDiarizer{segs: twoSpeakers()}
	h := newHarness(t, nil,
		WithEnhancer(scaleBy("double", 2)),
		WithNoiseReducer(scaleBy("triple", 3)),
		WithDiarizer(d),
	)
	job := h.saved(t, entitlement.TierPro)
	ctx := context.Background()

	first, err := h.p.Run(ctx, job)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	rec, _ := h.store.Get(ctx, job.Handle)
	if rec.OriginalRef != job.Artifact.Ref() || rec.AudioRef != first.FinalArtifact.Ref() {
		t.Fatalf("after first run: %+v", rec)
	}

	rerun := job
	rerun.Artifact = artifact.Artifact{Key: rec.OriginalRef, Duration: rec.Duration}
	rerun.Replaces = rec.AudioRef
	second, err := h.p.Run(ctx, rerun)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := d.first.Load(); got != 600 {
		t.Errorf("diarizer saw sample %d, want 600 (transforms applied once)", got)
	}
	refs := h.refs(t)
	if len(refs) != 2 || !slices.Contains(refs, job.Artifact.Ref()) || !slices.Contains(refs, second.FinalArtifact.Ref()) {
		t.Errorf("artifacts = %v, want original and latest output", refs)
	}
	if slices.Contains(refs, first.FinalArtifact.Ref()) {
		t.Error("previous output should be deleted")
	}
}

func TestRerunWithoutTransformsRestoresOriginal(t *testing.T) {
	h := newHarness(t, nil,
		WithEnhancer(scaleBy("double", 2)),
		WithDiarizer(&fakeDiarizer{segs: twoSpeakers()}),
	)
	job := h.saved(t, entitlement.TierPro)
	ctx := context.Background()

	first, err := h.p.Run(ctx, job)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}

	rerun := job
	rerun.Settings.Enhancement = false
	rerun.Replaces = first.FinalArtifact.Ref()
	second, err := h.p.Run(ctx, rerun)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.FinalArtifact.Ref() != job.Artifact.Ref() {
		t.Errorf("final artifact = %s, want the original", second.FinalArtifact.Ref())
	}
	rec, _ := h.store.Get(ctx, job.Handle)
	if rec.AudioRef != job.Artifact.Ref() {
		t.Errorf("stored ref %q, want the original", rec.AudioRef)
	}
	if refs := h.refs(t); len(refs) != 1 {
		t.Errorf("artifacts = %v, want the original only", refs)
	}
}

func TestDiarizationFailureSkipsTranscriptionAndAnalytics(t *testing.T) {
	tr := &fakeTranscriber{resp: transcript()}
	h := newHarness(t, nil,
		WithDiarizer(&fakeDiarizer{err: fmt.Errorf("model crashed")}),
		WithTranscriber(tr),
	)
	job := h.saved(t, entitlement.TierPro)

	res, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FinalArtifact.Ref() == "" {
		t.Error("final artifact must be set")
	}
	if res.Transcript != nil || res.PerSegmentTranscripts != nil || res.Analytics != nil {
		t.Errorf("expected no transcript or analytics, got %+v", res)
	}
	rep, _ := res.Report(StageDiarization)
	if !apperrors.IsCode(rep.Err, apperrors.ErrCodeStageBlocking) {
		t.Errorf("diarization error = %v", rep.Err)
	}
	if res.Outcome(StageTranscription) != OutcomeSkipped || res.Outcome(StageAnalytics) != OutcomeSkipped {
		t.Errorf("stages = %+v", res.Stages)
	}
	if tr.calls.Load() != 0 {
		t.Error("transcriber must not be called")
	}

	rec, _ := h.store.Get(context.Background(), job.Handle)
	if rec.Transcript != nil || rec.WordCount != nil {
		t.Errorf("nothing past diarization should be stored: %+v", rec)
	}
}

func TestContinueAfterDiarizationFailure(t *testing.T) {
	cfg := fastConfig()
	cfg.ContinueAfterDiarizationFailure = true
	h := newHarness(t, nil,
		WithConfig(cfg),
		WithDiarizer(&fakeDiarizer{err: fmt.Errorf("model crashed")}),
		WithTranscriber(&fakeTranscriber{resp: transcript()}),
	)
	job := h.saved(t, entitlement.TierPro)

	res, _ := h.p.Run(context.Background(), job)
	if res.Transcript == nil || *res.Transcript != "um hello there like you know" {
		t.Fatalf("expected speaker-independent transcript, got %v", res.Transcript)
	}
	if res.PerSegmentTranscripts != nil {
		t.Error("no per-segment transcripts without speaker segments")
	}
	if res.Analytics == nil {
		t.Error("analytics should run on the transcript")
	}
}

func TestTranscriptionFailureKeepsDiarization(t *testing.T) {
	h := newHarness(t, nil,
		WithDiarizer(&fakeDiarizer{segs: twoSpeakers()}),
		WithTranscriber(&fakeTranscriber{err: fmt.Errorf("sidecar down")}),
	)
	job := h.saved(t, entitlement.TierPro)

	res, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.SpeakerSegments) != 2 {
		t.Errorf("segments = %v", res.SpeakerSegments)
	}
	if res.Outcome(StageTranscription) != OutcomeFailed || res.Outcome(StageAnalytics) != OutcomeSkipped {
		t.Errorf("stages = %+v", res.Stages)
	}
	rec, _ := h.store.Get(context.Background(), job.Handle)
	if rec.SpeakerCount != 2 {
		t.Errorf("diarization results must persist, got %+v", rec)
	}
}

func TestCommitFailureReturnsPersistenceError(t *testing.T) {
	fs := &failingStore{MemoryStore: recording.NewMemoryStore()}
	tr := &fakeTranscriber{resp: transcript()}
	h := newHarness(t, fs, WithDiarizer(&fakeDiarizer{segs: twoSpeakers()}), WithTranscriber(tr))
	job := h.saved(t, entitlement.TierPro)
	fs.failResults = true

	res, err := h.p.Run(context.Background(), job)
	if !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		t.Fatalf("expected PERSISTENCE, got %v", err)
	}
	if !apperrors.IsUserVisible(err) {
		t.Error("persistence errors must be user visible")
	}
	if fs.attempts.Load() != 2 {
		t.Errorf("expected 2 write attempts, got %d", fs.attempts.Load())
	}
	if res.Outcome(StageDiarization) != OutcomeFailed || res.SpeakerSegments != nil {
		t.Errorf("uncommitted diarization must not be reported as a result: %+v", res)
	}
	if tr.calls.Load() != 0 {
		t.Error("run must stop after a persistence failure")
	}
}

func TestTransformCommitFailureDiscardsArtifact(t *testing.T) {
	fs := &failingStore{MemoryStore: recording.NewMemoryStore()}
	h := newHarness(t, fs, WithEnhancer(scaleBy("double", 2)))
	job := h.saved(t, entitlement.TierPro)
	fs.failAudioRef = true

	_, err := h.p.Run(context.Background(), job)
	if !apperrors.IsCode(err, apperrors.ErrCodePersistence) {
		t.Fatalf("expected PERSISTENCE, got %v", err)
	}
	if refs := h.refs(t); len(refs) != 1 || refs[0] != job.Artifact.Ref() {
		t.Errorf("unreferenced artifact should be deleted, got %v", refs)
	}
}

func TestRunLoadsArtifactWhenAudioMissing(t *testing.T) {
	d := &fakeDiarizer{segs: twoSpeakers()}
	h := newHarness(t, nil, WithDiarizer(d))
	job := h.saved(t, entitlement.TierSpeaker)
	job.Audio = nil

	res, err := h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome(StageDiarization) != OutcomeCompleted || d.first.Load() != 100 {
		t.Errorf("stages = %+v", res.Stages)
	}

	job.Artifact = artifact.Artifact{Key: "artifacts/missing.wav"}
	res, err = h.p.Run(context.Background(), job)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome(StageDiarization) != OutcomeFailed {
		t.Errorf("missing artifact should fail the stages, got %+v", res.Stages)
	}
}

func TestRunIgnoresCancellation(t *testing.T) {
	h := newHarness(t, nil, WithDiarizer(&fakeDiarizer{segs: twoSpeakers()}))
	job := h.saved(t, entitlement.TierSpeaker)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.p.Run(ctx, job)
	if err != nil || res.Outcome(StageDiarization) != OutcomeCompleted {
		t.Errorf("run should complete despite cancellation: %v %+v", err, res.Stages)
	}
}

func TestSave(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	t.Run("merges pre-roll", func(t *testing.T) {
		s, err := h.p.Save(ctx, Capture{Title: "merged", Preroll: tone(8000, 10), Live: tone(16000, 20)})
		if err != nil {
			t.Fatal(err)
		}
		// 1s + 2s minus the 100ms crossfade
		if !s.Merged || s.Artifact.Duration != 2900*time.Millisecond {
			t.Errorf("saved = %+v", s)
		}
		rec, _ := h.store.Get(ctx, s.Handle)
		if rec.Title != "merged" || rec.Duration != s.Artifact.Duration || rec.AudioRef != s.Artifact.Ref() {
			t.Errorf("recording = %+v", rec)
		}
	})

	t.Run("falls back to live on merge failure", func(t *testing.T) {
		pre := audio.NewBuffer(audio.Format{SampleRate: 16000, Channels: 1}, 16000)
		s, err := h.p.Save(ctx, Capture{Preroll: pre, Live: tone(16000, 20)})
		if err != nil {
			t.Fatal(err)
		}
		if s.Merged || s.Artifact.Duration != 2*time.Second {
			t.Errorf("saved = %+v", s)
		}
	})

	t.Run("requires live audio", func(t *testing.T) {
		_, err := h.p.Save(ctx, Capture{Preroll: tone(8000, 1)})
		if !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
			t.Errorf("expected INVALID_INPUT, got %v", err)
		}
	})
}

func TestSubmit(t *testing.T) {
	h := newHarness(t, nil, WithDiarizer(&fakeDiarizer{segs: twoSpeakers()}))
	job := h.saved(t, entitlement.TierSpeaker)

	done := make(chan *Result, 1)
	if err := h.p.Submit(context.Background(), job, func(r *Result, err error) {
		if err != nil {
			t.Errorf("run failed: %v", err)
		}
		done <- r
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h.p.Wait()

	select {
	case r := <-done:
		if len(r.SpeakerSegments) != 2 {
			t.Errorf("segments = %v", r.SpeakerSegments)
		}
	default:
		t.Fatal("callback did not run before Wait returned")
	}
}
