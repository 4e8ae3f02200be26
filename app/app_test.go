package app

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/bootstrap"
	"github.com/kbukum/voicememo/entitlement"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/preroll"
	"github.com/kbukum/voicememo/prompt"
)

type recordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *recordingNotifier) Notify(title, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.titles)
}

func testConfig(t *testing.T, backend string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{}
	cfg.Name = "voicememo-test"
	cfg.State.Backend = backend
	cfg.State.Recordings = backend
	cfg.Storage.Local.BasePath = filepath.Join(dir, "artifacts")
	cfg.Database.Path = filepath.Join(dir, "state.db")
	cfg.Preroll.WindowSeconds = 2
	return cfg
}

func newTestApp(t *testing.T, cfg *Config, n *recordingNotifier) *App {
	t.Helper()
	a, err := New(cfg,
		WithSource(audio.ToneSource(300, 4000, 30*time.Second)),
		WithNotifier(n),
		WithBootstrap(bootstrap.WithLogger(logger.Nop()), bootstrap.WithoutSummary()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.State.Backend != BackendDatabase || cfg.State.Recordings != BackendDatabase {
		t.Errorf("state = %+v, want database backends", cfg.State)
	}
	if cfg.Audio.Source != SourcePortAudio {
		t.Errorf("source = %q", cfg.Audio.Source)
	}
	if cfg.Audio.Format != audio.DefaultFormat {
		t.Errorf("format = %v, want %v", cfg.Audio.Format, audio.DefaultFormat)
	}
	if cfg.Audio.ChunkDuration != 100*time.Millisecond {
		t.Errorf("chunk = %v", cfg.Audio.ChunkDuration)
	}
	if cfg.Diarization.Provider != "energy" || cfg.Transcription.Provider != "none" {
		t.Errorf("providers = %q/%q", cfg.Diarization.Provider, cfg.Transcription.Provider)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.State.Backend = "etcd" }},
		{"redis recordings", func(c *Config) { c.State.Recordings = BackendRedis }},
		{"window too long", func(c *Config) { c.Preroll.WindowSeconds = 301 }},
		{"unknown stage", func(c *Config) { c.Processing.Disabled = []string{"mastering"} }},
		{"bad diarizer", func(c *Config) { c.Diarization.Provider = "magic" }},
		{"remote server", func(c *Config) { c.Server.Host = "0.0.0.0" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigSettings(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	cfg.Processing.Disabled = []string{"transcription"}
	cfg.Processing.NumSpeakers = 2

	s := cfg.Settings()
	if s.Transcription {
		t.Error("transcription should be disabled")
	}
	if !s.Enhancement || !s.Diarization {
		t.Errorf("other stages should stay on: %+v", s)
	}
	if s.NumSpeakers != 2 {
		t.Errorf("num speakers = %d", s.NumSpeakers)
	}
}

func TestRecordWithPreroll(t *testing.T) {
	n := &recordingNotifier{}
	a := newTestApp(t, testConfig(t, BackendMemory), n)

	err := a.RunTask(context.Background(), func(ctx context.Context) error {
		s := a.Services
		out, err := s.Record(ctx, RecordRequest{Title: "standup", Duration: time.Second, Lead: 100 * time.Millisecond})
		if err != nil {
			return err
		}
		if !out.Saved.Merged {
			t.Error("pre-roll should be merged into the take")
		}
		rec, err := s.Recordings.Get(ctx, out.Saved.Handle)
		if err != nil {
			return err
		}
		if rec.Title != "standup" {
			t.Errorf("title = %q", rec.Title)
		}
		if rec.Duration <= time.Second {
			t.Errorf("duration = %v, want pre-roll plus live", rec.Duration)
		}
		if len(out.Result.Stages) != 0 {
			t.Errorf("free tier should plan no stages, got %d", len(out.Result.Stages))
		}
		if st := s.Preroll.Status(); st.State != preroll.StateDisarmed {
			t.Errorf("pre-roll state after take = %q", st.State)
		}

		usage, err := s.Usage(ctx)
		if err != nil {
			return err
		}
		if usage.TotalRecordings != 1 {
			t.Errorf("total recordings = %d", usage.TotalRecordings)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}

func TestRecordRejectsZeroDuration(t *testing.T) {
	a := newTestApp(t, testConfig(t, BackendMemory), &recordingNotifier{})
	err := a.RunTask(context.Background(), func(ctx context.Context) error {
		_, err := a.Services.Record(ctx, RecordRequest{})
		return err
	})
	if !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestImportTriggersUpsell(t *testing.T) {
	cfg := testConfig(t, BackendMemory)
	cfg.Prompts.Pro = prompt.Rule{Milestone: 1, MaxShows: prompt.Count(1), Cooldown: 24 * time.Hour}
	n := &recordingNotifier{}
	a := newTestApp(t, cfg, n)

	wav, err := audio.EncodeWAV(toneBuffer(t, 2*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	err = a.RunTask(context.Background(), func(ctx context.Context) error {
		s := a.Services
		if err := s.Entitlements.Upgrade(ctx, entitlement.TierSpeaker); err != nil {
			return err
		}
		out, err := s.Import(ctx, "imported", bytes.NewReader(wav))
		if err != nil {
			return err
		}
		if len(out.Prompts) != 1 || out.Prompts[0] != prompt.KindPro {
			t.Errorf("prompts = %v, want [pro]", out.Prompts)
		}
		if len(out.Result.Stages) == 0 {
			t.Error("speaker tier should run stages")
		}

		again, err := s.Import(ctx, "second", bytes.NewReader(wav))
		if err != nil {
			return err
		}
		if len(again.Prompts) != 0 {
			t.Errorf("prompt shown again inside cooldown: %v", again.Prompts)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if n.count() != 1 {
		t.Errorf("notifications = %d, want 1", n.count())
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	a := newTestApp(t, testConfig(t, BackendMemory), &recordingNotifier{})
	err := a.RunTask(context.Background(), func(ctx context.Context) error {
		_, err := a.Services.Import(ctx, "junk", bytes.NewReader([]byte("not audio")))
		return err
	})
	if !apperrors.IsCode(err, apperrors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestDatabaseStateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, BackendDatabase)

	first := newTestApp(t, cfg, &recordingNotifier{})
	err := first.RunTask(context.Background(), func(ctx context.Context) error {
		if err := first.Services.Entitlements.Upgrade(ctx, entitlement.TierPro); err != nil {
			return err
		}
		_, err := first.Services.Record(ctx, RecordRequest{Title: "kept", Duration: 500 * time.Millisecond})
		return err
	})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}

	second := newTestApp(t, cfg, &recordingNotifier{})
	err = second.RunTask(context.Background(), func(ctx context.Context) error {
		if got := second.Services.Entitlements.Tier(); got != entitlement.TierPro {
			t.Errorf("tier after restart = %q, want pro", got)
		}
		usage, err := second.Services.Usage(ctx)
		if err != nil {
			return err
		}
		if usage.TotalRecordings != 1 {
			t.Errorf("recordings after restart = %d, want 1", usage.TotalRecordings)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
}

func toneBuffer(t *testing.T, d time.Duration) *audio.Buffer {
	t.Helper()
	f := audio.DefaultFormat
	chunk := f.FramesFor(100 * time.Millisecond)
	stream, err := audio.ToneSource(220, 6000, d).Open(context.Background(), f, chunk)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := audio.Record(context.Background(), stream, f, chunk, d)
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestReprocessAfterUpgrade(t *testing.T) {
	a := newTestApp(t, testConfig(t, BackendMemory), &recordingNotifier{})

	wav, err := audio.EncodeWAV(toneBuffer(t, 2*time.Second))
	if err != nil {
		t.Fatal(err)
	}

	err = a.RunTask(context.Background(), func(ctx context.Context) error {
		s := a.Services
		out, err := s.Import(ctx, "before upgrade", bytes.NewReader(wav))
		if err != nil {
			return err
		}
		h := out.Saved.Handle
		before, err := s.Recordings.Get(ctx, h)
		if err != nil {
			return err
		}

		if err := s.Entitlements.Upgrade(ctx, entitlement.TierPro); err != nil {
			return err
		}
		if err := s.Reprocess(ctx, h); err != nil {
			return err
		}
		s.Pipeline.Wait()

		after, err := s.Recordings.Get(ctx, h)
		if err != nil {
			return err
		}
		if after.AudioRef == before.AudioRef {
			t.Error("enhancement should have replaced the audio reference")
		}
		if after.OriginalRef != before.AudioRef {
			t.Errorf("original ref = %q, want %q", after.OriginalRef, before.AudioRef)
		}

		// A second run starts from the original again and replaces the
		// previous output instead of stacking on it.
		if err := s.Reprocess(ctx, h); err != nil {
			return err
		}
		s.Pipeline.Wait()
		again, err := s.Recordings.Get(ctx, h)
		if err != nil {
			return err
		}
		if again.AudioRef == after.AudioRef || again.OriginalRef != before.AudioRef {
			t.Errorf("second reprocess: audio %q original %q", again.AudioRef, again.OriginalRef)
		}
		refs, err := s.Artifacts.List(ctx)
		if err != nil {
			return err
		}
		if len(refs) != 2 || !slices.Contains(refs, before.AudioRef) || !slices.Contains(refs, again.AudioRef) {
			t.Errorf("artifacts = %v, want original and latest output", refs)
		}

		if err := s.Reprocess(ctx, "missing"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			t.Errorf("reprocess unknown handle: err = %v, want NOT_FOUND", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServeArmsPrerollWhenReady(t *testing.T) {
	cfg := testConfig(t, BackendMemory)
	cfg.Preroll.ArmOnStart = true
	cfg.Server.Port = freePort(t)

	a, err := New(cfg,
		WithControlAPI(),
		WithSource(audio.ToneSource(300, 4000, 30*time.Second)),
		WithNotifier(&recordingNotifier{}),
		WithBootstrap(bootstrap.WithLogger(logger.Nop()), bootstrap.WithoutSummary()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	err = a.RunTask(context.Background(), func(ctx context.Context) error {
		if st := a.Services.Preroll.Status(); st.State != preroll.StateArmed {
			t.Errorf("pre-roll state = %s, want armed", st.State)
		}
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if st := a.Services.Preroll.Status(); st.State != preroll.StateDisarmed {
		t.Errorf("pre-roll should be disarmed after stop, got %s", st.State)
	}
}

func TestConfigPathsFollowDataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{}
	cfg.DataDir = dir
	cfg.ApplyDefaults()

	if cfg.Database.Path != filepath.Join(dir, "voicememo.db") {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Storage.Local.BasePath != filepath.Join(dir, "artifacts") {
		t.Errorf("artifact path = %q", cfg.Storage.Local.BasePath)
	}
}
