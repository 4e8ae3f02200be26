package audio

import (
	"bytes"
	"context"
	"testing"
	"time"

	apperrors "github.com/kbukum/voicememo/errors"
)

var mono = Format{SampleRate: 8000, Channels: 1}

func ramp(f Format, frames int, start int16) *Buffer {
	b := NewBuffer(f, frames)
	for i := range b.Samples {
		b.Samples[i] = start + int16(i)
	}
	return b
}

func TestBufferDuration(t *testing.T) {
	b := NewBuffer(Format{SampleRate: 16000, Channels: 2}, 16000*3)
	if b.Frames() != 48000 {
		t.Fatalf("frames = %d", b.Frames())
	}
	if b.Duration() != 3*time.Second {
		t.Errorf("duration = %s", b.Duration())
	}
	if s := b.Slice(-5, 8000); s.Frames() != 8000 || len(s.Samples) != 16000 {
		t.Errorf("slice frames = %d", s.Frames())
	}
}

func TestWAVRoundTrip(t *testing.T) {
	in := ramp(Format{SampleRate: 22050, Channels: 2}, 1000, -500)
	data, err := EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	out, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.Format != in.Format {
		t.Fatalf("format = %s, want %s", out.Format, in.Format)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("samples = %d, want %d", len(out.Samples), len(in.Samples))
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, err := DecodeWAV(bytes.NewReader([]byte("not a wav file at all"))); err == nil {
		t.Fatal("expected error")
	}
}

func TestCrossfade(t *testing.T) {
	a := NewBuffer(mono, 800)
	for i := range a.Samples {
		a.Samples[i] = 1000
	}
	b := NewBuffer(mono, 400)

	out, err := Crossfade(a, b, 25*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if out.Frames() != 800+400-200 {
		t.Fatalf("frames = %d", out.Frames())
	}
	if out.Samples[0] != 1000 || out.Samples[599] != 1000 {
		t.Error("head of a should be untouched")
	}
	// fade region decreases monotonically from a toward b
	for i := 601; i < 800; i++ {
		if out.Samples[i] > out.Samples[i-1] {
			t.Fatalf("fade not monotonic at %d", i)
		}
	}
	if out.Samples[799] > 10 {
		t.Errorf("fade end = %d, want near 0", out.Samples[799])
	}
}

func TestCrossfadeClampsAndChecksFormat(t *testing.T) {
	a, b := ramp(mono, 10, 0), ramp(mono, 50, 0)
	out, err := Crossfade(a, b, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if out.Frames() != 50 {
		t.Errorf("frames = %d, want 50", out.Frames())
	}
	if _, err := Crossfade(a, ramp(Format{SampleRate: 16000, Channels: 1}, 10, 0), 0); err == nil {
		t.Error("expected format mismatch")
	}
	if out, _ := Crossfade(a, b, 0); out.Frames() != 60 {
		t.Errorf("zero overlap frames = %d", out.Frames())
	}
}

func TestDeviceLease(t *testing.T) {
	d := NewDevice("mic", SilenceSource(0))

	pre, err := d.Acquire(OwnerPreroll)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Acquire(OwnerPlayback); !apperrors.IsCode(err, apperrors.ErrCodeDeviceBusy) {
		t.Fatalf("expected DEVICE_BUSY, got %v", err)
	}

	rec, err := pre.Transfer(OwnerRecording)
	if err != nil {
		t.Fatal(err)
	}
	if pre.Valid() || !rec.Valid() || d.Holder() != OwnerRecording {
		t.Fatalf("transfer did not move ownership (holder %q)", d.Holder())
	}
	if _, err := pre.Open(context.Background(), mono, 80); err == nil {
		t.Error("stale lease should not open a stream")
	}

	pre.Release()
	if d.Holder() != OwnerRecording {
		t.Error("stale release freed the device")
	}
	rec.Release()
	rec.Release()
	if d.Holder() != "" {
		t.Errorf("holder = %q after release", d.Holder())
	}
}

func TestRecordStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	stream, err := SilenceSource(0).Open(ctx, mono, 300)
	if err != nil {
		t.Fatal(err)
	}
	defer stream.Close()

	b, err := Record(ctx, stream, mono, 300, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if b.Frames() != 8000 {
		t.Errorf("frames = %d, want 8000", b.Frames())
	}
}

func TestRecordEndsOnEOF(t *testing.T) {
	ctx := context.Background()
	stream, _ := RampSource(500*time.Millisecond).Open(ctx, mono, 400)
	b, err := Record(ctx, stream, mono, 400, 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if b.Frames() != 4000 {
		t.Errorf("frames = %d, want 4000", b.Frames())
	}
	for i := 1; i < b.Frames(); i++ {
		if b.Samples[i] != b.Samples[i-1]+1 {
			t.Fatalf("ramp broken at %d", i)
		}
	}
}
