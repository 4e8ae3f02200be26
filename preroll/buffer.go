package preroll

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/kbukum/voicememo/artifact"
	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
)

// State is the lifecycle state of the buffer.
type State string

const (
	StateDisarmed State = "disarmed"
	StateArmed    State = "armed"
	// StateHandedOff means capture stopped because the device was handed to
	// a live recording. The ring is kept for export until the next Arm or
	// Disarm.
	StateHandedOff State = "handed_off"
)

// Status is an observable snapshot of the buffer.
type Status struct {
	State          State            `json:"state"`
	WindowSeconds  int              `json:"window_seconds"`
	Capturing      bool             `json:"capturing"`
	HasContent     bool             `json:"has_content"`
	Buffered       time.Duration    `json:"buffered"`
	ChunksCaptured uint64           `json:"chunks_captured"`
	Warning        *errors.AppError `json:"warning,omitempty"`
}

// ArtifactWriter stores exported audio.
type ArtifactWriter interface {
	Put(ctx context.Context, buf *audio.Buffer) (artifact.Artifact, error)
}

// Buffer is the pre-roll capture buffer.
type Buffer struct {
	device      *audio.Device
	format      audio.Format
	chunkFrames int
	log         *logger.Logger
	metrics     *observability.Metrics
	onWarning   func(*errors.AppError)

	mu        sync.Mutex
	state     State
	window    int
	ring      *ring
	lease     *audio.Lease
	capturing bool
	cancel    context.CancelFunc
	done      chan struct{}
	warning   *errors.AppError
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithChunkDuration sets the capture chunk length (default 100ms).
func WithChunkDuration(d time.Duration) Option {
	return func(b *Buffer) {
		if frames := b.format.FramesFor(d); frames > 0 {
			b.chunkFrames = frames
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *Buffer) { b.log = l }
}

// WithMetrics counts capture warnings.
func WithMetrics(m *observability.Metrics) Option {
	return func(b *Buffer) { b.metrics = m }
}

// WithWarningHandler is called, outside the buffer lock, whenever a
// hardware warning is raised.
func WithWarningHandler(fn func(*errors.AppError)) Option {
	return func(b *Buffer) { b.onWarning = fn }
}

// New creates a disarmed buffer capturing format from device.
func New(device *audio.Device, format audio.Format, opts ...Option) *Buffer {
	b := &Buffer{
		device:      device,
		format:      format,
		chunkFrames: format.FramesFor(100 * time.Millisecond),
		log:         logger.WithComponent("preroll"),
		state:       StateDisarmed,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.chunkFrames <= 0 {
		b.chunkFrames = 1
	}
	return b
}

// capacityFor returns the number of chunks covering windowSeconds.
func (b *Buffer) capacityFor(windowSeconds int) int {
	frames := windowSeconds * b.format.SampleRate
	return (frames + b.chunkFrames - 1) / b.chunkFrames
}

// Arm starts capturing a rolling window of windowSeconds. Zero disarms.
// Re-arming with the same window while armed is a no-op; a different
// window tears down and recreates the ring.
//
// Hardware failures do not fail Arm. They are recorded as Status().Warning
// and the buffer stays armed without capturing.
func (b *Buffer) Arm(windowSeconds int) error {
	if windowSeconds < 0 {
		return errors.InvalidInput("window_seconds", "must not be negative")
	}
	if windowSeconds == 0 {
		b.Disarm()
		return nil
	}
	if err := b.format.Validate(); err != nil {
		return errors.InvalidInput("format", err.Error())
	}

	b.mu.Lock()
	if b.state == StateArmed && b.window == windowSeconds {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	b.teardown()

	b.mu.Lock()
	b.state = StateArmed
	b.window = windowSeconds
	b.ring = newRing(b.capacityFor(windowSeconds), b.chunkFrames*b.format.Channels)
	b.warning = nil
	b.mu.Unlock()

	b.log.Info("pre-roll armed", logger.Fields("window_seconds", windowSeconds, "chunk_frames", b.chunkFrames))

	lease, err := b.device.Acquire(audio.OwnerPreroll)
	if err != nil {
		b.warn(errors.HardwareUnavailable(b.device.Name(), err))
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := lease.Open(ctx, b.format, b.chunkFrames)
	if err != nil {
		cancel()
		lease.Release()
		b.warn(errors.HardwareUnavailable(b.device.Name(), err))
		return nil
	}

	b.mu.Lock()
	b.lease = lease
	b.cancel = cancel
	b.done = make(chan struct{})
	b.capturing = true
	r, done := b.ring, b.done
	b.mu.Unlock()

	go b.capture(ctx, stream, r, done)
	return nil
}

// capture reads chunks into r until ctx is cancelled or the stream ends.
func (b *Buffer) capture(ctx context.Context, stream audio.Stream, r *ring, done chan struct{}) {
	defer close(done)
	defer stream.Close()

	chunk := make([]int16, b.chunkFrames*b.format.Channels)
	for {
		if ctx.Err() != nil {
			return
		}
		err := stream.Read(chunk)
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				b.log.Debug("capture stream ended")
			} else {
				b.warn(errors.HardwareUnavailable(b.device.Name(), err))
			}
			b.mu.Lock()
			b.capturing = false
			b.mu.Unlock()
			return
		}
		b.mu.Lock()
		// a concurrent re-arm may have swapped the ring
		if b.ring == r {
			r.write(chunk)
		}
		b.mu.Unlock()
	}
}

// Disarm stops capture, releases the device and drops the ring. Idempotent.
func (b *Buffer) Disarm() {
	b.teardown()
	b.mu.Lock()
	wasArmed := b.state != StateDisarmed
	b.state = StateDisarmed
	b.window = 0
	b.ring = nil
	b.warning = nil
	b.mu.Unlock()
	if wasArmed {
		b.log.Info("pre-roll disarmed")
	}
}

// Handoff stops capture and transfers the device to owner without a gap.
// The ring is kept so the pre-roll can still be exported and merged.
// When pre-roll never acquired the device, Handoff acquires it for owner.
func (b *Buffer) Handoff(owner string) (*audio.Lease, error) {
	b.stopCapture()

	b.mu.Lock()
	defer b.mu.Unlock()

	var next *audio.Lease
	var err error
	if b.lease != nil && b.lease.Valid() {
		next, err = b.lease.Transfer(owner)
	} else {
		next, err = b.device.Acquire(owner)
	}
	if err != nil {
		return nil, err
	}
	b.lease = nil
	if b.state == StateArmed {
		b.state = StateHandedOff
	}
	b.log.Info("capture device handed off", logger.Fields(logger.FieldOwner, owner))
	return next, nil
}

// HasContent reports whether at least one full chunk is buffered.
func (b *Buffer) HasContent() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring != nil && b.ring.cursor > 0
}

// Export returns the buffered audio oldest first. It does not change state
// and fails with CAPTURE_EMPTY when nothing is buffered.
func (b *Buffer) Export() (*audio.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ring == nil || b.ring.cursor == 0 {
		return nil, errors.CaptureEmpty()
	}
	return &audio.Buffer{Format: b.format, Samples: b.ring.snapshot()}, nil
}

// ExportToArtifact exports the ring into a new stored artifact.
func (b *Buffer) ExportToArtifact(ctx context.Context, w ArtifactWriter) (artifact.Artifact, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanPrerollExport)
	buf, err := b.Export()
	if err != nil {
		observability.EndSpan(span, err)
		return artifact.Artifact{}, err
	}
	a, err := w.Put(ctx, buf)
	observability.EndSpan(span, err)
	return a, err
}

// Status returns an observable snapshot.
func (b *Buffer) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Status{
		State:         b.state,
		WindowSeconds: b.window,
		Capturing:     b.capturing,
		Warning:       b.warning,
	}
	if b.ring != nil {
		st.ChunksCaptured = b.ring.cursor
		st.HasContent = b.ring.cursor > 0
		st.Buffered = b.format.DurationOf(b.ring.len() * b.chunkFrames)
	}
	return st
}

// stopCapture cancels the capture goroutine and waits for it to exit.
func (b *Buffer) stopCapture() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	b.mu.Lock()
	b.capturing = false
	b.mu.Unlock()
}

// teardown stops capture and releases any device lease.
func (b *Buffer) teardown() {
	b.stopCapture()
	b.mu.Lock()
	lease := b.lease
	b.lease = nil
	b.mu.Unlock()
	if lease != nil {
		lease.Release()
	}
}

func (b *Buffer) warn(w *errors.AppError) {
	b.mu.Lock()
	b.warning = w
	b.mu.Unlock()
	b.log.Warn("pre-roll capture unavailable", logger.ErrorFields("capture", w))
	b.metrics.RecordCaptureWarning(context.Background(), string(w.Code))
	if b.onWarning != nil {
		b.onWarning(w)
	}
}
