package audio

import (
	"context"
	"sync"

	"github.com/kbukum/voicememo/errors"
)

// Owners of the capture device.
const (
	OwnerPreroll   = "preroll"
	OwnerRecording = "recording"
	OwnerPlayback  = "playback"
)

// Device arbitrates the single capture device. At most one Lease is valid
// at any time.
type Device struct {
	name   string
	source Source

	mu     sync.Mutex
	holder string
	epoch  uint64
}

// NewDevice wraps source as an exclusively leased device.
func NewDevice(name string, source Source) *Device {
	return &Device{name: name, source: source}
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Holder returns the current owner, or "" when free.
func (d *Device) Holder() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.holder
}

// Acquire leases the device to owner. It fails with DEVICE_BUSY while
// another owner holds it.
func (d *Device) Acquire(owner string) (*Lease, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.holder != "" {
		return nil, errors.DeviceBusy(d.holder).WithDetail("device", d.name)
	}
	d.holder = owner
	d.epoch++
	return &Lease{device: d, owner: owner, epoch: d.epoch}, nil
}

// Lease is a claim on the device. A lease is invalidated by Release or by
// Transfer, which atomically hands the device to a new owner.
type Lease struct {
	device *Device
	owner  string
	epoch  uint64
}

// Owner returns the lease owner.
func (l *Lease) Owner() string { return l.owner }

// Valid reports whether the lease still holds the device.
func (l *Lease) Valid() bool {
	l.device.mu.Lock()
	defer l.device.mu.Unlock()
	return l.validLocked()
}

func (l *Lease) validLocked() bool {
	return l.device.epoch == l.epoch && l.device.holder == l.owner
}

// Transfer hands the device to owner without releasing it in between.
func (l *Lease) Transfer(owner string) (*Lease, error) {
	d := l.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if !l.validLocked() {
		return nil, errors.InvalidTransition(l.owner, owner).WithDetail("reason", "lease no longer valid")
	}
	d.holder = owner
	d.epoch++
	return &Lease{device: d, owner: owner, epoch: d.epoch}, nil
}

// Release frees the device. Releasing a stale lease is a no-op.
func (l *Lease) Release() {
	d := l.device
	d.mu.Lock()
	defer d.mu.Unlock()
	if l.validLocked() {
		d.holder = ""
		d.epoch++
	}
}

// Open starts a capture stream on the device for this lease.
func (l *Lease) Open(ctx context.Context, f Format, chunkFrames int) (Stream, error) {
	if !l.Valid() {
		return nil, errors.DeviceBusy(l.device.Holder()).WithDetail("device", l.device.name)
	}
	return l.device.source.Open(ctx, f, chunkFrames)
}
