// Package portaudio captures from the default input device through PortAudio.
package portaudio

import (
	"context"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
)

// Source opens the system default input device.
type Source struct{}

// New returns a PortAudio-backed audio.Source.
func New() *Source { return &Source{} }

var _ audio.Source = (*Source)(nil)

// Open initializes PortAudio and starts a blocking input stream delivering
// chunkFrames frames per read.
func (s *Source) Open(_ context.Context, f audio.Format, chunkFrames int) (audio.Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.HardwareUnavailable("default", err)
	}
	in := make([]int16, chunkFrames*f.Channels)
	st, err := portaudio.OpenDefaultStream(f.Channels, 0, float64(f.SampleRate), chunkFrames, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, errors.HardwareUnavailable("default", err)
	}
	if err := st.Start(); err != nil {
		_ = st.Close()
		_ = portaudio.Terminate()
		return nil, errors.HardwareUnavailable("default", err)
	}
	return &stream{st: st, in: in}, nil
}

type stream struct {
	st   *portaudio.Stream
	in   []int16
	once sync.Once
}

func (s *stream) Read(buf []int16) error {
	if err := s.st.Read(); err != nil {
		return err
	}
	copy(buf, s.in)
	return nil
}

func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.st.Stop()
		err = s.st.Close()
		_ = portaudio.Terminate()
	})
	return err
}
