package audio

import (
	"bytes"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes b as a 16-bit PCM WAV file into w. The encoder patches
// the header on close, so w must be seekable.
func WriteWAV(w io.WriteSeeker, b *Buffer) error {
	if err := b.Format.Validate(); err != nil {
		return err
	}
	enc := wav.NewEncoder(w, b.Format.SampleRate, BitDepth, b.Format.Channels, 1)
	ib := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: b.Format.Channels,
			SampleRate:  b.Format.SampleRate,
		},
		Data:           make([]int, len(b.Samples)),
		SourceBitDepth: BitDepth,
	}
	for i, s := range b.Samples {
		ib.Data[i] = int(s)
	}
	if err := enc.Write(ib); err != nil {
		_ = enc.Close()
		return fmt.Errorf("encoding wav: %w", err)
	}
	return enc.Close()
}

// EncodeWAV returns b as WAV bytes, staging through a temporary file.
func EncodeWAV(b *Buffer) ([]byte, error) {
	f, err := os.CreateTemp("", "voicememo-*.wav")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	if err := WriteWAV(f, b); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// DecodeWAV reads a PCM WAV stream and converts it to 16-bit samples.
func DecodeWAV(r io.Reader) (*Buffer, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		rs = bytes.NewReader(data)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav stream")
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}

	depth := int(dec.BitDepth)
	out := &Buffer{
		Format: Format{
			SampleRate: int(dec.SampleRate),
			Channels:   int(dec.NumChans),
		},
		Samples: make([]int16, len(ib.Data)),
	}
	for i, v := range ib.Data {
		out.Samples[i] = to16(v, depth)
	}
	return out, nil
}

func to16(v, depth int) int16 {
	switch depth {
	case 8:
		return int16((v - 128) << 8)
	case 24:
		return int16(v >> 8)
	case 32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}
