// Package artifact stores immutable audio versions. Every transform writes a
// new artifact; nothing is rewritten in place.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicememo/audio"
	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/storage"
)

// Artifact references one stored version of a recording's audio.
type Artifact struct {
	ID        string        `json:"id"`
	Key       string        `json:"key"`
	Format    audio.Format  `json:"format"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Ref is the opaque audio reference written to the recording store.
func (a Artifact) Ref() string { return a.Key }

// Store persists artifacts as WAV objects.
type Store struct {
	backend storage.Storage
	prefix  string
	now     func() time.Time
	log     *logger.Logger
}

// NewStore stores artifacts under "artifacts/" in backend.
func NewStore(backend storage.Storage) *Store {
	return &Store{
		backend: backend,
		prefix:  "artifacts/",
		now:     time.Now,
		log:     logger.WithComponent("artifact"),
	}
}

// Put encodes buf and stores it as a new artifact.
func (s *Store) Put(ctx context.Context, buf *audio.Buffer) (Artifact, error) {
	if buf.Empty() {
		return Artifact{}, errors.InvalidInput("audio", "cannot store an empty buffer")
	}
	data, err := audio.EncodeWAV(buf)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode artifact: %w", err)
	}

	id := uuid.NewString()
	a := Artifact{
		ID:        id,
		Key:       s.prefix + id + ".wav",
		Format:    buf.Format,
		Duration:  buf.Duration(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.backend.Upload(ctx, a.Key, bytes.NewReader(data)); err != nil {
		return Artifact{}, fmt.Errorf("upload artifact: %w", err)
	}
	s.log.Debug("artifact stored", logger.Fields(logger.FieldArtifact, a.Key, "duration", a.Duration.String()))
	return a, nil
}

// Load decodes the audio behind ref.
func (s *Store) Load(ctx context.Context, ref string) (*audio.Buffer, error) {
	rc, err := s.backend.Download(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return audio.DecodeWAV(rc)
}

// Delete removes the artifact behind ref. Missing artifacts are ignored.
func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := s.backend.Delete(ctx, ref); err != nil {
		return fmt.Errorf("delete artifact %s: %w", ref, err)
	}
	return nil
}

// Exists reports whether ref is stored.
func (s *Store) Exists(ctx context.Context, ref string) (bool, error) {
	return s.backend.Exists(ctx, ref)
}

// List returns the refs of every stored artifact.
func (s *Store) List(ctx context.Context) ([]string, error) {
	files, err := s.backend.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	refs := make([]string, len(files))
	for i, f := range files {
		refs[i] = f.Path
	}
	return refs, nil
}
