// Package files implements the minimal file CRUD backing POST/GET/DELETE
// /v1/files* (spec §6). The gateway only needs files as a concrete backing
// store for file_search indexing inputs — full object-storage semantics
// (multipart ranges, resumable uploads, CDN delivery) are out of scope.
package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/masaic-ai/open-responses-go/internal/apierror"
	"github.com/masaic-ai/open-responses-go/internal/domain"
)

// Store holds file metadata in memory and file content on disk under a
// content-addressable-by-id directory, mirroring the ephemeral/durable split
// the rest of the gateway uses: metadata is always in-process state, content
// always lives on disk so a single large body is never held twice in memory.
type Store struct {
	mu       sync.RWMutex
	metadata map[string]domain.File
	order    []string // insertion order, oldest first
	dir      string
}

// New builds a Store whose file content is written under dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierror.Wrap(apierror.KindInternalError, "failed to create file storage directory", err)
	}
	return &Store{metadata: make(map[string]domain.File), dir: dir}, nil
}

// Create stores content under a newly allocated file id and records its
// metadata. purpose must be one of domain.RecognisedFilePurposes.
func (s *Store) Create(ctx context.Context, filename string, purpose domain.FilePurpose, content io.Reader) (*domain.File, error) {
	if !domain.RecognisedFilePurposes[purpose] {
		return nil, apierror.New(apierror.KindInvalidRequest, "unrecognised file purpose").WithParam("purpose")
	}

	id := "file_" + uuid.NewString()
	path := s.contentPath(id)

	written, err := writeAtomic(path, content)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInternalError, "failed to store file content", err)
	}

	file := domain.File{
		ID:        id,
		Object:    "file",
		Bytes:     written,
		CreatedAt: time.Now().Unix(),
		Filename:  filename,
		Purpose:   purpose,
	}

	s.mu.Lock()
	s.metadata[id] = file
	s.order = append(s.order, id)
	s.mu.Unlock()

	return &file, nil
}

// Get returns the metadata for id.
func (s *Store) Get(id string) (*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.metadata[id]
	if !ok {
		return nil, apierror.New(apierror.KindNotFound, "file not found").WithParam("id")
	}
	return &file, nil
}

// List returns every stored file's metadata, most recently created first.
func (s *Store) List() []domain.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.File, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if f, ok := s.metadata[s.order[i]]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Content opens the stored content for id.
func (s *Store) Content(id string) (io.ReadCloser, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	f, err := os.Open(s.contentPath(id))
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNotFound, "file content missing", err)
	}
	return f, nil
}

// Delete removes id's metadata and content permanently.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metadata[id]; !ok {
		return apierror.New(apierror.KindNotFound, "file not found").WithParam("id")
	}
	delete(s.metadata, id)
	if err := os.Remove(s.contentPath(id)); err != nil && !os.IsNotExist(err) {
		return apierror.Wrap(apierror.KindInternalError, "failed to remove file content", err)
	}
	return nil
}

func (s *Store) contentPath(id string) string {
	return filepath.Join(s.dir, id)
}

func writeAtomic(path string, content io.Reader) (int64, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return written, os.Rename(tmp, path)
}
