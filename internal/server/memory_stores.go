package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/modules/docfile/domain/types"
	"github.com/meridian-hq/docvault/pkg/uuidv7"
)

// fileMemoryStore is the no-Postgres fallback. One mutex stands in for the
// row locks of the pg store: decide callbacks still observe a stable row.
type fileMemoryStore struct {
	mu    sync.Mutex
	docs  map[string]types.Document
	files map[string]types.DocumentFile
}

func newFileMemoryStore() *fileMemoryStore {
	return &fileMemoryStore{
		docs:  make(map[string]types.Document),
		files: make(map[string]types.DocumentFile),
	}
}

var _ ports.FileStore = (*fileMemoryStore)(nil)

func (s *fileMemoryStore) GetDocument(_ context.Context, documentID string) (types.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	return doc, ok, nil
}

func (s *fileMemoryStore) InsertDocument(_ context.Context, doc types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return errors.New("document already exists")
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *fileMemoryStore) ListDocuments(_ context.Context) ([]types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (s *fileMemoryStore) GetFile(_ context.Context, fileID string) (types.DocumentFile, types.Document, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return types.DocumentFile{}, types.Document{}, false, nil
	}
	doc, ok := s.docs[f.DocumentID]
	if !ok {
		return types.DocumentFile{}, types.Document{}, false, nil
	}
	return f, doc, true, nil
}

func (s *fileMemoryStore) ListFilesForDocument(_ context.Context, documentID string) ([]types.DocumentFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.DocumentFile, 0)
	for _, f := range s.files {
		if f.DocumentID == documentID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *fileMemoryStore) InsertFile(_ context.Context, file types.DocumentFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.files[file.ID]; exists {
		return errors.New("file already exists")
	}
	if _, ok := s.docs[file.DocumentID]; !ok {
		return errors.New("document not found")
	}
	s.files[file.ID] = file
	return nil
}

func (s *fileMemoryStore) UpdateFile(_ context.Context, fileID string, decide func(types.DocumentFile, types.Document) (types.DocumentFile, error)) (types.DocumentFile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return types.DocumentFile{}, false, nil
	}
	doc := s.docs[f.DocumentID]
	next, err := decide(f, doc)
	if err != nil {
		return types.DocumentFile{}, true, err
	}
	s.files[fileID] = next
	return next, true, nil
}

func (s *fileMemoryStore) DeleteFile(_ context.Context, fileID string, decide func(types.DocumentFile, types.Document) error) (types.DocumentFile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return types.DocumentFile{}, false, nil
	}
	doc := s.docs[f.DocumentID]
	if err := decide(f, doc); err != nil {
		return types.DocumentFile{}, true, err
	}
	delete(s.files, fileID)
	return f, true, nil
}

type blobMemoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newBlobMemoryStore() *blobMemoryStore {
	return &blobMemoryStore{blobs: make(map[string][]byte)}
}

var _ ports.BlobStore = (*blobMemoryStore)(nil)

func (s *blobMemoryStore) Store(_ context.Context, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	handle, err := uuidv7.NewString()
	if err != nil {
		return "", 0, err
	}
	s.mu.Lock()
	s.blobs[handle] = data
	s.mu.Unlock()
	return handle, int64(len(data)), nil
}

func (s *blobMemoryStore) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.blobs[handle]
	s.mu.Unlock()
	if !ok {
		return nil, errors.New("blob not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *blobMemoryStore) Delete(_ context.Context, handle string) error {
	s.mu.Lock()
	delete(s.blobs, handle)
	s.mu.Unlock()
	return nil
}
