package blob

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/meridian-hq/docvault/modules/docfile/domain/ports"
	"github.com/meridian-hq/docvault/pkg/uuidv7"
)

// FSStore keeps blob content as flat files under a root directory. Handles
// are opaque uuidv7 strings; the two-level fan-out keeps directories small.
type FSStore struct {
	root string

	newHandle func() (string, error)
}

func NewFSStore(root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob: root dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: root, newHandle: uuidv7.NewString}, nil
}

var _ ports.BlobStore = (*FSStore)(nil)

func (s *FSStore) path(handle string) (string, error) {
	// Handles are generated here; anything else is rejected before it can
	// reach the filesystem.
	if len(handle) < 4 || strings.ContainsAny(handle, "/\\.") {
		return "", errors.New("blob: invalid handle")
	}
	return filepath.Join(s.root, handle[:2], handle[2:4], handle), nil
}

func (s *FSStore) Store(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	handle, err := s.newHandle()
	if err != nil {
		return "", 0, err
	}
	p, err := s.path(handle)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Close()
	} else {
		_ = tmp.Close()
	}
	if err == nil {
		err = os.Rename(tmp.Name(), p)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, err
	}
	return handle, n, nil
}

func (s *FSStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(handle)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (s *FSStore) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
