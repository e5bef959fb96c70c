// Package attachments stores the images and documents patients upload with a
// consultation request. Callers get back an opaque reference; the
// consultation record keeps references only.
package attachments

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("attachment not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrEmptyFile          = errors.New("file is empty")
)

// MaxFileSize is the per-file upload limit (10 MB).
const MaxFileSize = 10 * 1024 * 1024

var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/heic":      true,
	"application/pdf": true,
}

type Meta struct {
	Ref         string    `json:"ref"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	UploadedBy  string    `json:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, meta Meta, content io.Reader) (*Meta, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, *Meta, error)
	// Stat returns the metadata for ref without opening its content.
	Stat(ctx context.Context, ref string) (*Meta, error)
}

// prepare reads and checks content, then fills in the server-assigned
// fields of meta.
func prepare(meta Meta, content io.Reader) (Meta, []byte, error) {
	if !AllowedContentTypes[meta.ContentType] {
		return meta, nil, ErrInvalidContentType
	}
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return meta, nil, fmt.Errorf("reading content: %w", err)
	}
	if len(data) == 0 {
		return meta, nil, ErrEmptyFile
	}
	if int64(len(data)) > MaxFileSize {
		return meta, nil, ErrFileTooLarge
	}

	sum := sha256.Sum256(data)
	meta.Ref = uuid.New().String()
	meta.Size = int64(len(data))
	meta.Hash = hex.EncodeToString(sum[:])
	meta.CreatedAt = time.Now().UTC()
	return meta, data, nil
}

// validRef rejects anything that is not a reference this package issued,
// which also keeps disk paths inside the store directory.
func validRef(ref string) bool {
	_, err := uuid.Parse(ref)
	return err == nil
}

// MemoryStore keeps attachments in process memory. Used in development and
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]memFile
}

type memFile struct {
	meta Meta
	data []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]memFile)}
}

func (s *MemoryStore) Put(_ context.Context, meta Meta, content io.Reader) (*Meta, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.files[meta.Ref] = memFile{meta: meta, data: data}
	s.mu.Unlock()
	return &meta, nil
}

func (s *MemoryStore) Get(_ context.Context, ref string) (io.ReadCloser, *Meta, error) {
	s.mu.RLock()
	f, ok := s.files[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	meta := f.meta
	return io.NopCloser(bytes.NewReader(f.data)), &meta, nil
}

func (s *MemoryStore) Stat(_ context.Context, ref string) (*Meta, error) {
	s.mu.RLock()
	f, ok := s.files[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	meta := f.meta
	return &meta, nil
}

// DiskStore writes each attachment as <dir>/<ref> with a <ref>.json sidecar
// holding its metadata.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Put(_ context.Context, meta Meta, content io.Reader) (*Meta, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode attachment metadata: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, meta.Ref), data); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, meta.Ref+".json"), metaJSON); err != nil {
		os.Remove(filepath.Join(s.dir, meta.Ref))
		return nil, err
	}
	return &meta, nil
}

func (s *DiskStore) Stat(_ context.Context, ref string) (*Meta, error) {
	if !validRef(ref) {
		return nil, ErrNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, ref+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read attachment metadata: %w", err)
	}
	var meta Meta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode attachment metadata: %w", err)
	}
	return &meta, nil
}

func (s *DiskStore) Get(ctx context.Context, ref string) (io.ReadCloser, *Meta, error) {
	meta, err := s.Stat(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(filepath.Join(s.dir, ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open attachment: %w", err)
	}
	return f, meta, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write attachment: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close attachment: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}
	return nil
}
