// Package blob persists file copies that outlive the Telegram messages they came from.
package blob

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/internal/media"
)

// sniffLen matches the read limit mimetype uses by default.
const sniffLen = 3072

// ErrNotFound is returned by Open for unknown names.
var ErrNotFound = errors.New("blob: not found")

// Object describes a stored file.
type Object struct {
	Name string
	Size int64
	MIME string
}

// Store writes blobs as flat files under one directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore returns a store rooted at dir on fs, creating the directory if needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "data/blobs"
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create dir %s: %w", dir, err)
	}
	return &Store{fs: fs, dir: dir}, nil
}

// Dir returns the storage directory.
func (s *Store) Dir() string { return s.dir }

// Put copies r into a new blob. The MIME type is sniffed from the content when
// the reference does not carry one.
func (s *Store) Put(ctx context.Context, r io.Reader, ref media.Ref) (Object, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return Object{}, fmt.Errorf("blob: read: %w", err)
	}
	detected := mimetype.Detect(head)

	mime := strings.TrimSpace(ref.MIME)
	if mime == "" {
		mime = detected.String()
	}
	ext := ref.Ext()
	if ext == "" {
		ext = detected.Extension()
	}
	if ext == "" {
		ext = ref.Kind.DefaultExt()
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)
	f, err := s.fs.Create(path)
	if err != nil {
		return Object{}, fmt.Errorf("blob: create %s: %w", name, err)
	}
	n, copyErr := io.Copy(f, br)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = s.fs.Remove(path)
		return Object{}, fmt.Errorf("blob: write %s: %w", name, err)
	}

	logger.Debug(ctx, "blob", "blob.stored",
		slog.String("blob", name),
		slog.String("mime", mime),
		slog.String("size", humanize.Bytes(uint64(n))),
	)
	return Object{Name: name, Size: n, MIME: mime}, nil
}

// Open returns a reader for a stored blob. The caller closes it.
func (s *Store) Open(name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("blob: open %s: %w", name, err)
	}
	return f, nil
}

// Remove deletes blobs by name. Names that no longer exist are ignored.
func (s *Store) Remove(ctx context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		err := s.fs.Remove(filepath.Join(s.dir, filepath.Base(name)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("blob: remove %s: %w", name, err))
		}
	}
	if len(names) > 0 {
		logger.Debug(ctx, "blob", "blob.released",
			slog.Int("count", len(names)),
			slog.Int("failed", len(errs)),
		)
	}
	return errors.Join(errs...)
}
