package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/internal/blob"
	"github.com/m3rciful/sharebot/internal/bundle"
	"github.com/m3rciful/sharebot/internal/clock"
	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/metrics"
	"github.com/m3rciful/sharebot/internal/session"
	"github.com/m3rciful/sharebot/internal/transport"
)

const defaultWorkers = 4

// Failure reasons reported to the metrics observer.
const (
	reasonNothing  = "nothing_to_share"
	reasonDownload = "download"
	reasonToken    = "token"
)

// Finalizer turns a completed upload into a stored bundle.
type Finalizer struct {
	tr      transport.Transport
	blobs   *blob.Store
	bundles *bundle.Store
	clock   clock.Clock
	obs     metrics.Observer
	workers int
}

// FinalizerOption customises a Finalizer.
type FinalizerOption func(*Finalizer)

// WithClock sets the clock used for creation and expiry times.
func WithClock(c clock.Clock) FinalizerOption {
	return func(f *Finalizer) {
		if c != nil {
			f.clock = c
		}
	}
}

// WithWorkers bounds the number of concurrent downloads.
func WithWorkers(n int) FinalizerOption {
	return func(f *Finalizer) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o metrics.Observer) FinalizerOption {
	return func(f *Finalizer) {
		if o != nil {
			f.obs = o
		}
	}
}

// NewFinalizer creates a finalizer.
func NewFinalizer(tr transport.Transport, blobs *blob.Store, bundles *bundle.Store, opts ...FinalizerOption) *Finalizer {
	f := &Finalizer{
		tr:      tr,
		blobs:   blobs,
		bundles: bundles,
		clock:   clock.Real(),
		obs:     metrics.Nop{},
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize downloads every shareable item, stores the copies and inserts the bundle.
// Either the whole bundle becomes visible or nothing does.
func (f *Finalizer) Finalize(ctx context.Context, owner int64, u session.Upload) (Receipt, error) {
	start := time.Now()

	refs := make([]media.Ref, 0, len(u.Items))
	skipped := 0
	for _, it := range u.Items {
		if !it.Kind.Shareable() {
			skipped++
			logger.Info(ctx, "session", "item.skipped",
				slog.String("source", it.Source),
				slog.Int("message_id", it.MessageID),
			)
			continue
		}
		refs = append(refs, it)
	}
	if len(refs) == 0 {
		f.obs.FinalizeFailed(reasonNothing)
		return Receipt{}, ErrNothingToShare
	}

	files := make([]bundle.File, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for i, ref := range refs {
		g.Go(func() error {
			file, err := f.persist(gctx, ref)
			if err != nil {
				return fmt.Errorf("item %d of %d: %w", i+1, len(refs), err)
			}
			files[i] = file
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		f.release(ctx, files)
		f.obs.FinalizeFailed(reasonDownload)
		logger.Warn(ctx, "session", "finalize.failed",
			slog.Int64("owner_id", owner),
			slog.String("reason", reasonDownload),
			slog.String("err", err.Error()),
		)
		return Receipt{}, fmt.Errorf("%w: %w", ErrFinalizeFailed, err)
	}

	var total int64
	for _, file := range files {
		total += file.Size
	}

	now := f.clock.Now()
	token, err := f.bundles.Insert(ctx, bundle.Bundle{
		Owner:       owner,
		Files:       files,
		ExpiresAt:   u.LinkExpiry.Deadline(now),
		DeleteAfter: u.DeleteAfter,
		CreatedAt:   now,
	})
	if err != nil {
		f.release(ctx, files)
		f.obs.FinalizeFailed(reasonToken)
		return Receipt{}, fmt.Errorf("%w: %w", ErrFinalizeFailed, err)
	}

	took := time.Since(start)
	f.obs.BundleCreated(len(files), took)
	logger.Info(ctx, "session", "finalize.done",
		slog.Int64("owner_id", owner),
		slog.String("token", token),
		slog.Int("files", len(files)),
		slog.Int("skipped", skipped),
		slog.String("size", humanize.Bytes(uint64(total))),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	return Receipt{
		Token:       token,
		Link:        ShareLink(f.tr.Username(), token),
		LinkExpiry:  lifetime.Describe(u.LinkExpiry),
		DeleteAfter: lifetime.Describe(u.DeleteAfter),
		Files:       len(files),
		Skipped:     skipped,
		Bytes:       total,
	}, nil
}

func (f *Finalizer) persist(ctx context.Context, ref media.Ref) (bundle.File, error) {
	rc, err := f.tr.Download(ctx, ref.FileID)
	if err != nil {
		return bundle.File{}, err
	}
	defer rc.Close()

	obj, err := f.blobs.Put(ctx, rc, ref)
	if err != nil {
		return bundle.File{}, err
	}
	name := ref.FileName
	if name == "" {
		name = string(ref.Kind) + path.Ext(obj.Name)
	}
	return bundle.File{
		Kind: ref.Kind,
		Blob: obj.Name,
		Name: name,
		MIME: obj.MIME,
		Size: obj.Size,
	}, nil
}

func (f *Finalizer) release(ctx context.Context, files []bundle.File) {
	var names []string
	for _, file := range files {
		if file.Blob != "" {
			names = append(names, file.Blob)
		}
	}
	if len(names) == 0 {
		return
	}
	if err := f.blobs.Remove(ctx, names...); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn(ctx, "blob", "blob.release_failed", slog.String("err", err.Error()))
	}
}
