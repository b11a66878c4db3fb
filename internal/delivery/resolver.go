// Package delivery redeems share tokens: it sends a bundle's files to the
// requester and schedules their removal.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/internal/blob"
	"github.com/m3rciful/sharebot/internal/bundle"
	"github.com/m3rciful/sharebot/internal/clock"
	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/metrics"
	"github.com/m3rciful/sharebot/internal/transport"
)

var (
	ErrNotFound = bundle.ErrNotFound
	ErrExpired  = bundle.ErrExpired
	// ErrDeliveryFailed is returned when not a single file reached the recipient.
	ErrDeliveryFailed = errors.New("delivery: no file could be delivered")
)

// Recipient is who redeemed the link and where the files go.
type Recipient struct {
	UserID int64
	ChatID int64
}

// Result describes one redemption.
type Result struct {
	DeliveryID string
	// Messages lists every message sent, notice included.
	Messages  []int
	Delivered int
	Failed    int
	// DeleteAt is zero when nothing is scheduled.
	DeleteAt time.Time
}

// Resolver turns tokens into delivered messages.
type Resolver struct {
	bundles *bundle.Store
	blobs   *blob.Store
	tr      transport.Transport
	sched   *clock.Scheduler
	clock   clock.Clock
	obs     metrics.Observer
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for expiry checks.
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o metrics.Observer) Option {
	return func(r *Resolver) {
		if o != nil {
			r.obs = o
		}
	}
}

// NewResolver creates a resolver. sched runs the deferred deletions.
func NewResolver(bundles *bundle.Store, blobs *blob.Store, tr transport.Transport, sched *clock.Scheduler, opts ...Option) *Resolver {
	r := &Resolver{
		bundles: bundles,
		blobs:   blobs,
		tr:      tr,
		sched:   sched,
		clock:   clock.Real(),
		obs:     metrics.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Redeem delivers the bundle behind token to the recipient.
func (r *Resolver) Redeem(ctx context.Context, token string, to Recipient) (Result, error) {
	b, done, err := r.bundles.Lease(ctx, token, r.clock.Now())
	switch {
	case errors.Is(err, ErrNotFound):
		r.obs.Redeemed(metrics.OutcomeNotFound)
		return Result{}, err
	case errors.Is(err, ErrExpired):
		r.obs.Redeemed(metrics.OutcomeExpired)
		return Result{}, err
	case err != nil:
		r.obs.Redeemed(metrics.OutcomeFailed)
		return Result{}, err
	}
	defer done()

	res := Result{DeliveryID: uuid.NewString()}
	for start := 0; start < len(b.Files); start += transport.MediaGroupLimit {
		end := min(start+transport.MediaGroupLimit, len(b.Files))
		r.deliverBatch(ctx, to.ChatID, b.Files[start:end], &res)
	}
	r.obs.DeliveryFailures(res.Failed)

	if res.Delivered == 0 {
		r.obs.Redeemed(metrics.OutcomeFailed)
		logger.Warn(ctx, "delivery", "delivery.failed",
			slog.String("token", token),
			slog.Int("files", len(b.Files)),
		)
		return res, fmt.Errorf("%w: %d file(s)", ErrDeliveryFailed, len(b.Files))
	}

	if id, err := r.tr.SendText(ctx, to.ChatID, noticeText(b.DeleteAfter)); err != nil {
		logger.Warn(ctx, "delivery", "notice.failed", slog.String("err", err.Error()))
	} else {
		res.Messages = append(res.Messages, id)
	}

	if b.DeleteAfter.Positive() {
		res.DeleteAt = r.scheduleDeletion(ctx, res.DeliveryID, to.ChatID, res.Messages, b.DeleteAfter)
	}

	outcome := metrics.OutcomeDelivered
	if res.Failed > 0 {
		outcome = metrics.OutcomePartial
	}
	r.obs.Redeemed(outcome)
	logger.Info(ctx, "delivery", "delivery.done",
		slog.String("token", token),
		slog.String("delivery_id", res.DeliveryID),
		slog.Int64("recipient_id", to.UserID),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("messages", len(res.Messages)),
	)
	return res, nil
}

// deliverBatch sends files as one group. After a failure the files not yet
// delivered are retried one at a time and those that still fail are skipped.
func (r *Resolver) deliverBatch(ctx context.Context, chatID int64, files []bundle.File, res *Result) {
	ids, err := r.send(ctx, chatID, files)
	res.Messages = append(res.Messages, ids...)
	res.Delivered += len(ids)
	if err == nil {
		return
	}
	logger.Warn(ctx, "delivery", "batch.failed",
		slog.Int("batch_size", len(files)),
		slog.Int("sent", len(ids)),
		slog.String("err", err.Error()),
	)

	for _, f := range files[len(ids):] {
		one, err := r.send(ctx, chatID, []bundle.File{f})
		if err != nil {
			res.Failed++
			logger.Warn(ctx, "delivery", "item.skipped",
				slog.String("blob", f.Blob),
				slog.String("kind", string(f.Kind)),
				slog.String("err", err.Error()),
			)
			continue
		}
		res.Messages = append(res.Messages, one...)
		res.Delivered += len(one)
	}
}

func (r *Resolver) send(ctx context.Context, chatID int64, files []bundle.File) ([]int, error) {
	items := make([]media.Outgoing, 0, len(files))
	closers := make([]io.Closer, 0, len(files))
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	for _, f := range files {
		rc, err := r.blobs.Open(f.Blob)
		if err != nil {
			return nil, err
		}
		closers = append(closers, rc)
		items = append(items, media.Outgoing{Kind: f.Kind, FileName: f.Name, MIME: f.MIME, Body: rc})
	}
	ids, err := r.tr.SendMedia(ctx, chatID, items)
	if len(ids) > len(files) {
		ids = ids[:len(files)]
	}
	return ids, err
}

func (r *Resolver) scheduleDeletion(ctx context.Context, deliveryID string, chatID int64, ids []int, after lifetime.Lifetime) time.Time {
	if len(ids) == 0 || r.sched == nil {
		return time.Time{}
	}
	ids = append([]int(nil), ids...)
	err := r.sched.Schedule(deliveryID, after.Duration(), func(taskCtx context.Context) {
		r.purge(taskCtx, deliveryID, chatID, ids)
	})
	if err != nil {
		logger.Warn(ctx, "delivery", "deletion.schedule_failed",
			slog.String("delivery_id", deliveryID),
			slog.String("err", err.Error()),
		)
		return time.Time{}
	}
	at, _ := r.sched.Deadline(deliveryID)
	return at
}

func (r *Resolver) purge(ctx context.Context, deliveryID string, chatID int64, ids []int) {
	failed := 0
	for _, id := range ids {
		if err := r.tr.Delete(ctx, chatID, id); err != nil {
			failed++
			logger.Debug(ctx, "delivery", "message.delete_failed",
				slog.Int("message_id", id),
				slog.String("err", err.Error()),
			)
		}
	}
	logger.Info(ctx, "delivery", "delivery.purged",
		slog.String("delivery_id", deliveryID),
		slog.Int("messages", len(ids)),
		slog.Int("failed", failed),
	)
}

func noticeText(deleteAfter lifetime.Lifetime) string {
	if !deleteAfter.Positive() {
		return "ℹ️ These files will not be deleted automatically."
	}
	return fmt.Sprintf("⚠️ Remember: these files will be deleted automatically in %s.", lifetime.Describe(deleteAfter))
}
