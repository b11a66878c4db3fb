package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/sharebot/internal/blob"
	"github.com/m3rciful/sharebot/internal/bundle"
	"github.com/m3rciful/sharebot/internal/clock"
	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/transport"
	"github.com/m3rciful/sharebot/internal/transport/transporttest"
)

const recipientChat = int64(900)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	resolver *Resolver
	tr       *transporttest.Fake
	bundles  *bundle.Store
	blobs    *blob.Store
	sched    *clock.Scheduler
	clock    *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs, err := blob.NewStore(afero.NewMemMapFs(), "blobs")
	require.NoError(t, err)
	fc := clock.NewFake(epoch)
	sched := clock.NewScheduler(fc)
	t.Cleanup(sched.Close)

	f := &fixture{
		tr:      transporttest.New(),
		bundles: bundle.NewStore(bundle.WithReleaser(blobs)),
		blobs:   blobs,
		sched:   sched,
		clock:   fc,
	}
	f.resolver = NewResolver(f.bundles, blobs, f.tr, sched, WithClock(fc))
	return f
}

// insert stores n files named file-1..file-n with the given kinds cycling.
func (f *fixture) insert(t *testing.T, n int, linkExpiry, deleteAfter lifetime.Lifetime, kinds ...media.Kind) string {
	t.Helper()
	if len(kinds) == 0 {
		kinds = []media.Kind{media.KindPhoto}
	}
	ctx := context.Background()
	var files []bundle.File
	for i := 1; i <= n; i++ {
		kind := kinds[(i-1)%len(kinds)]
		obj, err := f.blobs.Put(ctx, bytes.NewReader([]byte(fmt.Sprintf("file-%d", i))), media.Ref{Kind: kind})
		require.NoError(t, err)
		files = append(files, bundle.File{Kind: kind, Blob: obj.Name, Name: fmt.Sprintf("file-%d", i), Size: obj.Size})
	}
	token, err := f.bundles.Insert(ctx, bundle.Bundle{
		Owner:       1,
		Files:       files,
		ExpiresAt:   linkExpiry.Deadline(epoch),
		DeleteAfter: deleteAfter,
		CreatedAt:   epoch,
	})
	require.NoError(t, err)
	return token
}

func (f *fixture) redeem(token string) (Result, error) {
	return f.resolver.Redeem(context.Background(), token, Recipient{UserID: 77, ChatID: recipientChat})
}

func bodies(items []transporttest.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, string(it.Body))
	}
	return out
}

func TestRedeemDeliversInBatchesInOrder(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 23, lifetime.Seconds(lifetime.Day), lifetime.Seconds(lifetime.Hour))

	res, err := f.redeem(token)
	require.NoError(t, err)
	assert.Equal(t, 23, res.Delivered)
	assert.Equal(t, 0, res.Failed)

	batches := f.tr.Batches()
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 10)
	assert.Len(t, batches[2], 3)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), transport.MediaGroupLimit)
	}

	got := bodies(f.tr.Items(recipientChat))
	require.Len(t, got, 23)
	for i, body := range got {
		assert.Equal(t, fmt.Sprintf("file-%d", i+1), body)
	}

	texts := f.tr.Texts(recipientChat)
	require.Len(t, texts, 1)
	assert.Equal(t, "⚠️ Remember: these files will be deleted automatically in 1 hour.", texts[0])
	assert.Len(t, res.Messages, 24, "media plus trailing notice")
}

func TestRedeemSchedulesDeletion(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 2, lifetime.Unlimited(), lifetime.Seconds(3600))

	res, err := f.redeem(token)
	require.NoError(t, err)
	require.NotEmpty(t, res.DeliveryID)
	assert.Equal(t, epoch.Add(3600*time.Second), res.DeleteAt)

	at, ok := f.sched.Deadline(res.DeliveryID)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Hour), at)

	f.clock.Advance(59 * time.Minute)
	assert.Empty(t, f.tr.Deleted(recipientChat))

	f.clock.Advance(time.Minute)
	assert.ElementsMatch(t, res.Messages, f.tr.Deleted(recipientChat))
	assert.Equal(t, 0, f.sched.Pending())
}

func TestDeletionErrorsAreIgnored(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 1, lifetime.Unlimited(), lifetime.Seconds(60))
	f.tr.FailDelete = errors.New("message can't be deleted")

	_, err := f.redeem(token)
	require.NoError(t, err)
	assert.NotPanics(t, func() { f.clock.Advance(time.Minute) })
	assert.Equal(t, 0, f.sched.Pending())
}

func TestUnlimitedDeleteAfterSchedulesNothing(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 2, lifetime.Unlimited(), lifetime.Unlimited())

	res, err := f.redeem(token)
	require.NoError(t, err)
	assert.True(t, res.DeleteAt.IsZero())
	assert.Equal(t, 0, f.sched.Pending())
	assert.Equal(t, []string{"ℹ️ These files will not be deleted automatically."}, f.tr.Texts(recipientChat))
}

func TestRedeemTwiceDeliversTwice(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 1, lifetime.Unlimited(), lifetime.Seconds(lifetime.Hour))

	first, err := f.redeem(token)
	require.NoError(t, err)
	second, err := f.redeem(token)
	require.NoError(t, err)

	assert.NotEqual(t, first.DeliveryID, second.DeliveryID)
	assert.Equal(t, 2, f.sched.Pending())
}

func TestRedeemUnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.redeem("nope1234")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.tr.SentTo(recipientChat))
}

func TestRedeemAfterExpiry(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 3, lifetime.Seconds(lifetime.Day), lifetime.Seconds(lifetime.Hour))

	f.clock.Advance(25 * time.Hour)
	_, err := f.redeem(token)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Empty(t, f.tr.SentTo(recipientChat))

	_, err = f.redeem(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBatchFailureFallsBackToSingleSends(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 12, lifetime.Unlimited(), lifetime.Seconds(lifetime.Hour))
	f.tr.FailMedia = func(it transporttest.Item, _ int) error {
		if string(it.Body) == "file-5" {
			return errors.New("Bad Request: wrong file identifier")
		}
		return nil
	}

	res, err := f.redeem(token)
	require.NoError(t, err)
	assert.Equal(t, 11, res.Delivered)
	assert.Equal(t, 1, res.Failed)

	got := bodies(f.tr.Items(recipientChat))
	want := []string{"file-1", "file-2", "file-3", "file-4", "file-6", "file-7", "file-8", "file-9", "file-10", "file-11", "file-12"}
	assert.Equal(t, want, got, "order is kept and the failing file is skipped")
	assert.Len(t, res.Messages, 12)
}

func TestNothingDelivered(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 3, lifetime.Unlimited(), lifetime.Seconds(lifetime.Hour))
	f.tr.FailMedia = func(transporttest.Item, int) error { return errors.New("chat not found") }

	_, err := f.redeem(token)
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Empty(t, f.tr.Texts(recipientChat))
	assert.Equal(t, 0, f.sched.Pending())
}

func TestMissingBlobIsSkipped(t *testing.T) {
	f := newFixture(t)
	token := f.insert(t, 3, lifetime.Unlimited(), lifetime.Unlimited(), media.KindPhoto, media.KindDocument)
	b, err := f.bundles.Redeem(context.Background(), token, epoch)
	require.NoError(t, err)
	require.NoError(t, f.blobs.Remove(context.Background(), b.Files[1].Blob))

	res, err := f.redeem(token)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"file-1", "file-3"}, bodies(f.tr.Items(recipientChat)))
}
