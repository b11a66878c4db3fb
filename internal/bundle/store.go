// Package bundle stores finalized uploads addressed by share tokens.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/sharebot/core/logger"
	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/media"
)

// MaxTokenAttempts bounds how many fresh tokens Insert tries before giving up.
const MaxTokenAttempts = 8

var (
	ErrNotFound            = errors.New("bundle: not found")
	ErrExpired             = errors.New("bundle: expired")
	ErrTokenSpaceExhausted = errors.New("bundle: no free token")
)

// File is one persisted item of a bundle.
type File struct {
	Kind media.Kind
	// Blob is the name of the stored copy.
	Blob string
	Name string
	MIME string
	Size int64
}

// Bundle is an immutable set of files shared under one token.
type Bundle struct {
	Token string
	Owner int64
	Files []File
	// ExpiresAt is zero when the link never expires.
	ExpiresAt   time.Time
	DeleteAfter lifetime.Lifetime
	CreatedAt   time.Time
}

// Expired reports whether the link is no longer valid at now.
func (b Bundle) Expired(now time.Time) bool {
	return !b.ExpiresAt.IsZero() && now.After(b.ExpiresAt)
}

// Blobs lists the blob names referenced by the bundle.
func (b Bundle) Blobs() []string {
	names := make([]string, 0, len(b.Files))
	for _, f := range b.Files {
		names = append(names, f.Blob)
	}
	return names
}

// Releaser frees the storage behind removed bundles.
type Releaser interface {
	Remove(ctx context.Context, names ...string) error
}

// Store maps tokens to bundles. It owns the blobs its bundles reference.
type Store struct {
	mu      sync.Mutex
	bundles map[string]Bundle
	// leases counts deliveries still reading a bundle's blobs.
	leases map[string]int
	// retired holds expired bundles whose blobs wait for their last lease.
	retired  map[string]Bundle
	tokens   TokenSource
	releaser Releaser
}

// Option customises a Store.
type Option func(*Store)

// WithTokenSource replaces the random token generator.
func WithTokenSource(src TokenSource) Option {
	return func(s *Store) {
		if src != nil {
			s.tokens = src
		}
	}
}

// WithReleaser sets where blobs of removed bundles are released.
func WithReleaser(r Releaser) Option {
	return func(s *Store) {
		s.releaser = r
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		bundles: make(map[string]Bundle),
		leases:  make(map[string]int),
		retired: make(map[string]Bundle),
		tokens:  RandomToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert assigns a fresh token to b and stores it. Tokens already in use are
// rejected and regenerated.
func (s *Store) Insert(ctx context.Context, b Bundle) (string, error) {
	b.Files = append([]File(nil), b.Files...)
	for attempt := 1; attempt <= MaxTokenAttempts; attempt++ {
		token, err := s.tokens()
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		if !s.taken(token) {
			b.Token = token
			s.bundles[token] = b
			size := len(s.bundles)
			s.mu.Unlock()
			logger.Info(ctx, "bundle", "bundle.created",
				slog.String("token", token),
				slog.Int64("owner_id", b.Owner),
				slog.Int("files", len(b.Files)),
				slog.Int("attempts", attempt),
				slog.Int("bundles", size),
			)
			return token, nil
		}
		s.mu.Unlock()
		logger.Warn(ctx, "bundle", "bundle.token_collision",
			slog.Int("attempt", attempt),
		)
	}
	return "", fmt.Errorf("%w after %d attempts", ErrTokenSpaceExhausted, MaxTokenAttempts)
}

// Redeem looks up a bundle. An expired bundle is removed on the spot, so only the
// first caller after expiry sees ErrExpired and later callers get ErrNotFound.
func (s *Store) Redeem(ctx context.Context, token string, now time.Time) (Bundle, error) {
	b, done, err := s.Lease(ctx, token, now)
	if err != nil {
		return Bundle{}, err
	}
	done()
	return b, nil
}

// Lease is Redeem for callers that keep reading the bundle's blobs. Blobs of a
// bundle that expires while leased are released after the last done call.
// done is safe to call more than once.
func (s *Store) Lease(ctx context.Context, token string, now time.Time) (Bundle, func(), error) {
	s.mu.Lock()
	b, ok := s.bundles[token]
	if !ok {
		s.mu.Unlock()
		return Bundle{}, nil, ErrNotFound
	}
	if b.Expired(now) {
		delete(s.bundles, token)
		leased := s.leases[token] > 0
		if leased {
			s.retired[token] = b
		}
		s.mu.Unlock()
		logger.Info(ctx, "bundle", "bundle.expired",
			slog.String("token", token),
			slog.Time("expired_at", b.ExpiresAt),
			slog.Bool("release_deferred", leased),
		)
		if !leased {
			s.release(ctx, b)
		}
		return Bundle{}, nil, ErrExpired
	}
	s.leases[token]++
	s.mu.Unlock()

	b.Files = append([]File(nil), b.Files...)
	var once sync.Once
	done := func() {
		once.Do(func() { s.unlease(context.WithoutCancel(ctx), token) })
	}
	return b, done, nil
}

func (s *Store) unlease(ctx context.Context, token string) {
	s.mu.Lock()
	s.leases[token]--
	if s.leases[token] > 0 {
		s.mu.Unlock()
		return
	}
	delete(s.leases, token)
	b, retired := s.retired[token]
	delete(s.retired, token)
	s.mu.Unlock()
	if retired {
		s.release(ctx, b)
	}
}

// taken reports whether token is live or still pinned by a retired bundle.
// Callers hold s.mu.
func (s *Store) taken(token string) bool {
	if _, ok := s.bundles[token]; ok {
		return true
	}
	_, ok := s.retired[token]
	return ok
}

// Len returns the number of stored bundles, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bundles)
}

func (s *Store) release(ctx context.Context, b Bundle) {
	if s.releaser == nil || len(b.Files) == 0 {
		return
	}
	if err := s.releaser.Remove(ctx, b.Blobs()...); err != nil {
		logger.Warn(ctx, "bundle", "bundle.release_failed",
			slog.String("token", b.Token),
			slog.String("err", err.Error()),
		)
	}
}
