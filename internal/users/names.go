package users

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/m3rciful/sharebot/core/logger"
)

// Lookup resolves a user's display name through the messaging platform.
type Lookup func(ctx context.Context, userID int64) (string, error)

// NameResolver caches display names for a limited time.
type NameResolver struct {
	lookup Lookup
	cache  *expirable.LRU[int64, string]
}

// NewNameResolver caches up to size names for ttl.
func NewNameResolver(lookup Lookup, size int, ttl time.Duration) *NameResolver {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &NameResolver{
		lookup: lookup,
		cache:  expirable.NewLRU[int64, string](size, nil, ttl),
	}
}

// Name returns the display name of u. Stored usernames win; failed lookups fall
// back to the numeric ID and are not cached.
func (r *NameResolver) Name(ctx context.Context, u User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if name, ok := r.cache.Get(u.ID); ok {
		return name
	}
	if r.lookup != nil {
		name, err := r.lookup(ctx, u.ID)
		if err == nil && name != "" {
			r.cache.Add(u.ID, name)
			return name
		}
		if err != nil {
			logger.Debug(ctx, "users", "name.lookup_failed",
				slog.Int64("user_id", u.ID),
				slog.String("err", err.Error()),
			)
		}
	}
	return strconv.FormatInt(u.ID, 10)
}
