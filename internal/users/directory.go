// Package users remembers who has talked to the bot, for admin commands.
package users

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/sharebot/core/logger"
)

// User is a known bot user.
type User struct {
	ID        int64     `db:"id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	FirstSeen time.Time `db:"first_seen"`
	LastSeen  time.Time `db:"last_seen"`
}

// Directory stores known users.
type Directory interface {
	// Touch records activity, creating the user on first sight.
	Touch(ctx context.Context, u User) error
	// List returns users ordered by first appearance.
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
}

// Memory is a Directory kept in process memory.
type Memory struct {
	mu    sync.RWMutex
	users map[int64]User
	now   func() time.Time
}

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{users: make(map[int64]User), now: time.Now}
}

func (m *Memory) Touch(ctx context.Context, u User) error {
	if u.ID == 0 {
		return nil
	}
	now := m.now()
	m.mu.Lock()
	prev, seen := m.users[u.ID]
	if seen {
		u.FirstSeen = prev.FirstSeen
		if u.Username == "" {
			u.Username = prev.Username
		}
		if u.FirstName == "" {
			u.FirstName = prev.FirstName
		}
	} else {
		u.FirstSeen = now
	}
	u.LastSeen = now
	m.users[u.ID] = u
	total := len(m.users)
	m.mu.Unlock()

	if !seen {
		logger.Debug(ctx, "users", "user.added",
			slog.Int64("user_id", u.ID),
			slog.Int("users_total", total),
		)
	}
	return nil
}

func (m *Memory) List(context.Context) ([]User, error) {
	m.mu.RLock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstSeen.Equal(out[j].FirstSeen) {
			return out[i].ID < out[j].ID
		}
		return out[i].FirstSeen.Before(out[j].FirstSeen)
	})
	return out, nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

var _ Directory = (*Memory)(nil)
