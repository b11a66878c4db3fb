// Package session holds the pending upload of each user.
package session

import (
	"github.com/m3rciful/sharebot/core/telegram/state"
	"github.com/m3rciful/sharebot/internal/lifetime"
	"github.com/m3rciful/sharebot/internal/media"
)

// Stage is the position of an upload in the prompt sequence.
type Stage int

const (
	Collecting Stage = iota
	AwaitingLinkExpiry
	AwaitingDeleteAfter
)

func (s Stage) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case AwaitingLinkExpiry:
		return "awaiting_link_expiry"
	case AwaitingDeleteAfter:
		return "awaiting_delete_after"
	}
	return "unknown"
}

// PromptRef points at the prompt message currently shown to the user.
type PromptRef struct {
	ChatID    int64
	MessageID int
}

// Upload is the media a user has sent but not yet turned into a bundle.
type Upload struct {
	Items       []media.Ref
	LinkExpiry  lifetime.Lifetime
	DeleteAfter lifetime.Lifetime
	Stage       Stage
	Prompt      *PromptRef
}

// Empty reports whether the upload carries nothing worth keeping.
func (u Upload) Empty() bool {
	return len(u.Items) == 0 && u.Stage == Collecting && u.Prompt == nil
}

// Reset returns the upload to an empty collecting state.
func (u *Upload) Reset() {
	*u = Upload{}
}

// Clone returns a deep copy safe to read outside the user's lock.
func (u Upload) Clone() Upload {
	out := u
	out.Items = append([]media.Ref(nil), u.Items...)
	if u.Prompt != nil {
		p := *u.Prompt
		out.Prompt = &p
	}
	return out
}

// Store keeps one Upload per user. Empty uploads are dropped from memory.
type Store struct {
	inner *state.Store[Upload]
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		inner: state.NewMemoryStore(func() Upload { return Upload{} }, Upload.Empty),
	}
}

// With runs fn while holding the user's lock.
func (s *Store) With(userID int64, fn func(u *Upload) error) error {
	return s.inner.With(userID, fn)
}

// Get returns a copy of the user's upload.
func (s *Store) Get(userID int64) (Upload, bool) {
	u, ok := s.inner.Get(userID)
	if !ok {
		return Upload{}, false
	}
	return u.Clone(), true
}

// Reset drops the user's upload.
func (s *Store) Reset(userID int64) {
	s.inner.Clear(userID)
}

// Active returns the number of users with a pending upload.
func (s *Store) Active() int {
	return s.inner.Len()
}

// InProgress reports whether the user has a choice to make on a live prompt.
func (s *Store) InProgress(userID int64) bool {
	u, ok := s.inner.Get(userID)
	return ok && u.Stage != Collecting
}
