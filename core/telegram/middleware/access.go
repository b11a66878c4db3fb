package middleware

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// AccessOptions lists the users a guarded handler accepts.
type AccessOptions struct {
	UserIDs []int64
	// OpenWhenEmpty lets everyone through when UserIDs is empty. Otherwise an
	// empty list rejects every sender.
	OpenWhenEmpty bool
	OnReject      tele.HandlerFunc
}

func (o AccessOptions) allows(c tele.Context) bool {
	if len(o.UserIDs) == 0 {
		return o.OpenWhenEmpty
	}
	u := c.Sender()
	return u != nil && slices.Contains(o.UserIDs, u.ID)
}

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminIDs []int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only admin users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return AllowListMiddleware(AccessOptions{
		UserIDs:  opts.AdminIDs,
		OnReject: opts.OnReject,
	})
}

// AllowListMiddleware passes updates from listed senders and rejects the rest.
func AllowListMiddleware(opts AccessOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if !opts.allows(c) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
