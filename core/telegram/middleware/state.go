package middleware

import (
	"github.com/m3rciful/sharebot/core/logger"
	tghelpers "github.com/m3rciful/sharebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// PendingChecker reports whether a user still owes an answer to a prompt.
type PendingChecker interface {
	InProgress(userID int64) bool
}

// WhilePending sends updates from users with an open prompt to pending
// instead of next.
func WhilePending(chk PendingChecker, pending tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		if chk == nil || pending == nil {
			return next
		}
		return func(c tele.Context) error {
			if u := c.Sender(); u == nil || !chk.InProgress(u.ID) {
				return next(c)
			}
			logger.Debug(tghelpers.BuildContext(c), "tg", "flow.pending")
			return pending(c)
		}
	}
}
