package middleware

import tele "gopkg.in/telebot.v4"

const repliesKey = "replies"

// Replies counts what a handler sent back for one update.
type Replies struct {
	Messages int
	Keyboard bool
}

// RepliesFrom returns the counters collected by MessageMetricsMiddleware.
func RepliesFrom(c tele.Context) Replies {
	if r, ok := c.Get(repliesKey).(*Replies); ok && r != nil {
		return *r
	}
	return Replies{}
}

// MessageMetricsMiddleware wraps the context so successful sends, replies and
// edits are counted for the handler summary.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		r := &Replies{}
		c.Set(repliesKey, r)
		return next(countingContext{Context: c, replies: r})
	}
}

type countingContext struct {
	tele.Context
	replies *Replies
}

func (cc countingContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	cc.replies.Messages++
	if withKeyboard(opts) {
		cc.replies.Keyboard = true
	}
	return nil
}

func (cc countingContext) Send(what any, opts ...any) error {
	return cc.count(cc.Context.Send(what, opts...), opts)
}

func (cc countingContext) Reply(what any, opts ...any) error {
	return cc.count(cc.Context.Reply(what, opts...), opts)
}

func (cc countingContext) Edit(what any, opts ...any) error {
	return cc.count(cc.Context.Edit(what, opts...), opts)
}

func (cc countingContext) EditOrSend(what any, opts ...any) error {
	return cc.count(cc.Context.EditOrSend(what, opts...), opts)
}

func (cc countingContext) EditOrReply(what any, opts ...any) error {
	return cc.count(cc.Context.EditOrReply(what, opts...), opts)
}

func withKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		}
	}
	return false
}
