package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

// fakeContext implements the parts of tele.Context the middlewares touch.
type fakeContext struct {
	tele.Context
	store   map[string]any
	update  tele.Update
	sender  *tele.User
	sent    []any
	sendErr error
}

func newFakeContext(updateID int, userID int64) *fakeContext {
	return &fakeContext{
		store:  map[string]any{},
		update: tele.Update{ID: updateID, Message: &tele.Message{Text: "hi"}},
		sender: &tele.User{ID: userID},
	}
}

func (f *fakeContext) Get(k string) any { return f.store[k] }
func (f *fakeContext) Set(k string, v any) { f.store[k] = v }
func (f *fakeContext) Update() tele.Update { return f.update }
func (f *fakeContext) Sender() *tele.User { return f.sender }
func (f *fakeContext) Chat() *tele.Chat { return &tele.Chat{ID: f.sender.ID, Type: tele.ChatPrivate} }
func (f *fakeContext) Text() string { return f.update.Message.Text }
func (f *fakeContext) Callback() *tele.Callback { return nil }

func (f *fakeContext) Send(what any, _ ...any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, what)
	return nil
}

func TestRecoverMiddlewareReturnsPanicAsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(newFakeContext(1, 10))
	var p ErrPanic
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "boom", p.Value)
	assert.Equal(t, "PANIC", p.Code())
}

func TestMessageMetricsCountsReplies(t *testing.T) {
	c := newFakeContext(2, 10)
	kb := &tele.ReplyMarkup{}
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		require.NoError(t, c.Send("one"))
		require.NoError(t, c.Send("two", kb))
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, Replies{Messages: 2, Keyboard: true}, RepliesFrom(c))
	assert.Len(t, c.sent, 2)
}

func TestMessageMetricsSkipsFailedSends(t *testing.T) {
	c := newFakeContext(3, 10)
	c.sendErr = errors.New("blocked")
	h := MessageMetricsMiddleware(func(c tele.Context) error {
		return c.Send("one", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
	})
	assert.Error(t, h(c))
	assert.Equal(t, Replies{}, RepliesFrom(c))
}

func TestRepliesFromWithoutMiddleware(t *testing.T) {
	assert.Equal(t, Replies{}, RepliesFrom(newFakeContext(4, 10)))
}

func TestFirstReceiptOncePerUpdate(t *testing.T) {
	assert.True(t, firstReceipt(900001))
	assert.False(t, firstReceipt(900001))
	assert.True(t, firstReceipt(900002))
}

func TestLoggerMiddlewareStoresRequestContext(t *testing.T) {
	c := newFakeContext(5, 10)
	called := false
	h := LoggerMiddleware(func(c tele.Context) error {
		called = true
		return nil
	})
	require.NoError(t, h(c))
	assert.True(t, called)
	assert.NotNil(t, c.Get("request_ctx"))
}

type pending map[int64]bool

func (p pending) InProgress(id int64) bool { return p[id] }

func TestWhilePendingDivertsUsersMidFlow(t *testing.T) {
	var got []string
	mw := WhilePending(pending{10: true}, func(tele.Context) error {
		got = append(got, "pending")
		return nil
	})
	h := mw(func(tele.Context) error {
		got = append(got, "next")
		return nil
	})
	require.NoError(t, h(newFakeContext(6, 10)))
	require.NoError(t, h(newFakeContext(7, 11)))
	assert.Equal(t, []string{"pending", "next"}, got)
}

func TestMessageKind(t *testing.T) {
	assert.Equal(t, "animation", messageKind(&tele.Message{Animation: &tele.Animation{}, Document: &tele.Document{}}))
	assert.Equal(t, "voice", messageKind(&tele.Message{Voice: &tele.Voice{}}))
	assert.Equal(t, "", messageKind(&tele.Message{Text: "x"}))
}

func TestAllowListMiddleware(t *testing.T) {
	var passed []int64
	next := func(c tele.Context) error {
		passed = append(passed, c.Sender().ID)
		return nil
	}
	rejected := 0
	reject := func(tele.Context) error {
		rejected++
		return nil
	}

	h := AllowListMiddleware(AccessOptions{UserIDs: []int64{10}, OnReject: reject})(next)
	require.NoError(t, h(newFakeContext(8, 10)))
	require.NoError(t, h(newFakeContext(9, 11)))

	closed := AllowListMiddleware(AccessOptions{})(next)
	require.NoError(t, closed(newFakeContext(10, 12)))

	open := AllowListMiddleware(AccessOptions{OpenWhenEmpty: true})(next)
	require.NoError(t, open(newFakeContext(11, 13)))

	admin := AdminOnlyMiddleware(AdminOptions{AdminIDs: []int64{14}, OnReject: reject})(next)
	require.NoError(t, admin(newFakeContext(12, 14)))
	require.NoError(t, admin(newFakeContext(13, 15)))

	assert.Equal(t, []int64{10, 13, 14}, passed)
	assert.Equal(t, 2, rejected)
}
