package handlers

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/sharebot/core/telegram"
	"github.com/m3rciful/sharebot/internal/blob"
	"github.com/m3rciful/sharebot/internal/bundle"
	"github.com/m3rciful/sharebot/internal/clock"
	"github.com/m3rciful/sharebot/internal/delivery"
	"github.com/m3rciful/sharebot/internal/media"
	"github.com/m3rciful/sharebot/internal/session"
	"github.com/m3rciful/sharebot/internal/transport/transporttest"
	"github.com/m3rciful/sharebot/internal/upload"
	"github.com/m3rciful/sharebot/internal/users"

	tele "gopkg.in/telebot.v4"
)

const (
	uploader  = int64(11)
	recipient = int64(22)
	admin     = int64(99)
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	h     *Handlers
	tr    *transporttest.Fake
	users *users.Memory
	clock *clock.Fake
}

func newEnv(t *testing.T, tweak func(*Deps)) *env {
	t.Helper()
	blobs, err := blob.NewStore(afero.NewMemMapFs(), "blobs")
	require.NoError(t, err)
	fc := clock.NewFake(epoch)
	sched := clock.NewScheduler(fc)
	t.Cleanup(sched.Close)

	tr := transporttest.New()
	bundles := bundle.NewStore(bundle.WithReleaser(blobs))
	sessions := session.NewStore()
	fin := upload.NewFinalizer(tr, blobs, bundles, upload.WithClock(fc))
	dir := users.NewMemory()

	d := Deps{
		Flow:      upload.NewFlow(sessions, tr, fin, nil),
		Sessions:  sessions,
		Resolver:  delivery.NewResolver(bundles, blobs, tr, sched, delivery.WithClock(fc)),
		Transport: tr,
		Users:     dir,
		AdminIDs:  []int64{admin},
	}
	if tweak != nil {
		tweak(&d)
	}
	h := New(d)
	require.NoError(t, h.Register(tg.NewRegistry()))
	return &env{h: h, tr: tr, users: dir, clock: fc}
}

func (e *env) upload(t *testing.T, from int64, ids ...string) {
	t.Helper()
	for _, id := range ids {
		e.tr.AddFile(id, []byte("body:"+id))
		reply, err := e.h.media(context.Background(), upload.MediaEvent{
			UserID: from,
			ChatID: from,
			Item:   media.Ref{Kind: media.KindPhoto, FileID: id, ChatID: from, MessageID: len(id)},
		})
		require.NoError(t, err)
		require.Empty(t, reply)
	}
}

func (e *env) press(t *testing.T, from int64, data string) string {
	t.Helper()
	prompts := e.tr.Prompts(from)
	require.NotEmpty(t, prompts)
	toast, err := e.h.button(context.Background(), upload.ButtonEvent{
		UserID:    from,
		ChatID:    from,
		MessageID: prompts[len(prompts)-1].MessageID,
		Data:      data,
	})
	require.NoError(t, err)
	return toast
}

func (e *env) shareToken(t *testing.T, from int64) string {
	t.Helper()
	for _, text := range e.tr.Texts(from) {
		if _, rest, ok := strings.Cut(text, "?start="); ok {
			require.GreaterOrEqual(t, len(rest), bundle.TokenLength)
			return rest[:bundle.TokenLength]
		}
	}
	t.Fatal("no share link sent")
	return ""
}

func TestUploadAndRedeemEndToEnd(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	e.upload(t, uploader, "p1", "p2", "p3")

	assert.Equal(t, toastLinkExpirySet, e.press(t, uploader, "linkexp:86400"))
	assert.Equal(t, toastLinkCreated, e.press(t, uploader, "delafter:3600"))
	token := e.shareToken(t, uploader)

	reply, err := e.h.start(ctx, delivery.Recipient{UserID: recipient, ChatID: recipient}, " "+token+" ")
	require.NoError(t, err)
	assert.Empty(t, reply)

	items := e.tr.Items(recipient)
	require.Len(t, items, 3)
	for i, id := range []string{"p1", "p2", "p3"} {
		assert.Equal(t, []byte("body:"+id), items[i].Body)
	}
	var delivered []int
	for _, m := range e.tr.SentTo(recipient) {
		delivered = append(delivered, m.MessageID)
	}
	require.Len(t, delivered, 4, "three files and the notice")

	other := int64(33)
	res, err := e.h.Resolver.Redeem(ctx, token, delivery.Recipient{UserID: other, ChatID: other})
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Hour), res.DeleteAt)
	assert.Equal(t, 3, res.Delivered)

	e.clock.Advance(time.Hour - time.Second)
	assert.Empty(t, e.tr.Deleted(recipient))

	e.clock.Advance(time.Second)
	assert.ElementsMatch(t, delivered, e.tr.Deleted(recipient))
	assert.ElementsMatch(t, res.Messages, e.tr.Deleted(other))

	e.clock.Advance(24 * time.Hour)
	reply, err = e.h.start(ctx, delivery.Recipient{UserID: recipient, ChatID: recipient}, token)
	require.NoError(t, err)
	assert.Equal(t, msgLinkExpired, reply)
}

func TestStartWithoutTokenWelcomes(t *testing.T) {
	e := newEnv(t, nil)
	reply, err := e.h.start(context.Background(), delivery.Recipient{UserID: recipient, ChatID: recipient}, "")
	require.NoError(t, err)
	assert.Equal(t, msgWelcome, reply)
}

func TestStartUnknownOrMalformedTokenSaysExpired(t *testing.T) {
	e := newEnv(t, nil)
	for _, payload := range []string{"AAAAAAAA", "not a token", "abc"} {
		reply, err := e.h.start(context.Background(), delivery.Recipient{UserID: recipient, ChatID: recipient}, payload)
		require.NoError(t, err)
		assert.Equal(t, msgLinkExpired, reply, payload)
	}
	assert.Empty(t, e.tr.SentTo(recipient))
}

func TestButtonToasts(t *testing.T) {
	e := newEnv(t, nil)

	toast, err := e.h.button(context.Background(), upload.ButtonEvent{UserID: uploader, ChatID: uploader, MessageID: 1, Data: "delafter:3600"})
	require.NoError(t, err)
	assert.Equal(t, toastNoFiles, toast)

	toast, err = e.h.button(context.Background(), upload.ButtonEvent{UserID: uploader, ChatID: uploader, MessageID: 1, Data: "linkexp:3600"})
	require.NoError(t, err)
	assert.Empty(t, toast, "stale press is answered silently")

	toast, err = e.h.button(context.Background(), upload.ButtonEvent{UserID: uploader, ChatID: uploader, MessageID: 1, Data: "garbage"})
	assert.ErrorIs(t, err, upload.ErrBadPayload)
	assert.Equal(t, toastUnsupported, toast)
}

func TestUploadRefusedOutsideAllowList(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.AllowedUploaders = []int64{uploader} })

	reply, err := e.h.media(context.Background(), upload.MediaEvent{
		UserID: recipient,
		ChatID: recipient,
		Item:   media.Ref{Kind: media.KindPhoto, FileID: "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, msgUploadNotAllowed, reply)
	assert.Empty(t, e.tr.Prompts(recipient))

	e.upload(t, uploader, "ok")
	assert.Len(t, e.tr.Prompts(uploader), 1)

	e.upload(t, admin, "admin-file")
	assert.Len(t, e.tr.Prompts(admin), 1, "admins may always upload")
}

func TestForwardToAdmins(t *testing.T) {
	e := newEnv(t, func(d *Deps) { d.ForwardToAdmins = true })
	e.upload(t, uploader, "abc")
	e.upload(t, admin, "own")

	fwd := e.tr.Forwarded()
	require.Len(t, fwd, 1)
	assert.Equal(t, admin, fwd[0].To)
	assert.Equal(t, uploader, fwd[0].From)
	assert.Equal(t, 3, fwd[0].MessageID)
}

func TestUsersReportChunks(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for i := int64(1); i <= 400; i++ {
		require.NoError(t, e.users.Touch(ctx, users.User{ID: 1000 + i, Username: fmt.Sprintf("user_%03d", i)}))
	}

	chunks, err := e.h.usersReport(ctx)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	assert.True(t, strings.HasPrefix(chunks[0], "👥 Total users: 400\n"))
	lines := 0
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxMessageLen)
		lines += strings.Count(c, "\n")
	}
	assert.Equal(t, 401, lines, "header plus one line per user")
	assert.Contains(t, chunks[0], "@user_001\n")
}

func TestUsersReportResolvesNamesWithoutUsername(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	require.NoError(t, e.users.Touch(ctx, users.User{ID: 5}))
	e.tr.SetName(5, "@late_name")

	chunks, err := e.h.usersReport(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "👥 Total users: 1\n@late_name\n", chunks[0])
}

func TestBroadcastSkipsSender(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, id := range []int64{admin, 1, 2} {
		require.NoError(t, e.users.Touch(ctx, users.User{ID: id}))
	}

	n, err := e.h.broadcast(ctx, admin, "  maintenance tonight ")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"Admin message: maintenance tonight"}, e.tr.Texts(1))
	assert.Equal(t, []string{"Admin message: maintenance tonight"}, e.tr.Texts(2))
	assert.Empty(t, e.tr.Texts(admin))

	n, err = e.h.broadcast(ctx, admin, "   ")
	require.NoError(t, err)
	assert.Equal(t, -1, n)
}

func TestHelpTextDependsOnRole(t *testing.T) {
	e := newEnv(t, nil)

	userHelp := e.h.helpText(uploader)
	assert.Contains(t, userHelp, "/start - ")
	assert.Contains(t, userHelp, "/help - ")
	assert.NotContains(t, userHelp, "/broadcast")

	adminHelp := e.h.helpText(admin)
	assert.Contains(t, adminHelp, "/broadcast - ")
	assert.Contains(t, adminHelp, "/users - ")
}

func TestMediaRef(t *testing.T) {
	chat := &tele.Chat{ID: 7}
	cases := []struct {
		name   string
		msg    *tele.Message
		kind   media.Kind
		source string
		fileID string
	}{
		{"photo", &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: "ph"}}}, media.KindPhoto, "", "ph"},
		{"video", &tele.Message{Video: &tele.Video{File: tele.File{FileID: "vi"}, FileName: "clip.mov"}}, media.KindVideo, "", "vi"},
		{"document", &tele.Message{Document: &tele.Document{File: tele.File{FileID: "doc"}, FileName: "a.pdf"}}, media.KindDocument, "", "doc"},
		{"animation", &tele.Message{
			Animation: &tele.Animation{File: tele.File{FileID: "gif"}},
			Document:  &tele.Document{File: tele.File{FileID: "gif"}},
		}, media.KindUnsupported, "animation", "gif"},
		{"voice", &tele.Message{Voice: &tele.Voice{File: tele.File{FileID: "vo"}}}, media.KindUnsupported, "voice", "vo"},
		{"sticker", &tele.Message{Sticker: &tele.Sticker{File: tele.File{FileID: "st"}}}, media.KindUnsupported, "sticker", "st"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.msg.ID = 42
			tc.msg.Chat = chat
			ref, ok := mediaRef(tc.msg)
			require.True(t, ok)
			assert.Equal(t, tc.kind, ref.Kind)
			assert.Equal(t, tc.source, ref.Source)
			assert.Equal(t, tc.fileID, ref.FileID)
			assert.Equal(t, int64(7), ref.ChatID)
			assert.Equal(t, 42, ref.MessageID)
		})
	}

	_, ok := mediaRef(&tele.Message{Text: "hello"})
	assert.False(t, ok)
	_, ok = mediaRef(nil)
	assert.False(t, ok)
}
