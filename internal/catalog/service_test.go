package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// switchProber 是可以在测试中切换的探测器，并记录被调用的次数
type switchProber struct {
	up    atomic.Bool
	calls atomic.Int64
}

func (p *switchProber) Probe(context.Context) bool {
	p.calls.Add(1)
	return p.up.Load()
}

func newTestService(t *testing.T, up, fallbackWrites bool) (*Service, *switchProber, *MemoryStore) {
	t.Helper()
	repo, _ := createTestRepository(t)
	prober := &switchProber{}
	prober.up.Store(up)
	fallback := NewMemoryStore("Other")
	return NewService(repo, fallback, prober, fallbackWrites), prober, fallback
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var e *Error
	require.True(t, errors.As(err, &e), "expected *Error, got %v", err)
	return e.Kind
}

func TestService_ProbesOnEveryCall(t *testing.T) {
	ctx := context.Background()
	svc, prober, _ := newTestService(t, true, true)

	svc.List(ctx)
	svc.List(ctx)
	_, _ = svc.Detail(ctx, 1)
	assert.Equal(t, int64(3), prober.calls.Load())
}

func TestService_SwitchesStorePerRequest(t *testing.T) {
	ctx := context.Background()
	svc, prober, fallback := newTestService(t, true, true)

	app, created, err := svc.Upsert(ctx, AppInput{Name: "Foo", PackageName: "com.foo"})
	require.NoError(t, err)
	require.True(t, created)
	assert.Len(t, svc.List(ctx), 1)
	assert.False(t, fallback.RealWrites())

	prober.up.Store(false)
	list := svc.List(ctx)
	assert.Len(t, list, 6, "数据库不可用时应展示示例数据")

	prober.up.Store(true)
	detail, err := svc.Detail(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "com.foo", detail.PackageName)
	assert.NotNil(t, detail.Screenshots)
	assert.NotNil(t, detail.Comments)
}

func TestService_FallbackMaskingAfterFirstWrite(t *testing.T) {
	ctx := context.Background()
	svc, _, fallback := newTestService(t, false, true)

	assert.Len(t, svc.List(ctx), 6)

	_, created, err := svc.Upsert(ctx, AppInput{Name: "Offline", PackageName: "com.offline"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, fallback.RealWrites())

	list := svc.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "com.offline", list[0].PackageName)
}

func TestService_UpsertValidation(t *testing.T) {
	ctx := context.Background()
	svc, prober, _ := newTestService(t, true, true)

	_, _, err := svc.Upsert(ctx, AppInput{Name: "  "})
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindValidation, e.Kind)
	assert.Equal(t, []string{"name", "package_name"}, e.Fields)
	assert.Zero(t, prober.calls.Load(), "校验失败时不应探测数据库")

	_, _, err = svc.Upsert(ctx, AppInput{Name: "Foo"})
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"package_name"}, e.Fields)
}

func TestService_WritesUnavailableWhenFallbackWritesDisabled(t *testing.T) {
	ctx := context.Background()
	svc, _, fallback := newTestService(t, false, false)

	_, _, err := svc.Upsert(ctx, AppInput{Name: "Foo", PackageName: "com.foo"})
	assert.Equal(t, KindUnavailable, kindOf(t, err))
	assert.False(t, fallback.RealWrites())

	_, err = svc.ToggleLike(ctx, 1, "bob", Visitor{})
	assert.Equal(t, KindUnavailable, kindOf(t, err))

	_, err = svc.AddComment(ctx, 1, "bob", "hi")
	assert.Equal(t, KindUnavailable, kindOf(t, err))

	_, err = svc.AttachScreenshots(ctx, 1, []ScreenshotInput{{ImageURL: "a.png"}})
	assert.Equal(t, KindUnavailable, kindOf(t, err))

	// 读操作仍然降级到内存数据
	assert.Len(t, svc.List(ctx), 6)
	ticket, err := svc.Download(ctx, 1, Visitor{})
	require.NoError(t, err)
	assert.Equal(t, "WhatsApp_Messenger.apk", ticket.Filename)
}

func TestService_LikeAndCommentValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, false, true)

	_, err := svc.ToggleLike(ctx, 1, "", Visitor{})
	assert.Equal(t, KindValidation, kindOf(t, err))

	_, err = svc.AddComment(ctx, 1, "bob", " ")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"content"}, e.Fields)

	_, err = svc.ToggleLike(ctx, 404, "bob", Visitor{})
	assert.Equal(t, KindNotFound, kindOf(t, err))

	_, err = svc.AttachScreenshots(ctx, 1, nil)
	assert.Equal(t, KindValidation, kindOf(t, err))

	_, err = svc.AttachScreenshots(ctx, 1, []ScreenshotInput{{ImageURL: "a.png", Position: intPtr(-1)}})
	assert.Equal(t, KindValidation, kindOf(t, err))
}

func TestService_DownloadWithoutBinaryIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, true, true)

	app, _, err := svc.Upsert(ctx, AppInput{Name: "Foo", PackageName: "com.foo"})
	require.NoError(t, err)

	_, err = svc.Download(ctx, app.ID, Visitor{})
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.Equal(t, ErrNoBinary.Error(), e.Message)
}

func TestService_NilPersistentAlwaysFallsBack(t *testing.T) {
	ctx := context.Background()
	svc := NewService(nil, NewMemoryStore("Other"), ProberFunc(func(context.Context) bool { return true }), true)

	assert.False(t, svc.Connected(ctx))
	assert.Len(t, svc.List(ctx), 6)
}

func TestDownloadFilename(t *testing.T) {
	assert.Equal(t, "My_Cool_App.apk", downloadFilename("My  Cool\tApp"))
	assert.Equal(t, "Telegram.apk", downloadFilename("Telegram"))
}
