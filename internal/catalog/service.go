package catalog

import (
	"context"
	"strings"

	"github.com/apex/log"
)

// Service 是目录服务的调度层。
// 每个请求开始时做一次全新的可用性探测，并据此选择持久化存储或内存存储；
// 业务逻辑只针对 Store 接口编写一次。
type Service struct {
	persistent Store
	fallback   *MemoryStore
	prober     Prober

	// fallbackWrites 为false时，数据库不可用期间的写操作返回 Unavailable
	fallbackWrites bool
}

// NewService 创建目录服务。persistent 可以为nil，此时所有请求都使用内存存储。
func NewService(persistent Store, fallback *MemoryStore, prober Prober, fallbackWrites bool) *Service {
	return &Service{
		persistent:     persistent,
		fallback:       fallback,
		prober:         prober,
		fallbackWrites: fallbackWrites,
	}
}

// Connected 做一次全新的探测，报告数据库当前是否可用
func (s *Service) Connected(ctx context.Context) bool {
	return s.persistent != nil && s.prober != nil && s.prober.Probe(ctx)
}

// storeFor 为本次请求选择存储。write 表示这是一个写操作。
func (s *Service) storeFor(ctx context.Context, write bool) (Store, bool, error) {
	if s.Connected(ctx) {
		return s.persistent, true, nil
	}
	if write && !s.fallbackWrites {
		return nil, false, unavailableError()
	}
	return s.fallback, false, nil
}

// List 返回应用摘要列表。它不会失败：持久化路径出错时退回内存存储。
func (s *Service) List(ctx context.Context) []AppSummary {
	store, connected, _ := s.storeFor(ctx, false)

	apps, err := store.ListApps(ctx)
	if err != nil && connected {
		log.WithError(err).Warn("查询应用列表失败，使用内存数据")
		apps, err = s.fallback.ListApps(ctx)
	}
	if err != nil {
		log.WithError(err).Error("内存数据读取失败")
		return []AppSummary{}
	}

	summaries := make([]AppSummary, 0, len(apps))
	for _, a := range apps {
		summaries = append(summaries, summarize(a))
	}
	return summaries
}

// Detail 返回应用详情
func (s *Service) Detail(ctx context.Context, id uint) (*AppDetail, error) {
	store, _, _ := s.storeFor(ctx, false)

	app, shots, comments, err := store.GetApp(ctx, id)
	if err != nil {
		return nil, classify(err, "应用不存在")
	}
	if shots == nil {
		shots = []Screenshot{}
	}
	if comments == nil {
		comments = []Comment{}
	}
	return &AppDetail{App: *app, Screenshots: shots, Comments: comments}, nil
}

// Upsert 以包名为键新建或更新应用。created 为true表示新建。
func (s *Service) Upsert(ctx context.Context, in AppInput) (*App, bool, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.PackageName = strings.TrimSpace(in.PackageName)
	in.Category = strings.TrimSpace(in.Category)

	var missing []string
	if in.Name == "" {
		missing = append(missing, "name")
	}
	if in.PackageName == "" {
		missing = append(missing, "package_name")
	}
	if len(missing) > 0 {
		return nil, false, validationError(missing...)
	}

	store, connected, err := s.storeFor(ctx, true)
	if err != nil {
		return nil, false, err
	}

	app, created, err := store.UpsertApp(ctx, in)
	if err != nil {
		return nil, false, classify(err, "应用不存在")
	}

	log.WithFields(log.Fields{
		"id":        app.ID,
		"package":   app.PackageName,
		"created":   created,
		"connected": connected,
	}).Info("应用已保存")
	return app, created, nil
}

// AddComment 为应用添加评论
func (s *Service) AddComment(ctx context.Context, appID uint, username, content string) (*Comment, error) {
	username = strings.TrimSpace(username)
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return nil, validationError(missing...)
	}

	store, _, err := s.storeFor(ctx, true)
	if err != nil {
		return nil, err
	}

	comment, err := store.AddComment(ctx, appID, username, content)
	if err != nil {
		return nil, classify(err, "应用不存在")
	}
	return comment, nil
}

// ToggleLike 切换用户对应用的点赞状态
func (s *Service) ToggleLike(ctx context.Context, appID uint, username string, visitor Visitor) (LikeResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return LikeResult{}, validationError("username")
	}

	store, _, err := s.storeFor(ctx, true)
	if err != nil {
		return LikeResult{}, err
	}

	result, err := store.ToggleLike(ctx, appID, username, visitor)
	if err != nil {
		return LikeResult{}, classify(err, "应用不存在")
	}
	return result, nil
}

// Download 记录一次下载并返回下载地址和文件名
func (s *Service) Download(ctx context.Context, appID uint, visitor Visitor) (*DownloadTicket, error) {
	store, _, _ := s.storeFor(ctx, false)

	app, err := store.RecordDownload(ctx, appID, visitor)
	if err != nil {
		return nil, classify(err, "应用不存在")
	}
	return &DownloadTicket{
		DownloadURL: app.ApkURL,
		Filename:    downloadFilename(app.Name),
	}, nil
}

// AttachScreenshots 为应用附加截图
func (s *Service) AttachScreenshots(ctx context.Context, appID uint, shots []ScreenshotInput) ([]Screenshot, error) {
	if len(shots) == 0 {
		return nil, validationError("screenshots")
	}
	for i := range shots {
		shots[i].ImageURL = strings.TrimSpace(shots[i].ImageURL)
		if shots[i].ImageURL == "" {
			return nil, validationError("screenshots.image_url")
		}
		if shots[i].Position != nil && *shots[i].Position < 0 {
			return nil, validationError("screenshots.position")
		}
	}

	store, _, err := s.storeFor(ctx, true)
	if err != nil {
		return nil, err
	}

	created, err := store.AttachScreenshots(ctx, appID, shots)
	if err != nil {
		return nil, classify(err, "应用不存在")
	}
	return created, nil
}

// downloadFilename 把应用名中的空白折叠为下划线，并加上 .apk 后缀
func downloadFilename(name string) string {
	return strings.Join(strings.Fields(name), "_") + ".apk"
}
