package catalog

import "context"

// Store 是目录服务依赖的存储接口。
// 关系数据库和内存后备各有一个实现，服务层在每个请求开始时根据探测结果选择其一。
type Store interface {
	// ListApps 返回按创建时间倒序排列的应用
	ListApps(ctx context.Context) ([]App, error)

	// GetApp 返回应用及其截图（按 position 升序）和评论（按创建时间倒序）。
	// 应用不存在时返回 ErrNotFound。
	GetApp(ctx context.Context, id uint) (*App, []Screenshot, []Comment, error)

	// UpsertApp 以包名为键新建或更新应用，created 表示是否为新建
	UpsertApp(ctx context.Context, in AppInput) (app *App, created bool, err error)

	// AddComment 为应用添加一条评论
	AddComment(ctx context.Context, appID uint, username, content string) (*Comment, error)

	// ToggleLike 切换 identity 对应用的点赞状态
	ToggleLike(ctx context.Context, appID uint, username string, visitor Visitor) (LikeResult, error)

	// RecordDownload 记录一次下载并返回安装包地址。
	// 没有安装包时返回 ErrNoBinary。
	RecordDownload(ctx context.Context, appID uint, visitor Visitor) (*App, error)

	// AttachScreenshots 为应用附加截图
	AttachScreenshots(ctx context.Context, appID uint, shots []ScreenshotInput) ([]Screenshot, error)
}
