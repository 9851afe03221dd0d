package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// defaultFallbackVersion 是内存模式下新建或更新应用未提供版本号时使用的值
const defaultFallbackVersion = "1.0.0"

// memoryCollection 是一组应用及其附属数据
type memoryCollection struct {
	apps        []App
	screenshots map[uint][]Screenshot
	comments    map[uint][]Comment
}

func (c *memoryCollection) find(id uint) int {
	for i := range c.apps {
		if c.apps[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *memoryCollection) findByPackage(packageName string) int {
	for i := range c.apps {
		if c.apps[i].PackageName == packageName {
			return i
		}
	}
	return -1
}

type likeKey struct {
	appID    uint
	username string
}

// MemoryStore 是数据库不可用时使用的内存存储。
//
// 在第一次真实写入（新建或更新应用）之前，它展示示例数据；
// 一旦发生真实写入，示例数据将在进程生命周期内永久隐藏，
// 此后只展示用户提交的应用，两者不会混合。
// 内存中的数据不会在数据库恢复后同步回数据库。
type MemoryStore struct {
	mu sync.RWMutex

	realWrites bool
	seed       memoryCollection
	user       memoryCollection

	// 内存模式下的点赞去重集合，只以 (应用, 用户名) 为键
	likes map[likeKey]struct{}

	nextAppID        uint
	nextScreenshotID uint
	nextCommentID    uint

	defaultCategory string
	now             func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore 创建一个带有独立示例数据副本的内存存储
func NewMemoryStore(defaultCategory string) *MemoryStore {
	seed := newSeedData()
	m := &MemoryStore{
		seed: memoryCollection{
			apps:        seed.apps,
			screenshots: seed.screenshots,
			comments:    seed.comments,
		},
		user: memoryCollection{
			screenshots: make(map[uint][]Screenshot),
			comments:    make(map[uint][]Comment),
		},
		likes:           make(map[likeKey]struct{}),
		defaultCategory: defaultCategory,
		now:             time.Now,
	}

	for _, a := range seed.apps {
		m.nextAppID = max(m.nextAppID, a.ID)
	}
	for _, shots := range seed.screenshots {
		for _, s := range shots {
			m.nextScreenshotID = max(m.nextScreenshotID, s.ID)
		}
	}
	for _, comments := range seed.comments {
		for _, c := range comments {
			m.nextCommentID = max(m.nextCommentID, c.ID)
		}
	}
	return m
}

// RealWrites 报告是否已经发生过真实写入
func (m *MemoryStore) RealWrites() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.realWrites
}

// active 返回当前对外展示的数据集，调用方必须持有锁
func (m *MemoryStore) active() *memoryCollection {
	if m.realWrites {
		return &m.user
	}
	return &m.seed
}

func (m *MemoryStore) ListApps(_ context.Context) ([]App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps := make([]App, len(m.active().apps))
	copy(apps, m.active().apps)
	sortByCreatedDesc(apps)
	return apps, nil
}

func (m *MemoryStore) GetApp(_ context.Context, id uint) (*App, []Screenshot, []Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.active()
	idx := set.find(id)
	if idx < 0 {
		return nil, nil, nil, errors.Wrapf(ErrNotFound, "内存中没有 id 为 %d 的应用", id)
	}
	app := set.apps[idx]

	shots := append([]Screenshot{}, set.screenshots[id]...)
	sort.SliceStable(shots, func(i, j int) bool { return shots[i].Position < shots[j].Position })

	comments := append([]Comment{}, set.comments[id]...)
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.After(comments[j].CreatedAt) })

	return &app, shots, comments, nil
}

// UpsertApp 在用户数据集中按包名线性查找，存在则更新，否则新建。
// 无论哪种情况，都会打开真实写入标记。
func (m *MemoryStore) UpsertApp(_ context.Context, in AppInput) (*App, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.realWrites = true

	if idx := m.user.findByPackage(in.PackageName); idx >= 0 {
		app := &m.user.apps[idx]
		app.Name = in.Name
		app.ShortDescription = in.ShortDescription
		app.LongDescription = in.LongDescription
		app.LogoURL = in.LogoURL
		app.ApkURL = in.ApkURL
		app.Version = in.Version
		if app.Version == "" {
			app.Version = defaultFallbackVersion
		}
		app.SizeMB = float64(in.SizeMB)
		if in.Category != "" {
			app.Category = in.Category
		}
		app.UpdatedAt = now
		updated := *app
		return &updated, false, nil
	}

	m.nextAppID++
	app := App{
		ID:               m.nextAppID,
		PackageName:      in.PackageName,
		Name:             in.Name,
		ShortDescription: in.ShortDescription,
		LongDescription:  in.LongDescription,
		LogoURL:          in.LogoURL,
		ApkURL:           in.ApkURL,
		Version:          in.Version,
		SizeMB:           float64(in.SizeMB),
		Category:         in.Category,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if app.Version == "" {
		app.Version = defaultFallbackVersion
	}
	if app.Category == "" {
		app.Category = m.defaultCategory
	}
	m.user.apps = append(m.user.apps, app)
	return &app, true, nil
}

// AddComment 把评论保存在当前数据集中，不会打开真实写入标记
func (m *MemoryStore) AddComment(_ context.Context, appID uint, username, content string) (*Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.active()
	if set.find(appID) < 0 {
		return nil, errors.Wrapf(ErrNotFound, "内存中没有 id 为 %d 的应用", appID)
	}

	m.nextCommentID++
	comment := Comment{
		ID:        m.nextCommentID,
		AppID:     appID,
		Username:  username,
		Content:   content,
		CreatedAt: m.now(),
	}
	set.comments[appID] = append(set.comments[appID], comment)
	return &comment, nil
}

// ToggleLike 使用 (应用, 用户名) 去重集合切换点赞状态。
// 内存模式下不区分来源地址。
func (m *MemoryStore) ToggleLike(_ context.Context, appID uint, username string, _ Visitor) (LikeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.active()
	idx := set.find(appID)
	if idx < 0 {
		return LikeResult{}, errors.Wrapf(ErrNotFound, "内存中没有 id 为 %d 的应用", appID)
	}
	app := &set.apps[idx]

	key := likeKey{appID: appID, username: username}
	if _, liked := m.likes[key]; liked {
		delete(m.likes, key)
		if app.Likes > 0 {
			app.Likes--
		}
		return LikeResult{Liked: false, Likes: app.Likes}, nil
	}
	m.likes[key] = struct{}{}
	app.Likes++
	return LikeResult{Liked: true, Likes: app.Likes}, nil
}

// RecordDownload 在内存模式下不做任何记录，也不增加下载计数
func (m *MemoryStore) RecordDownload(_ context.Context, appID uint, _ Visitor) (*App, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := m.active()
	idx := set.find(appID)
	if idx < 0 {
		return nil, errors.Wrapf(ErrNotFound, "内存中没有 id 为 %d 的应用", appID)
	}
	app := set.apps[idx]
	if strings.TrimSpace(app.ApkURL) == "" {
		return nil, errors.Wrapf(ErrNoBinary, "应用 %d", appID)
	}
	return &app, nil
}

// AttachScreenshots 用新列表替换应用现有的截图。
// 未提供 position 时使用数组下标。
func (m *MemoryStore) AttachScreenshots(_ context.Context, appID uint, shots []ScreenshotInput) ([]Screenshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := m.active()
	if set.find(appID) < 0 {
		return nil, errors.Wrapf(ErrNotFound, "内存中没有 id 为 %d 的应用", appID)
	}

	now := m.now()
	created := make([]Screenshot, 0, len(shots))
	for i, in := range shots {
		position := i
		if in.Position != nil {
			position = *in.Position
		}
		m.nextScreenshotID++
		created = append(created, Screenshot{
			ID:        m.nextScreenshotID,
			AppID:     appID,
			ImageURL:  in.ImageURL,
			Position:  position,
			CreatedAt: now,
		})
	}
	set.screenshots[appID] = created
	return append([]Screenshot{}, created...), nil
}

// sortByCreatedDesc 按创建时间倒序排列，时间相同则 id 大的在前
func sortByCreatedDesc(apps []App) {
	sort.SliceStable(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.After(apps[j].CreatedAt)
		}
		return apps[i].ID > apps[j].ID
	})
}
