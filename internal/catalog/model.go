package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// App 定义了数据库中应用的数据结构
type App struct {
	ID uint `gorm:"primarykey" json:"id"`

	// PackageName 是应用的唯一包名, 例如 "com.whatsapp"
	// 新建和更新都以它作为业务主键
	PackageName string `gorm:"type:varchar(255);uniqueIndex;not null" json:"package_name"`

	Name             string  `gorm:"type:varchar(255);not null" json:"name"`
	ShortDescription string  `gorm:"type:text" json:"short_description"`
	LongDescription  string  `gorm:"type:text" json:"long_description"`
	LogoURL          string  `gorm:"type:varchar(500)" json:"logo_url"`
	ApkURL           string  `gorm:"type:varchar(500)" json:"apk_url"`
	Version          string  `gorm:"type:varchar(50)" json:"version"`
	SizeMB           float64 `gorm:"type:decimal(10,2)" json:"size_mb"`
	Category         string  `gorm:"type:varchar(100);index;default:'Other'" json:"category"`

	// 互动计数，只会被点赞/下载接口修改
	Downloads int64 `gorm:"not null;default:0" json:"downloads"`
	Likes     int64 `gorm:"not null;default:0" json:"likes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 固定表名为 apps
func (App) TableName() string { return "apps" }

// Screenshot 是应用的一张截图，Position 决定展示顺序，不要求唯一
type Screenshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	AppID     uint      `gorm:"index;not null" json:"app_id"`
	ImageURL  string    `gorm:"type:varchar(500);not null" json:"image_url"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time `json:"created_at"`

	App *App `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Screenshot) TableName() string { return "screenshots" }

// Comment 一经创建不可修改
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	AppID     uint      `gorm:"index;not null" json:"app_id"`
	Username  string    `gorm:"type:varchar(100);not null" json:"username"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`

	App *App `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Comment) TableName() string { return "comments" }

// UserLike 是点赞的去重记录。
// (app_id, username, ip_address) 三元组唯一，它的存在与否是“是否已点赞”的唯一依据。
type UserLike struct {
	ID        uint   `gorm:"primarykey"`
	AppID     uint   `gorm:"not null;index;uniqueIndex:ux_user_likes_identity,priority:1"`
	Username  string `gorm:"type:varchar(100);not null;uniqueIndex:ux_user_likes_identity,priority:2"`
	IPAddress string `gorm:"type:varchar(64);not null;default:'';uniqueIndex:ux_user_likes_identity,priority:3"`
	CreatedAt time.Time

	App *App `gorm:"constraint:OnDelete:CASCADE"`
}

func (UserLike) TableName() string { return "user_likes" }

// Download 是只追加的下载日志
type Download struct {
	ID        uint   `gorm:"primarykey"`
	AppID     uint   `gorm:"index;not null"`
	IPAddress string `gorm:"type:varchar(64)"`
	UserAgent string `gorm:"type:text"`
	CreatedAt time.Time

	App *App `gorm:"constraint:OnDelete:CASCADE"`
}

func (Download) TableName() string { return "downloads" }

// --- API 响应模型 ---

// AppSummary 是列表接口返回的摘要投影，不包含长描述和安装包地址
type AppSummary struct {
	ID               uint      `json:"id"`
	Name             string    `json:"name"`
	PackageName      string    `json:"package_name"`
	ShortDescription string    `json:"short_description"`
	LogoURL          string    `json:"logo_url"`
	Downloads        int64     `json:"downloads"`
	Likes            int64     `json:"likes"`
	Version          string    `json:"version"`
	SizeMB           float64   `json:"size_mb"`
	Category         string    `json:"category"`
	CreatedAt        time.Time `json:"created_at"`
}

// AppDetail 是详情接口返回的完整对象
type AppDetail struct {
	App
	Screenshots []Screenshot `json:"screenshots"`
	Comments    []Comment    `json:"comments"`
}

// LikeResult 是点赞切换后的状态
type LikeResult struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// DownloadTicket 是下载接口返回给客户端的信息
type DownloadTicket struct {
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
}

// --- 服务层输入 ---

// AppInput 是新建/更新应用的输入
type AppInput struct {
	Name             string     `json:"name"`
	PackageName      string     `json:"package_name"`
	ShortDescription string     `json:"short_description"`
	LongDescription  string     `json:"long_description"`
	LogoURL          string     `json:"logo_url"`
	ApkURL           string     `json:"apk_url"`
	Version          string     `json:"version"`
	SizeMB           FlexNumber `json:"size_mb"`
	Category         string     `json:"category"`
}

// FlexNumber 兼容数字和数字字符串两种写法，上传接口返回的 size_mb 是字符串
type FlexNumber float64

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("无效的数字: %s", raw)
	}
	*n = FlexNumber(v)
	return nil
}

// ScreenshotInput 是截图附加接口的单个元素，Position 缺省时由存储决定
type ScreenshotInput struct {
	ImageURL string `json:"image_url"`
	Position *int   `json:"position"`
}

// Visitor 是请求方的网络身份，只在持久化路径中参与去重和日志
type Visitor struct {
	IP        string
	UserAgent string
}

func summarize(a App) AppSummary {
	return AppSummary{
		ID:               a.ID,
		Name:             a.Name,
		PackageName:      a.PackageName,
		ShortDescription: a.ShortDescription,
		LogoURL:          a.LogoURL,
		Downloads:        a.Downloads,
		Likes:            a.Likes,
		Version:          a.Version,
		SizeMB:           a.SizeMB,
		Category:         a.Category,
		CreatedAt:        a.CreatedAt,
	}
}
