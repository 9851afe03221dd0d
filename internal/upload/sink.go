package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Kind 是上传文件的类别，同时也是存储目录名和URL路径的一部分
type Kind string

const (
	KindLogo       Kind = "logos"
	KindScreenshot Kind = "screenshots"
	KindApk        Kind = "apks"
)

// ParseKind 解析URL中的文件类别
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindLogo, KindScreenshot, KindApk:
		return k, true
	}
	return "", false
}

const apkMIME = "application/vnd.android.package-archive"

var (
	ErrUnknownKind = errors.New("无效的文件类型")
	ErrInvalidFile = errors.New("文件格式不符合要求")
	ErrTooLarge    = errors.New("文件超过大小限制")
	ErrNotFound    = errors.New("文件不存在")
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// StoredFile 描述一个已经写入磁盘的文件
type StoredFile struct {
	Kind Kind
	Name string
	Size int64
}

// Path 返回文件对外的URL路径，例如 /uploads/apks/xxx.apk
func (f StoredFile) Path() string {
	return "/uploads/" + string(f.Kind) + "/" + f.Name
}

// SizeMB 返回以MB为单位、保留两位小数的大小
func (f StoredFile) SizeMB() float64 {
	return float64(int64(float64(f.Size)/(1024*1024)*100+0.5)) / 100
}

// DiskSink 把上传的文件按类别保存到本地目录
type DiskSink struct {
	dir      string
	maxBytes int64
}

// NewDiskSink 创建磁盘存储，并确保各类别的子目录存在
func NewDiskSink(dir string, maxFileSizeMB int64) (*DiskSink, error) {
	for _, k := range []Kind{KindLogo, KindScreenshot, KindApk} {
		if err := os.MkdirAll(filepath.Join(dir, string(k)), 0o755); err != nil {
			return nil, fmt.Errorf("无法创建上传目录: %w", err)
		}
	}
	return &DiskSink{dir: dir, maxBytes: maxFileSizeMB * 1024 * 1024}, nil
}

// Dir 返回上传根目录
func (s *DiskSink) Dir() string { return s.dir }

// Save 校验并保存一个上传的文件。
// 图片类别只接受 image/*，安装包接受APK的MIME类型或 .apk 后缀。
func (s *DiskSink) Save(kind Kind, fh *multipart.FileHeader) (StoredFile, error) {
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return StoredFile{}, fmt.Errorf("%s (%s): %w", fh.Filename, humanize.Bytes(uint64(fh.Size)), ErrTooLarge)
	}

	src, err := fh.Open()
	if err != nil {
		return StoredFile{}, fmt.Errorf("无法读取上传文件: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return StoredFile{}, fmt.Errorf("无法识别文件类型: %w", err)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return StoredFile{}, fmt.Errorf("无法读取上传文件: %w", err)
	}

	ext, err := checkType(kind, fh.Filename, mtype)
	if err != nil {
		return StoredFile{}, err
	}

	name := uuid.Must(uuid.NewV7()).String() + ext
	dst, err := os.Create(filepath.Join(s.dir, string(kind), name))
	if err != nil {
		return StoredFile{}, fmt.Errorf("无法创建文件: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		_ = os.Remove(dst.Name())
		return StoredFile{}, fmt.Errorf("无法写入文件: %w", err)
	}

	log.WithFields(log.Fields{
		"kind":     kind,
		"name":     name,
		"filename": unsafeChars.ReplaceAllString(fh.Filename, "_"),
		"mime":     mtype.String(),
		"size":     humanize.Bytes(uint64(written)),
	}).Info("文件已保存")

	return StoredFile{Kind: kind, Name: name, Size: written}, nil
}

// checkType 校验文件类型并返回保存时使用的扩展名
func checkType(kind Kind, filename string, mtype *mimetype.MIME) (string, error) {
	origExt := strings.ToLower(filepath.Ext(filename))
	if unsafeChars.MatchString(origExt) {
		origExt = ""
	}

	switch kind {
	case KindLogo, KindScreenshot:
		if !strings.HasPrefix(mtype.String(), "image/") {
			return "", fmt.Errorf("%s 不是图片 (%s): %w", filename, mtype.String(), ErrInvalidFile)
		}
		if origExt != "" {
			return origExt, nil
		}
		return mtype.Extension(), nil
	case KindApk:
		if mtype.Is(apkMIME) || origExt == ".apk" {
			return ".apk", nil
		}
		return "", fmt.Errorf("%s 不是APK文件 (%s): %w", filename, mtype.String(), ErrInvalidFile)
	}
	return "", ErrUnknownKind
}

// Delete 删除一个已保存的文件。name 必须是单纯的文件名。
func (s *DiskSink) Delete(kind Kind, name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return ErrNotFound
	}
	err := os.Remove(filepath.Join(s.dir, string(kind), name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("无法删除文件: %w", err)
	}
	log.WithFields(log.Fields{"kind": kind, "name": name}).Info("文件已删除")
	return nil
}
