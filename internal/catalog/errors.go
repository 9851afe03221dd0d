package catalog

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Kind 定义了目录服务对外暴露的错误类别
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus 将错误类别映射为HTTP状态码。
// 冲突返回400，与校验失败相同。
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error 是目录服务边界上唯一的错误类型
type Error struct {
	Kind    Kind
	Message string
	// Fields 是校验失败的字段名
	Fields []string
	// Code 是存储层给出的错误码（如 PostgreSQL 的 23505），可能为空
	Code string
	// Err 是底层错误，只用于日志，不会返回给客户端
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotFound 是存储层在记录不存在时返回的哨兵错误
var ErrNotFound = errors.New("记录不存在")

// ErrNoBinary 表示应用存在但没有可下载的安装包
var ErrNoBinary = errors.New("安装包不可用")

func validationError(fields ...string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "缺少必填字段: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func notFoundError(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func unavailableError() *Error {
	return &Error{Kind: KindUnavailable, Message: "数据库暂时不可用，请稍后重试"}
}

// classify 将存储层错误归类为对外的 *Error
func classify(err error, notFoundMessage string) *Error {
	if err == nil {
		return nil
	}
	var catalogErr *Error
	if errors.As(err, &catalogErr) {
		return catalogErr
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: notFoundMessage, Err: err}
	case errors.Is(err, ErrNoBinary):
		return &Error{Kind: KindNotFound, Message: ErrNoBinary.Error(), Err: err}
	}
	if code, ok := uniqueViolation(err); ok {
		return &Error{Kind: KindConflict, Message: "记录已存在", Code: code, Err: err}
	}
	return &Error{Kind: KindInternal, Message: "服务器内部错误", Err: err}
}

// uniqueViolation 识别各驱动的唯一约束冲突，并尽量返回驱动自己的错误码
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Sprintf("%d", int(liteErr.ExtendedCode)), true
		}
		return "", false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	return "", false
}
