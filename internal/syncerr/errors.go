// Package syncerr 导入流程的错误分类：抓取、解析、分页、存储各阶段统一成 Kind，
// 调用方用 errors.Is / Classify 判断，不再匹配错误文本。
package syncerr

import (
	"errors"
	"fmt"
)

// Kind 错误类别
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindSubjectNotFound
	KindMarkerNotFound
	KindMalformedBlob
	KindPaginationFailed
	KindStorageUnavailable
	KindIntegrityViolation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport_error"
	case KindSubjectNotFound:
		return "subject_not_found"
	case KindMarkerNotFound:
		return "marker_not_found"
	case KindMalformedBlob:
		return "malformed_blob"
	case KindPaginationFailed:
		return "pagination_failed"
	case KindStorageUnavailable:
		return "storage_unavailable"
	case KindIntegrityViolation:
		return "integrity_violation"
	default:
		return "unknown"
	}
}

// 与 errors.Is 配合使用的哨兵
var (
	ErrTransport          = &Error{Kind: KindTransport}
	ErrSubjectNotFound    = &Error{Kind: KindSubjectNotFound}
	ErrMarkerNotFound     = &Error{Kind: KindMarkerNotFound}
	ErrMalformedBlob      = &Error{Kind: KindMalformedBlob}
	ErrPaginationFailed   = &Error{Kind: KindPaginationFailed}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrIntegrityViolation = &Error{Kind: KindIntegrityViolation}
)

// Error 带类别与上下文的错误
type Error struct {
	Kind      Kind
	SubjectID int64
	Page      int // 出错的页码，0 表示与页码无关
	LastPage  int // PaginationFailed：最后一个成功的页码
	Err       error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.SubjectID != 0 {
		msg = fmt.Sprintf("%s: subject %d", msg, e.SubjectID)
	}
	if e.Page != 0 {
		msg = fmt.Sprintf("%s page %d", msg, e.Page)
	}
	if e.Kind == KindPaginationFailed {
		msg = fmt.Sprintf("%s (last ok page %d)", msg, e.LastPage)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类别即视为相等
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New 构造指定类别的错误
func New(kind Kind, subjectID int64, page int, err error) *Error {
	return &Error{Kind: kind, SubjectID: subjectID, Page: page, Err: err}
}

// Pagination 第 page 页失败，last 为最后成功的页
func Pagination(subjectID int64, page int, err error) *Error {
	return &Error{Kind: KindPaginationFailed, SubjectID: subjectID, Page: page, LastPage: page - 1, Err: err}
}

// KindOf 取错误链上最外层的类别
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
