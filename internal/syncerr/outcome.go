package syncerr

import (
	"context"
	"errors"
)

// Outcome 导入结果标签：调用方按它决定“不再重试”还是“稍后重试”
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeNotFound       Outcome = "not_found"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeDataError      Outcome = "data_error"
	OutcomeStorageError   Outcome = "storage_error"
	OutcomeCanceled       Outcome = "canceled"
	// OutcomeInternal 未归类的错误（程序缺陷等），重试没有意义
	OutcomeInternal Outcome = "internal_error"
)

// Classify 把错误归入结果标签，nil 为成功
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeCanceled
	}
	switch KindOf(err) {
	case KindSubjectNotFound:
		return OutcomeNotFound
	case KindTransport:
		return OutcomeTransportError
	case KindPaginationFailed:
		// 后续页失败：按根因区分，页面结构变化属于数据问题
		var e *Error
		errors.As(err, &e)
		switch KindOf(e.Err) {
		case KindMarkerNotFound, KindMalformedBlob:
			return OutcomeDataError
		}
		return OutcomeTransportError
	case KindMarkerNotFound, KindMalformedBlob:
		return OutcomeDataError
	case KindStorageUnavailable, KindIntegrityViolation:
		return OutcomeStorageError
	}
	return OutcomeInternal
}

// Retryable 稍后重试是否有意义
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeTransportError, OutcomeStorageError, OutcomeCanceled:
		return true
	}
	return false
}
