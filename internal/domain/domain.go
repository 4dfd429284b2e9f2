package domain

import (
	"github.com/yungbote/knowledge-registry/internal/domain/knowledge"
)

const (
	StatePending    = knowledge.StatePending
	StateProcessing = knowledge.StateProcessing
	StateProcessed  = knowledge.StateProcessed
	StateFailed     = knowledge.StateFailed
	StateSkipped    = knowledge.StateSkipped

	EncodingUTF8   = knowledge.EncodingUTF8
	EncodingBase64 = knowledge.EncodingBase64

	CodeValidation        = knowledge.CodeValidation
	CodeNotFound          = knowledge.CodeNotFound
	CodeConflict          = knowledge.CodeConflict
	CodeInvalidTransition = knowledge.CodeInvalidTransition
	CodeUnavailable       = knowledge.CodeUnavailable
	CodeProcessor         = knowledge.CodeProcessor
	CodeRetryable         = knowledge.CodeRetryable
	CodeStorage           = knowledge.CodeStorage
	CodeInternal          = knowledge.CodeInternal
)

type Source = knowledge.Source
type ContentItem = knowledge.ContentItem
type ProcessingStatus = knowledge.ProcessingStatus
type ProcessingState = knowledge.ProcessingState
type AgentStats = knowledge.AgentStats

type Error = knowledge.Error
type ErrorCode = knowledge.ErrorCode

func NewError(code ErrorCode, op, message string, cause error) error {
	return knowledge.NewError(code, op, message, cause)
}

func Wrap(code ErrorCode, op string, err error) error {
	return knowledge.Wrap(code, op, err)
}

func IsCode(err error, code ErrorCode) bool {
	return knowledge.IsCode(err, code)
}

func CodeOf(err error) ErrorCode {
	return knowledge.CodeOf(err)
}

func MessageOf(err error) string {
	return knowledge.MessageOf(err)
}

func MapStorageError(op string, err error) error {
	return knowledge.MapStorageError(op, err)
}

func IsDuplicate(err error) bool {
	return knowledge.IsDuplicate(err)
}
