package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse описывает ошибку с кодом и сообщением.
type ErrorResponse struct {
	StatusCode int               `json:"-"`
	Message    string            `json:"reason"`
	Kind       ErrorKind         `json:"kind,omitempty"`
	Code       string            `json:"code,omitempty"`
	Reasons    []ForbiddenReason `json:"reasons,omitempty"`
	Retryable  bool              `json:"retryable,omitempty"`
}

// NewErrorResponse создает новую ошибку с кодом и сообщением.
func NewErrorResponse(statusCode int, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Message:    message}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}

type ErrorKind string // Класс ошибки движка

const (
	KindInvalidStateTransition  ErrorKind = "InvalidStateTransition"
	KindTimeWindow              ErrorKind = "TimeWindowError"
	KindEligibilityDenied       ErrorKind = "EligibilityDenied"
	KindConcurrentModification  ErrorKind = "ConcurrentModification"
	KindCollaboratorUnavailable ErrorKind = "CollaboratorUnavailable"
	KindNotFound                ErrorKind = "NotFound"
	KindBadRequest              ErrorKind = "BadRequest"
)

// Коды внутри классов ошибок.
const (
	CodeRoleNotAuthorized = "RoleNotAuthorized"
	CodeIllegalTransition = "IllegalTransition"
	CodeMissingDecision   = "MissingDecision"
	CodeInvalidExtension  = "InvalidExtension"
	CodeWindowExpired     = "WindowExpired"
	CodeWindowStillOpen   = "WindowStillOpen"
)

// Сигнальные значения для errors.Is.
var (
	ErrInvalidStateTransition  = &EngineError{Kind: KindInvalidStateTransition}
	ErrTimeWindow              = &EngineError{Kind: KindTimeWindow}
	ErrEligibilityDenied       = &EngineError{Kind: KindEligibilityDenied}
	ErrConcurrentModification  = &EngineError{Kind: KindConcurrentModification}
	ErrCollaboratorUnavailable = &EngineError{Kind: KindCollaboratorUnavailable}
	ErrNotFound                = &EngineError{Kind: KindNotFound}
	ErrBadRequest              = &EngineError{Kind: KindBadRequest}

	ErrRoleNotAuthorized = &EngineError{Kind: KindInvalidStateTransition, Code: CodeRoleNotAuthorized}
	ErrIllegalTransition = &EngineError{Kind: KindInvalidStateTransition, Code: CodeIllegalTransition}
	ErrInvalidExtension  = &EngineError{Kind: KindTimeWindow, Code: CodeInvalidExtension}
)

// EngineError - ошибка движка жизненного цикла тендера.
type EngineError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Reasons []ForbiddenReason
	Err     error
}

// NewEngineError создает ошибку заданного класса.
func NewEngineError(kind ErrorKind, code, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap добавляет причину к ошибке.
func (e *EngineError) Wrap(err error) *EngineError {
	e.Err = err
	return e
}

func (e *EngineError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по классу, а при заданном коде - и по коду.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// Retryable сообщает, имеет ли смысл повторить запрос без изменений.
func (e *EngineError) Retryable() bool {
	return e.Kind == KindConcurrentModification || e.Kind == KindCollaboratorUnavailable
}

// StatusCode сопоставляет класс ошибки с HTTP статусом.
func (e *EngineError) StatusCode() int {
	switch e.Kind {
	case KindInvalidStateTransition:
		if e.Code == CodeRoleNotAuthorized {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case KindTimeWindow:
		return http.StatusUnprocessableEntity
	case KindEligibilityDenied:
		return http.StatusForbidden
	case KindConcurrentModification:
		return http.StatusConflict
	case KindCollaboratorUnavailable:
		return http.StatusServiceUnavailable
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ToErrorResponse преобразует ошибку в тело HTTP ответа.
func ToErrorResponse(err error) *ErrorResponse {
	var resp *ErrorResponse
	if errors.As(err, &resp) {
		return resp
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return &ErrorResponse{
			StatusCode: engineErr.StatusCode(),
			Message:    engineErr.Error(),
			Kind:       engineErr.Kind,
			Code:       engineErr.Code,
			Reasons:    engineErr.Reasons,
			Retryable:  engineErr.Retryable(),
		}
	}
	return NewErrorResponse(http.StatusInternalServerError, "internal server error")
}

// IsRetryable сообщает, является ли ошибка временной.
func IsRetryable(err error) bool {
	var engineErr *EngineError
	return errors.As(err, &engineErr) && engineErr.Retryable()
}
