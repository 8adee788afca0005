package service

import (
	"errors"
	"fmt"
)

// 错误类别，调用方通过 errors.Is 判断
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state transition")
	ErrValidation   = errors.New("validation failed")
)

// Error 业务错误，Message 指明出错的实体与编号
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap 返回错误类别
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func newError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...interface{}) *Error {
	return newError(ErrNotFound, format, args...)
}

func conflict(format string, args ...interface{}) *Error {
	return newError(ErrConflict, format, args...)
}

func invalidState(format string, args ...interface{}) *Error {
	return newError(ErrInvalidState, format, args...)
}

func validation(format string, args ...interface{}) *Error {
	return newError(ErrValidation, format, args...)
}

// IsDomainError 判断是否为可直接返回给调用方的业务错误
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrValidation)
}
