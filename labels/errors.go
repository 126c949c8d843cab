package labels

import (
	"errors"
	"fmt"
)

var (
	// ErrInput 匹配所有调用方输入错误（空批次、未知尺寸、非法页面参数等）。
	ErrInput = errors.New("labels: invalid input")
	// ErrInternal 匹配栅格化或文档输出阶段的意外失败。
	ErrInternal = errors.New("labels: internal error")

	ErrNoPayloads  = errors.New("empty payload list")
	ErrUnknownSize = errors.New("unknown size class")
	ErrTooMany     = errors.New("too many payloads")
)

// InputError is a caller-side error; the core makes no attempt to recover.
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("labels: invalid %s: %v", e.Field, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Is(target error) bool { return target == ErrInput }

// InternalError is fatal for the current request and never retried.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("labels: %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

func (e *InternalError) Is(target error) bool { return target == ErrInternal }

func inputErr(field string, err error) error { return &InputError{Field: field, Err: err} }

func internalErr(op string, err error) error { return &InternalError{Op: op, Err: err} }
