package models

import "errors"

// Result is the outcome of a call to a remote collaborator (story database,
// object storage, LLM). Exactly one of Data and Error is meaningful.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	err error
}

// OK wraps a successful value.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail wraps an error. A nil err still produces a failed result.
func Fail[T any](err error) Result[T] {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Result[T]{Error: msg, err: err}
}

// From converts a (value, error) pair.
func From[T any](data T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return OK(data)
}

// Err returns the failure as an error, or nil on success. The original error
// is kept for results built in-process, so errors.Is still matches it; a
// result decoded from JSON only has the message.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	return errors.New(r.Error)
}
