package service

import "errors"

func NewServiceError(code string, cause error) error {
	return Error{
		Code:  code,
		Cause: cause,
	}
}

type Error struct {
	Code  string
	Cause error
}

func (e Error) Error() string {
	if e.Cause == nil {
		return e.Code
	}
	return e.Cause.Error()
}

func (e Error) Unwrap() error {
	return e.Cause
}

// ErrorCode returns the service error code carried by err, or "".
func ErrorCode(err error) string {
	var se Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}
