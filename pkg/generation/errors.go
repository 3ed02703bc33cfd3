package generation

import (
	"errors"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("generation api rejected the key")
	ErrRateLimited  = errors.New("generation api rate limit")
	ErrBadRequest   = errors.New("generation api rejected the request")
	ErrServerError  = errors.New("generation api failed")
	ErrEmptyResult  = errors.New("generation api returned no content")
)

var statusErrorMap = map[int]error{
	http.StatusBadRequest:          ErrBadRequest,
	http.StatusUnauthorized:        ErrUnauthorized,
	http.StatusForbidden:           ErrUnauthorized,
	http.StatusUnprocessableEntity: ErrBadRequest,
	http.StatusTooManyRequests:     ErrRateLimited,
}

func MapStatusToError(statusCode int) error {
	if err, exists := statusErrorMap[statusCode]; exists {
		return err
	}
	return ErrServerError
}
