package apperrors

import (
	"errors"
	"net/http"
)

var statusBySentinel = []struct {
	sentinel error
	status   int
}{
	{ErrInvalidArgument, http.StatusBadRequest},
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusConflict},
}

// HTTPStatus maps an error to its HTTP status code. Errors outside the
// taxonomy are treated as internal.
func HTTPStatus(err error) int {
	for _, m := range statusBySentinel {
		if errors.Is(err, m.sentinel) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
