package audience

import (
	"errors"
	"fmt"

	"github.com/kursadbilgin/newsletter-dispatch/internal/domain"
)

// ErrFiltersNotSupported rejects any query other than "no filter" or
// "primary key only"; the provider APIs cannot answer compound queries.
var ErrFiltersNotSupported = errors.New("filters not supported")

// DoesNotExistError reports that an audience or segment is absent at the
// provider. It matches domain.ErrNotFound.
type DoesNotExistError struct {
	Kind Kind
	PK   string
}

func (e *DoesNotExistError) Error() string {
	return fmt.Sprintf("%s %q does not exist", e.Kind, e.PK)
}

func (e *DoesNotExistError) Unwrap() error { return domain.ErrNotFound }
