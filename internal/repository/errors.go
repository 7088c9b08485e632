// Package-level sentinel errors shared by the repositories.  Handlers
// compare with errors.Is and translate into HTTP status codes: ErrNotFound
// becomes 404, anything else a 500 with a generic message.
package repository

import (
	"errors"

	"github.com/otworld/assembly-bookings/internal/airtable"
)

// ErrNotFound is returned when a record, or a record implied by a link
// (e.g. the booking behind a registration), does not exist.
var ErrNotFound = errors.New("not found")

// notFound translates the store's sentinel into the repository one so
// callers only ever depend on this package's errors.
func notFound(err error) error {
	if errors.Is(err, airtable.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
