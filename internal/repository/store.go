// Package repository gives each record-store table a typed access layer.
// Repositories accept the store through the RecordStore interface so
// tests can substitute an in-memory fake for the HTTP client.
package repository

import (
	"context"
	"strings"

	"github.com/otworld/assembly-bookings/internal/airtable"
)

// RecordStore is the slice of the record-store client the repositories
// consume.  *airtable.Client satisfies it.
type RecordStore interface {
	Find(ctx context.Context, table, id string) (*airtable.Record, error)
	All(ctx context.Context, table string, opts airtable.Options) ([]airtable.Record, error)
	Create(ctx context.Context, table string, fields map[string]any) (*airtable.Record, error)
	Update(ctx context.Context, table, id string, fields map[string]any) (*airtable.Record, error)
	DeleteBatch(ctx context.Context, table string, ids []string) error
	UploadAttachment(ctx context.Context, table, recordID, field, filename string, content []byte) error
}

// escapeFormula makes a value safe for interpolation into a
// filterByFormula string literal.
func escapeFormula(v string) string {
	return strings.ReplaceAll(strings.ReplaceAll(v, `\`, `\\`), `'`, `\'`)
}

// listByFormula is shorthand for the common filter-plus-limit query.
func listByFormula(formula string, max int) airtable.Options {
	return airtable.Options{FilterByFormula: formula, MaxRecords: max}
}
