// Package confirmation decides when a cached booking-confirmation PDF is
// stale and regenerates it.  Each booking owns at most one PDF and one
// JSON metadata file in the confirmations directory; the metadata records
// which version of the source record the PDF was rendered from.
package confirmation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otworld/assembly-bookings/internal/airtable"
)

// defaultLastModifiedCandidates is the ordered fallback list of field
// names tried when extracting a booking's last-modified marker.  The
// record store's "last modified" column is named differently across
// deployments, so an operator-configured field is tried first and these
// cover the known variants.
var defaultLastModifiedCandidates = []string{
	"Receipt Timestamp",
	"Last Modified",
	"Last Modified Time",
	"Last Modified Date",
	"Modified",
	"Updated",
}

// timestampLayouts are the formats markers and metadata timestamps are
// parsed with.  Unparseable values fail safe toward regeneration.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Metadata describes the cached PDF of one booking.
type Metadata struct {
	BookingID          string `json:"booking_id"`
	GeneratedAt        string `json:"generated_at"`
	SourceLastModified string `json:"source_last_modified"`
}

// Cache implements the staleness policy over a local directory.
type Cache struct {
	dir             string
	grace           time.Duration
	configuredField string
}

// NewCache returns a Cache rooted at dir.  graceSeconds absorbs clock
// and propagation skew between the record store and the regeneration
// trigger; configuredField optionally names the deployment's
// last-modified column.
func NewCache(dir string, graceSeconds int, configuredField string) *Cache {
	return &Cache{
		dir:             dir,
		grace:           time.Duration(graceSeconds) * time.Second,
		configuredField: configuredField,
	}
}

// SanitizeID strips a booking id down to a filesystem-safe charset
// before it is used as a path segment.
func SanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PDFPath returns where the booking's confirmation PDF lives.
func (c *Cache) PDFPath(bookingID string) string {
	return filepath.Join(c.dir, SanitizeID(bookingID)+".pdf")
}

func (c *Cache) metadataPath(bookingID string) string {
	return filepath.Join(c.dir, SanitizeID(bookingID)+".json")
}

// LoadMetadata reads the booking's cache metadata.  A missing or corrupt
// file yields nil, which the policy treats as "never generated".
func (c *Cache) LoadMetadata(bookingID string) *Metadata {
	raw, err := os.ReadFile(c.metadataPath(bookingID))
	if err != nil {
		return nil
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return &m
}

// StoreMetadata overwrites the booking's cache metadata after a
// successful generation.
func (c *Cache) StoreMetadata(bookingID, sourceLastModified string) error {
	if err := os.MkdirAll(c.dir, 0o775); err != nil {
		return err
	}
	m := Metadata{
		BookingID:          bookingID,
		GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
		SourceLastModified: sourceLastModified,
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.metadataPath(bookingID), raw, 0o644)
}

// ExtractLastModified returns the booking record's last-modified marker:
// the configured field first, then the fixed fallback list, first
// non-empty wins.  Returns "" when no candidate holds a value.
func (c *Cache) ExtractLastModified(rec airtable.Record) string {
	candidates := defaultLastModifiedCandidates
	if c.configuredField != "" {
		candidates = append([]string{c.configuredField}, candidates...)
	}
	for _, field := range candidates {
		if v := rec.Str(field); v != "" {
			return v
		}
	}
	return ""
}

// RequiresRefresh reports whether the cached PDF must be regenerated.
//
// The rules, in order: a missing PDF always regenerates.  When no source
// marker can be extracted, staleness cannot be proven, so only a booking
// that has never had metadata written regenerates; anything else is
// kept to avoid re-rendering on every request.  Missing or markerless
// metadata regenerates.  Unparseable timestamps regenerate (fail safe).
// Otherwise the PDF is stale iff the source moved forward by more than
// the grace window.
func (c *Cache) RequiresRefresh(meta *Metadata, latestMarker, pdfPath string) bool {
	if _, err := os.Stat(pdfPath); err != nil {
		return true
	}
	if latestMarker == "" {
		return meta == nil
	}
	if meta == nil || meta.SourceLastModified == "" {
		return true
	}
	latest, ok1 := parseTimestamp(latestMarker)
	cached, ok2 := parseTimestamp(meta.SourceLastModified)
	if !ok1 || !ok2 {
		return true
	}
	return latest.Sub(cached) > c.grace
}

func parseTimestamp(v string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
