package airtable

// Record is the generic shape of every row returned by the record store:
// an opaque id plus a loosely typed field map.  The typed getters below
// centralise the coercions the API forces on us (numbers arrive as
// float64, linked records as []any, attachments as []map) so that the
// model layer never touches raw field values.
type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// Str returns the named field as a string, or "" when the field is absent
// or not a string.
func (r Record) Str(field string) string {
	if v, ok := r.Fields[field].(string); ok {
		return v
	}
	return ""
}

// Float returns the named field as a float64.  JSON numbers always decode
// to float64, so this covers every numeric column.
func (r Record) Float(field string) float64 {
	if v, ok := r.Fields[field].(float64); ok {
		return v
	}
	return 0
}

// Bool returns the named field as a bool.  Checkbox columns are omitted
// from the payload entirely when unticked, so absence means false.
func (r Record) Bool(field string) bool {
	if v, ok := r.Fields[field].(bool); ok {
		return v
	}
	return false
}

// Strings returns the named field as a string slice.  Linked-record and
// lookup columns arrive as []any; non-string elements are dropped.
func (r Record) Strings(field string) []string {
	raw, ok := r.Fields[field].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// FirstString returns the first element of a linked-record column, or ""
// when the column is empty.  Most links in this base hold at most one id.
func (r Record) FirstString(field string) string {
	if vals := r.Strings(field); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// AttachmentURL extracts a URL from an attachment column, preferring the
// named thumbnail size when present.  Returns "" when the column is empty
// or malformed.
func (r Record) AttachmentURL(field, preferredSize string) string {
	raw, ok := r.Fields[field].([]any)
	if !ok {
		return ""
	}
	for _, v := range raw {
		att, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if preferredSize != "" {
			if thumbs, ok := att["thumbnails"].(map[string]any); ok {
				if t, ok := thumbs[preferredSize].(map[string]any); ok {
					if url, ok := t["url"].(string); ok {
						return url
					}
				}
			}
		}
		if url, ok := att["url"].(string); ok {
			return url
		}
	}
	return ""
}
