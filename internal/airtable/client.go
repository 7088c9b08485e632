// Package airtable is a thin typed client for the Airtable REST API, the
// record store backing every entity in this service.  Only the operations
// the repositories need are implemented: find, filtered list with
// pagination, create, partial update, batched delete and attachment
// upload.
package airtable

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned by Find when the record store reports that the
// requested record does not exist.
var ErrNotFound = errors.New("airtable: record not found")

// deleteBatchSize is the maximum number of record ids the API accepts in
// a single delete request.
const deleteBatchSize = 10

// SortField names a column and direction for server-side sorting.
type SortField struct {
	Field     string
	Direction string // "asc" or "desc"
}

// Options narrows a list query.  Zero values are omitted from the request.
type Options struct {
	FilterByFormula string
	Fields          []string
	MaxRecords      int
	Sort            []SortField
}

// Client talks to a single Airtable base.  It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	baseID     string
	debug      bool
}

// New returns a Client for the given base.  When debug is true every call
// and its outcome are logged, mirroring the DEBUG flag of the original
// deployment.
func New(apiKey, baseID string, debug bool) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api.airtable.com/v0",
		apiKey:     apiKey,
		baseID:     baseID,
		debug:      debug,
	}
}

// NewWithBaseURL is New with an overridable endpoint, used by tests to
// point the client at a local stub server.
func NewWithBaseURL(apiKey, baseID, baseURL string, debug bool) *Client {
	c := New(apiKey, baseID, debug)
	c.baseURL = baseURL
	return c
}

func (c *Client) logDebug(format string, args ...any) {
	if c.debug {
		log.Printf("airtable: "+format, args...)
	}
}

// Find fetches one record by id.  Returns ErrNotFound for a 404.
func (c *Client) Find(ctx context.Context, table, id string) (*Record, error) {
	c.logDebug("find %s/%s", table, id)
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.recordURL(table, id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// All returns every record matching opts, following the offset cursor
// across pages.  The API caps pages at 100 records; MaxRecords bounds the
// overall result when set.
func (c *Client) All(ctx context.Context, table string, opts Options) ([]Record, error) {
	c.logDebug("all %s filter=%q", table, opts.FilterByFormula)
	var out []Record
	offset := ""
	for {
		q := url.Values{}
		if opts.FilterByFormula != "" {
			q.Set("filterByFormula", opts.FilterByFormula)
		}
		for _, f := range opts.Fields {
			q.Add("fields[]", f)
		}
		if opts.MaxRecords > 0 {
			q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
		}
		for i, s := range opts.Sort {
			q.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
			if s.Direction != "" {
				q.Set(fmt.Sprintf("sort[%d][direction]", i), s.Direction)
			}
		}
		if offset != "" {
			q.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tableURL(table)+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" || (opts.MaxRecords > 0 && len(out) >= opts.MaxRecords) {
			break
		}
		offset = page.Offset
	}
	if opts.MaxRecords > 0 && len(out) > opts.MaxRecords {
		out = out[:opts.MaxRecords]
	}
	c.logDebug("all %s -> %d records", table, len(out))
	return out, nil
}

// Create inserts a record and returns it with its generated id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]any) (*Record, error) {
	c.logDebug("create %s", table)
	body := map[string]any{"fields": fields, "typecast": true}
	var rec Record
	if err := c.do(ctx, http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Update applies a partial update to one record; fields set to nil are
// cleared.
func (c *Client) Update(ctx context.Context, table, id string, fields map[string]any) (*Record, error) {
	c.logDebug("update %s/%s", table, id)
	body := map[string]any{"fields": fields, "typecast": true}
	var rec Record
	if err := c.do(ctx, http.MethodPatch, c.recordURL(table, id), body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteBatch removes the given records, chunking requests to the API's
// ten-id limit.  A nil or empty slice is a no-op.
func (c *Client) DeleteBatch(ctx context.Context, table string, ids []string) error {
	for len(ids) > 0 {
		n := len(ids)
		if n > deleteBatchSize {
			n = deleteBatchSize
		}
		q := url.Values{}
		for _, id := range ids[:n] {
			q.Add("records[]", id)
		}
		c.logDebug("delete %s (%d records)", table, n)
		if err := c.do(ctx, http.MethodDelete, c.tableURL(table)+"?"+q.Encode(), nil, nil); err != nil {
			return err
		}
		ids = ids[n:]
	}
	return nil
}

// UploadAttachment attaches content to a record's attachment field using
// a base64 data URL, the same PATCH shape the original system used.
func (c *Client) UploadAttachment(ctx context.Context, table, recordID, field, filename string, content []byte) error {
	c.logDebug("uploadAttachment %s/%s field=%s file=%s", table, recordID, field, filename)
	body := map[string]any{
		"records": []map[string]any{{
			"id": recordID,
			"fields": map[string]any{
				field: []map[string]any{{
					"url":      "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(content),
					"filename": filename,
				}},
			},
		}},
	}
	return c.do(ctx, http.MethodPatch, c.tableURL(table), body, nil)
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.baseID, url.PathEscape(table))
}

func (c *Client) recordURL(table, id string) string {
	return c.tableURL(table) + "/" + url.PathEscape(id)
}

// do performs one API call, decoding a JSON response into out when out is
// non-nil.  Non-2xx responses become errors carrying the status and a
// truncated body for the server log.
func (c *Client) do(ctx context.Context, method, rawurl string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("airtable: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return fmt.Errorf("airtable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("airtable: %s %s: %w", method, rawurl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("airtable: %s returned %d: %s", method, resp.StatusCode, detail)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("airtable: decode response: %w", err)
	}
	return nil
}
