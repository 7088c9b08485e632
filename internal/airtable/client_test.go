package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewWithBaseURL("key_test", "appBASE", srv.URL, false)
}

func TestFind(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/appBASE/Bookings/rec123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "rec123",
			"fields": map[string]any{"Status": "Pending"},
		})
	})
	c := stubClient(t, mux)

	rec, err := c.Find(context.Background(), "Bookings", "rec123")
	require.NoError(t, err)
	assert.Equal(t, "rec123", rec.ID)
	assert.Equal(t, "Pending", rec.Str("Status"))
}

func TestFindNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"NOT_FOUND"}}`, http.StatusNotFound)
	})
	c := stubClient(t, mux)

	_, err := c.Find(context.Background(), "Bookings", "recMissing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAllFollowsOffset(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/appBASE/Items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "{Meeting} = 'GA2026'", r.URL.Query().Get("filterByFormula"))
		resp := listResponse{}
		switch r.URL.Query().Get("offset") {
		case "":
			resp.Records = []Record{{ID: "rec1"}, {ID: "rec2"}}
			resp.Offset = "page2"
		case "page2":
			resp.Records = []Record{{ID: "rec3"}}
		default:
			t.Fatalf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
		json.NewEncoder(w).Encode(resp)
	})
	c := stubClient(t, mux)

	recs, err := c.All(context.Background(), "Items", Options{FilterByFormula: "{Meeting} = 'GA2026'"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "rec3", recs[2].ID)
}

func TestAllHonoursMaxRecords(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/appBASE/Items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("maxRecords"))
		json.NewEncoder(w).Encode(listResponse{
			Records: []Record{{ID: "rec1"}, {ID: "rec2"}, {ID: "rec3"}},
			Offset:  "page2",
		})
	})
	c := stubClient(t, mux)

	recs, err := c.All(context.Background(), "Items", Options{MaxRecords: 2})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestCreateSendsTypecast(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/appBASE/Bookings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["typecast"])
		fields, _ := body["fields"].(map[string]any)
		assert.Equal(t, "Pending", fields["Status"])
		json.NewEncoder(w).Encode(map[string]any{"id": "recNEW", "fields": fields})
	})
	c := stubClient(t, mux)

	rec, err := c.Create(context.Background(), "Bookings", map[string]any{"Status": "Pending"})
	require.NoError(t, err)
	assert.Equal(t, "recNEW", rec.ID)
}

func TestUpdateClearsNilFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/appBASE/Bookings/rec123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fields, _ := body["fields"].(map[string]any)
		v, present := fields["Payment Method"]
		assert.True(t, present)
		assert.Nil(t, v)
		json.NewEncoder(w).Encode(map[string]any{"id": "rec123"})
	})
	c := stubClient(t, mux)

	_, err := c.Update(context.Background(), "Bookings", "rec123", map[string]any{"Payment Method": nil})
	require.NoError(t, err)
}

func TestDeleteBatchChunks(t *testing.T) {
	var batches [][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/appBASE/Booked Items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		batches = append(batches, r.URL.Query()["records[]"])
		json.NewEncoder(w).Encode(map[string]any{"records": []any{}})
	})
	c := stubClient(t, mux)

	ids := make([]string, 13)
	for i := range ids {
		ids[i] = fmt.Sprintf("rec%02d", i)
	}
	require.NoError(t, c.DeleteBatch(context.Background(), "Booked Items", ids))
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 3)

	assert.NoError(t, c.DeleteBatch(context.Background(), "Booked Items", nil))
}

func TestErrorCarriesStatusAndBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"INVALID_REQUEST"}}`, http.StatusUnprocessableEntity)
	})
	c := stubClient(t, mux)

	_, err := c.Find(context.Background(), "Bookings", "rec123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "INVALID_REQUEST")
}
