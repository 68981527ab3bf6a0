package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/dayroll/internal/calendar"
)

// testClient starts an httptest server running handler and returns a client pointed at it.
func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(context.Background(), Options{Token: "secret-token", BaseURL: srv.URL})
}

func day(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestClient_SendsAuthAndVersionHeaders(t *testing.T) {
	var gotAuth, gotVersion string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		_, _ = w.Write([]byte(`{"object":"database","id":"db1","properties":{}}`))
	})
	if _, err := c.RetrieveDatabase(context.Background(), "db1"); err != nil {
		t.Fatalf("RetrieveDatabase: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotVersion != DefaultVersion {
		t.Errorf("Notion-Version = %q, want %q", gotVersion, DefaultVersion)
	}
}

func TestClient_RetrieveDatabaseSortsProperties(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/databases/db1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"object":"database","id":"db1","title":[{"plain_text":"Tasks"}],
			"properties":{
				"Status":{"id":"s","name":"Status","type":"select"},
				"Name":{"id":"title","name":"Name","type":"title"},
				"Date":{"id":"d","name":"Date","type":"date"}}}`))
	})
	s, err := c.RetrieveDatabase(context.Background(), "db1")
	if err != nil {
		t.Fatalf("RetrieveDatabase: %v", err)
	}
	if s.Title != "Tasks" {
		t.Errorf("title = %q, want Tasks", s.Title)
	}
	var names []string
	for _, p := range s.Properties {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "Date,Name,Status" {
		t.Errorf("properties = %v, want sorted by name", names)
	}
}

func TestClient_Non2xxIsAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`))
	})
	_, err := c.RetrieveDatabase(context.Background(), "db1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != 429 || apiErr.Code != "rate_limited" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClient_Non2xxWithoutJSONBody(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	_, err := c.RetrieveDatabase(context.Background(), "db1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 502 || apiErr.Message != "bad gateway" {
		t.Fatalf("err = %v, want 502 APIError with body message", err)
	}
}

func TestClient_MalformedPayload(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [`))
	})
	_, err := c.QueryDatabase(context.Background(), "db1", QueryRequest{})
	if err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("err = %v, want decode error", err)
	}
}

func TestClient_CreatePageBody(t *testing.T) {
	var body map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pages" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		_, _ = w.Write([]byte(`{"object":"page","id":"p1","properties":{}}`))
	})
	page, err := c.CreatePage(context.Background(), "db1", Properties{
		"Name":   Title("Write report"),
		"Status": Option("Not started"),
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.ID != "p1" {
		t.Errorf("id = %q", page.ID)
	}
	parent := body["parent"].(map[string]any)
	if parent["database_id"] != "db1" {
		t.Errorf("parent = %v", parent)
	}
	props := body["properties"].(map[string]any)
	status := props["Status"].(map[string]any)["select"].(map[string]any)
	if status["name"] != "Not started" {
		t.Errorf("status = %v", status)
	}
}

func TestGateway_QueryFollowsCursor(t *testing.T) {
	calls := 0
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		calls++
		if calls == 1 {
			if req.StartCursor != "" {
				t.Errorf("first call cursor = %q", req.StartCursor)
			}
			_, _ = w.Write([]byte(`{"results":[{"id":"a","properties":{}}],"has_more":true,"next_cursor":"c2"}`))
			return
		}
		if req.StartCursor != "c2" {
			t.Errorf("second call cursor = %q, want c2", req.StartCursor)
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"b","properties":{}},{"id":"gone","archived":true,"properties":{}}],"has_more":false,"next_cursor":null}`))
	})
	pages, err := NewGateway(c).Query(context.Background(), "db1", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if calls != 2 || len(pages) != 2 || pages[0].ID != "a" || pages[1].ID != "b" {
		t.Errorf("calls = %d, pages = %+v", calls, pages)
	}
}

func TestGateway_QueryByDateRangeFilter(t *testing.T) {
	var raw map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"results":[],"has_more":false}`))
	})
	w := calendar.Window{Start: day(t, "2026-10-12"), End: day(t, "2026-10-18")}
	_, err := NewGateway(c).QueryByDateRange(context.Background(), "db1", "Date", w, SelectEquals("Type", "Weekly"))
	if err != nil {
		t.Fatalf("QueryByDateRange: %v", err)
	}
	and := raw["filter"].(map[string]any)["and"].([]any)
	if len(and) != 3 {
		t.Fatalf("and = %v, want 3 clauses", and)
	}
	first := and[0].(map[string]any)["date"].(map[string]any)
	if first["on_or_after"] != "2026-10-12" {
		t.Errorf("first clause = %v", first)
	}
	last := and[2].(map[string]any)["select"].(map[string]any)
	if last["equals"] != "Weekly" {
		t.Errorf("last clause = %v", last)
	}
}

func TestGateway_QueryByDateSingleClause(t *testing.T) {
	var raw map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"results":[]}`))
	})
	if _, err := NewGateway(c).QueryByDate(context.Background(), "db1", "Date", day(t, "2026-10-18")); err != nil {
		t.Fatal(err)
	}
	f := raw["filter"].(map[string]any)
	if f["property"] != "Date" || f["date"].(map[string]any)["equals"] != "2026-10-18" {
		t.Errorf("filter = %v", f)
	}
}

func TestGateway_EnsurePropertiesAddsOnlyMissing(t *testing.T) {
	var patched map[string]any
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"id":"rev","properties":{"Name":{"name":"Name","type":"title"},"Date":{"name":"Date","type":"date"}}}`))
		case http.MethodPatch:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			patched = body["properties"].(map[string]any)
			_, _ = w.Write([]byte(`{}`))
		}
	})
	added, err := NewGateway(c).EnsureProperties(context.Background(), "rev", map[string]PropertySchema{
		"Title":     TitleColumn(),
		"Date":      DateColumn(),
		"Completed": NumberColumn(),
		"Type":      SelectColumn("Daily", "Weekly"),
	})
	if err != nil {
		t.Fatalf("EnsureProperties: %v", err)
	}
	if strings.Join(added, ",") != "Completed,Type" {
		t.Errorf("added = %v, want [Completed Type]", added)
	}
	if _, ok := patched["Title"]; ok {
		t.Error("a second title column must not be added")
	}
}
