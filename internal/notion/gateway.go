package notion

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/dayroll/internal/calendar"
)

// Gateway builds filters and runs queries against a Store. Every data-bearing
// component reads and writes the document database through it.
type Gateway struct {
	store Store
}

// NewGateway wraps store.
func NewGateway(store Store) *Gateway {
	return &Gateway{store: store}
}

// FetchSchema returns the property list of a database.
func (g *Gateway) FetchSchema(ctx context.Context, databaseID string) (*Schema, error) {
	s, err := g.store.RetrieveDatabase(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("fetch schema %s: %w", databaseID, err)
	}
	return s, nil
}

// Query returns every page matching filter, following pagination.
// A nil filter returns the whole database.
func (g *Gateway) Query(ctx context.Context, databaseID string, filter *Filter) ([]Page, error) {
	var out []Page
	req := QueryRequest{Filter: filter, PageSize: pageSize}
	for {
		resp, err := g.store.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", databaseID, err)
		}
		for _, p := range resp.Results {
			if !p.Archived {
				out = append(out, p)
			}
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return out, nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

// QueryByDate returns the pages whose dateProperty falls on day.
func (g *Gateway) QueryByDate(ctx context.Context, databaseID, dateProperty string, day calendar.Date) ([]Page, error) {
	f := DateEquals(dateProperty, day)
	return g.Query(ctx, databaseID, &f)
}

// QueryByDateRange returns the pages dated inside w, further narrowed by extra.
func (g *Gateway) QueryByDateRange(ctx context.Context, databaseID, dateProperty string, w calendar.Window, extra ...Filter) ([]Page, error) {
	filters := append([]Filter{
		DateOnOrAfter(dateProperty, w.Start),
		DateOnOrBefore(dateProperty, w.End),
	}, extra...)
	f := And(filters...)
	return g.Query(ctx, databaseID, &f)
}

// Create adds a record under parentID and returns its id.
func (g *Gateway) Create(ctx context.Context, parentID string, props Properties) (string, error) {
	page, err := g.store.CreatePage(ctx, parentID, props)
	if err != nil {
		return "", fmt.Errorf("create in %s: %w", parentID, err)
	}
	return page.ID, nil
}

// Update patches props on an existing record.
func (g *Gateway) Update(ctx context.Context, recordID string, props Properties) error {
	if _, err := g.store.UpdatePage(ctx, recordID, props); err != nil {
		return fmt.Errorf("update %s: %w", recordID, err)
	}
	return nil
}

// EnsureProperties adds the columns of want that databaseID lacks and returns
// their names. Existing columns are never modified.
func (g *Gateway) EnsureProperties(ctx context.Context, databaseID string, want map[string]PropertySchema) ([]string, error) {
	s, err := g.FetchSchema(ctx, databaseID)
	if err != nil {
		return nil, err
	}
	missing := make(map[string]PropertySchema)
	var names []string
	for name, col := range want {
		if _, ok := s.Lookup(name); ok {
			continue
		}
		// A database has exactly one title column; rename is out of scope.
		if _, isTitle := col[TypeTitle]; isTitle && hasType(s, TypeTitle) {
			continue
		}
		missing[name] = col
		names = append(names, name)
	}
	if len(missing) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	if err := g.store.UpdateDatabase(ctx, databaseID, missing); err != nil {
		return nil, fmt.Errorf("add properties to %s: %w", databaseID, err)
	}
	return names, nil
}

// TitleColumn returns the name of databaseID's title column. preferred is
// returned when it is title-typed; otherwise the first title column is.
func (g *Gateway) TitleColumn(ctx context.Context, databaseID, preferred string) (string, error) {
	s, err := g.FetchSchema(ctx, databaseID)
	if err != nil {
		return "", err
	}
	if p, ok := s.Lookup(preferred); ok && p.Type == TypeTitle {
		return preferred, nil
	}
	for _, p := range s.Properties {
		if p.Type == TypeTitle {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%s has no title column", databaseID)
}

func hasType(s *Schema, typ string) bool {
	for _, p := range s.Properties {
		if p.Type == typ {
			return true
		}
	}
	return false
}
