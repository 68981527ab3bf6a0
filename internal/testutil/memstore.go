// Package testutil provides shared test helpers: an in-memory document store
// and temporary ledgers.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/dayroll/internal/calendar"
	"github.com/starford/dayroll/internal/notion"
)

// MemStore is an in-memory notion.Store. It evaluates the filter grammar the
// gateway emits and records every write.
type MemStore struct {
	mu  sync.Mutex
	dbs map[string]*memDB

	// FailCreate, when set, is consulted before each create; a non-nil
	// error fails that create.
	FailCreate func(databaseID string, props notion.Properties) error
	// FailQuery, when set, fails queries against the database ids it returns an error for.
	FailQuery func(databaseID string) error

	Creates int
	Updates int
	Queries int
}

type memDB struct {
	schema *notion.Schema
	pages  []notion.Page
}

var _ notion.Store = (*MemStore)(nil)

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{dbs: make(map[string]*memDB)}
}

// AddDatabase registers a database with the given name->type columns.
func (m *MemStore) AddDatabase(id string, columns map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &notion.Schema{ID: id}
	for name, typ := range columns {
		s.Properties = append(s.Properties, notion.Property{ID: name, Name: name, Type: typ})
	}
	sortProps(s)
	m.dbs[id] = &memDB{schema: s}
}

// Seed inserts a page directly, bypassing failure hooks and counters.
func (m *MemStore) Seed(databaseID string, props notion.Properties) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	db := m.db(databaseID)
	db.pages = append(db.pages, notion.Page{Object: "page", ID: id, Properties: cloneProps(props)})
	return id
}

// Pages returns a copy of every page in a database.
func (m *MemStore) Pages(databaseID string) []notion.Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	db := m.db(databaseID)
	out := make([]notion.Page, len(db.pages))
	for i, p := range db.pages {
		out[i] = notion.Page{Object: p.Object, ID: p.ID, Properties: cloneProps(p.Properties)}
	}
	return out
}

// Page returns one page by id.
func (m *MemStore) Page(databaseID, pageID string) (notion.Page, bool) {
	for _, p := range m.Pages(databaseID) {
		if p.ID == pageID {
			return p, true
		}
	}
	return notion.Page{}, false
}

func (m *MemStore) db(id string) *memDB {
	db, ok := m.dbs[id]
	if !ok {
		db = &memDB{schema: &notion.Schema{ID: id}}
		m.dbs[id] = db
	}
	return db
}

func (m *MemStore) RetrieveDatabase(_ context.Context, databaseID string) (*notion.Schema, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.dbs[databaseID]
	if !ok {
		return nil, &notion.APIError{Status: 404, Code: "object_not_found", Message: "database " + databaseID}
	}
	s := *db.schema
	s.Properties = append([]notion.Property(nil), db.schema.Properties...)
	return &s, nil
}

// QueryDatabase returns every match in a single page of results.
func (m *MemStore) QueryDatabase(_ context.Context, databaseID string, req notion.QueryRequest) (*notion.QueryResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries++
	if m.FailQuery != nil {
		if err := m.FailQuery(databaseID); err != nil {
			return nil, err
		}
	}
	resp := &notion.QueryResponse{Results: []notion.Page{}}
	for _, p := range m.db(databaseID).pages {
		if req.Filter == nil || matches(*req.Filter, p) {
			resp.Results = append(resp.Results, notion.Page{Object: p.Object, ID: p.ID, Properties: cloneProps(p.Properties)})
		}
	}
	return resp, nil
}

func (m *MemStore) CreatePage(_ context.Context, databaseID string, props notion.Properties) (*notion.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCreate != nil {
		if err := m.FailCreate(databaseID, props); err != nil {
			return nil, err
		}
	}
	db := m.db(databaseID)
	if err := db.checkProps(props); err != nil {
		return nil, err
	}
	m.Creates++
	page := notion.Page{Object: "page", ID: uuid.NewString(), Properties: cloneProps(props)}
	db.pages = append(db.pages, page)
	return &page, nil
}

// checkProps rejects names the schema lacks, as the live API does. A
// database created implicitly has no schema and accepts anything.
func (db *memDB) checkProps(props notion.Properties) error {
	if len(db.schema.Properties) == 0 {
		return nil
	}
	for name := range props {
		if _, ok := db.schema.Lookup(name); !ok {
			return &notion.APIError{Status: 400, Code: "validation_error", Message: name + " is not a property that exists."}
		}
	}
	return nil
}

func (m *MemStore) UpdatePage(_ context.Context, pageID string, props notion.Properties) (*notion.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, db := range m.dbs {
		for i := range db.pages {
			if db.pages[i].ID != pageID {
				continue
			}
			m.Updates++
			if db.pages[i].Properties == nil {
				db.pages[i].Properties = notion.Properties{}
			}
			for k, v := range props {
				db.pages[i].Properties[k] = v
			}
			out := db.pages[i]
			return &out, nil
		}
	}
	return nil, &notion.APIError{Status: 404, Code: "object_not_found", Message: "page " + pageID}
}

func (m *MemStore) UpdateDatabase(_ context.Context, databaseID string, props map[string]notion.PropertySchema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.dbs[databaseID]
	if !ok {
		return &notion.APIError{Status: 404, Code: "object_not_found", Message: "database " + databaseID}
	}
	for name, col := range props {
		for typ := range col {
			db.schema.Properties = append(db.schema.Properties, notion.Property{ID: name, Name: name, Type: typ})
		}
	}
	sortProps(db.schema)
	return nil
}

func matches(f notion.Filter, p notion.Page) bool {
	if len(f.And) > 0 {
		for _, sub := range f.And {
			if !matches(sub, p) {
				return false
			}
		}
		return true
	}
	v := p.Get(f.Property)
	switch {
	case f.Date != nil:
		d, ok := v.Day()
		if !ok {
			return false
		}
		return dateMatches(*f.Date, d)
	case f.Select != nil:
		return v.SelectName() == f.Select.Equals
	}
	panic(fmt.Sprintf("testutil: unsupported filter %+v", f))
}

func dateMatches(c notion.DateCondition, d calendar.Date) bool {
	s := d.String()
	if c.Equals != "" && s != c.Equals {
		return false
	}
	if c.OnOrAfter != "" && s < c.OnOrAfter {
		return false
	}
	if c.OnOrBefore != "" && s > c.OnOrBefore {
		return false
	}
	return true
}

func cloneProps(in notion.Properties) notion.Properties {
	out := make(notion.Properties, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortProps(s *notion.Schema) {
	sort.Slice(s.Properties, func(i, j int) bool { return s.Properties[i].Name < s.Properties[j].Name })
}
