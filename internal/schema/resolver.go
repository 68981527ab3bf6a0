// Package schema infers which columns of an operator-editable task database
// carry each semantic role.
package schema

import (
	"fmt"
	"strings"

	"github.com/coregx/ahocorasick"

	"github.com/starford/dayroll/internal/apperr"
	"github.com/starford/dayroll/internal/checksum"
	"github.com/starford/dayroll/internal/notion"
)

// Role names a semantic column.
type Role string

const (
	RoleTitle      Role = "title"
	RoleDate       Role = "date"
	RoleStatus     Role = "status"
	RoleSourceDate Role = "source-date"
	RoleResource   Role = "resource"
	RoleDuration   Role = "duration"
	RoleHint       Role = "hint"
)

// Required lists the roles every pass needs.
var Required = []Role{RoleTitle, RoleDate, RoleStatus}

// Column is a resolved property.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Mapping is the result of resolution. Optional roles are nil when absent.
type Mapping struct {
	Title      *Column `json:"title,omitempty"`
	Date       *Column `json:"date,omitempty"`
	Status     *Column `json:"status,omitempty"`
	SourceDate *Column `json:"source_date,omitempty"`
	Resource   *Column `json:"resource,omitempty"`
	Duration   *Column `json:"duration,omitempty"`
	Hint       *Column `json:"hint,omitempty"`
}

// Name returns the property name bound to r, or "".
func (m Mapping) Name(r Role) string {
	if c := m.column(r); c != nil {
		return c.Name
	}
	return ""
}

func (m Mapping) column(r Role) *Column {
	switch r {
	case RoleTitle:
		return m.Title
	case RoleDate:
		return m.Date
	case RoleStatus:
		return m.Status
	case RoleSourceDate:
		return m.SourceDate
	case RoleResource:
		return m.Resource
	case RoleDuration:
		return m.Duration
	case RoleHint:
		return m.Hint
	}
	return nil
}

func (m *Mapping) set(r Role, c *Column) {
	switch r {
	case RoleTitle:
		m.Title = c
	case RoleDate:
		m.Date = c
	case RoleStatus:
		m.Status = c
	case RoleSourceDate:
		m.SourceDate = c
	case RoleResource:
		m.Resource = c
	case RoleDuration:
		m.Duration = c
	case RoleHint:
		m.Hint = c
	}
}

// Missing lists the required roles that did not resolve.
func (m Mapping) Missing() []Role {
	var out []Role
	for _, r := range Required {
		if m.column(r) == nil {
			out = append(out, r)
		}
	}
	return out
}

// UnresolvedError reports required roles that no property could fill.
type UnresolvedError struct {
	Missing []Role
}

func (e *UnresolvedError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, r := range e.Missing {
		parts[i] = string(r)
	}
	return fmt.Sprintf("schema: required roles unresolved: %s", strings.Join(parts, ", "))
}

func (e *UnresolvedError) Unwrap() error { return apperr.ErrUnresolvedSchema }

// rule binds a role to a property type and, optionally, to name markers.
type rule struct {
	role    Role
	typ     string
	markers []string
}

// rules are tried in order for every property. A rule without markers takes
// the first property of its type.
var rules = []rule{
	{role: RoleTitle, typ: notion.TypeTitle},
	{role: RoleSourceDate, typ: notion.TypeDate, markers: []string{"source", "origin", "来源"}},
	{role: RoleDate, typ: notion.TypeDate},
	{role: RoleStatus, typ: notion.TypeSelect, markers: []string{"status", "state", "状态", "状"}},
	{role: RoleResource, typ: notion.TypeURL},
	{role: RoleDuration, typ: notion.TypeNumber, markers: []string{"duration", "minutes", "hours", "时长", "时"}},
	{role: RoleHint, typ: notion.TypeRichText, markers: []string{"hint", "tip", "提示", "提"}},
}

// fallback roles take the first property of their type when keyword rules
// left them empty.
var fallback = []rule{
	{role: RoleTitle, typ: notion.TypeTitle},
	{role: RoleDate, typ: notion.TypeDate},
	{role: RoleStatus, typ: notion.TypeSelect},
}

// Resolver maps schemas to roles. It is safe for concurrent use.
type Resolver struct {
	ac      *ahocorasick.Automaton
	markers []string
}

// NewResolver compiles the marker automaton.
func NewResolver() (*Resolver, error) {
	var markers []string
	for _, r := range rules {
		markers = append(markers, r.markers...)
	}
	ac, err := ahocorasick.NewBuilder().AddStrings(markers).Build()
	if err != nil {
		return nil, fmt.Errorf("schema: build marker automaton: %w", err)
	}
	return &Resolver{ac: ac, markers: markers}, nil
}

// found returns the set of markers occurring in name, case-insensitively.
func (r *Resolver) found(name string) map[string]bool {
	out := make(map[string]bool)
	for _, m := range r.ac.FindAllOverlapping([]byte(strings.ToLower(name))) {
		out[r.markers[m.PatternID]] = true
	}
	return out
}

// Resolve maps s to roles. The mapping is always returned; err is an
// *UnresolvedError when a required role is missing.
func (r *Resolver) Resolve(s *notion.Schema) (Mapping, error) {
	var m Mapping
	for _, p := range s.Properties {
		hits := r.found(p.Name)
		for _, ru := range rules {
			if p.Type != ru.typ || m.column(ru.role) != nil {
				continue
			}
			if len(ru.markers) > 0 && !anyMarker(hits, ru.markers) {
				continue
			}
			m.set(ru.role, &Column{Name: p.Name, Type: p.Type})
			// One role per property in the keyword pass.
			break
		}
	}
	for _, ru := range fallback {
		if m.column(ru.role) != nil {
			continue
		}
		for _, p := range s.Properties {
			if p.Type == ru.typ {
				m.set(ru.role, &Column{Name: p.Name, Type: p.Type})
				break
			}
		}
	}
	if missing := m.Missing(); len(missing) > 0 {
		return m, &UnresolvedError{Missing: missing}
	}
	return m, nil
}

// Fingerprint identifies the column set of s independent of order.
func Fingerprint(s *notion.Schema) string {
	parts := make([]string, len(s.Properties))
	for i, p := range s.Properties {
		parts[i] = p.Name + ":" + p.Type
	}
	return checksum.Set(parts)
}

func anyMarker(hits map[string]bool, markers []string) bool {
	for _, m := range markers {
		if hits[m] {
			return true
		}
	}
	return false
}
