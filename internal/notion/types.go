package notion

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/dayroll/internal/calendar"
)

// Property types recognised by the schema resolver.
const (
	TypeTitle    = "title"
	TypeRichText = "rich_text"
	TypeDate     = "date"
	TypeSelect   = "select"
	TypeNumber   = "number"
	TypeURL      = "url"
)

// maxTextRun is the largest content length the API accepts in one text run.
const maxTextRun = 2000

// Property is one column of a database schema.
type Property struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is a database's column list, sorted by name.
type Schema struct {
	ID         string
	Title      string
	Properties []Property
}

// Lookup returns the property called name.
func (s *Schema) Lookup(name string) (Property, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// databaseObject is the wire shape of GET /databases/{id}.
type databaseObject struct {
	Object     string              `json:"object"`
	ID         string              `json:"id"`
	Title      []RichText          `json:"title"`
	Properties map[string]Property `json:"properties"`
}

func (d *databaseObject) schema() *Schema {
	s := &Schema{ID: d.ID, Title: plainText(d.Title)}
	for name, p := range d.Properties {
		if p.Name == "" {
			p.Name = name
		}
		s.Properties = append(s.Properties, p)
	}
	sort.Slice(s.Properties, func(i, j int) bool { return s.Properties[i].Name < s.Properties[j].Name })
	return s
}

// PropertySchema declares a column when adding properties to a database.
type PropertySchema map[string]any

// Column schemas used by EnsureProperties.
func TitleColumn() PropertySchema    { return PropertySchema{TypeTitle: struct{}{}} }
func RichTextColumn() PropertySchema { return PropertySchema{TypeRichText: struct{}{}} }
func DateColumn() PropertySchema     { return PropertySchema{TypeDate: struct{}{}} }
func NumberColumn() PropertySchema   { return PropertySchema{TypeNumber: struct{}{}} }

// SelectColumn declares a select column with the given option names.
func SelectColumn(options ...string) PropertySchema {
	opts := make([]SelectValue, 0, len(options))
	for _, o := range options {
		opts = append(opts, SelectValue{Name: o})
	}
	return PropertySchema{TypeSelect: map[string]any{"options": opts}}
}

// TextContent is the writable part of a text run.
type TextContent struct {
	Content string          `json:"content"`
	Link    json.RawMessage `json:"link,omitempty"`
}

// RichText is one run of a title or rich_text value.
type RichText struct {
	Type        string          `json:"type,omitempty"`
	Text        *TextContent    `json:"text,omitempty"`
	Mention     json.RawMessage `json:"mention,omitempty"`
	Equation    json.RawMessage `json:"equation,omitempty"`
	Annotations json.RawMessage `json:"annotations,omitempty"`
	PlainText   string          `json:"plain_text,omitempty"`
	Href        *string         `json:"href,omitempty"`
}

func (r RichText) plain() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

func plainText(runs []RichText) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.plain())
	}
	return b.String()
}

// DateValue is a date property value.
type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// SelectValue is a select option.
type SelectValue struct {
	Name string `json:"name"`
}

// PropertyValue holds one property of a page. Exactly one value field is set.
type PropertyValue struct {
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Title    []RichText   `json:"title,omitempty"`
	RichText []RichText   `json:"rich_text,omitempty"`
	Date     *DateValue   `json:"date,omitempty"`
	Select   *SelectValue `json:"select,omitempty"`
	Number   *float64     `json:"number,omitempty"`
	URL      *string      `json:"url,omitempty"`
}

// PlainText joins the plain text of a title or rich_text value.
func (v PropertyValue) PlainText() string {
	if len(v.Title) > 0 {
		return plainText(v.Title)
	}
	return plainText(v.RichText)
}

// SelectName returns the selected option name, or "" when unset.
func (v PropertyValue) SelectName() string {
	if v.Select == nil {
		return ""
	}
	return v.Select.Name
}

// Day returns the start day of a date value.
func (v PropertyValue) Day() (calendar.Date, bool) {
	if v.Date == nil || v.Date.Start == "" {
		return calendar.Date{}, false
	}
	d, err := calendar.Parse(v.Date.Start)
	if err != nil {
		return calendar.Date{}, false
	}
	return d, true
}

// Int returns a number value truncated to an integer, zero when unset.
func (v PropertyValue) Int() int {
	if v.Number == nil {
		return 0
	}
	return int(*v.Number)
}

// URLString returns the url value, or "" when unset.
func (v PropertyValue) URLString() string {
	if v.URL == nil {
		return ""
	}
	return *v.URL
}

// Properties maps property names to values.
type Properties map[string]PropertyValue

// Page is a database record.
type Page struct {
	Object      string     `json:"object,omitempty"`
	ID          string     `json:"id"`
	CreatedTime string     `json:"created_time,omitempty"`
	Archived    bool       `json:"archived,omitempty"`
	Properties  Properties `json:"properties"`
}

// Get returns the named property, or the zero value.
func (p Page) Get(name string) PropertyValue {
	if name == "" || p.Properties == nil {
		return PropertyValue{}
	}
	return p.Properties[name]
}

// Title builds a title value.
func Title(s string) PropertyValue {
	return PropertyValue{Title: textRuns(s)}
}

// Text builds a rich_text value, split into runs the API accepts.
func Text(s string) PropertyValue {
	return PropertyValue{RichText: textRuns(s)}
}

// Runs builds a rich_text value from existing runs.
func Runs(runs []RichText) PropertyValue {
	return PropertyValue{RichText: runs}
}

// On builds a date value for d.
func On(d calendar.Date) PropertyValue {
	return PropertyValue{Date: &DateValue{Start: d.String()}}
}

// Option builds a select value.
func Option(name string) PropertyValue {
	return PropertyValue{Select: &SelectValue{Name: name}}
}

// Number builds a number value.
func Number(n float64) PropertyValue {
	return PropertyValue{Number: &n}
}

// Link builds a url value.
func Link(u string) PropertyValue {
	return PropertyValue{URL: &u}
}

func textRuns(s string) []RichText {
	if s == "" {
		return []RichText{{Text: &TextContent{Content: ""}}}
	}
	var runs []RichText
	for len(s) > 0 {
		n := len(s)
		if utf8.RuneCountInString(s) > maxTextRun {
			n = 0
			for i := 0; i < maxTextRun; i++ {
				_, size := utf8.DecodeRuneInString(s[n:])
				n += size
			}
		}
		runs = append(runs, RichText{Text: &TextContent{Content: s[:n]}})
		s = s[n:]
	}
	return runs
}
