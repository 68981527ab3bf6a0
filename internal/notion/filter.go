package notion

import "github.com/starford/dayroll/internal/calendar"

// Filter is a node of the database query filter grammar. A node is either a
// property condition or an And composition.
type Filter struct {
	Property string           `json:"property,omitempty"`
	Date     *DateCondition   `json:"date,omitempty"`
	Select   *SelectCondition `json:"select,omitempty"`
	And      []Filter         `json:"and,omitempty"`
}

// DateCondition compares a date property against ISO dates.
type DateCondition struct {
	Equals     string `json:"equals,omitempty"`
	OnOrAfter  string `json:"on_or_after,omitempty"`
	OnOrBefore string `json:"on_or_before,omitempty"`
}

// SelectCondition compares a select property against an option name.
type SelectCondition struct {
	Equals string `json:"equals"`
}

// DateEquals matches pages whose date property falls on d.
func DateEquals(property string, d calendar.Date) Filter {
	return Filter{Property: property, Date: &DateCondition{Equals: d.String()}}
}

// DateOnOrAfter matches pages dated d or later.
func DateOnOrAfter(property string, d calendar.Date) Filter {
	return Filter{Property: property, Date: &DateCondition{OnOrAfter: d.String()}}
}

// DateOnOrBefore matches pages dated d or earlier.
func DateOnOrBefore(property string, d calendar.Date) Filter {
	return Filter{Property: property, Date: &DateCondition{OnOrBefore: d.String()}}
}

// SelectEquals matches pages whose select property is name.
func SelectEquals(property, name string) Filter {
	return Filter{Property: property, Select: &SelectCondition{Equals: name}}
}

// And matches pages satisfying every filter. A single filter is returned as is.
func And(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return Filter{And: filters}
}
