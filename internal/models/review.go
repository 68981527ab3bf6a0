package models

// ReviewKind is the cadence a review record covers.
type ReviewKind string

const (
	Daily   ReviewKind = "daily"
	Weekly  ReviewKind = "weekly"
	Monthly ReviewKind = "monthly"
)

// ReviewLayout names the review database's columns and type labels.
type ReviewLayout struct {
	Title      string       `yaml:"title"`
	Date       string       `yaml:"date"`
	Completed  string       `yaml:"completed"`
	Incomplete string       `yaml:"incomplete"`
	Difficulty string       `yaml:"difficulty"`
	Solution   string       `yaml:"solution"`
	Summary    string       `yaml:"summary"`
	Type       string       `yaml:"type"`
	Labels     ReviewLabels `yaml:"labels"`
}

// ReviewLabels are the select options stored in the type column.
type ReviewLabels struct {
	Daily   string `yaml:"daily"`
	Weekly  string `yaml:"weekly"`
	Monthly string `yaml:"monthly"`
}

// DefaultReviewLayout returns the column names used when none are configured.
func DefaultReviewLayout() ReviewLayout {
	return ReviewLayout{
		Title:      "Title",
		Date:       "Date",
		Completed:  "Completed",
		Incomplete: "Incomplete",
		Difficulty: "Difficulty",
		Solution:   "Solution",
		Summary:    "Summary",
		Type:       "Type",
		Labels: ReviewLabels{
			Daily:   "Daily",
			Weekly:  "Weekly",
			Monthly: "Monthly",
		},
	}
}

// Label returns the type label for k.
func (l ReviewLayout) Label(k ReviewKind) string {
	switch k {
	case Weekly:
		return l.Labels.Weekly
	case Monthly:
		return l.Labels.Monthly
	default:
		return l.Labels.Daily
	}
}

// IsDailyLabel reports whether a stored type label denotes a daily record.
// Untagged records predate the type column and count as daily.
func (l ReviewLayout) IsDailyLabel(label string) bool {
	return label == "" || label == l.Labels.Daily
}
