package model

// Institution identifies one unit of work in a batch.
type Institution struct {
	Name string `json:"name"`
}

// PageSection is the visible text block located on an institution's page.
type PageSection struct {
	Text string `json:"text"`
}

// ChunkRole marks a prompt chunk's position in the message sequence.
type ChunkRole string

const (
	ChunkPartial ChunkRole = "partial"
	ChunkFinal   ChunkRole = "final"
)

// PromptChunk is one bounded-width segment of a page section.
type PromptChunk struct {
	Role ChunkRole `json:"role"`
	Text string    `json:"text"`
}

// Record is a single structured fact extracted for an institution: a major
// name, or a cost line item.
type Record struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Year  string `json:"year"`
}

// ResultRow is the unit written to the output file. The program task writes
// Label to its "major" column.
type ResultRow struct {
	University string `json:"university"`
	Label      string `json:"label"`
	Value      string `json:"value"`
	Year       string `json:"year"`
	Error      string `json:"error"`
}

// Failed reports whether the row carries an error.
func (r ResultRow) Failed() bool {
	return r.Error != ""
}

// Field returns the value for an output column name.
func (r ResultRow) Field(column string) string {
	switch column {
	case "university":
		return r.University
	case "label", "major":
		return r.Label
	case "value":
		return r.Value
	case "year":
		return r.Year
	case "error":
		return r.Error
	default:
		return ""
	}
}
