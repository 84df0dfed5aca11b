package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Report types a template can declare. The report type decides which
// result payload shape a visit test carries and how entry is validated.
const (
	ReportTypeStandard = "standard"
	ReportTypeCulture  = "culture"
)

// Parameter field types. Heading rows group parameters on the report and
// never carry a value.
const (
	FieldTypeNumeric = "numeric"
	FieldTypeText    = "text"
	FieldTypeHeading = "heading"
)

// ParameterField is one row of a standard template's result schema.
type ParameterField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Unit     string `json:"unit,omitempty"`
	RefRange string `json:"ref_range,omitempty"`
}

// Template defines a test's result schema, sample type and category.
// Maps to the test_template table; parameter fields are a JSONB column.
type Template struct {
	ID                   uuid.UUID        `db:"id" json:"id"`
	Code                 string           `db:"code" json:"code"`
	Name                 string           `db:"name" json:"name"`
	ReportType           string           `db:"report_type" json:"report_type"`
	SampleType           string           `db:"sample_type" json:"sample_type"`
	Category             string           `db:"category" json:"category"`
	Price                float64          `db:"price" json:"price"`
	Parameters           []ParameterField `db:"parameters" json:"parameters"`
	DefaultAntibioticIDs []uuid.UUID      `db:"default_antibiotic_ids" json:"default_antibiotic_ids"`
	Active               bool             `db:"active" json:"active"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time        `db:"updated_at" json:"updated_at"`
}

// IsCulture reports whether the template expects a culture result.
func (t *Template) IsCulture() bool {
	return t.ReportType == ReportTypeCulture
}

// RequiredFields returns the names of every parameter that must carry a
// value on result entry, i.e. everything that is not a heading row.
func (t *Template) RequiredFields() []string {
	var fields []string
	for _, p := range t.Parameters {
		if p.Type == FieldTypeHeading {
			continue
		}
		fields = append(fields, p.Name)
	}
	return fields
}

// Antibiotic is a reference entry for culture sensitivity panels.
type Antibiotic struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Class     string    `db:"class" json:"class,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
