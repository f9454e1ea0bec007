package internal

const (
	NotAvailable   = "Not available"
	UnknownFounded = "Unknown"
)

// RawPrimaryRecord is one decoded line of the primary feed. Numbers are kept
// as json.Number so pass-through fields keep their original text.
type RawPrimaryRecord map[string]any

type NormalizedRecord struct {
	CompanyName string
	Country     string
	Industry    string
	Size        int64
	City        *string
	State       *string
	LatestNews  string
	LoadDate    string

	Location       *string
	Website        *string
	LinkedinURL    *string
	PointOfContact *string
	ID             *string
	Specialties    *string
	Founded        *string

	// Extra holds input fields with no named slot above.
	Extra map[string]any

	// LineNo is the primary-feed line the record was read from.
	LineNo int
}

type AuxiliaryEntry struct {
	Key   string
	Value string
}

type EnrichedRecord struct {
	NormalizedRecord
	CEO string
}

type FieldType string

const (
	FieldString  FieldType = "STRING"
	FieldInteger FieldType = "INTEGER"
	FieldDate    FieldType = "DATE"
)

type SchemaField struct {
	Name string
	Type FieldType
}

// TabularSchema is the column layout of the tabular sink, in write order.
var TabularSchema = []SchemaField{
	{Name: "company_name", Type: FieldString},
	{Name: "location", Type: FieldString},
	{Name: "country", Type: FieldString},
	{Name: "industry", Type: FieldString},
	{Name: "website", Type: FieldString},
	{Name: "size", Type: FieldInteger},
	{Name: "ceo", Type: FieldString},
	{Name: "latest_news", Type: FieldString},
	{Name: "linkedin_url", Type: FieldString},
	{Name: "point_of_contact", Type: FieldString},
	{Name: "id", Type: FieldString},
	{Name: "specialties", Type: FieldString},
	{Name: "founded", Type: FieldString},
	{Name: "load_date", Type: FieldDate},
	{Name: "state", Type: FieldString},
	{Name: "city", Type: FieldString},
}

type TabularRow struct {
	CompanyName    *string
	Location       *string
	Country        *string
	Industry       *string
	Website        *string
	Size           *int64
	CEO            *string
	LatestNews     *string
	LinkedinURL    *string
	PointOfContact *string
	ID             *string
	Specialties    *string
	Founded        *string
	LoadDate       *string
	State          *string
	City           *string
}

// Values returns the row in TabularSchema order. Nil pointers become nil.
func (r TabularRow) Values() []any {
	return []any{
		nullable(r.CompanyName), nullable(r.Location), nullable(r.Country), nullable(r.Industry),
		nullable(r.Website), nullableInt(r.Size), nullable(r.CEO), nullable(r.LatestNews),
		nullable(r.LinkedinURL), nullable(r.PointOfContact), nullable(r.ID), nullable(r.Specialties),
		nullable(r.Founded), nullable(r.LoadDate), nullable(r.State), nullable(r.City),
	}
}

// Map returns the row keyed by schema column name, omitting null columns.
func (r TabularRow) Map() map[string]any {
	out := make(map[string]any, len(TabularSchema))
	for i, v := range r.Values() {
		if v == nil {
			continue
		}
		out[TabularSchema[i].Name] = v
	}
	return out
}

func nullable(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

var FlatHeader = []string{"company_name", "ceo", "country", "state", "city", "founded"}

type FlatRow struct {
	CompanyName string
	CEO         string
	Country     string
	State       *string
	City        *string
	Founded     string
}

func (r FlatRow) Fields() []string {
	return []string{r.CompanyName, r.CEO, r.Country, deref(r.State), deref(r.City), r.Founded}
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

type RunRow struct {
	ID        int
	TraceID   string
	CreatedAt string
	Timings   map[string]float64
	Counts    map[string]int
}

type RecordFailure struct {
	Source  string
	LineNo  int
	RawLine string
	Error   string
}
