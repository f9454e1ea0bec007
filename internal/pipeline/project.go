package pipeline

import (
	"suppliers/internal"
	"suppliers/internal/util"
)

// ProjectTabular maps an enriched record onto TabularSchema. Columns the
// record does not carry stay nil; Extra fields are not part of the schema.
func ProjectTabular(rec internal.EnrichedRecord) internal.TabularRow {
	return internal.TabularRow{
		CompanyName:    util.StringPtr(rec.CompanyName),
		Location:       rec.Location,
		Country:        util.StringPtr(rec.Country),
		Industry:       util.StringPtr(rec.Industry),
		Website:        rec.Website,
		Size:           util.Int64Ptr(rec.Size),
		CEO:            util.StringPtr(rec.CEO),
		LatestNews:     util.StringPtr(rec.LatestNews),
		LinkedinURL:    rec.LinkedinURL,
		PointOfContact: rec.PointOfContact,
		ID:             rec.ID,
		Specialties:    rec.Specialties,
		Founded:        rec.Founded,
		LoadDate:       util.StringPtr(rec.LoadDate),
		State:          rec.State,
		City:           rec.City,
	}
}

// ProjectFlat picks the six flat-sink columns.
func ProjectFlat(rec internal.EnrichedRecord) internal.FlatRow {
	return internal.FlatRow{
		CompanyName: rec.CompanyName,
		CEO:         rec.CEO,
		Country:     rec.Country,
		State:       rec.State,
		City:        rec.City,
		Founded:     foundedOrDefault(rec.Founded),
	}
}

// FlatFromTabular re-projects a stored tabular row for the flat exports.
func FlatFromTabular(row internal.TabularRow) internal.FlatRow {
	return internal.FlatRow{
		CompanyName: util.Deref(row.CompanyName),
		CEO:         ceoOrDefault(row.CEO),
		Country:     util.Deref(row.Country),
		State:       row.State,
		City:        row.City,
		Founded:     foundedOrDefault(row.Founded),
	}
}

func ceoOrDefault(ceo *string) string {
	if ceo == nil {
		return internal.NotAvailable
	}
	return *ceo
}

func foundedOrDefault(founded *string) string {
	if founded == nil {
		return internal.UnknownFounded
	}
	return *founded
}
