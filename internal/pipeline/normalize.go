package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"suppliers/internal"
	"suppliers/internal/util"
)

// Fields removed from every record before it leaves the normalizer.
var droppedFields = map[string]struct{}{
	"description":  {},
	"locationUrl":  {},
	"headquarters": {},
}

// Fields with a named slot on NormalizedRecord; everything else lands in Extra.
var namedFields = map[string]struct{}{
	"company_name":     {},
	"country":          {},
	"industry":         {},
	"size":             {},
	"latest_news":      {},
	"location":         {},
	"website":          {},
	"linkedin_url":     {},
	"point_of_contact": {},
	"id":               {},
	"specialties":      {},
	"founded":          {},
	"city":             {},
	"state":            {},
	"load_date":        {},
	"ceo":              {},
}

// DecodePrimaryLine decodes one newline-delimited JSON object.
func DecodePrimaryLine(line []byte) (internal.RawPrimaryRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedRecord)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedRecord)
	}
	return internal.RawPrimaryRecord(raw), nil
}

// NormalizeLine decodes and normalizes one primary-feed line.
func NormalizeLine(line []byte, now time.Time) (internal.NormalizedRecord, error) {
	raw, err := DecodePrimaryLine(line)
	if err != nil {
		return internal.NormalizedRecord{}, err
	}
	return NormalizeRecord(raw, now)
}

// NormalizeRecord cleans one raw record. It keeps no state between calls; only
// LoadDate depends on now.
func NormalizeRecord(raw internal.RawPrimaryRecord, now time.Time) (internal.NormalizedRecord, error) {
	name, _ := util.StringValue(raw["company_name"])
	key := util.NormalizeKey(name)
	if key == "" {
		return internal.NormalizedRecord{}, ErrMissingCompanyName
	}

	country, _ := util.StringValue(raw["country"])
	industry, _ := util.StringValue(raw["industry"])
	size, _ := util.StringValue(raw["size"])
	headquarters, _ := util.StringValue(raw["headquarters"])
	city, state := splitHeadquarters(headquarters)

	rec := internal.NormalizedRecord{
		CompanyName: key,
		Country:     strings.ToUpper(country),
		Industry:    util.TitleWords(industry),
		Size:        util.ParseSizeRange(size),
		City:        city,
		State:       state,
		LatestNews:  latestNews(raw["latest_news"]),
		LoadDate:    now.UTC().Format("2006-01-02"),

		Location:       optional(raw, "location"),
		Website:        optional(raw, "website"),
		LinkedinURL:    optional(raw, "linkedin_url"),
		PointOfContact: optional(raw, "point_of_contact"),
		ID:             optional(raw, "id"),
		Specialties:    optional(raw, "specialties"),
		Founded:        optional(raw, "founded"),
	}

	for k, v := range raw {
		if _, ok := droppedFields[k]; ok {
			continue
		}
		if _, ok := namedFields[k]; ok {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = map[string]any{}
		}
		rec.Extra[k] = v
	}

	return rec, nil
}

// splitHeadquarters splits "City, State" on the first comma. Without a comma
// the whole value is the city.
func splitHeadquarters(hq string) (*string, *string) {
	if strings.TrimSpace(hq) == "" {
		return nil, nil
	}
	before, after, found := strings.Cut(hq, ",")
	city := util.StringPtr(strings.TrimSpace(before))
	if !found {
		return city, nil
	}
	return city, util.StringPtr(strings.TrimSpace(after))
}

func latestNews(v any) string {
	news, ok := util.StringValue(v)
	if !ok || news == "" {
		return internal.NotAvailable
	}
	return news
}

func optional(raw internal.RawPrimaryRecord, field string) *string {
	v, ok := util.StringValue(raw[field])
	if !ok {
		return nil
	}
	return &v
}
