package pipeline

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))

func TestNormalizeLine(t *testing.T) {
	line := `{"company_name":"  acme corp ","country":"us","industry":"information  TECHNOLOGY","size":"50-200",` +
		`"headquarters":"Austin, TX","latest_news":"","description":"drop me","locationUrl":"http://x",` +
		`"website":"acme.example","founded":1990,"rating":4.5}`

	rec, err := NormalizeLine([]byte(line), fixedNow)
	require.NoError(t, err)

	assert.Equal(t, "ACME CORP", rec.CompanyName)
	assert.Equal(t, "US", rec.Country)
	assert.Equal(t, "Information Technology", rec.Industry)
	assert.Equal(t, int64(200), rec.Size)
	require.NotNil(t, rec.City)
	require.NotNil(t, rec.State)
	assert.Equal(t, "Austin", *rec.City)
	assert.Equal(t, "TX", *rec.State)
	assert.Equal(t, "Not available", rec.LatestNews)
	assert.Equal(t, "2026-10-20", rec.LoadDate)
	require.NotNil(t, rec.Founded)
	assert.Equal(t, "1990", *rec.Founded)
	assert.Equal(t, "acme.example", *rec.Website)
	assert.Nil(t, rec.Location)

	assert.Equal(t, map[string]any{"rating": json.Number("4.5")}, rec.Extra)
}

func TestNormalizeSize(t *testing.T) {
	cases := map[string]int64{
		`{"company_name":"a","size":"50-200"}`:  200,
		`{"company_name":"a","size":"75"}`:      75,
		`{"company_name":"a","size":""}`:        0,
		`{"company_name":"a"}`:                  0,
		`{"company_name":"a","size":"abc-200"}`: 0,
		`{"company_name":"a","size":5000}`:      5000,
	}
	for line, want := range cases {
		rec, err := NormalizeLine([]byte(line), fixedNow)
		require.NoError(t, err, line)
		assert.Equal(t, want, rec.Size, line)
	}
}

func TestNormalizeHeadquarters(t *testing.T) {
	rec, err := NormalizeLine([]byte(`{"company_name":"a","headquarters":"Remote"}`), fixedNow)
	require.NoError(t, err)
	require.NotNil(t, rec.City)
	assert.Equal(t, "Remote", *rec.City)
	assert.Nil(t, rec.State)

	rec, err = NormalizeLine([]byte(`{"company_name":"a"}`), fixedNow)
	require.NoError(t, err)
	assert.Nil(t, rec.City)
	assert.Nil(t, rec.State)

	rec, err = NormalizeLine([]byte(`{"company_name":"a","headquarters":" San Jose ,  California, USA"}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "San Jose", *rec.City)
	assert.Equal(t, "California, USA", *rec.State)
}

func TestNormalizeLatestNews(t *testing.T) {
	rec, err := NormalizeLine([]byte(`{"company_name":"a","latest_news":"Raised series B"}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Raised series B", rec.LatestNews)

	rec, err = NormalizeLine([]byte(`{"company_name":"a","latest_news":null}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "Not available", rec.LatestNews)
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	cases := []struct {
		line string
		want error
	}{
		{line: `{"company_name":`, want: ErrMalformedRecord},
		{line: `null`, want: ErrMalformedRecord},
		{line: `["a"]`, want: ErrMalformedRecord},
		{line: `{"company_name":"a"} {"company_name":"b"}`, want: ErrMalformedRecord},
		{line: `{"country":"us"}`, want: ErrMissingCompanyName},
		{line: `{"company_name":"   "}`, want: ErrMissingCompanyName},
	}
	for _, tc := range cases {
		_, err := NormalizeLine([]byte(tc.line), fixedNow)
		require.Error(t, err, tc.line)
		assert.True(t, errors.Is(err, tc.want), "%s: %v", tc.line, err)
	}
}

func TestNormalizeIsRepeatable(t *testing.T) {
	line := []byte(`{"company_name":"Widgetco","size":"1-10","headquarters":"Boston, MA","extra":{"k":"v"}}`)
	first, err := NormalizeLine(line, fixedNow)
	require.NoError(t, err)
	second, err := NormalizeLine(line, fixedNow.Add(48*time.Hour))
	require.NoError(t, err)

	assert.NotEqual(t, first.LoadDate, second.LoadDate)
	second.LoadDate = first.LoadDate
	assert.Equal(t, first, second)
}
