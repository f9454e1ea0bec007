package pipeline

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"suppliers/internal"
)

func TestParseAuxiliaryLine(t *testing.T) {
	cases := []struct {
		name  string
		line  string
		want  internal.AuxiliaryEntry
		empty bool
	}{
		{name: "plain", line: " acme , Jane Doe ", want: internal.AuxiliaryEntry{Key: "ACME", Value: "Jane Doe"}},
		{name: "quoted delimiter", line: `"Acme, Inc.","Doe, Jane"`, want: internal.AuxiliaryEntry{Key: "ACME, INC.", Value: "Doe, Jane"}},
		{name: "escaped quote", line: `widgetco,"John ""JR"" Roe"`, want: internal.AuxiliaryEntry{Key: "WIDGETCO", Value: `John "JR" Roe`}},
		{name: "single field", line: "ghostco", want: internal.AuxiliaryEntry{Key: "GHOSTCO", Value: "Not available"}},
		{name: "empty ceo", line: "acme,", want: internal.AuxiliaryEntry{Key: "ACME", Value: ""}},
		{name: "blank", line: "   ", empty: true},
		{name: "empty", line: "", empty: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entry, ok, err := ParseAuxiliaryLine(tc.line)
			require.NoError(t, err)
			if tc.empty {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, entry)
		})
	}
}

func TestReadAuxiliaryCSV(t *testing.T) {
	feed := "company_name,ceo\n" +
		"acme,Jane Doe\n" +
		"\n" +
		"\"Globex, LLC\",\"Hank\nScorpio\"\n" +
		"ACME,John Roe\n"

	var got []internal.AuxiliaryEntry
	err := ReadAuxiliaryCSV(strings.NewReader(feed), func(e internal.AuxiliaryEntry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []internal.AuxiliaryEntry{
		{Key: "ACME", Value: "Jane Doe"},
		{Key: "GLOBEX, LLC", Value: "Hank\nScorpio"},
		{Key: "ACME", Value: "John Roe"},
	}, got)
}

func TestReadAuxiliaryCSVStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := ReadAuxiliaryCSV(strings.NewReader("a,1\nb,2\n"), func(internal.AuxiliaryEntry) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestReadAuxiliaryXLSX(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Company_Name", "CEO"},
		{" acme ", "Jane Doe"},
		{"", ""},
		{"widgetco"},
	})

	var got []internal.AuxiliaryEntry
	err := ReadAuxiliaryXLSX(bytes.NewReader(blob), func(e internal.AuxiliaryEntry) error {
		got = append(got, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []internal.AuxiliaryEntry{
		{Key: "ACME", Value: "Jane Doe"},
		{Key: "WIDGETCO", Value: "Not available"},
	}, got)
}
