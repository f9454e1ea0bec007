package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"suppliers/internal"
	"suppliers/internal/util"
)

// ParseAuxiliaryLine parses one "company_name,ceo" line. ok is false for a
// blank line, which produces no entry.
func ParseAuxiliaryLine(line string) (internal.AuxiliaryEntry, bool, error) {
	if strings.TrimSpace(line) == "" {
		return internal.AuxiliaryEntry{}, false, nil
	}
	r := newAuxReader(strings.NewReader(line))
	fields, err := r.Read()
	if errors.Is(err, io.EOF) {
		return internal.AuxiliaryEntry{}, false, nil
	}
	if err != nil {
		return internal.AuxiliaryEntry{}, false, fmt.Errorf("%w: %v", ErrMalformedAuxLine, err)
	}
	entry, ok := entryFromFields(fields)
	return entry, ok, nil
}

// ReadAuxiliaryCSV streams entries from a delimited feed in read order.
// Quoted fields may span lines; a leading company_name,ceo header is skipped.
func ReadAuxiliaryCSV(src io.Reader, fn func(internal.AuxiliaryEntry) error) error {
	r := newAuxReader(src)
	first := true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return &RecordError{Source: "auxiliary", LineNo: line, Err: fmt.Errorf("%w: %v", ErrMalformedAuxLine, err)}
		}
		if first {
			first = false
			if isAuxHeader(fields) {
				continue
			}
		}
		entry, ok := entryFromFields(fields)
		if !ok {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

// ReadAuxiliaryXLSX reads the first sheet of a workbook, one entry per row
// taken from its first two columns.
func ReadAuxiliaryXLSX(src io.Reader, fn func(internal.AuxiliaryEntry) error) error {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return err
	}
	for i, row := range rows {
		if i == 0 && isAuxHeader(row) {
			continue
		}
		entry, ok := entryFromFields(row)
		if !ok {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}

func newAuxReader(src io.Reader) *csv.Reader {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

func entryFromFields(fields []string) (internal.AuxiliaryEntry, bool) {
	if len(fields) == 0 {
		return internal.AuxiliaryEntry{}, false
	}
	key := util.NormalizeKey(fields[0])
	if key == "" {
		return internal.AuxiliaryEntry{}, false
	}
	value := internal.NotAvailable
	if len(fields) > 1 {
		value = strings.TrimSpace(fields[1])
	}
	return internal.AuxiliaryEntry{Key: key, Value: value}, true
}

func isAuxHeader(fields []string) bool {
	if len(fields) == 0 || !strings.EqualFold(strings.TrimSpace(fields[0]), "company_name") {
		return false
	}
	return len(fields) < 2 || strings.EqualFold(strings.TrimSpace(fields[1]), "ceo")
}
