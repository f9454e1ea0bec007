package pipeline

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"suppliers/internal"
)

// FormatFlatLine renders one flat row. With escape set, fields holding the
// delimiter, quotes or newlines are quoted; otherwise fields are joined as is.
func FormatFlatLine(row internal.FlatRow, escape bool) (string, error) {
	if !escape {
		return strings.Join(row.Fields(), ","), nil
	}
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(row.Fields()); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// WriteFlatCSV writes the header line followed by one line per row.
func WriteFlatCSV(dst io.Writer, rows []internal.FlatRow, escape bool) error {
	bw := bufio.NewWriter(dst)
	if _, err := bw.WriteString(strings.Join(internal.FlatHeader, ",") + "\n"); err != nil {
		return err
	}
	for _, row := range rows {
		line, err := FormatFlatLine(row, escape)
		if err != nil {
			return err
		}
		if _, err := bw.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ExportRowsToCSV(rows []internal.FlatRow, outputPath string, escape bool) error {
	return writeAtomic(outputPath, func(w io.Writer) error {
		return WriteFlatCSV(w, rows, escape)
	})
}

// writeAtomic writes next to outputPath and renames into place, so a failed
// write never leaves a partial file behind.
func writeAtomic(outputPath string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(outputPath), filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), outputPath)
}

func ExportRowsToXLSX(rows []internal.FlatRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range internal.FlatHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		for col, value := range row.Fields() {
			cell, _ := excelize.CoordinatesToCellName(col+1, r)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	return writeAtomic(outputPath, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

// ShardPath resolves a directory-style flat output ("out/") to a single
// shard file name inside it.
func ShardPath(output string) string {
	if strings.HasSuffix(output, "/") {
		return output + "suppliers_data_output-00000-of-00001.csv"
	}
	return output
}
