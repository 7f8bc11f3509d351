// Package report выгружает журнал операций в CSV, JSON и XLSX.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/mmeshcher/staysync/internal/model"
)

// Format — формат выгрузки.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Transactions"

// ErrUnknownFormat возвращается для неподдерживаемого формата.
var ErrUnknownFormat = errors.New("unknown export format")

var header = []string{"ID", "Date", "Type", "Category", "Description", "Amount"}

// ParseFormat разбирает формат из строки запроса. Пустая строка означает CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType возвращает MIME-тип формата.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// FileName возвращает имя файла выгрузки на дату.
func (f Format) FileName(date string) string {
	return fmt.Sprintf("hotel_financials_%s.%s", date, f)
}

// Write выгружает операции в w в указанном формате.
func Write(w io.Writer, f Format, txs []model.Transaction) error {
	switch f {
	case FormatCSV:
		return writeCSV(w, txs)
	case FormatJSON:
		return writeJSON(w, txs)
	case FormatXLSX:
		return writeXLSX(w, txs)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

func row(t model.Transaction) []string {
	return []string{
		t.ID,
		t.Date,
		string(t.Type),
		string(t.Category),
		t.Description,
		strconv.FormatFloat(t.Amount, 'f', -1, 64),
	}
}

func writeCSV(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range txs {
		if err := cw.Write(row(t)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, txs []model.Transaction) error {
	if txs == nil {
		txs = []model.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(txs); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, txs []model.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("set header: %w", err)
		}
	}

	for r, t := range txs {
		values := []any{t.ID, t.Date, string(t.Type), string(t.Category), t.Description, t.Amount}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
