// Package importer parses bank-statement CSV files into transaction
// rows and deduplicates them against each other and the rows a user
// already has.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Row is one parsed, validated CSV line.
type Row struct {
	Date        string  `json:"date"` // normalized YYYY-MM-DD
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Category    string  `json:"category,omitempty"`
}

// RowError is a validation failure tied to a 1-based line number.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// ParseResult holds the valid rows and per-line failures of one file.
type ParseResult struct {
	Rows   []Row
	Errors []RowError
}

// Summary reports what a combine pass did.
type Summary struct {
	Imported          int `json:"imported"`
	DuplicatesRemoved int `json:"duplicatesRemoved"`
	Skipped           int `json:"skipped"`
}

// dateFormats accepted in the date column, tried in order.
var dateFormats = []string{"2006-01-02", "01/02/2006"}

// Parse reads a flat CSV with columns date, amount, description and an
// optional fourth category column. A header line is detected by its
// unparseable date and skipped. Invalid lines are collected as errors,
// never aborting the rest of the file.
func Parse(r io.Reader) (*ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ParseResult{}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Message: "malformed CSV line"})
			continue
		}

		if len(record) < 3 {
			result.Errors = append(result.Errors, RowError{Line: line, Message: "expected at least 3 columns (date, amount, description)"})
			continue
		}

		date, dateErr := parseDate(record[0])
		if dateErr != nil {
			if line == 1 {
				// Header line
				continue
			}
			result.Errors = append(result.Errors, RowError{Line: line, Message: dateErr.Error()})
			continue
		}

		amount, amountErr := parseAmount(record[1])
		if amountErr != nil {
			result.Errors = append(result.Errors, RowError{Line: line, Message: amountErr.Error()})
			continue
		}

		description := strings.TrimSpace(record[2])
		if description == "" {
			result.Errors = append(result.Errors, RowError{Line: line, Message: "description is empty"})
			continue
		}

		row := Row{Date: date, Amount: amount, Description: description}
		if len(record) > 3 {
			row.Category = strings.TrimSpace(record[3])
		}
		result.Rows = append(result.Rows, row)
	}

	return result, nil
}

// Key is the deduplication identity of a row: case-insensitive,
// whitespace-trimmed (date, amount, description).
func Key(date string, amount float64, description string) string {
	return fmt.Sprintf("%s|%.2f|%s",
		strings.ToLower(strings.TrimSpace(date)),
		amount,
		strings.ToLower(strings.TrimSpace(description)))
}

// Combine filters incoming rows against existing keys and against
// earlier incoming rows, returning only rows that are new. Skipped is
// supplied by the caller from parse errors so the summary covers the
// whole file.
func Combine(existingKeys map[string]bool, incoming []Row, skipped int) ([]Row, Summary) {
	seen := make(map[string]bool, len(existingKeys))
	for k := range existingKeys {
		seen[k] = true
	}

	var unique []Row
	summary := Summary{Skipped: skipped}
	for _, row := range incoming {
		k := Key(row.Date, row.Amount, row.Description)
		if seen[k] {
			summary.DuplicatesRemoved++
			continue
		}
		seen[k] = true
		unique = append(unique, row)
	}
	summary.Imported = len(unique)

	return unique, summary
}

func parseDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

func parseAmount(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}
