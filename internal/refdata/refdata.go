package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"ledgerproof/internal"
)

// AccountCode is one entry of the externally supplied fund/object code
// space.
type AccountCode struct {
	Code        string
	Fund        string
	Object      string
	Description string
}

// AccountTable is the read-only account-code lookup. Its absence is the one
// structural failure that is fatal to a run.
type AccountTable struct {
	byCode map[string]AccountCode
}

// LoadAccountTable reads a CSV of code,description rows. Codes are
// fund-object ("01-5803").
func LoadAccountTable(path string) (*AccountTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("account-code table: %w", err)
	}
	defer f.Close()
	return ReadAccountTable(f)
}

func ReadAccountTable(r io.Reader) (*AccountTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	table := &AccountTable{byCode: map[string]AccountCode{}}
	first := true
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("account-code table: %w", err)
		}
		if len(row) == 0 {
			continue
		}

		code := strings.TrimSpace(row[0])
		if first {
			first = false
			if strings.EqualFold(code, "code") {
				continue
			}
		}
		if code == "" {
			continue
		}

		entry := AccountCode{Code: code}
		if parts := strings.SplitN(code, "-", 2); len(parts) == 2 {
			entry.Fund = parts[0]
			entry.Object = parts[1]
		}
		if len(row) > 1 {
			entry.Description = strings.TrimSpace(row[1])
		}
		table.byCode[code] = entry
	}

	if len(table.byCode) == 0 {
		return nil, fmt.Errorf("account-code table is empty")
	}
	return table, nil
}

func (t *AccountTable) Known(code string) bool {
	_, ok := t.byCode[code]
	return ok
}

func (t *AccountTable) Get(code string) (AccountCode, bool) {
	entry, ok := t.byCode[code]
	return entry, ok
}

func (t *AccountTable) Len() int { return len(t.byCode) }

// FiscalWindow returns the July 1 – June 30 window for a fiscal year
// labeled by its ending calendar year.
func FiscalWindow(fiscalYear int) (time.Time, time.Time) {
	start := time.Date(fiscalYear-1, time.July, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(fiscalYear, time.June, 30, 0, 0, 0, 0, time.UTC)
	return start, end
}

// FiscalYearFor labels a date with the fiscal year containing it.
func FiscalYearFor(date time.Time) int {
	if date.Month() >= time.July {
		return date.Year() + 1
	}
	return date.Year()
}

// PeriodKey is the fiscal-period bucket key for a date: "2026" for the year
// grouping, "2026-07" style handled by MonthKey.
func PeriodKey(fiscalYear int) string {
	return fmt.Sprintf("%d", fiscalYear)
}

// MonthKey buckets a date by fiscal year and calendar month.
func MonthKey(date internal.Day) string {
	return fmt.Sprintf("%d-%02d", FiscalYearFor(date.Time), date.Month())
}
