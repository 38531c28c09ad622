package textextract

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// extractCSV renders records as tab-separated lines, the same shape
// the table-row heuristic already understands.
func (e *Extractor) extractCSV(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, strings.Join(rec, "\t"))
	}

	return &Result{
		Text:       strings.Join(lines, "\n"),
		Pages:      1,
		Method:     "csv",
		SourceType: "csv",
	}, nil
}
