package symbols

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Download fetches a scrip master file. The caller closes the body.
func Download(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build scrip master request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download scrip master: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download scrip master: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// CSVRow is one data row addressed by header name
type CSVRow struct {
	header map[string]int
	fields []string
}

// Get returns the trimmed value of column, "" if the column is missing
func (r CSVRow) Get(column string) string {
	i, ok := r.header[strings.ToUpper(column)]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// ReadCSV streams a header-first CSV, converting each row with fn. Rows for
// which fn reports false are skipped. required lists columns that must be
// present in the header.
func ReadCSV(r io.Reader, required []string, fn func(CSVRow) (Record, bool)) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	header := make(map[string]int, len(head))
	for i, h := range head {
		header[strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := header[strings.ToUpper(col)]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", col)
		}
	}

	var out []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if rec, ok := fn(CSVRow{header: header, fields: fields}); ok {
			out = append(out, rec)
		}
	}
	return out, nil
}
