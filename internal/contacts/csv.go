package contacts

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ReadRows reads a contact CSV and returns one RawRow per data line. The
// header line defines the available columns. Rows shorter than the header
// simply omit the trailing columns; extra cells beyond the header are
// ignored. When the same header appears twice, the first occurrence wins.
func ReadRows(r io.Reader) ([]RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header line")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		// Excel exports often carry a UTF-8 BOM on the first header cell.
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var rows []RawRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make(RawRow, len(header))
		for i, name := range header {
			if i >= len(rec) {
				break
			}
			if _, ok := row[name]; ok {
				continue
			}
			row[name] = rec[i]
		}
		rows = append(rows, row)
	}
}
