package attemptlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const timeLayout = time.RFC3339

// Header returns the stable column contract of the CSV attempt log.
func Header() []string {
	return []string{
		"timestamp",
		"batch_id",
		"ordinal",
		"recipient",
		"company",
		"subject",
		"outcome",
		"message",
	}
}

// CSVLog appends attempt records to a CSV file. The header is written once
// when the file is new or empty; each append writes and flushes a whole
// record under a mutex, so concurrent batches never interleave partial
// records.
type CSVLog struct {
	mu   sync.Mutex
	path string
}

func NewCSVLog(path string) *CSVLog {
	return &CSVLog{path: path}
}

func (l *CSVLog) Append(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open attempt log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat attempt log: %w", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(Header()); err != nil {
			return fmt.Errorf("write attempt log header: %w", err)
		}
	}
	if err := cw.Write(recordFields(rec)); err != nil {
		return fmt.Errorf("write attempt record: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush attempt record: %w", err)
	}
	return f.Close()
}

func (l *CSVLog) Query(_ context.Context, filter Filter) ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open attempt log: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	recs, err := readRecords(f)
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range recs {
		if filter.matches(rec) {
			out = append(out, rec)
		}
	}
	return lastN(out, filter.Limit), nil
}

func recordFields(rec Record) []string {
	return []string{
		rec.Timestamp.UTC().Format(timeLayout),
		rec.BatchID,
		strconv.Itoa(rec.Ordinal),
		rec.Recipient,
		rec.Company,
		rec.Subject,
		rec.Outcome,
		rec.Message,
	}
}

// WriteCSV writes records with the stable Header() ordering, for batch
// outcome exports.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, rec := range recs {
		if err := cw.Write(recordFields(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read attempt log header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, name := range Header() {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("attempt log missing required column %q", name)
		}
	}

	var recs []Record
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read attempt record: %w", err)
		}

		get := func(col string) string {
			i := index[col]
			if i < 0 || i >= len(rec) {
				return ""
			}
			return rec[i]
		}

		ts, err := time.Parse(timeLayout, get("timestamp"))
		if err != nil {
			return nil, fmt.Errorf("parse attempt timestamp %q: %w", get("timestamp"), err)
		}
		ordinal, err := strconv.Atoi(get("ordinal"))
		if err != nil {
			return nil, fmt.Errorf("parse attempt ordinal %q: %w", get("ordinal"), err)
		}

		recs = append(recs, Record{
			Timestamp: ts,
			BatchID:   get("batch_id"),
			Ordinal:   ordinal,
			Recipient: get("recipient"),
			Company:   get("company"),
			Subject:   get("subject"),
			Outcome:   get("outcome"),
			Message:   get("message"),
		})
	}
}
