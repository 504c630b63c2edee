package recordstore

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sarchlab/doccode/codes"
)

// Header is the column layout of the CSV file. Reading and writing both use
// it, and a file with any other header is rejected.
var Header = []string{"Division_Code", "Area_Code", "Doc_Code", "ID", "Code"}

// CSVStore keeps the records in a CSV file. Each save rewrites the whole file
// atomically.
type CSVStore struct {
	path string
	perm os.FileMode
}

// NewCSVStore creates a store backed by the CSV file at path. The file does
// not need to exist.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{
		path: path,
		perm: 0o644,
	}
}

// Location returns the file path.
func (s *CSVStore) Location() string {
	return s.path
}

// Load reads all records. A missing file yields no records.
func (s *CSVStore) Load() ([]codes.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, &codes.LoadError{Location: s.path, Err: err}
	}
	defer f.Close()

	return ReadCSV(f, s.path)
}

// Save writes the full record list to the file.
func (s *CSVStore) Save(records []codes.Record) error {
	return writeFileAtomic(s.path, s.perm, func(w *bufio.Writer) error {
		return WriteCSV(w, records)
	})
}

// Close is a no-op. The file is only open while loading or saving.
func (s *CSVStore) Close() error {
	return nil
}

// ReadCSV parses records from r. The location is only used in errors.
func ReadCSV(r io.Reader, location string) ([]codes.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &codes.LoadError{
			Location: location,
			Line:     1,
			Err:      fmt.Errorf("%w: missing header", codes.ErrMalformed),
		}
	}

	if err != nil {
		return nil, csvLoadError(location, 1, err)
	}

	if err := checkHeader(header); err != nil {
		return nil, &codes.LoadError{Location: location, Line: 1, Err: err}
	}

	var records []codes.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, csvLoadError(location, 0, err)
		}

		line, _ := reader.FieldPos(0)

		record, err := parseRow(row)
		if err != nil {
			return nil, &codes.LoadError{Location: location, Line: line, Err: err}
		}

		records = append(records, record)
	}

	return records, nil
}

// WriteCSV writes the header and one row per record to w.
func WriteCSV(w io.Writer, records []codes.Record) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(Header); err != nil {
		return err
	}

	for _, r := range records {
		row := []string{r.Division, r.Area, r.Doc, r.ID, r.Code}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

func checkHeader(header []string) error {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	for i, name := range Header {
		if i >= len(header) || header[i] != name {
			return fmt.Errorf("%w: header must be %s, got %s",
				codes.ErrMalformed,
				strings.Join(Header, ","),
				strings.Join(header, ","))
		}
	}

	return nil
}

func parseRow(row []string) (codes.Record, error) {
	seq, err := codes.ParseSequence(row[3])
	if err != nil {
		return codes.Record{}, err
	}

	return codes.Record{
		Key: codes.Key{
			Division: row[0],
			Area:     row[1],
			Doc:      row[2],
		},
		ID:   row[3],
		Seq:  seq,
		Code: row[4],
	}, nil
}

func csvLoadError(location string, line int, err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &codes.LoadError{
			Location: location,
			Line:     parseErr.Line,
			Err:      fmt.Errorf("%w: %v", codes.ErrMalformed, parseErr.Err),
		}
	}

	return &codes.LoadError{Location: location, Line: line, Err: err}
}
