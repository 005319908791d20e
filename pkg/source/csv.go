// pkg/source/csv.go
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Row is one data line of a delimited file in its least-processed
// form: raw string fields plus the physical line the record started on.
type Row struct {
	Line   int64
	Fields []string
}

// FieldCountError reports a data line whose field count differs from
// the header's. The file framing cannot be trusted past this point.
type FieldCountError struct {
	Line     int64
	Expected int
	Actual   int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("line %d has %d fields, header has %d", e.Line, e.Actual, e.Expected)
}

// CSV reads a delimited file in bounded-size chunks. The header row is
// consumed at open time, and every subsequent record must carry the
// same field count.
type CSV struct {
	path   string
	file   *os.File
	reader *csv.Reader
	header []string
	logger *zap.Logger
}

// OpenCSV opens path and reads its header row. Callers own the handle
// and must Close it on every exit path.
func OpenCSV(path string, logger *zap.Logger) (*CSV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("source file %s has no header row", path)
		}
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	logger.Debug("Opened source file",
		zap.String("path", path),
		zap.Strings("header", header))

	return &CSV{
		path:   path,
		file:   file,
		reader: reader,
		header: header,
		logger: logger,
	}, nil
}

// Path returns the path the source was opened from.
func (s *CSV) Path() string { return s.path }

// Header returns the column names from the file's first line.
func (s *CSV) Header() []string { return s.header }

// ReadChunk returns up to size rows in file order. It returns io.EOF
// once the file is exhausted; a short final chunk is returned with a
// nil error and the EOF surfaces on the next call. A record with the
// wrong field count stops the chunk and returns a FieldCountError.
func (s *CSV) ReadChunk(size int) ([]Row, error) {
	rows := make([]Row, 0, size)
	for len(rows) < size {
		fields, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			if len(rows) == 0 {
				return nil, io.EOF
			}
			return rows, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				return rows, &FieldCountError{
					Line:     int64(parseErr.Line),
					Expected: len(s.header),
					Actual:   len(fields),
				}
			}
			return rows, fmt.Errorf("read %s: %w", s.path, err)
		}

		line, _ := s.reader.FieldPos(0)
		rows = append(rows, Row{Line: int64(line), Fields: fields})
	}
	return rows, nil
}

// Close releases the underlying file handle.
func (s *CSV) Close() error {
	return s.file.Close()
}
