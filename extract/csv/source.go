package csv

import (
	stdcsv "encoding/csv"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Source reads CSV records from a RawSource, one file after another. It
// implements pudl.Source: the schema is the header of the current file (all
// string fields - type coercion belongs to the transform stage), and the
// first record of each file is returned with pudl.ErrSchemaChange.
type Source struct {
	rs RawSource

	cur      NamedReadCloser
	reader   *stdcsv.Reader
	header   []string
	fields   []pudl.Field
	fileName string
	line     int
}

func NewSource(rs RawSource) *Source {
	return &Source{rs: rs}
}

// record satisfies pudl.Record. Commit is a no-op: raw files are immutable,
// there is no consumption offset to record.
type record struct {
	data []interface{}
}

func (r record) Commit() error       { return nil }
func (r record) Data() []interface{} { return r.data }

// FileName returns the name of the file the most recent record came from.
func (s *Source) FileName() string { return s.fileName }

func (s *Source) Schema() []pudl.Field { return s.fields }

func (s *Source) Record() (pudl.Record, error) {
	schemaChanged := false
	for {
		if s.cur == nil {
			if err := s.nextFile(); err != nil {
				return nil, err
			}
			schemaChanged = true
		}
		row, err := s.reader.Read()
		if err == io.EOF {
			s.cur.Close()
			s.cur = nil
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s line %d", s.fileName, s.line)
		}
		s.line++
		if isBlank(row) {
			continue
		}
		data := make([]interface{}, len(row))
		for i, v := range row {
			if strings.TrimSpace(v) == "" {
				continue
			}
			data[i] = v
		}
		if schemaChanged {
			return record{data: data}, pudl.ErrSchemaChange
		}
		return record{data: data}, nil
	}
}

func (s *Source) nextFile() error {
	cur, err := s.rs.NextReader()
	if err != nil {
		return err
	}
	s.cur = cur
	s.fileName = cur.Name()
	s.line = 0
	s.reader = stdcsv.NewReader(cur)
	s.reader.FieldsPerRecord = -1 // ragged rows happen; extractor decides
	header, err := s.reader.Read()
	if err != nil {
		return errors.Wrapf(err, "reading header of %s", s.fileName)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if err := validateHeader(header); err != nil {
		s.cur.Close()
		s.cur = nil
		return errors.Wrapf(err, "validating header of %s", s.fileName)
	}
	s.header = header
	s.fields = make([]pudl.Field, len(header))
	for i, h := range header {
		s.fields[i] = pudl.StringField{NameVal: h}
	}
	return nil
}

func validateHeader(header []string) error {
	fields := make(map[string]int)
	for i, h := range header {
		if h == "" {
			return errors.Errorf("header contains empty string at %d: %v", i, header)
		}
		if pos, exists := fields[h]; exists {
			return errors.Errorf("%s appeared at both %d and %d in header", h, pos, i)
		}
		fields[h] = i
	}
	return nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
