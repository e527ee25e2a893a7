// Package csv extracts raw tables from CSV resources, including CSVs packed
// inside zip archives the way EPA CEMS and FERC 714 are distributed.
package csv

import (
	"archive/zip"
	"bytes"
	"io"
	"path"

	"github.com/pkg/errors"
)

// NamedReadCloser is an io.ReadCloser that knows the name of the file it
// reads from.
type NamedReadCloser interface {
	io.ReadCloser
	Name() string
}

// RawSource hands out the underlying files of a resource one at a time.
// NextReader returns io.EOF when there are no more files.
type RawSource interface {
	NextReader() (NamedReadCloser, error)
}

// MultiSource is a RawSource draining each of its sources in turn. EPA CEMS
// arrives as many zips per run, one per year and state, and the extractor
// wants a single stream of files.
type MultiSource struct {
	sources []RawSource
}

func NewMultiSource(sources ...RawSource) *MultiSource {
	return &MultiSource{sources: sources}
}

func (s *MultiSource) Add(src RawSource) *MultiSource {
	s.sources = append(s.sources, src)
	return s
}

func (s *MultiSource) NextReader() (NamedReadCloser, error) {
	for len(s.sources) > 0 {
		r, err := s.sources[0].NextReader()
		if err == io.EOF {
			s.sources = s.sources[1:]
			continue
		}
		return r, err
	}
	return nil, io.EOF
}

// ZipSource is a RawSource over the members of a zip archive.
type ZipSource struct {
	zr  *zip.Reader
	idx int
}

func NewZipSource(zr *zip.Reader) *ZipSource {
	return &ZipSource{zr: zr}
}

type namedZipFile struct {
	io.ReadCloser
	name string
}

func (f *namedZipFile) Name() string { return f.name }

func (s *ZipSource) NextReader() (NamedReadCloser, error) {
	if s.idx >= len(s.zr.File) {
		return nil, io.EOF
	}
	zf := s.zr.File[s.idx]
	s.idx++
	rc, err := zf.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s in zip", zf.Name)
	}
	return &namedZipFile{ReadCloser: rc, name: path.Base(zf.Name)}, nil
}

// BytesSource is a RawSource over in-memory named files, in insertion order.
// The datastore hands back resource contents as byte slices, and tests use it
// directly.
type BytesSource struct {
	names    []string
	contents [][]byte
	idx      int
}

func NewBytesSource() *BytesSource { return &BytesSource{} }

func (s *BytesSource) Add(name string, content []byte) *BytesSource {
	s.names = append(s.names, name)
	s.contents = append(s.contents, content)
	return s
}

type namedBuffer struct {
	*bytes.Reader
	name string
}

func (b *namedBuffer) Name() string { return b.name }
func (b *namedBuffer) Close() error { return nil }

func (s *BytesSource) NextReader() (NamedReadCloser, error) {
	if s.idx >= len(s.names) {
		return nil, io.EOF
	}
	i := s.idx
	s.idx++
	return &namedBuffer{Reader: bytes.NewReader(s.contents[i]), name: s.names[i]}, nil
}
