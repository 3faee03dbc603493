// Package jtv decodes JTV TV program guides: an index file (.ndx) of
// fixed-size records pointing into a data file (.pdt) of length-prefixed
// CP1251 titles.
package jtv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"strings"

	"jtvview/internal/model"
)

const (
	IndexExt = ".ndx"
	DataExt  = ".pdt"
)

// DecodeOptions controls a single decode.
type DecodeOptions struct {
	// IndexName and DataName identify the inputs in errors.
	IndexName string
	DataName  string
	// OffsetSeconds is the source time-zone offset east of UTC.
	OffsetSeconds int
}

// Decode parses an index/data pair into program entries in index order.
// The first failure aborts the decode and no entries are returned.
func Decode(index, data []byte, opts DecodeOptions) ([]model.ProgramEntry, error) {
	indexName := opts.IndexName
	if indexName == "" {
		indexName = "index"
	}
	dataName := opts.DataName
	if dataName == "" {
		dataName = "data"
	}
	// Captured once; the caller may change its configuration concurrently.
	offset := opts.OffsetSeconds

	ir, err := NewIndexReader(bytes.NewReader(index), indexName)
	if err != nil {
		return nil, err
	}

	entries := make([]model.ProgramEntry, 0, ir.Count())
	for {
		rec, err := ir.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		title, err := readTitle(data, rec, dataName)
		if err != nil {
			return nil, err
		}

		entries = append(entries, model.ProgramEntry{
			Timestamp: FiletimeToTime(rec.RawTime, offset),
			Title:     title,
		})
	}
	return entries, nil
}

// readTitle reads the length-prefixed title that rec points at.
func readTitle(data []byte, rec IndexRecord, name string) (string, error) {
	off := int(rec.DataOffset)
	if off > len(data) {
		return "", &DecodeError{Kind: SeekOutOfRange, Record: rec.Index, File: name}
	}
	p := data[off:]

	if len(p) < 2 {
		return "", &DecodeError{Kind: TruncatedEntry, Record: rec.Index, File: name, Detail: "size", Err: io.ErrUnexpectedEOF}
	}
	n := int(binary.LittleEndian.Uint16(p))
	p = p[2:]

	if len(p) < n {
		return "", &DecodeError{Kind: TruncatedEntry, Record: rec.Index, File: name, Detail: "name", Err: io.ErrUnexpectedEOF}
	}
	return DecodeCP1251(p[:n]), nil
}

// BasePath strips a case-insensitive .ndx or .pdt extension from path.
func BasePath(path string) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, IndexExt) || strings.HasSuffix(lower, DataExt) {
		return path[:len(path)-len(IndexExt)]
	}
	return path
}

// DecodeFiles reads basePath.ndx and basePath.pdt and decodes them.
func DecodeFiles(basePath string, offsetSeconds int) ([]model.ProgramEntry, error) {
	indexName := basePath + IndexExt
	dataName := basePath + DataExt

	index, err := os.ReadFile(indexName)
	if err != nil {
		return nil, &DecodeError{Kind: OpenFailure, File: indexName, Err: unwrapPathError(err)}
	}
	data, err := os.ReadFile(dataName)
	if err != nil {
		return nil, &DecodeError{Kind: OpenFailure, File: dataName, Err: unwrapPathError(err)}
	}

	return Decode(index, data, DecodeOptions{
		IndexName:     indexName,
		DataName:      dataName,
		OffsetSeconds: offsetSeconds,
	})
}

// unwrapPathError drops the *fs.PathError wrapper so the file name is not
// repeated in DecodeError messages.
func unwrapPathError(err error) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		return pe.Err
	}
	return err
}
