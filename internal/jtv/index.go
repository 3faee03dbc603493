package jtv

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	countSize  = 2
	markerSize = 2
	timeSize   = 8
	offsetSize = 2

	// RecordSize is the on-disk size of one index record.
	RecordSize = markerSize + timeSize + offsetSize
)

// IndexRecord is one fixed-size index entry.
type IndexRecord struct {
	// Index is the 1-based position of the record in the file.
	Index int
	// RawTime counts 100ns intervals since 1601-01-01, as local wall-clock
	// time of the source time zone.
	RawTime int64
	// DataOffset is the absolute byte offset of the title in the data file.
	DataOffset uint16
}

// IndexReader reads index records sequentially. It is not restartable.
type IndexReader struct {
	r     io.Reader
	name  string
	count int
	next  int
	buf   [RecordSize]byte
}

// NewIndexReader reads the record count header from r. name is used in
// errors only.
func NewIndexReader(r io.Reader, name string) (*IndexReader, error) {
	ir := &IndexReader{r: r, name: name}

	var hdr [countSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, &DecodeError{Kind: TruncatedHeader, File: name, Err: shortRead(err)}
	}
	ir.count = int(binary.LittleEndian.Uint16(hdr[:]))
	return ir, nil
}

// Count is the number of records declared by the header.
func (ir *IndexReader) Count() int { return ir.count }

// Next returns the next record, or io.EOF once Count records were read.
// Bytes after the last declared record are never read.
func (ir *IndexReader) Next() (IndexRecord, error) {
	if ir.next >= ir.count {
		return IndexRecord{}, io.EOF
	}
	ir.next++
	idx := ir.next

	marker := ir.buf[:markerSize]
	if _, err := io.ReadFull(ir.r, marker); err != nil || marker[0] != 0 || marker[1] != 0 {
		// A short marker is reported as malformed too: the two bytes are not 00 00.
		return IndexRecord{}, &DecodeError{Kind: MalformedRecord, Record: idx, File: ir.name}
	}

	rawTime := ir.buf[markerSize : markerSize+timeSize]
	if _, err := io.ReadFull(ir.r, rawTime); err != nil {
		return IndexRecord{}, &DecodeError{Kind: TruncatedRecord, Record: idx, File: ir.name, Detail: "time", Err: shortRead(err)}
	}

	off := ir.buf[markerSize+timeSize:]
	if _, err := io.ReadFull(ir.r, off); err != nil {
		return IndexRecord{}, &DecodeError{Kind: TruncatedRecord, Record: idx, File: ir.name, Detail: "offset", Err: shortRead(err)}
	}

	return IndexRecord{
		Index:      idx,
		RawTime:    int64(binary.LittleEndian.Uint64(rawTime)),
		DataOffset: binary.LittleEndian.Uint16(off),
	}, nil
}

// shortRead normalizes the EOF flavours of io.ReadFull into one error.
func shortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
