// Package jtvtest builds synthetic JTV guide file pairs for tests.
package jtvtest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// filetimeUnixEpoch is 1970-01-01T00:00:00Z in 100ns ticks since 1601.
const filetimeUnixEpoch = 116444736000000000

// Entry is one program to encode.
type Entry struct {
	RawTime int64
	// Title is written verbatim when Raw is set; otherwise Text is encoded
	// to CP1251.
	Text string
	Raw  []byte
}

// RawTime returns the FILETIME value that stores t as wall-clock time of a
// zone offsetSeconds east of UTC.
func RawTime(t time.Time, offsetSeconds int) int64 {
	return (t.UnixMilli()+int64(offsetSeconds)*1000)*10000 + filetimeUnixEpoch
}

// Encode converts UTF-8 text to CP1251 bytes. It panics on characters the
// code page cannot represent.
func Encode(s string) []byte {
	b, err := charmap.Windows1251.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(err)
	}
	return b
}

// Build returns index and data bytes for entries. Titles are laid out in
// order in the data file.
func Build(entries []Entry) (ndx, pdt []byte) {
	ndx = binary.LittleEndian.AppendUint16(nil, uint16(len(entries)))
	for _, e := range entries {
		title := e.Raw
		if title == nil {
			title = Encode(e.Text)
		}
		off := len(pdt)

		ndx = append(ndx, 0x00, 0x00)
		ndx = binary.LittleEndian.AppendUint64(ndx, uint64(e.RawTime))
		ndx = binary.LittleEndian.AppendUint16(ndx, uint16(off))

		pdt = binary.LittleEndian.AppendUint16(pdt, uint16(len(title)))
		pdt = append(pdt, title...)
	}
	return ndx, pdt
}

// WritePair writes base.ndx and base.pdt under dir and returns the base path.
func WritePair(t testing.TB, dir, base string, ndx, pdt []byte) string {
	t.Helper()
	p := filepath.Join(dir, base)
	if err := os.WriteFile(p+".ndx", ndx, 0o600); err != nil {
		t.Fatalf("write index: %v", err)
	}
	if err := os.WriteFile(p+".pdt", pdt, 0o600); err != nil {
		t.Fatalf("write data: %v", err)
	}
	return p
}

// Week returns a week of daily programs starting at start (UTC), three per
// day, encoded for the given offset.
func Week(start time.Time, offsetSeconds int) []Entry {
	titles := []string{"Новости", "Фильм «Ирония судьбы»", "Ночной эфир"}
	hours := []int{7, 19, 23}
	var out []Entry
	for d := 0; d < 7; d++ {
		for i, h := range hours {
			at := start.AddDate(0, 0, d).Add(time.Duration(h) * time.Hour)
			out = append(out, Entry{RawTime: RawTime(at, offsetSeconds), Text: titles[i]})
		}
	}
	return out
}
