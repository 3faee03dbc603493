package jtv

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a decode attempt failed.
type ErrorKind int

const (
	OpenFailure ErrorKind = iota + 1
	TruncatedHeader
	MalformedRecord
	TruncatedRecord
	SeekOutOfRange
	TruncatedEntry
)

// Sentinels for errors.Is; a *DecodeError matches the sentinel of its kind.
var (
	ErrOpenFailure     = errors.New("jtv: open failure")
	ErrTruncatedHeader = errors.New("jtv: truncated header")
	ErrMalformedRecord = errors.New("jtv: malformed record")
	ErrTruncatedRecord = errors.New("jtv: truncated record")
	ErrSeekOutOfRange  = errors.New("jtv: seek out of range")
	ErrTruncatedEntry  = errors.New("jtv: truncated entry")
)

func (k ErrorKind) String() string {
	switch k {
	case OpenFailure:
		return "OpenFailure"
	case TruncatedHeader:
		return "TruncatedHeader"
	case MalformedRecord:
		return "MalformedRecord"
	case TruncatedRecord:
		return "TruncatedRecord"
	case SeekOutOfRange:
		return "SeekOutOfRange"
	case TruncatedEntry:
		return "TruncatedEntry"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case OpenFailure:
		return ErrOpenFailure
	case TruncatedHeader:
		return ErrTruncatedHeader
	case MalformedRecord:
		return ErrMalformedRecord
	case TruncatedRecord:
		return ErrTruncatedRecord
	case SeekOutOfRange:
		return ErrSeekOutOfRange
	case TruncatedEntry:
		return ErrTruncatedEntry
	default:
		return nil
	}
}

// DecodeError is the single error type returned by the decoder. It carries
// the failure kind, the 1-based record index (0 when the failure is not tied
// to a record) and the name of the offending file.
type DecodeError struct {
	Kind   ErrorKind
	Record int
	File   string
	// Detail names the field being read when the failure happened, e.g. "time".
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	var msg string
	switch e.Kind {
	case OpenFailure:
		msg = fmt.Sprintf("failed to open %s", e.File)
	case TruncatedHeader:
		msg = fmt.Sprintf("failed to read entry count from %s", e.File)
	case MalformedRecord:
		msg = fmt.Sprintf("failed to read entry %d from %s: bad format (does not start with 0x00 0x00)", e.Record, e.File)
	case SeekOutOfRange:
		msg = fmt.Sprintf("failed to read entry %d from %s: seek failed", e.Record, e.File)
	default:
		msg = fmt.Sprintf("failed to read entry %d from %s", e.Record, e.File)
		if e.Detail != "" {
			msg += ": failed to read " + e.Detail
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *DecodeError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the ErrorKind carried by err, or 0 if err is not a
// *DecodeError.
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}
