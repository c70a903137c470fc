package descriptor

import (
	"github.com/pkg/errors"
)

// ErrMalformedRecord is returned by Walk for a record that is shorter than its header or runs
// past the end of the buffer.
var ErrMalformedRecord = errors.New("malformed descriptor record")

// ErrRecordCutOff is the ErrMalformedRecord returned when buf ends inside the last record, as it
// does when the descriptor was read into a buffer shorter than its total length.
var ErrRecordCutOff = errors.Wrap(ErrMalformedRecord, "record cut off")

// A Record is one variable length descriptor inside a configuration descriptor.
type Record struct {
	Offset int
	Length uint8
	Type   uint8
	// Raw is the whole record, header included.
	Raw []byte
	// Body is the record without its length and type bytes.
	Body []byte
}

// Walk calls fn for every record of a configuration descriptor in order. It never reads past
// the end of buf and stops at the first malformed record or the first error from fn.
func Walk(buf []byte, fn func(Record) error) error {
	for off := 0; off < len(buf); {
		if len(buf)-off < 2 {
			return errors.Wrapf(ErrRecordCutOff, "truncated header at offset %d", off)
		}
		length := int(buf[off])
		if length < 2 {
			return errors.Wrapf(ErrMalformedRecord, "length %d at offset %d", length, off)
		}
		if off+length > len(buf) {
			return errors.Wrapf(ErrRecordCutOff, "length %d at offset %d exceeds %d bytes", length, off, len(buf))
		}
		rec := Record{
			Offset: off,
			Length: uint8(length),
			Type:   buf[off+1],
			Raw:    buf[off : off+length],
			Body:   buf[off+2 : off+length],
		}
		if err := fn(rec); err != nil {
			return err
		}
		off += length
	}
	return nil
}

// ClampLength bounds a reported total length to the capacity of the read buffer. The second
// return is true when the length was truncated.
func ClampLength(total uint16, capacity int) (int, bool) {
	if int(total) > capacity {
		return capacity, true
	}
	return int(total), false
}
