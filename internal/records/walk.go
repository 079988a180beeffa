package records

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBadMagic  = errors.New("bad blob magic")
	ErrTruncated = errors.New("truncated record stream")
)

// HeaderSize is the encoded size of Header.
var HeaderSize = Size[Header]()

// EncodeHeader renders h.
func EncodeHeader(h Header) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Length)
	return b
}

// DecodeHeader parses and checks the header at the start of blob.
func DecodeHeader(blob []byte) (Header, error) {
	if len(blob) < HeaderSize {
		return Header{}, fmt.Errorf("header: %w", ErrTruncated)
	}
	h := Header{
		Magic:  binary.LittleEndian.Uint32(blob[0:4]),
		Length: binary.LittleEndian.Uint32(blob[4:8]),
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("got 0x%08X: %w", h.Magic, ErrBadMagic)
	}
	if uint64(h.Length) > uint64(len(blob)-HeaderSize) {
		return h, fmt.Errorf("header length %d exceeds %d available bytes: %w",
			h.Length, len(blob)-HeaderSize, ErrTruncated)
	}
	return h, nil
}

// Record is one decoded entry of the stream. Value holds a pointer to the
// record struct matching Kind; Data holds trailing raw bytes of SDO and
// IDN configs.
type Record struct {
	Offset int
	Kind   Kind
	Value  any
	Data   []byte
}

// Walk visits every record of a header-prefixed blob in order and stops
// at the terminator. It never reads beyond the header's length.
func Walk(blob []byte, fn func(Record) error) error {
	h, err := DecodeHeader(blob)
	if err != nil {
		return err
	}
	return WalkRecords(blob[HeaderSize:HeaderSize+int(h.Length)], fn)
}

// WalkRecords visits a bare record stream.
func WalkRecords(stream []byte, fn func(Record) error) error {
	off := 0
	for {
		if len(stream)-off < 4 {
			return fmt.Errorf("kind tag at %d: %w", off, ErrTruncated)
		}
		kind := Kind(binary.LittleEndian.Uint32(stream[off:]))
		if kind == KindNone {
			return nil
		}

		rec, n, err := decodeRecord(stream[off:], kind)
		if err != nil {
			return fmt.Errorf("%s at %d: %w", kind, off, err)
		}
		rec.Offset = off
		if err := fn(rec); err != nil {
			return err
		}
		off += n
	}
}

func decodeRecord(b []byte, kind Kind) (Record, int, error) {
	rec := Record{Kind: kind}
	var (
		n   int
		err error
	)

	switch kind {
	case KindMaster:
		rec.Value, n, err = decodeAs[Master](b)
	case KindSlave:
		rec.Value, n, err = decodeAs[Slave](b)
	case KindDcConf:
		rec.Value, n, err = decodeAs[DcConf](b)
	case KindWatchdog:
		rec.Value, n, err = decodeAs[Watchdog](b)
	case KindSyncManager:
		rec.Value, n, err = decodeAs[SyncManager](b)
	case KindPdo:
		rec.Value, n, err = decodeAs[Pdo](b)
	case KindPdoEntry:
		rec.Value, n, err = decodeAs[PdoEntry](b)
	case KindComplexEntry:
		rec.Value, n, err = decodeAs[ComplexEntry](b)
	case KindModParam:
		rec.Value, n, err = decodeAs[ModParam](b)
	case KindSdoConfig:
		var v *SdoConfig
		v, n, err = decodeAs[SdoConfig](b)
		if err == nil {
			rec.Value = v
			rec.Data, err = trailing(b, n, v.Length)
			n += int(v.Length)
		}
	case KindIdnConfig:
		var v *IdnConfig
		v, n, err = decodeAs[IdnConfig](b)
		if err == nil {
			rec.Value = v
			rec.Data, err = trailing(b, n, v.Length)
			n += int(v.Length)
		}
	default:
		return rec, 0, fmt.Errorf("unknown record kind %d", uint32(kind))
	}

	return rec, n, err
}

func decodeAs[T any](b []byte) (*T, int, error) {
	v := new(T)
	n, err := binary.Decode(b, binary.LittleEndian, v)
	if err != nil {
		return nil, 0, ErrTruncated
	}
	return v, n, nil
}

func trailing(b []byte, off int, length uint32) ([]byte, error) {
	if uint64(len(b)-off) < uint64(length) {
		return nil, ErrTruncated
	}
	return b[off : off+int(length)], nil
}
