package compiler

import (
	"encoding/xml"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/KevinKickass/ecconf/internal/records"
)

func (s *parseState) parseSyncManager(f *frame, attrs []xml.Attr) error {
	if t := s.slave().slaveType; !t.IsGeneric() {
		return s.errorf(ErrStructural, "", "", nil, "sync managers are not configurable on %s slaves", t.Name)
	}

	rec := records.SyncManager{Kind: records.KindSyncManager}
	hasIdx := false

	for _, a := range attrs {
		switch a.Name.Local {
		case "idx":
			v, err := parseDec(a.Value, 0, 15)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Index, hasIdx = uint8(v), true
		case "dir":
			switch {
			case strings.EqualFold(a.Value, "in"):
				rec.Dir = records.DirInput
			case strings.EqualFold(a.Value, "out"):
				rec.Dir = records.DirOutput
			default:
				return s.attrErr(a, errors.New("expected in or out"))
			}
		default:
			return s.unknownAttr(a)
		}
	}

	if !hasIdx {
		return s.missing("idx")
	}
	if rec.Dir == records.DirInvalid {
		return s.missing("dir")
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h

	return s.bumpSlave(func(r *records.Slave) { r.SyncManagerCount++ })
}

func (s *parseState) parsePdo(f *frame, attrs []xml.Attr) error {
	rec := records.Pdo{Kind: records.KindPdo}
	hasIdx := false

	for _, a := range attrs {
		switch a.Name.Local {
		case "idx":
			v, err := parseHex(a.Value, 0xfffe)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Index, hasIdx = uint16(v), true
		default:
			return s.unknownAttr(a)
		}
	}
	if !hasIdx {
		return s.missing("idx")
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h

	if err := s.bumpSlave(func(r *records.Slave) { r.PdoCount++ }); err != nil {
		return err
	}
	return update(s, s.parent().rec, func(r *records.SyncManager) { r.PdoCount++ })
}

// pinAttrs collects the attributes shared by pdoEntry and complexEntry.
type pinAttrs struct {
	kind      records.ValueKind
	scale     float64
	offset    float64
	pin       records.Name
	floatOnly xml.Attr
}

// parsePinAttr consumes a shared attribute and reports whether a was one.
func (s *parseState) parsePinAttr(p *pinAttrs, a xml.Attr) (bool, error) {
	switch a.Name.Local {
	case "halType":
		k, ok := records.ParseValueKind(a.Value)
		if !ok {
			return true, s.attrErr(a, errors.New("unknown hal type"))
		}
		p.kind = k
	case "scale", "offset":
		v, err := parseFloat(a.Value)
		if err != nil {
			return true, s.attrErr(a, err)
		}
		if a.Name.Local == "scale" {
			p.scale = v
		} else {
			p.offset = v
		}
		p.floatOnly = a
	case "halPin":
		n, err := records.NewName(a.Value)
		if err != nil {
			return true, s.attrErr(a, err)
		}
		p.pin = n
	default:
		return false, nil
	}
	return true, nil
}

// checkPin applies the rules that span several shared attributes.
func (s *parseState) checkPin(p *pinAttrs) error {
	if p.floatOnly.Name.Local != "" && !p.kind.IsFloat() {
		return s.errorf(ErrCrossField, p.floatOnly.Name.Local, p.floatOnly.Value, nil,
			"only allowed with a float hal type, not %q", p.kind.String())
	}
	if p.pin.IsZero() {
		return nil
	}
	if p.kind == records.ValueComplex {
		return s.errorf(ErrCrossField, "halPin", p.pin.String(), nil, "complex entries cannot have a pin")
	}
	if p.kind == records.ValueNone {
		return s.errorf(ErrCrossField, "halPin", p.pin.String(), nil, "pin requires a halType")
	}
	return nil
}

func (s *parseState) parsePdoEntry(f *frame, attrs []xml.Attr) error {
	rec := records.PdoEntry{Kind: records.KindPdoEntry}
	p := pinAttrs{scale: 1.0}
	var hasIdx, hasSubIdx, hasBitLen bool

	for _, a := range attrs {
		switch a.Name.Local {
		case "idx":
			v, err := parseHex(a.Value, 0xfffe)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Index, hasIdx = uint16(v), true
		case "subIdx":
			v, err := parseHex(a.Value, 0xfe)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.SubIndex, hasSubIdx = uint8(v), true
		case "bitLen":
			v, err := parseDec(a.Value, 1, math.MaxUint8)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.BitLength, hasBitLen = uint8(v), true
		default:
			ok, err := s.parsePinAttr(&p, a)
			if err != nil {
				return err
			}
			if !ok {
				return s.unknownAttr(a)
			}
		}
	}

	switch {
	case !hasIdx:
		return s.missing("idx")
	case !hasSubIdx:
		return s.missing("subIdx")
	case !hasBitLen:
		return s.missing("bitLen")
	}
	if err := s.checkPin(&p); err != nil {
		return err
	}

	rec.ValueKind = p.kind
	rec.Scale = p.scale
	rec.Offset = p.offset
	rec.Pin = p.pin

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h
	f.valueKind = rec.ValueKind
	f.bitLength = int(rec.BitLength)

	mapped := !rec.Pin.IsZero()
	if err := s.bumpSlave(func(r *records.Slave) {
		r.PdoEntryCount++
		if mapped {
			r.PdoMappingCount++
		}
	}); err != nil {
		return err
	}
	return update(s, s.parent().rec, func(r *records.Pdo) { r.PdoEntryCount++ })
}

func (s *parseState) parseComplexEntry(f *frame, attrs []xml.Attr) error {
	entry := s.parent()
	if entry.valueKind != records.ValueComplex {
		return s.errorf(ErrCrossField, "", "", nil, "parent pdoEntry is not of hal type complex")
	}

	rec := records.ComplexEntry{Kind: records.KindComplexEntry}
	p := pinAttrs{scale: 1.0}
	var bitLen int

	for _, a := range attrs {
		switch a.Name.Local {
		case "bitLen":
			v, err := parseDec(a.Value, 1, 32)
			if err != nil {
				return s.attrErr(a, err)
			}
			bitLen = int(v)
		default:
			ok, err := s.parsePinAttr(&p, a)
			if err != nil {
				return err
			}
			if !ok {
				return s.unknownAttr(a)
			}
			if a.Name.Local == "halType" && p.kind == records.ValueComplex {
				return s.attrErr(a, errors.New("complex entries cannot nest"))
			}
		}
	}

	if bitLen == 0 {
		return s.missing("bitLen")
	}
	if err := s.checkPin(&p); err != nil {
		return err
	}
	if entry.bitOffset+bitLen > entry.bitLength {
		return s.errorf(ErrCrossField, "bitLen", strconv.Itoa(bitLen), nil,
			"%d bits at offset %d exceed the %d bits of the pdoEntry", bitLen, entry.bitOffset, entry.bitLength)
	}

	rec.BitOffset = uint8(entry.bitOffset)
	rec.BitLength = uint8(bitLen)
	rec.ValueKind = p.kind
	rec.Scale = p.scale
	rec.Offset = p.offset
	rec.Pin = p.pin

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h
	entry.bitOffset += bitLen

	if rec.Pin.IsZero() {
		return nil
	}
	return s.bumpSlave(func(r *records.Slave) { r.PdoMappingCount++ })
}
