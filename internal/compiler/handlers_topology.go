package compiler

import (
	"encoding/xml"
	"math"
	"strconv"

	"github.com/KevinKickass/ecconf/internal/records"
)

func (s *parseState) parseMasters(f *frame, attrs []xml.Attr) error {
	if s.sawRoot {
		return s.errorf(ErrStructural, "", "", nil, "more than one masters element")
	}
	s.sawRoot = true

	if len(attrs) > 0 {
		return s.unknownAttr(attrs[0])
	}
	return nil
}

func (s *parseState) parseMaster(f *frame, attrs []xml.Attr) error {
	rec := records.Master{Kind: records.KindMaster}

	for _, a := range attrs {
		switch a.Name.Local {
		case "idx":
			v, err := parseDec(a.Value, 0, math.MaxInt32)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Index = int32(v)
		case "name":
			n, err := records.NewName(a.Value)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Name = n
		case "appTimePeriod":
			v, err := parseUdec(a.Value, math.MaxUint32)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.AppTimePeriod = uint32(v)
		case "refClockSyncCycles":
			v, err := parseDec(a.Value, math.MinInt32, math.MaxInt32)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.RefClockSyncCycles = int32(v)
		default:
			return s.unknownAttr(a)
		}
	}

	if rec.Name.IsZero() {
		// an index never exceeds the name length
		rec.Name, _ = records.NewName(strconv.Itoa(int(rec.Index)))
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h

	s.masters++
	s.c.counters.IncMaster()
	return nil
}

func (s *parseState) parseSlave(f *frame, attrs []xml.Attr) error {
	// The type decides which other attributes are legal, so it is
	// resolved before anything else.
	for _, a := range attrs {
		if a.Name.Local != "type" {
			continue
		}
		t, ok := s.c.types.Lookup(a.Value)
		if !ok {
			return s.errorf(ErrLookup, a.Name.Local, a.Value, nil, "unknown slave type")
		}
		f.slaveType = t
	}
	if f.slaveType == nil {
		return s.missing("type")
	}

	rec := records.Slave{Kind: records.KindSlave}

	for _, a := range attrs {
		switch a.Name.Local {
		case "type":
			n, err := records.NewName(a.Value)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.TypeName = n
		case "idx":
			v, err := parseDec(a.Value, 0, math.MaxUint16)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Index = int32(v)
		case "name":
			n, err := records.NewName(a.Value)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.Name = n
		case "vid", "pid", "configPdos":
			if !f.slaveType.IsGeneric() {
				return s.errorf(ErrCrossField, a.Name.Local, a.Value, nil,
					"only allowed on %s slaves, not %s", "generic", f.slaveType.Name)
			}
			if err := s.genericSlaveAttr(&rec, a); err != nil {
				return err
			}
		default:
			return s.unknownAttr(a)
		}
	}

	if !f.slaveType.IsGeneric() {
		rec.VID = f.slaveType.VID
		rec.PID = f.slaveType.PID
	}
	if rec.Name.IsZero() {
		rec.Name, _ = records.NewName(strconv.Itoa(int(rec.Index)))
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h

	s.slaves++
	s.c.counters.IncSlave()
	return nil
}

func (s *parseState) genericSlaveAttr(rec *records.Slave, a xml.Attr) error {
	switch a.Name.Local {
	case "vid", "pid":
		v, err := parseHex(a.Value, math.MaxUint32)
		if err != nil {
			return s.attrErr(a, err)
		}
		if a.Name.Local == "vid" {
			rec.VID = uint32(v)
		} else {
			rec.PID = uint32(v)
		}
	case "configPdos":
		v, err := parseBool(a.Value)
		if err != nil {
			return s.attrErr(a, err)
		}
		rec.ConfigPdos = 0
		if v {
			rec.ConfigPdos = 1
		}
	}
	return nil
}

// slave returns the frame of the slave owning the current element.
func (s *parseState) slave() *frame {
	return s.nearest(records.KindSlave)
}

// bumpSlave applies fn to the current slave record.
func (s *parseState) bumpSlave(fn func(*records.Slave)) error {
	return update(s, s.slave().rec, fn)
}
