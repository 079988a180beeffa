package compiler

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/KevinKickass/ecconf/internal/outbuf"
	"github.com/KevinKickass/ecconf/internal/records"
)

func (s *parseState) parseDcConf(f *frame, attrs []xml.Attr) error {
	slave := s.slave()
	if slave.dcSeen {
		return s.errorf(ErrStructural, "", "", nil, "slave already has a dcConf")
	}

	rec := records.DcConf{Kind: records.KindDcConf}

	for _, a := range attrs {
		switch a.Name.Local {
		case "assignActivate":
			v, err := parseHex(a.Value, math.MaxUint16)
			if err != nil {
				return s.attrErr(a, err)
			}
			rec.AssignActivate = uint16(v)
		case "sync0Cycle", "sync1Cycle":
			v, err := s.parseSyncCycle(a.Value)
			if err != nil {
				return s.attrErr(a, err)
			}
			if a.Name.Local == "sync0Cycle" {
				rec.Sync0Cycle = v
			} else {
				rec.Sync1Cycle = v
			}
		case "sync0Shift", "sync1Shift":
			v, err := parseDec(a.Value, math.MinInt32, math.MaxInt32)
			if err != nil {
				return s.attrErr(a, err)
			}
			if a.Name.Local == "sync0Shift" {
				rec.Sync0Shift = int32(v)
			} else {
				rec.Sync1Shift = int32(v)
			}
		default:
			return s.unknownAttr(a)
		}
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h
	slave.dcSeen = true
	return nil
}

// parseSyncCycle reads either a literal cycle in ns or "*N", a multiple
// of the owning master's application time period.
func (s *parseState) parseSyncCycle(v string) (uint32, error) {
	if !strings.HasPrefix(v, "*") {
		n, err := parseUdec(v, math.MaxUint32)
		return uint32(n), err
	}

	n, err := parseUdec(v[1:], math.MaxUint32)
	if err != nil {
		return 0, err
	}

	var master records.Master
	if err := s.load(s.nearest(records.KindMaster), &master); err != nil {
		return 0, err
	}
	cycle := n * uint64(master.AppTimePeriod)
	if cycle > math.MaxUint32 {
		return 0, fmt.Errorf("%d * appTimePeriod %d overflows", n, master.AppTimePeriod)
	}
	return uint32(cycle), nil
}

func (s *parseState) parseWatchdog(f *frame, attrs []xml.Attr) error {
	slave := s.slave()
	if slave.watchdogSeen {
		return s.errorf(ErrStructural, "", "", nil, "slave already has a watchdog")
	}

	rec := records.Watchdog{Kind: records.KindWatchdog}

	for _, a := range attrs {
		switch a.Name.Local {
		case "divider", "intervals":
			v, err := parseDec(a.Value, 0, math.MaxUint16)
			if err != nil {
				return s.attrErr(a, err)
			}
			if a.Name.Local == "divider" {
				rec.Divider = uint16(v)
			} else {
				rec.Intervals = uint16(v)
			}
		default:
			return s.unknownAttr(a)
		}
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h
	slave.watchdogSeen = true
	return nil
}

func (s *parseState) parseSdoConfig(f *frame, attrs []xml.Attr) error {
	var (
		index, subIndex   int
		hasIdx, hasSubIdx bool
	)

	for _, a := range attrs {
		switch a.Name.Local {
		case "idx":
			v, err := parseHex(a.Value, 0xfffe)
			if err != nil {
				return s.attrErr(a, err)
			}
			index, hasIdx = int(v), true
		case "subIdx":
			if strings.EqualFold(a.Value, "complete") {
				subIndex, hasSubIdx = int(records.SdoCompleteSubIndex), true
				continue
			}
			v, err := parseHex(a.Value, 0xfe)
			if err != nil {
				return s.attrErr(a, err)
			}
			subIndex, hasSubIdx = int(v), true
		default:
			return s.unknownAttr(a)
		}
	}

	if !hasIdx {
		return s.missing("idx")
	}
	if !hasSubIdx {
		return s.missing("subIdx")
	}

	h, err := s.addSdoConfig(s.slave(), uint16(index), int16(subIndex), nil)
	if err != nil {
		return err
	}
	f.rec = h
	return nil
}

func (s *parseState) parseIdnConfig(f *frame, attrs []xml.Attr) error {
	var (
		drive    uint8
		idn      uint16
		state    uint8
		hasIdn   bool
		hasState bool
	)

	for _, a := range attrs {
		switch a.Name.Local {
		case "drive":
			v, err := parseDec(a.Value, 0, 7)
			if err != nil {
				return s.attrErr(a, err)
			}
			drive = uint8(v)
		case "idn":
			v, err := parseIdn(a.Value)
			if err != nil {
				return s.attrErr(a, err)
			}
			idn, hasIdn = v, true
		case "state":
			switch {
			case strings.EqualFold(a.Value, "PREOP"):
				state = records.StatePreOp
			case strings.EqualFold(a.Value, "SAFEOP"):
				state = records.StateSafeOp
			default:
				return s.attrErr(a, errors.New("expected PREOP or SAFEOP"))
			}
			hasState = true
		default:
			return s.unknownAttr(a)
		}
	}

	if !hasIdn {
		return s.missing("idn")
	}
	if !hasState {
		return s.missing("state")
	}

	h, err := s.addIdnConfig(s.slave(), drive, idn, state, nil)
	if err != nil {
		return err
	}
	f.rec = h
	return nil
}

// parseDataRaw handles both sdoDataRaw and idnDataRaw. The bytes land
// directly behind the owning config record.
func (s *parseState) parseDataRaw(f *frame, attrs []xml.Attr) error {
	cfg := s.parent()
	if cfg.dataSeen {
		return s.errorf(ErrStructural, "", "", nil, "%s already has raw data", cfg.kind)
	}

	var (
		data    []byte
		hasData bool
	)
	for _, a := range attrs {
		switch a.Name.Local {
		case "data":
			v, err := parseHexData(a.Value)
			if err != nil {
				return s.attrErr(a, err)
			}
			data, hasData = v, true
		default:
			return s.unknownAttr(a)
		}
	}
	if !hasData {
		return s.missing("data")
	}

	if err := s.appendConfigData(s.slave(), cfg.kind, cfg.rec, data); err != nil {
		return err
	}
	cfg.dataSeen = true
	return nil
}

func (s *parseState) parseInitCmds(f *frame, attrs []xml.Attr) error {
	var filename string
	for _, a := range attrs {
		switch a.Name.Local {
		case "filename":
			filename = a.Value
		default:
			return s.unknownAttr(a)
		}
	}
	if filename == "" {
		return s.missing("filename")
	}

	if s.c.initCmds == nil {
		return s.errorf(ErrLookup, "filename", filename, nil, "no init command loader configured")
	}
	sink := &initCmdSink{s: s, slave: s.slave()}
	if err := s.c.initCmds.LoadInitCmds(filename, sink); err != nil {
		var cerr *Error
		if errors.As(err, &cerr) {
			return cerr
		}
		return s.errorf(ErrAttribute, "filename", filename, err, "failed to load init commands")
	}
	return nil
}

func (s *parseState) addSdoConfig(slave *frame, index uint16, subIndex int16, data []byte) (outbuf.Handle, error) {
	rec := records.SdoConfig{
		Kind:     records.KindSdoConfig,
		Index:    index,
		SubIndex: subIndex,
	}
	h, err := alloc(s, &rec)
	if err != nil {
		return outbuf.Handle{}, err
	}
	size := uint32(records.Size[records.SdoConfig]())
	if err := update(s, slave.rec, func(r *records.Slave) { r.SdoConfigLength += size }); err != nil {
		return outbuf.Handle{}, err
	}
	if len(data) > 0 {
		if err := s.appendConfigData(slave, records.KindSdoConfig, h, data); err != nil {
			return outbuf.Handle{}, err
		}
	}
	return h, nil
}

func (s *parseState) addIdnConfig(slave *frame, drive uint8, idn uint16, state uint8, data []byte) (outbuf.Handle, error) {
	rec := records.IdnConfig{
		Kind:  records.KindIdnConfig,
		Drive: drive,
		Idn:   idn,
		State: state,
	}
	h, err := alloc(s, &rec)
	if err != nil {
		return outbuf.Handle{}, err
	}
	size := uint32(records.Size[records.IdnConfig]())
	if err := update(s, slave.rec, func(r *records.Slave) { r.IdnConfigLength += size }); err != nil {
		return outbuf.Handle{}, err
	}
	if len(data) > 0 {
		if err := s.appendConfigData(slave, records.KindIdnConfig, h, data); err != nil {
			return outbuf.Handle{}, err
		}
	}
	return h, nil
}

// appendConfigData appends raw bytes and folds their length into the
// config record and the slave's accumulated config length.
func (s *parseState) appendConfigData(slave *frame, kind records.Kind, cfg outbuf.Handle, data []byte) error {
	if _, err := s.buf.Append(data); err != nil {
		return s.resourceErr(err)
	}

	n := uint32(len(data))
	switch kind {
	case records.KindSdoConfig:
		if err := update(s, cfg, func(r *records.SdoConfig) { r.Length += n }); err != nil {
			return err
		}
		return update(s, slave.rec, func(r *records.Slave) { r.SdoConfigLength += n })
	case records.KindIdnConfig:
		if err := update(s, cfg, func(r *records.IdnConfig) { r.Length += n }); err != nil {
			return err
		}
		return update(s, slave.rec, func(r *records.Slave) { r.IdnConfigLength += n })
	}
	return fmt.Errorf("raw data for %s", kind)
}

// initCmdSink appends init command writes on behalf of one slave.
type initCmdSink struct {
	s     *parseState
	slave *frame
}

func (k *initCmdSink) AddSdoConfig(index uint16, subIndex int16, data []byte) error {
	if index > 0xfffe || subIndex < records.SdoCompleteSubIndex || subIndex > 0xfe {
		return fmt.Errorf("sdo 0x%04x:%d out of range", index, subIndex)
	}
	_, err := k.s.addSdoConfig(k.slave, index, subIndex, data)
	return err
}

func (k *initCmdSink) AddIdnConfig(drive uint8, idn uint16, state uint8, data []byte) error {
	if drive > 7 {
		return fmt.Errorf("drive %d out of range", drive)
	}
	if idn > records.MaxIdn {
		return fmt.Errorf("idn %d out of range", idn)
	}
	if state != records.StatePreOp && state != records.StateSafeOp {
		return fmt.Errorf("invalid idn state %d", state)
	}
	_, err := k.s.addIdnConfig(k.slave, drive, idn, state, data)
	return err
}
