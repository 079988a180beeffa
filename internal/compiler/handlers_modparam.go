package compiler

import (
	"encoding/xml"
	"errors"
	"strconv"
	"strings"

	"github.com/KevinKickass/ecconf/internal/records"
)

func (s *parseState) parseModParam(f *frame, attrs []xml.Attr) error {
	typ := s.slave().slaveType
	if typ.ModParams == nil {
		return s.errorf(ErrStructural, "", "", nil, "%s slaves take no module parameters", typ.Name)
	}

	var name, value xml.Attr
	for _, a := range attrs {
		switch a.Name.Local {
		case "name":
			name = a
		case "value":
			value = a
		default:
			return s.unknownAttr(a)
		}
	}
	if name.Value == "" {
		return s.missing("name")
	}
	if value.Value == "" {
		return s.missing("value")
	}

	desc, ok := typ.FindModParam(name.Value)
	if !ok {
		return s.errorf(ErrLookup, "name", name.Value, nil, "unknown module parameter for %s", typ.Name)
	}

	rec := records.ModParam{Kind: records.KindModParam, ID: desc.ID}
	if err := setModParamValue(&rec, desc.Type, value.Value); err != nil {
		return s.attrErr(value, err)
	}

	h, err := alloc(s, &rec)
	if err != nil {
		return err
	}
	f.rec = h

	return s.bumpSlave(func(r *records.Slave) { r.ModParamCount++ })
}

func setModParamValue(rec *records.ModParam, typ records.ModParamType, v string) error {
	switch typ {
	case records.ModParamBit:
		switch {
		case v == "1" || strings.EqualFold(v, "true"):
			rec.SetBit(true)
		case v == "0" || strings.EqualFold(v, "false"):
			rec.SetBit(false)
		default:
			return errors.New("expected 0, 1, true or false")
		}
	case records.ModParamU32:
		n, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return errors.New("not an unsigned 32 bit integer")
		}
		rec.SetU32(uint32(n))
	case records.ModParamS32:
		n, err := strconv.ParseInt(v, 0, 32)
		if err != nil {
			return errors.New("not a signed 32 bit integer")
		}
		rec.SetS32(int32(n))
	case records.ModParamFloat:
		n, err := parseFloat(v)
		if err != nil {
			return err
		}
		rec.SetFloat(n)
	case records.ModParamString:
		n, err := records.NewName(v)
		if err != nil {
			return err
		}
		rec.SetStr(n)
	default:
		return errors.New("parameter has no value type")
	}
	return nil
}
