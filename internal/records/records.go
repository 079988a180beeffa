// Package records defines the binary layout of a compiled topology: a
// header followed by a stream of kind-tagged, fixed-size records. The
// structs in this package mirror that layout field for field and are
// encoded little-endian.
package records

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Magic identifies a compiled topology blob.
const Magic uint32 = 0x036ED5A3

// StrMaxLen is the size of every bounded string field, NUL terminator
// included.
const StrMaxLen = 32

// SdoCompleteSubIndex addresses a whole SDO object instead of one sub-index.
const SdoCompleteSubIndex int16 = -1

// MaxIdn is the largest IDN accepted as a plain number.
const MaxIdn = 0xfffe

// Kind tags every record and doubles as the parse context identifier.
type Kind uint32

const (
	KindNone Kind = iota
	KindMasters
	KindMaster
	KindSlave
	KindDcConf
	KindWatchdog
	KindSdoConfig
	KindSdoDataRaw
	KindIdnConfig
	KindIdnDataRaw
	KindInitCmds
	KindSyncManager
	KindPdo
	KindPdoEntry
	KindComplexEntry
	KindModParam
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindMasters:
		return "masters"
	case KindMaster:
		return "master"
	case KindSlave:
		return "slave"
	case KindDcConf:
		return "dcConf"
	case KindWatchdog:
		return "watchdog"
	case KindSdoConfig:
		return "sdoConfig"
	case KindSdoDataRaw:
		return "sdoDataRaw"
	case KindIdnConfig:
		return "idnConfig"
	case KindIdnDataRaw:
		return "idnDataRaw"
	case KindInitCmds:
		return "initCmds"
	case KindSyncManager:
		return "syncManager"
	case KindPdo:
		return "pdo"
	case KindPdoEntry:
		return "pdoEntry"
	case KindComplexEntry:
		return "complexEntry"
	case KindModParam:
		return "modParam"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// ValueKind describes how a PDO entry's raw bits are exposed.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueBit
	ValueS32
	ValueU32
	ValueFloat
	ValueFloatUnsigned
	ValueFloatIeee
	ValueFloatDoubleIeee
	ValueComplex
)

var valueKindNames = map[ValueKind]string{
	ValueNone:            "",
	ValueBit:             "bit",
	ValueS32:             "s32",
	ValueU32:             "u32",
	ValueFloat:           "float",
	ValueFloatUnsigned:   "float-unsigned",
	ValueFloatIeee:       "float-ieee",
	ValueFloatDoubleIeee: "float-double-ieee",
	ValueComplex:         "complex",
}

func (v ValueKind) String() string {
	if s, ok := valueKindNames[v]; ok {
		return s
	}
	return fmt.Sprintf("valuekind(%d)", uint8(v))
}

// IsFloat reports whether the kind carries a float pin.
func (v ValueKind) IsFloat() bool {
	switch v {
	case ValueFloat, ValueFloatUnsigned, ValueFloatIeee, ValueFloatDoubleIeee:
		return true
	}
	return false
}

// ParseValueKind maps a halType attribute value, case-insensitively.
func ParseValueKind(s string) (ValueKind, bool) {
	for k, name := range valueKindNames {
		if k != ValueNone && strings.EqualFold(name, s) {
			return k, true
		}
	}
	return ValueNone, false
}

// Sync manager directions.
const (
	DirInvalid uint8 = iota
	DirOutput
	DirInput
)

// Application layer states an IDN write is bound to.
const (
	StatePreOp  uint8 = 2
	StateSafeOp uint8 = 4
)

// ModParamType selects the interpretation of ModParam.Value.
type ModParamType uint32

const (
	ModParamNone ModParamType = iota
	ModParamBit
	ModParamU32
	ModParamS32
	ModParamFloat
	ModParamString
)

func (t ModParamType) String() string {
	switch t {
	case ModParamBit:
		return "bit"
	case ModParamU32:
		return "u32"
	case ModParamS32:
		return "s32"
	case ModParamFloat:
		return "float"
	case ModParamString:
		return "string"
	default:
		return "none"
	}
}

// Header precedes the record stream.
type Header struct {
	Magic  uint32
	Length uint32
}

// Master is the fieldbus controller record.
type Master struct {
	Kind               Kind
	Index              int32
	Name               Name
	AppTimePeriod      uint32
	RefClockSyncCycles int32
}

// Slave is one device on a master. The counters are accumulated while its
// children are compiled.
type Slave struct {
	Kind       Kind
	Index      int32
	TypeName   Name
	Name       Name
	VID        uint32
	PID        uint32
	ConfigPdos uint8
	Pad        [3]byte

	SyncManagerCount uint32
	PdoCount         uint32
	PdoEntryCount    uint32
	PdoMappingCount  uint32
	SdoConfigLength  uint32
	IdnConfigLength  uint32
	ModParamCount    uint32
}

// DcConf holds distributed clock parameters.
type DcConf struct {
	Kind           Kind
	AssignActivate uint16
	Pad            [2]byte
	Sync0Cycle     uint32
	Sync0Shift     int32
	Sync1Cycle     uint32
	Sync1Shift     int32
}

// Watchdog configures the slave's process data watchdog.
type Watchdog struct {
	Kind      Kind
	Divider   uint16
	Intervals uint16
}

// SdoConfig is followed by Length bytes of raw data.
type SdoConfig struct {
	Kind     Kind
	Index    uint16
	SubIndex int16
	Length   uint32
}

// IdnConfig is followed by Length bytes of raw data.
type IdnConfig struct {
	Kind   Kind
	Drive  uint8
	State  uint8
	Idn    uint16
	Length uint32
}

// SyncManager assigns PDOs to one sync manager channel.
type SyncManager struct {
	Kind     Kind
	Index    uint8
	Dir      uint8
	Pad      [2]byte
	PdoCount uint32
}

// Pdo is one process data object mapped into a sync manager.
type Pdo struct {
	Kind          Kind
	Index         uint16
	Pad           [2]byte
	PdoEntryCount uint32
}

// PdoEntry maps one object dictionary entry, optionally to a pin.
type PdoEntry struct {
	Kind      Kind
	Index     uint16
	SubIndex  uint8
	BitLength uint8
	ValueKind ValueKind
	Pad       [3]byte
	Scale     float64
	Offset    float64
	Pin       Name
}

// ComplexEntry is a bit field packed into a complex PdoEntry.
type ComplexEntry struct {
	Kind      Kind
	BitOffset uint8
	BitLength uint8
	ValueKind ValueKind
	Pad       [1]byte
	Scale     float64
	Offset    float64
	Pin       Name
}

// ModParam is a typed module parameter value for a slave type.
type ModParam struct {
	Kind  Kind
	ID    int32
	Type  ModParamType
	Value [StrMaxLen]byte
}

// Bit returns the value of a bit parameter.
func (m *ModParam) Bit() bool { return m.Value[0] != 0 }

// U32 returns the value of an unsigned parameter.
func (m *ModParam) U32() uint32 { return binary.LittleEndian.Uint32(m.Value[:]) }

// S32 returns the value of a signed parameter.
func (m *ModParam) S32() int32 { return int32(binary.LittleEndian.Uint32(m.Value[:])) }

// Float returns the value of a float parameter.
func (m *ModParam) Float() float64 {
	var f float64
	_, _ = binary.Decode(m.Value[:], binary.LittleEndian, &f)
	return f
}

// Str returns the value of a string parameter.
func (m *ModParam) Str() string { return cstring(m.Value[:]) }

func (m *ModParam) SetBit(v bool) {
	m.Type = ModParamBit
	m.Value = [StrMaxLen]byte{}
	if v {
		m.Value[0] = 1
	}
}

func (m *ModParam) SetU32(v uint32) {
	m.Type = ModParamU32
	m.Value = [StrMaxLen]byte{}
	binary.LittleEndian.PutUint32(m.Value[:], v)
}

func (m *ModParam) SetS32(v int32) {
	m.Type = ModParamS32
	m.Value = [StrMaxLen]byte{}
	binary.LittleEndian.PutUint32(m.Value[:], uint32(v))
}

func (m *ModParam) SetFloat(v float64) {
	m.Type = ModParamFloat
	m.Value = [StrMaxLen]byte{}
	_, _ = binary.Encode(m.Value[:], binary.LittleEndian, v)
}

func (m *ModParam) SetStr(n Name) {
	m.Type = ModParamString
	m.Value = n
}

// Terminator ends the record stream.
type Terminator struct {
	Kind Kind
}

// Size returns the encoded size of a record type.
func Size[T any]() int {
	var v T
	return binary.Size(&v)
}
