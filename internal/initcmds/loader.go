// Package initcmds reads mailbox init command files (the CoE/SoE
// InitCmds section of an EtherCAT slave description) and replays them as
// SDO and IDN configuration.
package initcmds

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KevinKickass/ecconf/internal/compiler"
	"github.com/KevinKickass/ecconf/internal/records"
	"go.uber.org/zap"
)

type mailbox struct {
	XMLName xml.Name `xml:"EtherCATMailbox"`
	CoE     []coeCmd `xml:"CoE>InitCmds>InitCmd"`
	SoE     []soeCmd `xml:"SoE>InitCmds>InitCmd"`
}

type coeCmd struct {
	Transition     []string `xml:"Transition"`
	Index          string   `xml:"Index"`
	SubIndex       string   `xml:"SubIndex"`
	Data           string   `xml:"Data"`
	CompleteAccess string   `xml:"CompleteAccess"`
	Comment        string   `xml:"Comment"`
}

type soeCmd struct {
	Transition []string `xml:"Transition"`
	IDN        string   `xml:"IDN"`
	Ch         string   `xml:"Ch"`
	Data       string   `xml:"Data"`
	Comment    string   `xml:"Comment"`
}

// Loader resolves relative file names against baseDir.
type Loader struct {
	baseDir string
	logger  *zap.Logger
}

func NewLoader(baseDir string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{baseDir: baseDir, logger: logger}
}

// LoadInitCmds implements compiler.InitCmdLoader.
func (l *Loader) LoadInitCmds(filename string, sink compiler.InitCmdSink) error {
	path := filename
	if !filepath.IsAbs(path) && l.baseDir != "" {
		path = filepath.Join(l.baseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read init commands: %w", err)
	}

	var mb mailbox
	if err := xml.Unmarshal(data, &mb); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	for i, cmd := range mb.CoE {
		if err := applyCoE(cmd, sink); err != nil {
			return fmt.Errorf("%s: CoE InitCmd %d: %w", path, i, err)
		}
	}
	for i, cmd := range mb.SoE {
		if err := applySoE(cmd, sink); err != nil {
			return fmt.Errorf("%s: SoE InitCmd %d: %w", path, i, err)
		}
	}

	l.logger.Debug("Init commands loaded",
		zap.String("path", path),
		zap.Int("coe", len(mb.CoE)),
		zap.Int("soe", len(mb.SoE)))
	return nil
}

func applyCoE(cmd coeCmd, sink compiler.InitCmdSink) error {
	// SDO downloads are only issued on the PREOP->SAFEOP transition.
	if !hasTransition(cmd.Transition, "PS") {
		return fmt.Errorf("unsupported transition %v", cmd.Transition)
	}

	index, err := parseNumber(cmd.Index, 0xfffe)
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}
	sub, err := parseNumber(orZero(cmd.SubIndex), 0xfe)
	if err != nil {
		return fmt.Errorf("subindex: %w", err)
	}
	data, err := parseData(cmd.Data)
	if err != nil {
		return err
	}

	subIndex := int16(sub)
	if ok, _ := strconv.ParseBool(strings.TrimSpace(cmd.CompleteAccess)); ok {
		subIndex = records.SdoCompleteSubIndex
	}
	return sink.AddSdoConfig(uint16(index), subIndex, data)
}

func applySoE(cmd soeCmd, sink compiler.InitCmdSink) error {
	var state uint8
	switch {
	case hasTransition(cmd.Transition, "IP"):
		state = records.StatePreOp
	case hasTransition(cmd.Transition, "PS"):
		state = records.StateSafeOp
	default:
		return fmt.Errorf("unsupported transition %v", cmd.Transition)
	}

	idn, err := parseNumber(cmd.IDN, records.MaxIdn)
	if err != nil {
		return fmt.Errorf("idn: %w", err)
	}
	drive, err := parseNumber(orZero(cmd.Ch), 7)
	if err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	data, err := parseData(cmd.Data)
	if err != nil {
		return err
	}
	return sink.AddIdnConfig(uint8(drive), uint16(idn), state, data)
}

func hasTransition(ts []string, want string) bool {
	for _, t := range ts {
		if strings.EqualFold(strings.TrimSpace(t), want) {
			return true
		}
	}
	return false
}

func orZero(s string) string {
	if strings.TrimSpace(s) == "" {
		return "0"
	}
	return s
}

// parseNumber accepts the description file notations: decimal or #x hex.
func parseNumber(s string, max uint64) (uint64, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "#x") || strings.HasPrefix(s, "#X") {
		s, base = s[2:], 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if v > max {
		return 0, fmt.Errorf("%d out of range", v)
	}
	return v, nil
}

func parseData(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return data, nil
}
