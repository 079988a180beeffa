package compiler

import (
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/KevinKickass/ecconf/internal/records"
)

// plainAttrs drops namespace declarations, which are not configuration.
func plainAttrs(attrs []xml.Attr) []xml.Attr {
	out := attrs[:0:0]
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, a)
	}
	return out
}

// duplicateAttr reports the first attribute whose name was already seen.
// encoding/xml does not enforce unique attribute names.
func duplicateAttr(attrs []xml.Attr) (xml.Attr, bool) {
	for i, a := range attrs {
		for _, prev := range attrs[:i] {
			if prev.Name.Local == a.Name.Local {
				return a, true
			}
		}
	}
	return xml.Attr{}, false
}

func parseDec(s string, min, max int64) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.New("not a decimal integer")
	}
	if v < min || v > max {
		return 0, fmt.Errorf("out of range [%d, %d]", min, max)
	}
	return v, nil
}

func parseUdec(s string, max uint64) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.New("not an unsigned decimal integer")
	}
	if v > max {
		return 0, fmt.Errorf("out of range [0, %d]", max)
	}
	return v, nil
}

// parseHex accepts an optional 0x prefix.
func parseHex(s string, max uint64) (uint64, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.New("not a hexadecimal integer")
	}
	if v > max {
		return 0, fmt.Errorf("out of range [0, 0x%x]", max)
	}
	return v, nil
}

func parseBool(s string) (bool, error) {
	switch {
	case strings.EqualFold(s, "true"):
		return true, nil
	case strings.EqualFold(s, "false"):
		return false, nil
	}
	return false, errors.New("expected true or false")
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	return v, nil
}

// parseHexData decodes a raw data payload written as hex digits without
// separators. An empty payload is a valid zero-length block.
func parseHexData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if len(s)%2 != 0 {
		return nil, errors.New("odd number of hex digits")
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.New("invalid hex digit")
	}
	return data, nil
}

// parseIdn accepts either a decimal IDN or the S-<set>-<block> and
// P-<set>-<block> notations.
func parseIdn(s string) (uint16, error) {
	if s == "" {
		return 0, errors.New("empty idn")
	}

	switch pfx := unicode.ToUpper(rune(s[0])); {
	case pfx == 'S' || pfx == 'P':
		parts := strings.Split(s, "-")
		if len(parts) != 3 || len(parts[0]) != 1 {
			return 0, errors.New("expected <S|P>-<set>-<block>")
		}
		set, err := parseDec(parts[1], 0, 1<<3-1)
		if err != nil {
			return 0, fmt.Errorf("set: %w", err)
		}
		block, err := parseDec(parts[2], 0, 1<<12-1)
		if err != nil {
			return 0, fmt.Errorf("block: %w", err)
		}
		idn := uint16(set<<12 | block)
		if pfx == 'P' {
			idn |= 1 << 15
		}
		return idn, nil

	case pfx >= '0' && pfx <= '9':
		v, err := parseUdec(s, records.MaxIdn)
		if err != nil {
			return 0, err
		}
		return uint16(v), nil
	}

	return 0, errors.New("expected a number or <S|P>-<set>-<block>")
}
