package initcmds

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KevinKickass/ecconf/internal/compiler"
	"github.com/KevinKickass/ecconf/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type sdoWrite struct {
	index    uint16
	subIndex int16
	data     []byte
}

type idnWrite struct {
	drive uint8
	idn   uint16
	state uint8
	data  []byte
}

type recordingSink struct {
	sdos []sdoWrite
	idns []idnWrite
}

func (r *recordingSink) AddSdoConfig(index uint16, subIndex int16, data []byte) error {
	r.sdos = append(r.sdos, sdoWrite{index, subIndex, data})
	return nil
}

func (r *recordingSink) AddIdnConfig(drive uint8, idn uint16, state uint8, data []byte) error {
	r.idns = append(r.idns, idnWrite{drive, idn, state, data})
	return nil
}

const driveCmds = `<?xml version="1.0"?>
<EtherCATMailbox>
  <CoE>
    <InitCmds>
      <InitCmd>
        <Transition>PS</Transition>
        <Index>#x8010</Index>
        <SubIndex>1</SubIndex>
        <Data>e803</Data>
        <Comment>max current</Comment>
      </InitCmd>
      <InitCmd>
        <Transition>PS</Transition>
        <Index>7184</Index>
        <Data>0100 0016</Data>
        <CompleteAccess>1</CompleteAccess>
      </InitCmd>
    </InitCmds>
  </CoE>
  <SoE>
    <InitCmds>
      <InitCmd>
        <Transition>IP</Transition>
        <IDN>32</IDN>
        <Ch>1</Ch>
        <Data>0b00</Data>
      </InitCmd>
      <InitCmd>
        <Transition>PS</Transition>
        <IDN>#x8000</IDN>
        <Data>01</Data>
      </InitCmd>
    </InitCmds>
  </SoE>
</EtherCATMailbox>
`

func TestLoadInitCmds(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drive.xml"), []byte(driveCmds), 0o644))

	sink := &recordingSink{}
	require.NoError(t, NewLoader(dir, zaptest.NewLogger(t)).LoadInitCmds("drive.xml", sink))

	assert.Equal(t, []sdoWrite{
		{0x8010, 1, []byte{0xe8, 0x03}},
		{0x1c10, records.SdoCompleteSubIndex, []byte{0x01, 0x00, 0x00, 0x16}},
	}, sink.sdos)
	assert.Equal(t, []idnWrite{
		{1, 32, records.StatePreOp, []byte{0x0b, 0x00}},
		{0, 0x8000, records.StateSafeOp, []byte{0x01}},
	}, sink.idns)
}

func TestLoadInitCmdsErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not a mailbox", `<Other/>`},
		{"bad index", `<EtherCATMailbox><CoE><InitCmds><InitCmd><Transition>PS</Transition><Index>#xZZ</Index></InitCmd></InitCmds></CoE></EtherCATMailbox>`},
		{"unsupported coe transition", `<EtherCATMailbox><CoE><InitCmds><InitCmd><Transition>SO</Transition><Index>1</Index></InitCmd></InitCmds></CoE></EtherCATMailbox>`},
		{"odd data", `<EtherCATMailbox><SoE><InitCmds><InitCmd><Transition>IP</Transition><IDN>1</IDN><Data>abc</Data></InitCmd></InitCmds></SoE></EtherCATMailbox>`},
		{"idn out of range", `<EtherCATMailbox><SoE><InitCmds><InitCmd><Transition>IP</Transition><IDN>#xffff</IDN></InitCmd></InitCmds></SoE></EtherCATMailbox>`},
		{"channel out of range", `<EtherCATMailbox><SoE><InitCmds><InitCmd><Transition>IP</Transition><IDN>1</IDN><Ch>8</Ch></InitCmd></InitCmds></SoE></EtherCATMailbox>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "cmds.xml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			assert.Error(t, NewLoader("", nil).LoadInitCmds(path, &recordingSink{}))
		})
	}

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, NewLoader(t.TempDir(), nil).LoadInitCmds("absent.xml", &recordingSink{}))
	})
}

func TestLoadInitCmdsLargestIdn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmds.xml")
	require.NoError(t, os.WriteFile(path, []byte(
		`<EtherCATMailbox><SoE><InitCmds><InitCmd><Transition>IP</Transition><IDN>65534</IDN></InitCmd></InitCmds></SoE></EtherCATMailbox>`), 0o644))

	sink := &recordingSink{}
	require.NoError(t, NewLoader("", nil).LoadInitCmds(path, sink))
	require.Len(t, sink.idns, 1)
	assert.Equal(t, uint16(records.MaxIdn), sink.idns[0].idn)
}

func TestCompilerIntegration(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drive.xml"), []byte(driveCmds), 0o644))

	c := compiler.New(compiler.Options{
		InitCmds: NewLoader(dir, nil),
		Logger:   zaptest.NewLogger(t),
	})
	blob, err := c.Compile(context.Background(), strings.NewReader(
		`<masters><master><slave type="AX5203"><initCmds filename="drive.xml"/></slave></master></masters>`))
	require.NoError(t, err)

	var sdos, idns int
	require.NoError(t, records.Walk(blob.Bytes(), func(r records.Record) error {
		switch r.Kind {
		case records.KindSdoConfig:
			sdos++
		case records.KindIdnConfig:
			idns++
		}
		return nil
	}))
	assert.Equal(t, 2, sdos)
	assert.Equal(t, 2, idns)
}
