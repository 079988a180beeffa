package slavetypes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/KevinKickass/ecconf/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBuiltinRegistry(t *testing.T) {
	reg := NewRegistry()

	generic, ok := reg.Lookup(Generic)
	require.True(t, ok)
	assert.True(t, generic.IsGeneric())
	assert.Nil(t, generic.ModParams)

	stepper, ok := reg.Lookup("EL7041")
	require.True(t, ok)
	assert.False(t, stepper.IsGeneric())
	p, ok := stepper.FindModParam("maxCurrent")
	require.True(t, ok)
	assert.Equal(t, records.ModParamU32, p.Type)

	_, ok = stepper.FindModParam("maxcurrent")
	assert.False(t, ok, "parameter names are case-sensitive")

	_, ok = reg.Lookup("el7041")
	assert.False(t, ok, "type names are case-sensitive")
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()

	assert.Error(t, reg.Register(&Type{Name: Generic}))
	assert.Error(t, reg.Register(&Type{Name: ""}))
	assert.Error(t, reg.Register(&Type{
		Name: "X1",
		ModParams: []ModParamDesc{
			{Name: "a", Type: records.ModParamBit},
			{Name: "a", ID: 1, Type: records.ModParamU32},
		},
	}))
	require.NoError(t, reg.Register(&Type{Name: "X1"}))
	assert.Contains(t, reg.Names(), "X1")
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoaderLoadsDescriptors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mydrive.yaml", `
name: MyDrive
vid: 0x00000539
pid: 0x00001234
description: test drive
modparams:
  - name: gain
    id: 7
    type: float
  - name: label
    id: 8
    type: string
  - name: offset
    id: 9
    type: s32
`)
	writeFile(t, dir, "notes.txt", "ignored")

	loader, err := NewLoader([]string{dir, filepath.Join(dir, "missing")}, zaptest.NewLogger(t))
	require.NoError(t, err)

	reg := NewRegistry()
	n, err := loader.LoadInto(reg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	typ, ok := reg.Lookup("MyDrive")
	require.True(t, ok)
	assert.Equal(t, uint32(0x539), typ.VID)
	assert.Equal(t, uint32(0x1234), typ.PID)
	require.Len(t, typ.ModParams, 3)
	assert.Equal(t, ModParamDesc{Name: "gain", ID: 7, Type: records.ModParamFloat}, typ.ModParams[0])
	assert.Equal(t, records.ModParamString, typ.ModParams[1].Type)
	assert.Equal(t, records.ModParamS32, typ.ModParams[2].Type)
}

func TestLoaderRejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "vid: 1\n"},
		{"unknown field", "name: A\ncolor: red\n"},
		{"bad modparam type", "name: A\nmodparams:\n  - name: x\n    id: 1\n    type: u64\n"},
		{"negative vid", "name: A\nvid: -1\n"},
		{"not yaml", "name: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "bad.yaml", tt.content)

			loader, err := NewLoader([]string{dir}, nil)
			require.NoError(t, err)

			_, err = loader.LoadInto(NewRegistry())
			assert.Error(t, err)
		})
	}
}

func TestLoaderRejectsBuiltinRedefinition(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ek.yml", "name: EK1100\n")

	loader, err := NewLoader([]string{dir}, nil)
	require.NoError(t, err)

	_, err = loader.LoadInto(NewRegistry())
	assert.ErrorContains(t, err, "already defined")
}
