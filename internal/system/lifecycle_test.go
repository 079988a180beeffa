package system

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/KevinKickass/ecconf/internal/config"
	"github.com/KevinKickass/ecconf/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to SystemState
		ok       bool
	}{
		{StateInitializing, StateCompiling, true},
		{StateCompiling, StatePublished, true},
		{StatePublished, StateStopping, true},
		{StateStopping, StateStopped, true},
		{StateError, StateStopping, true},
		{StateInitializing, StatePublished, false},
		{StatePublished, StateCompiling, false},
		{StateStopped, StateInitializing, false},
		{SystemState(42), StateStopped, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func newTestConfig(t *testing.T, doc string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "topology.xml")
	require.NoError(t, os.WriteFile(input, []byte(doc), 0o644))

	return &config.Config{
		Input:      input,
		Compiler:   config.CompilerConfig{ChunkSize: 8192},
		SlaveTypes: config.SlaveTypesConfig{SearchPaths: []string{filepath.Join(dir, "types")}},
		Output:     config.OutputConfig{Path: filepath.Join(dir, "ecconf")},
		Log:        config.LogConfig{Level: "debug"},
	}
}

func TestLifecyclePublishesAndWithdraws(t *testing.T) {
	cfg := newTestConfig(t, `<masters><master idx="0"><slave idx="0" type="EK1100"/><slave idx="1" type="EL7041"/></master></masters>`)

	lm, err := NewLifecycleManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, StateInitializing, lm.State())

	require.NoError(t, lm.Start(context.Background()))
	assert.Equal(t, StatePublished, lm.State())

	st := lm.GetCurrentStatus()
	assert.Equal(t, "PUBLISHED", st.State)
	assert.EqualValues(t, 1, st.MasterCount)
	assert.EqualValues(t, 2, st.SlaveCount)
	assert.NotEmpty(t, st.RunID)
	assert.Empty(t, st.Error)

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	h, err := records.DecodeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, st.Length, h.Length)

	require.NoError(t, lm.Shutdown(context.Background()))
	assert.Equal(t, StateStopped, lm.State())
	_, err = os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, lm.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestLifecycleCompileFailure(t *testing.T) {
	cfg := newTestConfig(t, `<masters><master><slave type="nope"/></master></masters>`)

	// An image left by someone else must survive a failed run.
	require.NoError(t, os.WriteFile(cfg.Output.Path, []byte("previous"), 0o644))

	lm, err := NewLifecycleManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	err = lm.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown slave type")

	st := lm.GetCurrentStatus()
	assert.Equal(t, "ERROR", st.State)
	assert.NotEmpty(t, st.Error)

	require.NoError(t, lm.Shutdown(context.Background()))
	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestLifecycleMissingInput(t *testing.T) {
	cfg := newTestConfig(t, `<masters/>`)
	cfg.Input = filepath.Join(t.TempDir(), "absent.xml")

	lm, err := NewLifecycleManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Error(t, lm.Start(context.Background()))
	assert.Equal(t, StateError, lm.State())
}

func TestLifecycleLoadsCustomTypes(t *testing.T) {
	cfg := newTestConfig(t, `<masters><master><slave type="Spindle"><modParam name="rpm" value="12000"/></slave></master></masters>`)
	dir := cfg.SlaveTypes.SearchPaths[0]
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spindle.yaml"), []byte(`
name: Spindle
vid: 0x1234
pid: 0x1
modparams:
  - name: rpm
    id: 1
    type: u32
`), 0o644))

	lm, err := NewLifecycleManager(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, lm.Start(context.Background()))
	require.NoError(t, lm.Shutdown(context.Background()))
}
