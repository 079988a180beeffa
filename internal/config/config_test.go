package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8192, cfg.Compiler.ChunkSize)
	assert.Equal(t, "/dev/shm/ecconf", cfg.Output.Path)
	assert.Equal(t, []string{"/etc/ecconf/slave-types"}, cfg.SlaveTypes.SearchPaths)
	assert.Equal(t, 5*time.Second, cfg.Status.ShutdownTimeout)
	assert.Zero(t, cfg.Status.HTTPPort)

	assert.Error(t, cfg.Validate(), "input is required")
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ecconf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
input: /etc/ecconf/line1.xml
compiler:
  chunk_size: 1024
output:
  path: /dev/shm/from-file
status:
  http_port: 9100
  shutdown_timeout: 2s
log:
  level: debug
`), 0o644))

	t.Setenv("ECCONF_OUTPUT_PATH", "/dev/shm/from-env")
	t.Setenv("ECCONF_STATUS_HTTP_PORT", "9200")

	fs := pflag.NewFlagSet("ecconf", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http-port", "9300"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "/etc/ecconf/line1.xml", cfg.Input)
	assert.Equal(t, 1024, cfg.Compiler.ChunkSize, "file beats default")
	assert.Equal(t, "/dev/shm/from-env", cfg.Output.Path, "env beats file")
	assert.Equal(t, 9300, cfg.Status.HTTPPort, "flag beats env")
	assert.Equal(t, 2*time.Second, cfg.Status.ShutdownTimeout)

	lvl, err := cfg.Log.ZapLevel()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	assert.NoError(t, cfg.Validate())
}

func TestLoadInputFromEnv(t *testing.T) {
	t.Setenv("ECCONF_INPUT", "/tmp/topology.xml")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/topology.xml", cfg.Input)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Input:    "in.xml",
			Compiler: CompilerConfig{ChunkSize: 8192},
			Output:   OutputConfig{Path: "/dev/shm/ecconf"},
			Log:      LogConfig{Level: "info"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Compiler.ChunkSize = 0 }},
		{"negative buffer", func(c *Config) { c.Compiler.MaxBufferBytes = -1 }},
		{"no output", func(c *Config) { c.Output.Path = "" }},
		{"bad port", func(c *Config) { c.Status.HTTPPort = 70000 }},
		{"bad grpc port", func(c *Config) { c.Status.GRPCPort = -1 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
