package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Input      string           `mapstructure:"input"`
	Compiler   CompilerConfig   `mapstructure:"compiler"`
	SlaveTypes SlaveTypesConfig `mapstructure:"slave_types"`
	InitCmds   InitCmdsConfig   `mapstructure:"init_cmds"`
	Output     OutputConfig     `mapstructure:"output"`
	Status     StatusConfig     `mapstructure:"status"`
	Log        LogConfig        `mapstructure:"log"`
}

type CompilerConfig struct {
	ChunkSize      int `mapstructure:"chunk_size"`
	MaxBufferBytes int `mapstructure:"max_buffer_bytes"`
}

type SlaveTypesConfig struct {
	SearchPaths []string `mapstructure:"search_paths"`
}

// InitCmdsConfig.BaseDir resolves relative initCmds file names. Empty
// means the directory of the input document.
type InitCmdsConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
}

type StatusConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"input":      "input",
	"output":     "output.path",
	"types-path": "slave_types.search_paths",
	"chunk-size": "compiler.chunk_size",
	"max-buffer": "compiler.max_buffer_bytes",
	"http-port":  "status.http_port",
	"grpc-port":  "status.grpc_port",
	"log-level":  "log.level",
}

// RegisterFlags adds the command line overrides to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to a YAML config file")
	fs.StringP("input", "i", "", "topology XML document")
	fs.StringP("output", "o", "/dev/shm/ecconf", "shared memory destination")
	fs.StringSlice("types-path", []string{"/etc/ecconf/slave-types"}, "slave type descriptor directories")
	fs.Int("chunk-size", 8192, "input read size in bytes")
	fs.Int("max-buffer", 0, "output size limit in bytes, 0 for none")
	fs.Int("http-port", 0, "status API port, 0 disables it")
	fs.Int("grpc-port", 0, "gRPC health service port, 0 disables it")
	fs.String("log-level", "info", "log level")
}

// Load merges defaults, the optional config file at path, ECCONF_*
// environment variables and changed flags, in increasing precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("compiler.chunk_size", 8192)
	v.SetDefault("compiler.max_buffer_bytes", 0)
	v.SetDefault("slave_types.search_paths", []string{"/etc/ecconf/slave-types"})
	v.SetDefault("output.path", "/dev/shm/ecconf")
	v.SetDefault("status.http_port", 0)
	v.SetDefault("status.grpc_port", 0)
	v.SetDefault("status.shutdown_timeout", "5s")
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("ECCONF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	if err := v.BindEnv("input"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("init_cmds.base_dir"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the values a run cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Input == "" {
		errs = append(errs, errors.New("input: no topology document given"))
	}
	if c.Compiler.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("compiler.chunk_size: must be positive, got %d", c.Compiler.ChunkSize))
	}
	if c.Compiler.MaxBufferBytes < 0 {
		errs = append(errs, fmt.Errorf("compiler.max_buffer_bytes: must not be negative, got %d", c.Compiler.MaxBufferBytes))
	}
	if c.Output.Path == "" {
		errs = append(errs, errors.New("output.path: empty"))
	}
	if c.Status.HTTPPort < 0 || c.Status.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("status.http_port: %d out of range", c.Status.HTTPPort))
	}
	if c.Status.GRPCPort < 0 || c.Status.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("status.grpc_port: %d out of range", c.Status.GRPCPort))
	}
	if _, err := c.Log.ZapLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

func (l LogConfig) ZapLevel() (zapcore.Level, error) {
	return zapcore.ParseLevel(l.Level)
}
