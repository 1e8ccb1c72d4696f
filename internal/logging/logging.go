// Package logging builds the zap loggers used by serialscope binaries.
package logging

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	EnvLogLevel = "SERIALSCOPE_LOG_LEVEL"
	EnvLogFile  = "SERIALSCOPE_LOG_FILE"
)

// Config selects the level and an optional rotated log file.
type Config struct {
	Level       string `toml:"level"`
	File        string `toml:"file"`
	MaxSizeMB   int    `toml:"max_size_mb"`
	MaxBackups  int    `toml:"max_backups"`
	MaxAgeDays  int    `toml:"max_age_days"`
	Development bool   `toml:"development"`
}

// New returns a logger writing to stderr and, when File is set, to a
// lumberjack-rotated JSON file. The returned func syncs and closes outputs.
// The log file's directory must already exist.
func New(cfg Config) (*zap.Logger, func(), error) {
	applyEnvOverrides(&cfg)

	level, enabled := parseLevel(cfg.Level)
	if !enabled {
		return zap.NewNop(), func() {}, nil
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg := encCfg
	consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}
	var file *lumberjack.Logger
	if cfg.File != "" {
		dir := filepath.Dir(cfg.File)
		if info, err := os.Stat(dir); err != nil {
			return nil, nil, errors.Wrapf(err, "log directory %s", dir)
		} else if !info.IsDir() {
			return nil, nil, errors.Newf("log directory %s is not a directory", dir)
		}
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(file), level))
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	logger := zap.New(zapcore.NewTee(cores...), opts...)

	cleanup := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.File = v
	}
}

// parseLevel maps a level name to zap. The second result is false when
// logging is turned off.
func parseLevel(raw string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace", "debug":
		return zapcore.DebugLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "disabled", "off", "none":
		return zapcore.InfoLevel, false
	default:
		return zapcore.InfoLevel, true
	}
}
