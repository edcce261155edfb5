package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/babylonchain/btc-bridge/util"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// NewRootLogger builds the bridge logger writing to w. format is one of
// json, console (or auto) and logfmt.
func NewRootLogger(format string, level string, w io.Writer) (*zap.Logger, error) {
	enc, err := newEncoder(format)
	if err != nil {
		return nil, err
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), lvl)), nil
}

// NewRootLoggerWithFile logs to stdout and appends to the file at logFile,
// creating its directory when missing.
func NewRootLoggerWithFile(logFile string, format string, level string) (*zap.Logger, error) {
	if err := util.MakeDirectory(filepath.Dir(logFile)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}

	return NewRootLogger(format, level, io.MultiWriter(os.Stdout, f))
}

func newEncoder(format string) (zapcore.Encoder, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.LevelKey = "lvl"
	cfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format(timestampLayout))
	}

	switch format {
	case "json":
		return zapcore.NewJSONEncoder(cfg), nil
	case "auto", "console":
		return zapcore.NewConsoleEncoder(cfg), nil
	case "logfmt":
		return zaplogfmt.NewEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("unrecognized log format %q", format)
	}
}

func parseLevel(level string) (zapcore.Level, error) {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return lvl, fmt.Errorf("unsupported log level: %s", level)
	}
	return lvl, nil
}
