// Package xlog wires the engine's structured logging: cosmossdk.io/log (a
// zerolog-backed logger) for stdout/stderr, and gopkg.in/natefinch/lumberjack.v2
// for the optional rotating log file named by --log-file.
package xlog

import (
	"io"
	"os"

	sdklog "cosmossdk.io/log"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FlagLogLevel      = "log-level"
	FlagLogFormat     = "log-format"
	FlagLogNoColor    = "log-no-color"
	FlagLogFile       = "log-file"
	FlagLogMaxSize    = "log-max-size"
	FlagLogMaxBackups = "log-max-backups"
	FlagLogMaxAge     = "log-max-age"

	LogFormatPlain = "plain"
	LogFormatJSON  = "json"
)

// AddFlags registers the engine's logging flags on a command.
func AddFlags(flags *pflag.FlagSet) {
	flags.String(FlagLogLevel, "info", "logging level (trace|debug|info|warn|error|fatal|panic)")
	flags.String(FlagLogFormat, LogFormatPlain, "logging format (json|plain)")
	flags.Bool(FlagLogNoColor, true, "disable colored log output")
	flags.String(FlagLogFile, "", "if set, also write logs to this file (rotated via lumberjack)")
	flags.Int(FlagLogMaxSize, 1024, "maximum size in megabytes of a log file before rotation")
	flags.Int(FlagLogMaxBackups, 168, "maximum number of rotated log files to retain")
	flags.Int(FlagLogMaxAge, 7, "maximum age in days of a rotated log file")
}

// Options captures the resolved logging flags.
type Options struct {
	Level      string
	Format     string
	NoColor    bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// OptionsFromFlags reads Options back out of a flag set populated by AddFlags.
func OptionsFromFlags(flags *pflag.FlagSet) (Options, error) {
	var o Options
	var err error
	if o.Level, err = flags.GetString(FlagLogLevel); err != nil {
		return o, err
	}
	if o.Format, err = flags.GetString(FlagLogFormat); err != nil {
		return o, err
	}
	if o.NoColor, err = flags.GetBool(FlagLogNoColor); err != nil {
		return o, err
	}
	if o.File, err = flags.GetString(FlagLogFile); err != nil {
		return o, err
	}
	if o.MaxSizeMB, err = flags.GetInt(FlagLogMaxSize); err != nil {
		return o, err
	}
	if o.MaxBackups, err = flags.GetInt(FlagLogMaxBackups); err != nil {
		return o, err
	}
	if o.MaxAgeDays, err = flags.GetInt(FlagLogMaxAge); err != nil {
		return o, err
	}
	return o, nil
}

// New builds a logger from Options. When File is set (via --log-file),
// output is duplicated to stdout and the rotating file. `regen` does not
// pass --log-file on to the `regen-step` subprocesses it launches.
func New(o Options) sdklog.Logger {
	var out io.Writer = os.Stdout
	if o.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			MaxAge:     o.MaxAgeDays,
		}
		out = io.MultiWriter(os.Stdout, rotating)
	}

	opts := []sdklog.Option{}
	if o.Format == LogFormatJSON {
		opts = append(opts, sdklog.OutputJSONOption())
	}
	opts = append(opts, sdklog.ColorOption(!o.NoColor))
	if lvl, err := zerolog.ParseLevel(o.Level); err == nil {
		opts = append(opts, sdklog.LevelOption(lvl))
	}

	return sdklog.NewLogger(out, opts...)
}
