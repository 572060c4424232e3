package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/go-drift/locate/internal/config"
	"github.com/go-drift/locate/pkg/errors"
	"github.com/go-drift/locate/pkg/platform"
)

// commonFlags are shared by run and check. Set values override locate.yaml.
type commonFlags struct {
	configPath string
	source     string
	codec      string
	logLevel   string
	grant      []string
	verbose    bool

	fs *pflag.FlagSet
}

func newCommonFlags(name string) *commonFlags {
	f := &commonFlags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	f.fs.StringVar(&f.configPath, "config", config.FileName, "path to the configuration file")
	f.fs.StringVar(&f.source, "source", "", "location source: static, nmea, google or chain")
	f.fs.StringVar(&f.codec, "codec", "", "bridge codec: json or cbor")
	f.fs.StringVar(&f.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	f.fs.StringArrayVar(&f.grant, "grant", nil, "permission granted at start (fine, coarse or a full id); repeatable")
	f.fs.BoolVar(&f.verbose, "verbose", false, "include stack traces in error logs")
	return f
}

func (f *commonFlags) parse(args []string) error {
	return f.fs.Parse(args)
}

// resolve loads the configuration file and applies flag overrides.
func (f *commonFlags) resolve() (*config.Resolved, error) {
	cfg, err := config.LoadOptional(f.configPath)
	if err != nil {
		return nil, err
	}
	f.apply(cfg)
	return cfg.Resolve(f.configPath)
}

func (f *commonFlags) apply(cfg *config.Config) {
	if f.fs.Changed("source") {
		cfg.Source.Kind = f.source
	}
	if f.fs.Changed("codec") {
		cfg.Codec = f.codec
	}
	if f.fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if f.fs.Changed("grant") {
		cfg.Permissions.Granted = append(cfg.Permissions.Granted, f.grant...)
	}
	if f.fs.Changed("verbose") {
		cfg.Log.Verbose = f.verbose
	}
}

// setup installs the logger, error handler and bridge codec for r.
func setup(r *config.Resolved) (zerolog.Logger, error) {
	logger := newLogger(r.LogLevel)
	handler := errors.NewLogHandler(&logger)
	handler.Verbose = r.Verbose
	errors.SetHandler(handler)

	if r.Codec == "cbor" {
		c, err := platform.NewCborCodec()
		if err != nil {
			return logger, fmt.Errorf("cbor codec: %w", err)
		}
		platform.SetCodec(c)
	}
	return logger, nil
}

func newLogger(level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// hostAvailability is what the terminal host answers availability checks
// with: the configured code, else missing service for an unusable source.
func hostAvailability(r *config.Resolved) platform.AvailabilityCode {
	if r.Unavailable != nil {
		return *r.Unavailable
	}
	if !r.Source.Configured() {
		return platform.AvailabilityServiceMissing
	}
	return platform.AvailabilitySuccess
}
