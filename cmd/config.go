// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jcodagnone/geosint/acquire"
	"github.com/jcodagnone/geosint/geoclip"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is read when present and --config is not given.
const DefaultConfigFile = "geosint.yaml"

// Options are the settings shared by every command. They come from the
// defaults, then the configuration file, then the command line.
type Options struct {
	WeightsDir      string        `yaml:"weights_dir"`
	OnnxRuntimeLib  string        `yaml:"onnxruntime_lib"`
	DownloadPath    string        `yaml:"download_path"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	TraceHTTP       bool          `yaml:"trace_http"`
	TraceHTTPBody   bool          `yaml:"trace_http_body"`
	Basemap         string        `yaml:"basemap"`
	PlotOutput      string        `yaml:"plot_output"`
	MaxAttempts     int           `yaml:"max_attempts"`
	LogLevel        string        `yaml:"log_level"`
}

func defaultOptions() Options {
	return Options{
		WeightsDir:      geoclip.DefaultWeightsDir,
		DownloadPath:    acquire.DefaultDownloadPath,
		DownloadTimeout: 60 * time.Second,
		LogLevel:        zerolog.LevelInfoValue,
	}
}

func (o *Options) validate() error {
	if o.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must not be negative (%d)", o.MaxAttempts)
	}

	if o.DownloadTimeout < 0 {
		return fmt.Errorf("download_timeout must not be negative (%s)", o.DownloadTimeout)
	}

	if _, err := zerolog.ParseLevel(o.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}

// loadConfig reads the YAML file at path into opts. An empty path means
// DefaultConfigFile, which may be absent. Flags changed on the command line
// keep their value.
func loadConfig(path string, flags *pflag.FlagSet, opts *Options) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is chosen by the operator
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return opts.validate()
	}

	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	changed := map[string]string{}

	if flags != nil {
		flags.Visit(func(f *pflag.Flag) {
			changed[f.Name] = f.Value.String()
		})
	}

	if err := yaml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	for name, value := range changed {
		if err := flags.Set(name, value); err != nil {
			return fmt.Errorf("restoring --%s: %w", name, err)
		}
	}

	return opts.validate()
}

// newLogger returns the diagnostics logger. Every entry carries the run id.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Str("run", uuid.NewString()).
		Logger(), nil
}
