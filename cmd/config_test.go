// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(opts *Options) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringVar(&opts.WeightsDir, "weights-dir", opts.WeightsDir, "")
	flags.DurationVar(&opts.DownloadTimeout, "download-timeout", opts.DownloadTimeout, "")
	flags.IntVar(&opts.MaxAttempts, "max-attempts", opts.MaxAttempts, "")
	flags.BoolVar(&opts.TraceHTTP, "trace-http", opts.TraceHTTP, "")

	return flags
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "geosint.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
weights_dir: /opt/geoclip
download_timeout: 15s
max_attempts: 3
plot_output: world.png
`)

	opts := defaultOptions()
	require.NoError(t, loadConfig(path, testFlags(&opts), &opts))

	want := defaultOptions()
	want.WeightsDir = "/opt/geoclip"
	want.DownloadTimeout = 15 * time.Second
	want.MaxAttempts = 3
	want.PlotOutput = "world.png"

	if diff := cmp.Diff(want, opts); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	path := writeConfig(t, `
weights_dir: /opt/geoclip
max_attempts: 3
trace_http: true
`)

	opts := defaultOptions()
	flags := testFlags(&opts)
	require.NoError(t, flags.Parse([]string{"--weights-dir", "local", "--max-attempts", "0"}))

	require.NoError(t, loadConfig(path, flags, &opts))

	assert.Equal(t, "local", opts.WeightsDir)
	assert.Equal(t, 0, opts.MaxAttempts)
	assert.True(t, opts.TraceHTTP)
}

func TestLoadConfigMissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	opts := defaultOptions()
	require.NoError(t, loadConfig("", testFlags(&opts), &opts))
	assert.Equal(t, defaultOptions(), opts)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	opts := defaultOptions()
	err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil, &opts)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "syntax", content: "weights_dir: [", wantErr: "parsing config"},
		{name: "negative attempts", content: "max_attempts: -1", wantErr: "max_attempts"},
		{name: "bad duration", content: "download_timeout: soon", wantErr: "parsing config"},
		{name: "bad level", content: "log_level: loud", wantErr: "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			err := loadConfig(writeConfig(t, tt.content), nil, &opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	l, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "run=")

	_, err = newLogger(&buf, "loud")
	require.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer

	Version = "1.2.3"
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "geosint/1.2.3 (+https://github.com/jcodagnone/geosint)\n", buf.String())
}
