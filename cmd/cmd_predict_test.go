// Copyright 2025 The GeoSINT Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/jcodagnone/geosint/apperr"
	"github.com/jcodagnone/geosint/prompt"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionError(t *testing.T) {
	canceled, cancel := context.WithCancel(t.Context())
	cancel()

	closed := fmt.Errorf("%w: %w", prompt.ErrClosed, io.EOF)
	boom := errors.New("inference failed")

	tests := []struct {
		name    string
		ctx     context.Context
		err     error
		wantErr bool
	}{
		{"end of input", t.Context(), closed, false},
		{"ctrl-c at a prompt", t.Context(), fmt.Errorf("%w: ^C", prompt.ErrInterrupted), true},
		{"signal", canceled, fmt.Errorf("%w: %w", prompt.ErrInterrupted, context.Canceled), true},
		{"signal during download", canceled, apperr.Wrap(apperr.Download, context.Canceled, "x"), true},
		{"other failure", t.Context(), boom, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sessionError(tt.ctx, tt.err)
			if !tt.wantErr {
				require.NoError(t, err)

				return
			}

			require.Error(t, err)
		})
	}

	require.ErrorIs(t, sessionError(t.Context(), boom), boom)
}

func TestRunPredictLoadsWeightsBeforeBasemap(t *testing.T) {
	saved := options
	t.Cleanup(func() { options = saved })

	options.WeightsDir = t.TempDir()
	options.Basemap = filepath.Join(t.TempDir(), "missing.png")

	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())

	err := runPredict(cmd, nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.FatalWeightsLoad), "got %v", err)
	assert.NotContains(t, err.Error(), "basemap")
}
