package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "error", want: slog.LevelError},
		{in: "ERROR", want: slog.LevelError},
		{in: "warn", want: slog.LevelWarn},
		{in: "info", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "debug", want: slog.LevelDebug},
		{in: " trace ", want: LevelTrace},
		{in: "verbose", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseLevel(tc.in)
			if tc.wantErr {
				require.ErrorContains(t, err, "unknown log level")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("trace shows everything", func(t *testing.T) {
		buf := bytes.Buffer{}
		l, err := New(&buf, LevelTrace, "json")
		require.NoError(t, err)

		Trace(ctx, l, "pool created", slog.Int("workers_count", 2))
		out := buf.String()
		assert.Contains(t, out, `"level":"TRACE"`)
		assert.Contains(t, out, `"workers_count":2`)
	})

	t.Run("error hides info and trace", func(t *testing.T) {
		buf := bytes.Buffer{}
		l, err := New(&buf, slog.LevelError, "text")
		require.NoError(t, err)

		Trace(ctx, l, "hidden")
		l.Info("hidden")
		l.Error("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "level=ERROR")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(&bytes.Buffer{}, slog.LevelInfo, "xml")
		require.ErrorContains(t, err, "unknown log format")
	})
}
