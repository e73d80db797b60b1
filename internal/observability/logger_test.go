package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_InquiryFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "info", Format: "json", Output: &buf, ServiceName: "inquiry-analyzer"})

	ctx := WithTraceID(context.Background(), "trace-1")
	l.WithContext(ctx).
		WithInquiry("313605440", "KEYCHRON").
		Warn().
		Stage("retrieving").
		Outcome("corpus_unavailable").
		Err(errors.New("connection refused")).
		Reason(nil).
		Msg("Corpus unavailable")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "inquiry-analyzer", line[FieldService])
	assert.Equal(t, "trace-1", line[FieldTraceID])
	assert.Equal(t, "313605440", line[FieldInquiryID])
	assert.Equal(t, "KEYCHRON", line[FieldBrandChannel])
	assert.Equal(t, "retrieving", line[FieldStage])
	assert.Equal(t, "corpus_unavailable", line[FieldRetrievalOutcome])
	assert.Equal(t, "connection refused", line["error"])
	assert.NotContains(t, line, FieldEscalateReason)
}

func TestLogEvent_Reason(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Output: &buf})
	reason := "specialist required"

	l.WithInquiry("1", "").Info().Bool("escalate", true).Reason(&reason).Msg("done")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, reason, lines[0][FieldEscalateReason])
	assert.Equal(t, true, lines[0]["escalate"])
	assert.NotContains(t, lines[0], FieldBrandChannel)
	assert.NotContains(t, lines[0], FieldService)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Level: "warning", Output: &buf})

	l.Debug().Msg("hidden")
	l.Info().Msg("hidden")
	l.Error().Msg("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestLogger_WithoutTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(LogConfig{Output: &buf})

	l.WithContext(context.Background()).Info().Msg("no trace")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], FieldTraceID)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.Disabled, parseLevel("off"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud"))
}

func TestNopLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NopLogger().WithInquiry("1", "AIPER").Error().Int("n", 1).Msg("dropped")
	})
}
