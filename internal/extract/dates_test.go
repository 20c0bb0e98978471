package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeSourceLayoutsFirst(t *testing.T) {
	t.Parallel()

	// A source layout that would be ambiguous under the general list.
	got := ParseTime("10|08|2026", []string{"02|01|2006"})
	require.NotNil(t, got)
	require.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), *got)
}

func TestParseTimeGeneralLayouts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  time.Time
	}{
		{"2026-08-10T12:30:00Z", time.Date(2026, 8, 10, 12, 30, 0, 0, time.UTC)},
		{"Mon, 10 Aug 2026 09:00:00 +0000", time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)},
		{"2026-08-10", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"August 10, 2026", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
		{"10 August 2026", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got := ParseTime(tt.value, nil)
		require.NotNil(t, got, "value %q", tt.value)
		require.Equal(t, tt.want, *got, "value %q", tt.value)
	}
}

func TestParseTimeUnparseableIsNil(t *testing.T) {
	t.Parallel()

	require.Nil(t, ParseTime("", nil))
	require.Nil(t, ParseTime("   ", nil))
	require.Nil(t, ParseTime("yesterday-ish", nil))
}
