package bidding

import (
	"testing"
	"time"

	"auction-ledger/internal/models"

	"github.com/stretchr/testify/require"
)

func TestExtendForAntiSnipe(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		window      int
		remaining   time.Duration
		expectMoved bool
		expectedEnd time.Time
	}{
		{name: "inside_window", window: 30, remaining: 10 * time.Second, expectMoved: true, expectedEnd: now.Add(30 * time.Second)},
		{name: "one_second_left", window: 30, remaining: time.Second, expectMoved: true, expectedEnd: now.Add(30 * time.Second)},
		{name: "exactly_window_left", window: 30, remaining: 30 * time.Second, expectMoved: false, expectedEnd: now.Add(30 * time.Second)},
		{name: "outside_window", window: 30, remaining: time.Hour, expectMoved: false, expectedEnd: now.Add(time.Hour)},
		{name: "disabled", window: 0, remaining: time.Second, expectMoved: false, expectedEnd: now.Add(time.Second)},
		{name: "negative_window", window: -5, remaining: time.Second, expectMoved: false, expectedEnd: now.Add(time.Second)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			a := models.Auction{AntiSnipeSeconds: tc.window, EndTime: now.Add(tc.remaining)}
			moved := ExtendForAntiSnipe(&a, now)

			require.Equal(t, tc.expectMoved, moved)
			require.True(t, tc.expectedEnd.Equal(a.EndTime), "expected end %s, got %s", tc.expectedEnd, a.EndTime)
			require.False(t, a.EndTime.Before(now.Add(tc.remaining)), "end time must never move backwards")
		})
	}
}

func TestExtendForAntiSnipe_StoresUTC(t *testing.T) {
	t.Parallel()

	local := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, 1, 1, 14, 0, 0, 0, local)
	a := models.Auction{AntiSnipeSeconds: 30, EndTime: now.Add(5 * time.Second).UTC()}

	require.True(t, ExtendForAntiSnipe(&a, now))
	require.Equal(t, time.UTC, a.EndTime.Location())
	require.True(t, a.EndTime.Equal(now.Add(30*time.Second)))
}
