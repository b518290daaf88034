package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedKeepsNewest(t *testing.T) {
	f := NewFeed(2)
	f.Notify(Info("a", ""))
	f.Notify(Info("b", ""))
	f.Notify(Error("c", "boom"))

	recent := f.Recent(0)
	require.Len(t, recent, 2)
	require.Equal(t, "b", recent[0].Title)
	require.Equal(t, "c", recent[1].Title)

	last, ok := f.Last()
	require.True(t, ok)
	require.Equal(t, LevelError, last.Level)
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := NewFeed(5), NewFeed(5)
	Multi(a, nil, b).Notify(Success("ok", ""))

	require.Len(t, a.Recent(0), 1)
	require.Len(t, b.Recent(0), 1)
}
