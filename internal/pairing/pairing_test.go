package pairing

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
)

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "pairing.json"))

	_, err := s.Token("http://127.0.0.1:6137")
	require.ErrorIs(t, err, ErrNotPaired)

	require.NoError(t, s.Save("http://127.0.0.1:6137/", " tok-1 "))
	tok, err := s.Token("HTTP://127.0.0.1:6137")
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok)

	_, err = s.Token("http://127.0.0.1:7000")
	require.ErrorIs(t, err, ErrNotPaired)

	require.Error(t, s.Save("http://127.0.0.1:6137", "  "))

	require.NoError(t, s.Forget())
	_, err = s.Token("http://127.0.0.1:6137")
	require.ErrorIs(t, err, ErrNotPaired)
}

func TestResolve(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "pairing.json"))
	require.NoError(t, s.Save("http://127.0.0.1:6137", "stored"))

	tok, err := Resolve(" env ", "http://127.0.0.1:6137", s)
	require.NoError(t, err)
	require.Equal(t, "env", tok)

	tok, err = Resolve("", "http://127.0.0.1:6137", s)
	require.NoError(t, err)
	require.Equal(t, "stored", tok)

	_, err = Resolve("", "http://127.0.0.1:6137", nil)
	require.ErrorIs(t, err, ErrNotPaired)
}

func TestLinkPairAndUnpair(t *testing.T) {
	const agent = "http://127.0.0.1:6137"
	s := NewStore(filepath.Join(t.TempDir(), "pairing.json"))
	tok := provider.NewAgentToken("")
	l := NewLink(s, agent, tok)

	require.False(t, l.Status().Paired)
	require.Error(t, l.Pair(" "))
	require.Empty(t, tok.Get())

	require.NoError(t, l.Pair("tok-2"))
	require.Equal(t, "tok-2", tok.Get())
	st := l.Status()
	require.True(t, st.Paired)
	require.Equal(t, agent, st.AgentURL)
	require.False(t, st.PairedAt.IsZero())

	// a restart picks the stored token back up
	stored, err := Resolve("", agent, s)
	require.NoError(t, err)
	require.Equal(t, "tok-2", stored)

	require.NoError(t, l.Unpair())
	require.Empty(t, tok.Get())
	require.False(t, l.Status().Paired)
	_, err = s.Token(agent)
	require.ErrorIs(t, err, ErrNotPaired)
}
