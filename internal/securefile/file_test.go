package securefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Schema int               `json:"schema"`
	Values map[string]string `json:"values"`
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	in := sample{Schema: 1, Values: map[string]string{"a": "b"}}
	require.NoError(t, WriteJSON(path, in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err := ReadJSON[sample](path)
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestReadJSONMissing(t *testing.T) {
	_, err := ReadJSON[sample](filepath.Join(t.TempDir(), "nope.json"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.json")
	require.NoError(t, Remove(path))
	require.NoError(t, WriteJSON(path, sample{}))
	require.NoError(t, Remove(path))
	require.NoError(t, Remove(path))
}

func TestConfigPathCandidates(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SNAP_REAL_HOME", "")

	t.Run("prod layout", func(t *testing.T) {
		t.Setenv("QA_ENV", "")
		cands, err := ConfigPathCandidates("quantumpay", "session.json")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, ".config", "quantumpay", "session.json"), cands[0])
	})

	t.Run("develop subfolder", func(t *testing.T) {
		t.Setenv("QA_ENV", "dev")
		cands, err := ConfigPathCandidates("quantumpay", "session.json")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(home, ".config", "quantumpay", "develop", "session.json"), cands[0])
	})

	t.Run("invalid env", func(t *testing.T) {
		t.Setenv("QA_ENV", "staging")
		_, err := ConfigPathCandidates("quantumpay", "session.json")
		require.Error(t, err)
	})
}
