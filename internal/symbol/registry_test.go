package symbol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSymbolMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	content := `# instrument map
10000001:rb2501:10
10000002:au2606:1000

10000003:i2501
not-a-line
:missing-id
10000004:
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := NewRegistry()
	require.NoError(t, r.Load(path))
	require.Equal(t, 3, r.Count(), "malformed lines are skipped, never fatal")

	require.Equal(t, uint64(10000001), r.ID("rb2501"))
	require.Equal(t, uint64(0), r.ID("unknown-ticker"))

	require.Equal(t, "au2606", r.Ticker(10000002))
	require.Equal(t, Unknown, r.Ticker(99))

	require.Equal(t, 10.0, r.Multiplier(10000001))
	require.Equal(t, 1000.0, r.Multiplier(10000002))
	require.Equal(t, 1.0, r.Multiplier(10000003), "unconfigured multiplier defaults to 1")
	require.Equal(t, 1.0, r.Multiplier(99))
}

func TestLoadMissingFile(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Load(filepath.Join(t.TempDir(), "absent.txt")))
}

func TestInstallDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.txt")
	require.NoError(t, os.WriteFile(path, []byte("10000001:rb2501\n"), 0o644))

	r := NewRegistry()
	require.NoError(t, r.Load(path))
	Install(r)
	require.Equal(t, uint64(10000001), Default().ID("rb2501"))
}
