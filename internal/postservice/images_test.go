package postservice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskImageStore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "posts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "posts", "a.png"), []byte("png"), 0o644))

	outside := filepath.Join(filepath.Dir(root), "outside.png")
	require.NoError(t, os.WriteFile(outside, []byte("png"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	s := NewDiskImageStore(root)

	require.NoError(t, s.Delete("posts/a.png"))
	assert.NoFileExists(t, filepath.Join(root, "posts", "a.png"))

	// already gone
	require.NoError(t, s.Delete("posts/a.png"))

	// paths cannot escape the root
	require.NoError(t, s.Delete("../outside.png"))
	assert.FileExists(t, outside)
}
