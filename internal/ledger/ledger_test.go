package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Ledger, string) {
	path := filepath.Join(t.TempDir(), "changes.db")
	l, err := Open(path)
	require.NoError(t, err)
	return l, path
}

func TestAddIsSet(t *testing.T) {
	l, _ := openTemp(t)
	defer l.Close()

	require.NoError(t, l.Add("/site/b.css", "/site/a.css"))
	require.NoError(t, l.Add("/site/a.css"))

	paths, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"/site/a.css", "/site/b.css"}, paths)
}

func TestPersists(t *testing.T) {
	l, path := openTemp(t)
	require.NoError(t, l.Add("/site/a.css"))
	require.NoError(t, l.Close())

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	paths, err := l.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"/site/a.css"}, paths)
}

func TestReset(t *testing.T) {
	l, _ := openTemp(t)
	defer l.Close()

	require.NoError(t, l.Add("/site/a.css"))
	require.NoError(t, l.Reset())

	paths, err := l.List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}
