package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gwos/pcjsongen/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	data, err := os.ReadFile("../testdata/shapes.yaml")
	require.NoError(t, err)
	name := filepath.Join(t.TempDir(), "shapes.yaml")
	require.NoError(t, os.WriteFile(name, data, 0644))

	reg1, err := Registry(name)
	require.NoError(t, err)
	reg2, err := Registry(name)
	require.NoError(t, err)
	assert.Same(t, reg1, reg2)

	/* touch the file to invalidate the entry */
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(name, later, later))
	reg3, err := Registry(name)
	require.NoError(t, err)
	assert.NotSame(t, reg1, reg3)
	assert.Equal(t, len(reg1.StructList), len(reg3.StructList))
}

func TestRegistryErrors(t *testing.T) {
	_, err := Registry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, errors.ErrRegistry)

	name := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(name, []byte("structs: [{name: X, members: [{name: a, type: Nope}]}]\n"), 0644))
	_, err = Registry(name)
	assert.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}
