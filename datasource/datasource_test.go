package datasource

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDataSourceReadsWithinBounds(t *testing.T) {
	f := NewMemFactory([]byte{1, 2, 3, 4, 5})
	src, err := f.CreateDataSource()
	require.NoError(t, err)
	defer src.Close()

	b, err := src.Data(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, b)
}

func TestMemDataSourceClampsLengthHintAtEnd(t *testing.T) {
	src, err := NewMemFactory([]byte{1, 2, 3}).CreateDataSource()
	require.NoError(t, err)

	b, err := src.Data(1, 10)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3}, b)
}

func TestMemDataSourceSignalsEndOfStream(t *testing.T) {
	src, err := NewMemFactory([]byte{1, 2, 3}).CreateDataSource()
	require.NoError(t, err)

	b, err := src.Data(3, 1)
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestMemFactoryCreatesIndependentHandles(t *testing.T) {
	f := NewMemFactory([]byte{9, 9, 9})
	a, err := f.CreateDataSource()
	require.NoError(t, err)
	b, err := f.CreateDataSource()
	require.NoError(t, err)
	assert.NotSame(t, a, b)
}

func TestFileDataSourceReadsBackFileContents(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "ds-*.bin")
	require.NoError(t, err)
	_, err = tmp.Write([]byte{0xAA, 0xBB, 0xCC, 0xDD})
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	f := NewFileFactory(tmp.Name())
	src, err := f.CreateDataSource()
	require.NoError(t, err)
	defer src.Close()

	b, err := src.Data(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xBB, 0xCC}, b)
}

func TestFileDataSourceSignalsEndOfStream(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "ds-*.bin")
	require.NoError(t, err)
	_, err = tmp.Write([]byte{1, 2})
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	src, err := NewFileFactory(tmp.Name()).CreateDataSource()
	require.NoError(t, err)
	defer src.Close()

	b, err := src.Data(2, 4)
	require.NoError(t, err)
	assert.Nil(t, b)
}
