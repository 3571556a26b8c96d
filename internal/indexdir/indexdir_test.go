package indexdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrepareCreatesAbsentDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "flavor")
	m, err := Prepare(dir, Options{SizeThresholdBytes: 1 << 30})
	require.NoError(t, err)
	defer m.Release()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestPreparePreservesExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), []byte("keep me"), 0o644))

	m, err := Prepare(dir, Options{PreserveExisting: true, SizeThresholdBytes: 1 << 30})
	require.NoError(t, err)
	defer m.Release()

	_, err = os.Stat(filepath.Join(dir, "data.bin"))
	require.NoError(t, err)
}

func TestPrepareRefusesLargeDirectoryWithoutConfirm(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), make([]byte, 100), 0o644))

	_, err := Prepare(dir, Options{SizeThresholdBytes: 10})
	require.Error(t, err)
}

func TestPrepareDeletesWithConfirm(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), make([]byte, 100), 0o644))

	m, err := Prepare(dir, Options{SizeThresholdBytes: 10, ConfirmDelete: true})
	require.NoError(t, err)
	defer m.Release()

	_, err = os.Stat(filepath.Join(dir, "data.bin"))
	require.True(t, os.IsNotExist(err))
}

func TestPrepareRejectsConcurrentLock(t *testing.T) {
	dir := t.TempDir()
	m1, err := Prepare(dir, Options{SizeThresholdBytes: 1 << 30})
	require.NoError(t, err)
	defer m1.Release()

	_, err = Prepare(dir, Options{SizeThresholdBytes: 1 << 30})
	require.Error(t, err)
}
