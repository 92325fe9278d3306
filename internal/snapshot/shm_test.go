package snapshot

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

func shmName(t *testing.T) string {
	return fmt.Sprintf("hft_eb_test_%s_%d", t.Name(), os.Getpid())
}

func TestShmWriterReader(t *testing.T) {
	name := shmName(t)
	w, err := NewShm(name, true)
	require.NoError(t, err)
	defer w.Close()

	const id = IDOffset + 123
	tick := tickWith(id, 4321.5)
	w.Update(&tick)

	r, err := NewShm(name, false)
	require.NoError(t, err)
	defer r.Close()

	got, ok := r.Get(id)
	require.True(t, ok)
	require.Equal(t, 4321.5, got.LastPrice)
	require.Equal(t, "au2606", got.Ticker())

	_, ok = r.Get(IDOffset + 999)
	require.False(t, ok, "ids never seen resolve to not-found")

	// Writer-side visibility without remapping.
	tick.LastPrice = 4322.0
	w.Update(&tick)
	got, ok = r.Get(id)
	require.True(t, ok)
	require.Equal(t, 4322.0, got.LastPrice)
}

func TestShmIDRange(t *testing.T) {
	name := shmName(t)
	w, err := NewShm(name, true)
	require.NoError(t, err)
	defer w.Close()

	low := tickWith(IDOffset-1, 1.0)
	w.Update(&low)
	_, ok := w.Get(IDOffset - 1)
	require.False(t, ok)

	high := tickWith(IDOffset+TableLen, 1.0)
	w.Update(&high)
	_, ok = w.Get(IDOffset + TableLen)
	require.False(t, ok)
}

func TestShmReaderRejectsBadMagic(t *testing.T) {
	name := shmName(t)
	path := "/dev/shm/" + name
	require.NoError(t, os.WriteFile(path, make([]byte, regionSize), 0o666))
	defer os.Remove(path)

	_, err := NewShm(name, false)
	require.ErrorIs(t, err, ErrBadMagic, "reader fails fast on protocol mismatch")

	// The writer re-initialises the same region instead.
	w, err := NewShm(name, true)
	require.NoError(t, err)
	tick := tickWith(IDOffset+1, 2.0)
	w.Update(&tick)
	got, ok := w.Get(IDOffset + 1)
	require.True(t, ok)
	require.Equal(t, 2.0, got.LastPrice)
	require.NoError(t, w.Close())
}

func TestShmWriterUnlinksOnClose(t *testing.T) {
	name := shmName(t)
	w, err := NewShm(name, true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat("/dev/shm/" + name)
	require.True(t, os.IsNotExist(err), "writer close unlinks the region")
}

func TestShmClear(t *testing.T) {
	name := shmName(t)
	w, err := NewShm(name, true)
	require.NoError(t, err)
	defer w.Close()

	tick := tickWith(IDOffset+7, 3.0)
	w.Update(&tick)
	_, ok := w.Get(IDOffset + 7)
	require.True(t, ok)

	w.Clear()
	_, ok = w.Get(IDOffset + 7)
	require.False(t, ok)
}
