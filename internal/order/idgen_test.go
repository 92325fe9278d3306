package order

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNextIDLayout(t *testing.T) {
	g := NewIDGen(7)
	id := g.NextID()

	// 18 decimal digits: YYMMDDHHMMSS NN SSSS.
	require.GreaterOrEqual(t, id, uint64(1e16), "id carries a full time prefix")
	require.Less(t, id, uint64(1e18))

	node := (id / 10000) % 100
	require.Equal(t, uint64(7), node)

	seq1 := id % 10000
	seq2 := g.NextID() % 10000
	require.Equal(t, (seq1+1)%10000, seq2, "sequence advances per id")
}

func TestNextRefFormat(t *testing.T) {
	g := NewIDGen(0)
	ref := g.NextRef()
	require.Regexp(t, regexp.MustCompile(`^0\d{11}$`), ref)
	require.Equal(t, "000000000001", ref)
	require.Equal(t, "000000000002", g.NextRef())
}

func TestAdvanceRefNeverRegresses(t *testing.T) {
	g := NewIDGen(0)
	g.AdvanceRef(500)
	require.Equal(t, "000000000500", g.NextRef())

	g.AdvanceRef(100)
	require.Equal(t, "000000000501", g.NextRef(), "stale advance must not move the counter back")
}

func TestAdvanceRefConcurrent(t *testing.T) {
	g := NewIDGen(0)
	var wg sync.WaitGroup
	for i := uint32(1); i <= 64; i++ {
		wg.Add(1)
		go func(n uint32) {
			defer wg.Done()
			g.AdvanceRef(n * 10)
		}(i)
	}
	wg.Wait()
	require.Equal(t, "000000000640", g.NextRef())
}
