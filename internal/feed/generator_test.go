package feed

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Helloworld152/hft-eb/internal/schema"
)

func TestGeneratorRoundRobinMonotonicCumulatives(t *testing.T) {
	g, err := NewGenerator([]string{"rb2501", "au2606"}, 4000)
	require.NoError(t, err)

	var tick schema.Tick
	lastVol := map[string]int32{}
	lastTurn := map[string]float64{}
	for i := 0; i < 100; i++ {
		g.Next(&tick)
		ticker := tick.Ticker()
		require.Contains(t, []string{"rb2501", "au2606"}, ticker)
		require.GreaterOrEqual(t, tick.Volume, lastVol[ticker], "cumulative volume never decreases")
		require.GreaterOrEqual(t, tick.Turnover, lastTurn[ticker])
		lastVol[ticker] = tick.Volume
		lastTurn[ticker] = tick.Turnover

		require.Greater(t, tick.AskPrice[0], tick.BidPrice[0], "book is never crossed")
	}
}

func TestGeneratorRequiresSymbols(t *testing.T) {
	_, err := NewGenerator(nil, 100)
	require.ErrorIs(t, err, ErrNoSymbols)
}
