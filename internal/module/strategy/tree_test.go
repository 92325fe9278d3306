package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func treeModule(t *testing.T, b *bus.Bus, raw string) *Module {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(raw), &node))
	// Unmarshal wraps the mapping in a document node.
	cfg := engine.Config{Values: map[string]string{}, Raw: node.Content[0]}
	m := &Module{}
	require.NoError(t, m.Init(b, cfg, engine.NewWheel()))
	return m
}

func marketTick(ticker string, price float64) *schema.Tick {
	tick := &schema.Tick{ID: 10000001, LastPrice: price}
	schema.PutString(tick.Symbol[:], ticker)
	return tick
}

func TestSmaNodeEmitsSignalAfterWindowFills(t *testing.T) {
	b := bus.New()
	treeModule(t, b, `
account: A1
nodes:
  - id: sma1
    type: sma
    symbol: rb2501
    window: 3
`)

	var signals []schema.SignalRecord
	b.Subscribe(bus.TopicSignal, func(p any) { signals = append(signals, *(p.(*schema.SignalRecord))) })

	b.Publish(bus.TopicMarketData, marketTick("rb2501", 10))
	b.Publish(bus.TopicMarketData, marketTick("rb2501", 20))
	require.Empty(t, signals, "no signal until the window fills")

	b.Publish(bus.TopicMarketData, marketTick("rb2501", 30))
	require.Len(t, signals, 1)
	require.Equal(t, 20.0, signals[0].Value)
	require.Equal(t, "sma1", schema.CString(signals[0].NodeID[:]))
	require.Equal(t, "sma_3", schema.CString(signals[0].Factor[:]))

	// Other instruments do not feed the window.
	b.Publish(bus.TopicMarketData, marketTick("au2606", 9999))
	require.Len(t, signals, 1)

	b.Publish(bus.TopicMarketData, marketTick("rb2501", 40))
	require.Len(t, signals, 2)
	require.Equal(t, 30.0, signals[1].Value)
}

func TestPriceJumpNodeSendsOrder(t *testing.T) {
	b := bus.New()
	treeModule(t, b, `
account: A1
nodes:
  - id: jump1
    type: price_jump
    symbol: rb2501
    threshold: 0.01
    volume: 2
`)

	var reqs []schema.OrderRequest
	b.Subscribe(bus.TopicOrderReq, func(p any) { reqs = append(reqs, *(p.(*schema.OrderRequest))) })

	b.Publish(bus.TopicMarketData, marketTick("rb2501", 100))
	b.Publish(bus.TopicMarketData, marketTick("rb2501", 100.5))
	require.Empty(t, reqs, "half a percent is below threshold")

	b.Publish(bus.TopicMarketData, marketTick("rb2501", 102.0))
	require.Len(t, reqs, 1)
	require.Equal(t, schema.DirBuy, reqs[0].Direction)
	require.Equal(t, int32(2), reqs[0].Volume)
	require.Equal(t, "A1", schema.CString(reqs[0].AccountID[:]), "tree account fills empty request accounts")

	// In flight: no re-arm until a terminal return.
	b.Publish(bus.TopicMarketData, marketTick("rb2501", 110))
	require.Len(t, reqs, 1)
}

func TestTreeRejectsUnknownNodeType(t *testing.T) {
	b := bus.New()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("nodes:\n  - id: x\n    type: nope\n"), &node))
	m := &Module{}
	err := m.Init(b, engine.Config{Raw: node.Content[0]}, engine.NewWheel())
	require.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestTreeRequiresNodes(t *testing.T) {
	m := &Module{}
	err := m.Init(bus.New(), engine.Config{}, engine.NewWheel())
	require.ErrorIs(t, err, ErrNoNodes)
}
