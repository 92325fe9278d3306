package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Helloworld152/hft-eb/internal/bus"
)

// probeModule counts handler invocations after registering on MARKET_DATA.
type probeModule struct {
	calls   *int
	stopped *bool
}

func (m *probeModule) Init(b *bus.Bus, _ Config, _ TimerService) error {
	b.Subscribe(bus.TopicMarketData, func(any) { *m.calls++ })
	return nil
}

func (m *probeModule) Start() error { return nil }
func (m *probeModule) Stop() error  { *m.stopped = true; return nil }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// After Stop returns, a probe publish must reach zero handlers: the bus is
// cleared before any module instance is released.
func TestStopClearsBusBeforeTeardown(t *testing.T) {
	calls := 0
	stopped := [3]bool{}
	for i := 0; i < 3; i++ {
		i := i
		Register("probe"+string(rune('a'+i)), func() Module {
			return &probeModule{calls: &calls, stopped: &stopped[i]}
		})
	}

	path := writeConfig(t, `
plugins:
  - name: probea
  - name: probeb
  - name: probec
`)

	e := New()
	require.NoError(t, e.LoadConfig(path))
	require.NoError(t, e.Start())

	e.Bus().Publish(bus.TopicMarketData, nil)
	require.Equal(t, 3, calls, "all three handlers live while running")

	e.Stop()
	for i, s := range stopped {
		require.Truef(t, s, "module %d stopped", i)
	}

	e.Bus().Publish(bus.TopicMarketData, nil)
	require.Equal(t, 3, calls, "publish after stop reaches zero handlers")
}

func TestLoadConfigUnknownModule(t *testing.T) {
	path := writeConfig(t, `
plugins:
  - name: does-not-exist
`)
	e := New()
	require.ErrorIs(t, e.LoadConfig(path), ErrUnknownModule)
}

func TestLoadConfigSkipsDisabled(t *testing.T) {
	calls := 0
	stopped := false
	Register("probedisabled", func() Module {
		return &probeModule{calls: &calls, stopped: &stopped}
	})

	path := writeConfig(t, `
plugins:
  - name: probedisabled
    enabled: false
`)
	e := New()
	require.NoError(t, e.LoadConfig(path))
	e.Bus().Publish(bus.TopicMarketData, nil)
	require.Zero(t, calls)
}

func TestLoadConfigMissingFile(t *testing.T) {
	e := New()
	require.Error(t, e.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")))
}

// configModule records the flattened values it was handed.
type configModule struct {
	got Config
}

func (m *configModule) Init(_ *bus.Bus, cfg Config, _ TimerService) error {
	m.got = cfg
	return nil
}
func (m *configModule) Start() error { return nil }
func (m *configModule) Stop() error  { return nil }

func TestPluginConfigFlattening(t *testing.T) {
	var captured *configModule
	Register("probeconfig", func() Module {
		captured = &configModule{}
		return captured
	})

	path := writeConfig(t, `
node_id: 17
plugins:
  - name: probeconfig
    config:
      output_path: data/ticks
      capacity: 1024
      debug: true
      nested:
        a: 1
        b: 2
`)
	e := New()
	require.NoError(t, e.LoadConfig(path))
	require.NotNil(t, captured)

	cfg := captured.got
	require.Equal(t, "data/ticks", cfg.String("output_path", ""))
	require.Equal(t, uint64(1024), cfg.Uint64("capacity", 0))
	require.True(t, cfg.Bool("debug", false))
	require.Equal(t, 17, cfg.Int("node_id", 0), "engine node id flows into module config")
	require.Equal(t, "fallback", cfg.String("nested", "fallback"), "nested blocks only flatten scalars")
	require.NotNil(t, cfg.Raw, "raw tree preserved for nested consumers")
}
