package order

import (
	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/engine"
)

func init() {
	engine.Register("order", func() engine.Module { return &Module{} })
}

// Module hosts the order hub as an engine plugin.
type Module struct {
	hub *Hub
}

// Init builds the hub and subscribes its intake topics.
func (m *Module) Init(b *bus.Bus, cfg engine.Config, _ engine.TimerService) error {
	idGen := NewIDGen(uint32(cfg.Int("node_id", 0)))
	m.hub = NewHub(b, idGen)
	m.hub.Wire()
	return nil
}

// Start is a no-op; the hub is purely event-driven.
func (m *Module) Start() error { return nil }

// Stop is a no-op; the hub keeps order contexts for the life of the process.
func (m *Module) Stop() error { return nil }

// Hub returns the wired hub.
func (m *Module) Hub() *Hub { return m.hub }
