// Package engine is the plugin host: it loads the structured configuration,
// instantiates enabled modules against the shared bus and timer wheel,
// drives the 1 Hz main loop, and tears everything down in an order that
// guarantees no published event can reach a released module.
package engine

import (
	"strconv"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"github.com/Helloworld152/hft-eb/internal/bus"
	"github.com/Helloworld152/hft-eb/internal/snapshot"
	"github.com/Helloworld152/hft-eb/internal/symbol"
)

var (
	ErrUnknownModule  = errors.New("engine: unknown module")
	ErrAlreadyRunning = errors.New("engine: already running")
)

type loadedModule struct {
	name string
	mod  Module
}

// Engine owns the bus, the timer wheel and the loaded module list.
type Engine struct {
	bus     *bus.Bus
	wheel   *Wheel
	modules []loadedModule

	startTime string
	endTime   string
	profiling *ProfilingConfig

	snap    snapshot.Snapshot
	running bool
}

// New returns an engine with an empty bus and timer wheel.
func New() *Engine {
	return &Engine{
		bus:   bus.New(),
		wheel: NewWheel(),
	}
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *bus.Bus { return e.bus }

// Wheel returns the engine's timer wheel.
func (e *Engine) Wheel() *Wheel { return e.wheel }

// Profiling returns the profiling block of the loaded config, nil when
// absent.
func (e *Engine) Profiling() *ProfilingConfig { return e.profiling }

// LoadConfig parses the config file, installs the symbol registry and the
// configured snapshot backing, then instantiates and inits every enabled
// module in declaration order.
func (e *Engine) LoadConfig(path string) error {
	cfg, err := LoadFileConfig(path)
	if err != nil {
		return err
	}
	return e.load(cfg)
}

func (e *Engine) load(cfg FileConfig) error {
	if cfg.Symbols != "" {
		reg := symbol.NewRegistry()
		if err := reg.Load(cfg.Symbols); err != nil {
			return err
		}
		symbol.Install(reg)
	}

	if cfg.Snapshot != nil && cfg.Snapshot.Type == "shm" {
		isWriter := true
		if cfg.Snapshot.IsWriter != nil {
			isWriter = *cfg.Snapshot.IsWriter
		}
		path := cfg.Snapshot.Path
		if path == "" {
			path = "hft_snapshot"
		}
		shm, err := snapshot.NewShm(path, isWriter)
		if err != nil {
			logs.Errorf("engine: shm snapshot init failed, falling back to local: %+v", err)
			e.snap = snapshot.NewLocal()
		} else {
			logs.Infof("engine: shm snapshot %s (writer=%v)", path, isWriter)
			e.snap = shm
		}
	} else {
		e.snap = snapshot.NewLocal()
	}
	snapshot.Install(e.snap)

	if cfg.TradingHours != nil {
		e.startTime = cfg.TradingHours.Start
		e.endTime = cfg.TradingHours.End
		logs.Infof("engine: trading hours %s - %s", orAny(e.startTime), orAny(e.endTime))
	}
	e.profiling = cfg.Profiling

	for _, p := range cfg.Plugins {
		if p.Name == "" {
			continue
		}
		if p.Enabled != nil && !*p.Enabled {
			logs.Infof("engine: skipping disabled module %s", p.Name)
			continue
		}
		factory, ok := lookup(p.Name)
		if !ok {
			return errors.Wrap(ErrUnknownModule, p.Name)
		}
		mod := factory()
		modCfg := flatten(p.Config)
		if cfg.NodeID != 0 {
			if _, set := modCfg.Values["node_id"]; !set {
				modCfg.Values["node_id"] = strconv.FormatUint(uint64(cfg.NodeID), 10)
			}
		}
		if err := mod.Init(e.bus, modCfg, e.wheel); err != nil {
			return errors.Wrapf(err, "init module %s", p.Name)
		}
		e.modules = append(e.modules, loadedModule{name: p.Name, mod: mod})
		logs.Infof("engine: loaded module %s", p.Name)
	}
	return nil
}

// Start invokes Start on every module in declaration order.
func (e *Engine) Start() error {
	if e.running {
		return ErrAlreadyRunning
	}
	for _, m := range e.modules {
		if err := m.mod.Start(); err != nil {
			return errors.Wrapf(err, "start module %s", m.name)
		}
	}
	e.running = true
	logs.Info("engine: all modules started")
	return nil
}

// Run blocks driving the timer wheel at 1 Hz until SIGINT/SIGTERM or the
// configured end time, then stops the engine. The idle poll is 100 ms, fine
// enough to keep second-level timer precision.
func (e *Engine) Run() error {
	if !e.running {
		if err := e.Start(); err != nil {
			return err
		}
	}
	logs.Info("engine: running, waiting for signal or end time")

	lastTick := time.Now()
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-sys.Shutdown():
			logs.Info("engine: caught shutdown signal")
			e.Stop()
			return nil
		case now := <-poll.C:
			for now.Sub(lastTick) >= time.Second {
				lastTick = lastTick.Add(time.Second)
				e.wheel.Tick()
			}
			if e.endTime != "" && now.Format("15:04:05") >= e.endTime {
				logs.Infof("engine: reached end time %s", e.endTime)
				e.Stop()
				return nil
			}
		}
	}
}

// Stop invokes Stop on every module in reverse declaration order, then
// clears the bus before any instance is released. The ordering is mandatory:
// a published event must never reach a handler of a torn-down module.
func (e *Engine) Stop() {
	if !e.running && len(e.modules) == 0 {
		return
	}
	logs.Info("engine: shutting down")
	for i := len(e.modules) - 1; i >= 0; i-- {
		if err := e.modules[i].mod.Stop(); err != nil {
			logs.Errorf("engine: stop module %s: %+v", e.modules[i].name, err)
		}
	}
	e.bus.Clear()
	e.modules = nil
	if e.snap != nil {
		if err := e.snap.Close(); err != nil {
			logs.Errorf("engine: close snapshot: %+v", err)
		}
		e.snap = nil
	}
	e.running = false
	logs.Info("engine: shutdown complete")
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
