// Package symbol holds the process-wide instrument registry: numeric id,
// ticker, exchange-facing multiplier. The registry is bulk-loaded once at
// startup and read without synchronization afterwards.
package symbol

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Unknown is returned by Ticker for ids the registry has never seen.
const Unknown = "UNKNOWN"

// Registry maps instrument ids to tickers and contract multipliers. All maps
// are frozen after Load returns; readers need no locking.
type Registry struct {
	idToTicker   map[uint64]string
	tickerToID   map[string]uint64
	idToMultiple map[uint64]float64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		idToTicker:   make(map[uint64]string),
		tickerToID:   make(map[string]uint64),
		idToMultiple: make(map[uint64]float64),
	}
}

// Load reads a symbol map file of `id:ticker[:multiplier]` lines. Lines
// starting with '#' and blank lines are skipped; malformed lines are skipped
// with a warning, never fatal.
func (r *Registry) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open symbol map")
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ":")
		if len(parts) < 2 {
			logs.Warnf("symbol map: skipping malformed line %q", line)
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil || id == 0 {
			logs.Warnf("symbol map: skipping malformed id in %q", line)
			continue
		}
		ticker := strings.TrimSpace(parts[1])
		if ticker == "" {
			logs.Warnf("symbol map: skipping empty ticker in %q", line)
			continue
		}
		r.idToTicker[id] = ticker
		r.tickerToID[ticker] = id
		if len(parts) >= 3 {
			if m, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil && m > 0 {
				r.idToMultiple[id] = m
			} else {
				logs.Warnf("symbol map: skipping malformed multiplier in %q", line)
			}
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return errors.Wrap(err, "read symbol map")
	}
	logs.Infof("symbol map: loaded %d instruments from %s", count, path)
	return nil
}

// ID returns the numeric id for a ticker, 0 when unknown.
func (r *Registry) ID(ticker string) uint64 {
	return r.tickerToID[ticker]
}

// Ticker returns the ticker for an id, Unknown when unconfigured.
func (r *Registry) Ticker(id uint64) string {
	if t, ok := r.idToTicker[id]; ok {
		return t
	}
	return Unknown
}

// Multiplier returns the contract multiplier for an id, 1.0 when
// unconfigured.
func (r *Registry) Multiplier(id uint64) float64 {
	if m, ok := r.idToMultiple[id]; ok {
		return m
	}
	return 1.0
}

// Count returns the number of loaded instruments.
func (r *Registry) Count() int { return len(r.idToTicker) }

var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(NewRegistry())
}

// Install publishes r as the process-wide registry. Called once at boot,
// before workers start.
func Install(r *Registry) {
	defaultRegistry.Store(r)
}

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry.Load()
}
