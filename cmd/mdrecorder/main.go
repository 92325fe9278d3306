// The market-data recorder role: a tick source feeds an SPSC ring on the
// receive path, a writer goroutine drains it into the mmap tick log, and
// the latest tick per instrument is mirrored into the snapshot (shared
// memory when configured) for other processes.
package main

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"gopkg.in/yaml.v3"

	"github.com/Helloworld152/hft-eb/internal/feed"
	"github.com/Helloworld152/hft-eb/internal/mlog"
	"github.com/Helloworld152/hft-eb/internal/ring"
	"github.com/Helloworld152/hft-eb/internal/schema"
	"github.com/Helloworld152/hft-eb/internal/snapshot"
	"github.com/Helloworld152/hft-eb/internal/symbol"
)

type config struct {
	Symbols    string `yaml:"symbols"`     // symbol map file
	Tickers    string `yaml:"tickers"`     // comma separated subscription list
	OutputPath string `yaml:"output_path"` // mmap log base path
	Capacity   uint64 `yaml:"capacity"`
	Rate       int    `yaml:"ticks_per_second"`
	BasePrice  float64 `yaml:"base_price"`
	UseShm     bool   `yaml:"use_shm"`
	ShmPath    string `yaml:"shm_path"`
	StartTime  string `yaml:"start_time"` // HH:MM:SS
	EndTime    string `yaml:"end_time"`
}

func main() {
	configPath := "mdrecorder.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrecorder: %+v\n", err)
		os.Exit(1)
	}

	if cfg.Symbols != "" {
		reg := symbol.NewRegistry()
		if err := reg.Load(cfg.Symbols); err != nil {
			fmt.Fprintf(os.Stderr, "mdrecorder: %+v\n", err)
			os.Exit(1)
		}
		symbol.Install(reg)
	}

	var snap snapshot.Snapshot = snapshot.NewLocal()
	if cfg.UseShm {
		shmPath := cfg.ShmPath
		if shmPath == "" {
			shmPath = "hft_md_snapshot"
		}
		shm, err := snapshot.NewShm(shmPath, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mdrecorder: shm: %+v\n", err)
			os.Exit(1)
		}
		snap = shm
	}
	snapshot.Install(snap)
	defer snap.Close()

	writer, err := mlog.NewWriter[schema.Tick](cfg.OutputPath, cfg.Capacity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrecorder: %+v\n", err)
		os.Exit(1)
	}

	tickers := strings.Split(cfg.Tickers, ",")
	for i := range tickers {
		tickers[i] = strings.TrimSpace(tickers[i])
	}
	gen, err := feed.NewGenerator(tickers, cfg.BasePrice)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mdrecorder: %+v\n", err)
		os.Exit(1)
	}

	rb := ring.NewSPSC[schema.Tick](65536)
	var running atomic.Bool
	running.Store(true)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		dropped := uint64(0)
		for {
			batch := rb.Peek()
			if len(batch) == 0 {
				if !running.Load() {
					if dropped > 0 {
						logs.Warnf("mdrecorder: dropped %d ticks on full log", dropped)
					}
					return
				}
				time.Sleep(time.Millisecond)
				continue
			}
			for i := range batch {
				if !writer.Write(&batch[i]) {
					dropped++
				}
			}
			rb.Advance(uint64(len(batch)))
		}
	}()

	interval := time.Second / time.Duration(max(cfg.Rate, 1))
	logs.Infof("mdrecorder: recording %d tickers to %s every %s", len(tickers), cfg.OutputPath, interval)

	var tick schema.Tick
	ringDrops := uint64(0)
loop:
	for {
		select {
		case <-sys.Shutdown():
			logs.Info("mdrecorder: caught shutdown signal")
			break loop
		default:
		}
		now := time.Now().Format("15:04:05")
		if cfg.EndTime != "" && now > cfg.EndTime {
			logs.Infof("mdrecorder: reached end time %s", cfg.EndTime)
			break
		}
		if cfg.StartTime != "" && now < cfg.StartTime {
			time.Sleep(time.Second)
			continue
		}
		gen.Next(&tick)
		snap.Update(&tick)
		if !rb.Push(tick) {
			ringDrops++
		}
		time.Sleep(interval)
	}

	running.Store(false)
	<-writerDone
	if ringDrops > 0 {
		logs.Warnf("mdrecorder: dropped %d ticks on full ring", ringDrops)
	}
	if err := writer.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "mdrecorder: close: %+v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return config{}, err
	}
	cfg := config{
		Tickers:   "rb2501",
		Capacity:  50_000_000,
		Rate:      100,
		BasePrice: 4000,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return config{}, err
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "data/ticks"
	}
	return cfg, nil
}
