package main

import (
	"fmt"
	"os"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"github.com/Helloworld152/hft-eb/internal/engine"

	_ "github.com/Helloworld152/hft-eb/internal/module/feedsim"
	_ "github.com/Helloworld152/hft-eb/internal/module/filedrop"
	_ "github.com/Helloworld152/hft-eb/internal/module/kline"
	_ "github.com/Helloworld152/hft-eb/internal/module/monitor"
	_ "github.com/Helloworld152/hft-eb/internal/module/recorder"
	_ "github.com/Helloworld152/hft-eb/internal/module/replay"
	_ "github.com/Helloworld152/hft-eb/internal/module/strategy"
	_ "github.com/Helloworld152/hft-eb/internal/module/tradesim"
	_ "github.com/Helloworld152/hft-eb/internal/order"
	_ "github.com/Helloworld152/hft-eb/internal/position"
)

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	e := engine.New()
	if err := e.LoadConfig(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "engine: load config %s: %+v\n", configPath, err)
		os.Exit(1)
	}

	if prof := e.Profiling(); prof != nil && prof.ServerAddress != "" {
		name := prof.ApplicationName
		if name == "" {
			name = "hft-eb.engine"
		}
		if _, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: name,
			ServerAddress:   prof.ServerAddress,
		}); err != nil {
			logs.Warnf("engine: profiling disabled: %+v", err)
		}
	}

	if err := e.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %+v\n", err)
		os.Exit(1)
	}
}
