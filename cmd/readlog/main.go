// The read-tools role: inspect a recorded tick or candle log. Prints the
// committed record count and optionally dumps records.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Helloworld152/hft-eb/internal/mlog"
	"github.com/Helloworld152/hft-eb/internal/schema"
)

func main() {
	kind := flag.String("kind", "tick", "record kind: tick|kline")
	limit := flag.Int("n", 10, "records to print (0 = count only)")
	offset := flag.Uint64("seek", 0, "record index to start from")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: readlog [-kind tick|kline] [-n N] [-seek K] <base-path>")
		os.Exit(1)
	}
	base := flag.Arg(0)

	var err error
	switch *kind {
	case "tick":
		err = dumpTicks(base, *offset, *limit)
	case "kline":
		err = dumpKlines(base, *offset, *limit)
	default:
		err = fmt.Errorf("unknown kind %q", *kind)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "readlog: %+v\n", err)
		os.Exit(1)
	}
}

func dumpTicks(base string, offset uint64, limit int) error {
	r, err := mlog.NewReader[schema.Tick](base, 0)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("%s: %d records\n", base, r.TotalCount())
	r.Seek(offset)
	var tick schema.Tick
	for i := 0; i < limit && r.Read(&tick); i++ {
		fmt.Printf("[%d] %s day=%d time=%09d last=%.2f vol=%d turn=%.0f oi=%.0f bid=%.2f/%d ask=%.2f/%d\n",
			offset+uint64(i), tick.Ticker(), tick.TradingDay, tick.UpdateTime,
			tick.LastPrice, tick.Volume, tick.Turnover, tick.OpenInterest,
			tick.BidPrice[0], tick.BidVolume[0], tick.AskPrice[0], tick.AskVolume[0])
	}
	return nil
}

func dumpKlines(base string, offset uint64, limit int) error {
	r, err := mlog.NewReader[schema.Candle](base, 0)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Printf("%s: %d records\n", base, r.TotalCount())
	r.Seek(offset)
	var bar schema.Candle
	for i := 0; i < limit && r.Read(&bar); i++ {
		fmt.Printf("[%d] %s day=%d start=%09d iv=%dm o=%.2f h=%.2f l=%.2f c=%.2f vol=%d turn=%.0f oi=%.0f\n",
			offset+uint64(i), bar.Ticker(), bar.TradingDay, bar.StartTime, bar.Interval,
			bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, bar.Turnover, bar.OpenInterest)
	}
	return nil
}
