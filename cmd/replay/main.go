// Replay drives the engine from a binary capture file through the
// unlocked surface, as fast as the core can consume it. It doubles as
// the throughput benchmark harness.
package main

import (
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"titan/domain/book"
	"titan/infra/sequence"
	"titan/pkg/logger"
	"titan/service"
	"titan/wire"
)

func main() {
	var (
		file      = flag.String("file", "", "binary capture file to replay")
		poolCap   = flag.Int("pool", 1<<20, "order pool capacity")
		levels    = flag.Int64("levels", 1<<25, "price domain size (multiple of 64)")
		benchmark = flag.Bool("benchmark", false, "suppress accept/cancel events and disable the output ring")
		logLevel  = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log, err := logger.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if *file == "" {
		log.Fatal("missing -file")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("read capture failed", zap.Error(err))
	}
	log.Info("capture loaded", zap.Int("bytes", len(data)))

	bk := book.New(book.Config{
		PoolCapacity:    *poolCap,
		PriceLevels:     *levels,
		RingSize:        1 << 20,
		DisableRing:     *benchmark,
		SuppressAccepts: *benchmark,
		SuppressCancels: *benchmark,
		Logger:          log,
	})
	svc := service.New(bk, sequence.New(0), log)

	var (
		offset   int
		parsed   uint64
		rejected uint64
	)
	start := time.Now()

	for offset+wire.HeaderSize <= len(data) {
		h, err := wire.PeekHeader(data[offset:])
		if err != nil {
			break
		}
		if int(h.Length) < wire.HeaderSize || offset+int(h.Length) > len(data) {
			log.Warn("truncated frame, stopping",
				zap.Int("offset", offset), zap.Uint16("length", h.Length))
			break
		}
		if err := svc.DispatchNoLock(data[offset : offset+int(h.Length)]); err != nil {
			rejected++
		}
		offset += int(h.Length)
		parsed++
	}
	bk.FlushNoLock()

	elapsed := time.Since(start)
	rate := float64(parsed) / elapsed.Seconds()

	log.Info("replay complete",
		zap.Uint64("messages", parsed),
		zap.Uint64("rejected", rejected),
		zap.Duration("elapsed", elapsed),
		zap.Float64("msgs_per_sec", rate),
		zap.Int64("best_bid", bk.BestBid()),
		zap.Int64("best_ask", bk.BestAsk()),
		zap.Int("orders", bk.OrderCount()),
		zap.Uint64("trades", bk.TradesExecuted()),
		zap.Uint64("events_dropped", bk.MessagesDropped()),
	)
}
