// Spins up the stash cache server: an in-memory storage backend behind the adapter facade, served over
// the Redis protocol.

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fezfez/stash/pkg/adapter"
	"github.com/fezfez/stash/pkg/backend/memory"
	"github.com/fezfez/stash/pkg/plugin"
	"github.com/fezfez/stash/pkg/port"
	"github.com/fezfez/stash/pkg/utils"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	namespace    = flag.String("namespace", adapter.DefaultNamespace, "Logical key namespace to serve.")
	ttlSeconds   = flag.Int64("ttl_seconds", 0, "Item time-to-live in seconds; 0 disables expiry.")
	shardCount   = flag.Int("shard_count", 16, "Number of shards of the in-memory store.")
	serialize    = flag.Bool("serialize_values", false, "Store values as protobuf-encoded bytes.")
	bloomKeys    = flag.Uint("bloom_expected_keys", 0,
		"Expected distinct key count for the bloom negative cache; 0 disables the guard.")
	traceOps = flag.Bool("trace_operations", false, "Log every cache operation at debug level.")
)

func main() {
	flag.Parse()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Stash build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	options := adapter.NewOptions()
	options.SetNamespace(*namespace)
	if err := options.SetTTL(*ttlSeconds); err != nil {
		slog.Error("Invalid --ttl_seconds flag.", "error", err)
		os.Exit(1)
	}

	cache := adapter.New(memory.New(ctx, options, *shardCount), options)
	if *serialize {
		cache.AddInterceptor(&plugin.Serializer{})
	}
	if *bloomKeys > 0 {
		cache.AddInterceptor(plugin.NewBloomGuard(*bloomKeys, 0.01 /*falsePositiveRate*/))
	}
	if *traceOps {
		cache.AddInterceptor(&plugin.Tracer{})
	}

	if err := port.RunRespServer(ctx, cache); err != nil {
		slog.Error("Stash server stopped.", "err", err)
		os.Exit(1)
	}
}
