// Package main provides the command-line interface for the Bitcoin P2P
// network crawler.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/decred/slog"
	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/crawl"
	"github.com/p2p-crawler/crawler/internal/dnsseeds"
	"github.com/p2p-crawler/crawler/internal/metrics"
	"github.com/p2p-crawler/crawler/internal/output"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/p2p-crawler/crawler/internal/transport/i2p"
	"github.com/p2p-crawler/crawler/internal/wire"
)

const protocolVersion int32 = 70016

var logLevels = []slog.Level{
	slog.LevelInfo,
	slog.LevelDebug,
	slog.LevelTrace,
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	opts := Options{}
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return err
	}
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	started := time.Now().UTC()
	resultDir := opts.ResultDir(started)

	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return fmt.Errorf("create result directory: %w", err)
	}

	level := logLevels[0]
	if n := len(opts.Verbose); n > 0 {
		if n >= len(logLevels) {
			n = len(logLevels) - 1
		}
		level = logLevels[n]
	}
	_, closeLog, err := initLogging(opts.StoreDebugLog, filepath.Join(resultDir, "debug.log"), level)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeds := opts.Seeds
	if len(seeds) == 0 {
		seeds = dnsseeds.Default
	}
	seedPort := opts.SeedPort
	if seedPort == 0 {
		seedPort = dnsseeds.DefaultPort
	}
	seedResults := dnsseeds.Query(ctx, seeds, seedPort, nil)
	bootstrap := dnsseeds.Flatten(seedResults)
	crawlerLog.Infof("resolved %d bootstrap addresses from %d seeds", len(bootstrap), len(seeds))

	openers, timeouts, err := buildTransports(ctx, opts)
	if err != nil {
		return fmt.Errorf("build transports: %w", err)
	}
	concurrency := buildTransportConcurrency(opts)

	nodes, err := output.NewReachableNodeSink(filepath.Join(resultDir, "reachable_nodes.csv"))
	if err != nil {
		return fmt.Errorf("open reachable-nodes sink: %w", err)
	}
	defer nodes.Close()

	adverts, err := output.NewAdvertisedAddressSink(filepath.Join(resultDir, "advertised_addresses.csv"))
	if err != nil {
		return fmt.Errorf("open advertised-addresses sink: %w", err)
	}
	defer adverts.Close()

	seed := opts.RandomSeed
	if seed == 0 {
		seed = started.UnixNano()
	}
	recorder := metrics.NewRecorder()

	cfg := crawl.Config{
		NumWorkers:           opts.NumWorkers,
		NodeShare:            opts.NodeShare,
		Rand:                 rand.New(rand.NewSource(seed)),
		DelayStart:           opts.DelayStart,
		HandshakeAttempts:    opts.HandshakeAttempts,
		GetAddrRetries:       opts.GetAddrRetries,
		RecordAddrData:       opts.RecordAddrData,
		FrontierMinAge:       opts.FrontierMinAge,
		Openers:              openers,
		Timeouts:             timeouts,
		Magic:                wire.MainNet,
		ProtocolVersion:      protocolVersion,
		Services:             0,
		UserAgent:            opts.UserAgent,
		StartHeight:          opts.StartHeight,
		Bootstrap:            bootstrap,
		Recorder:             recorder,
		TransportConcurrency: concurrency,
		ExtraVersionInfo:     opts.ExtraVersionInfo,
	}

	controller := crawl.New(cfg, nodes, adverts)

	if opts.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		registry.MustRegister(metrics.NewCollector(recorder, controller.Frontier()))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: opts.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				crawlerLog.Errorf("metrics server: %v", err)
			}
		}()
		defer server.Close()
	}

	crawlerLog.Infof("starting crawl: %d workers, node-share %.2f", opts.NumWorkers, opts.NodeShare)
	runErr := controller.Run(ctx)
	runStats := controller.Stats()

	byNetwork := make(map[string]int, len(runStats.ByKind))
	for kind, n := range runStats.ByKind {
		byNetwork[kind.String()] = n
	}

	stats := output.Stats{
		StartedAt:        started,
		FinishedAt:       time.Now().UTC(),
		BootstrapCount:   len(bootstrap),
		SeenCount:        runStats.SeenCount,
		ReachableCount:   runStats.ReachableCount,
		HandshakeOK:      runStats.HandshakeOK,
		AdvertisedCount:  runStats.AdvertisedCount,
		NumWorkers:       opts.NumWorkers,
		NodeShare:        opts.NodeShare,
		ByNetwork:        byNetwork,
		ExtraVersionInfo: opts.ExtraVersionInfo,
	}
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)
	if err := output.WriteStats(filepath.Join(resultDir, "stats.json"), stats); err != nil {
		crawlerLog.Errorf("write stats file: %v", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl failed: %w", runErr)
	}

	if opts.S3Bucket != "" {
		if err := output.UploadDirectory(context.Background(), resultDir, opts.S3Bucket, opts.S3KeyPrefix); err != nil {
			return fmt.Errorf("upload results: %w", err)
		}
		crawlerLog.Infof("uploaded results to s3://%s/%s", opts.S3Bucket, opts.S3KeyPrefix)
	}

	return nil
}

// buildTransports constructs one Opener and timeout triple per transport
// kind the user has enabled. IP is always enabled; Tor/I2P/CJDNS opt in
// individually since they each depend on a local proxy or mesh client being
// reachable.
func buildTransports(ctx context.Context, opts Options) (map[addr.Kind]transport.Opener, map[addr.Kind]crawl.TransportTimeouts, error) {
	openers := map[addr.Kind]transport.Opener{
		addr.KindIPv4: transport.NewIPOpener(),
		addr.KindIPv6: transport.NewIPOpener(),
	}
	timeouts := map[addr.Kind]crawl.TransportTimeouts{
		addr.KindIPv4: {Connect: opts.IPConnectTimeout, Message: opts.IPMessageTimeout, GetAddr: opts.IPGetAddrTimeout},
		addr.KindIPv6: {Connect: opts.IPConnectTimeout, Message: opts.IPMessageTimeout, GetAddr: opts.IPGetAddrTimeout},
	}

	if opts.EnableTor {
		openers[addr.KindOnionV3] = transport.NewTorOpener(opts.TorProxyHost, opts.TorProxyPort)
		timeouts[addr.KindOnionV3] = crawl.TransportTimeouts{
			Connect: opts.TorConnectTimeout, Message: opts.TorMessageTimeout, GetAddr: opts.TorGetAddrTimeout,
		}
	}

	if opts.EnableI2P {
		session, err := i2p.NewSession(ctx, opts.I2PSamHost, opts.I2PSamPort, "p2p-crawler")
		if err != nil {
			return nil, nil, fmt.Errorf("open SAM session: %w", err)
		}
		openers[addr.KindI2P] = transport.NewI2POpener(session)
		timeouts[addr.KindI2P] = crawl.TransportTimeouts{
			Connect: opts.I2PConnectTimeout, Message: opts.I2PMessageTimeout, GetAddr: opts.I2PGetAddrTimeout,
		}
	}

	if opts.EnableCJDNS {
		openers[addr.KindCJDNS] = transport.NewCJDNSOpener()
		timeouts[addr.KindCJDNS] = crawl.TransportTimeouts{
			Connect: opts.CJDNSConnectTimeout, Message: opts.CJDNSMessageTimeout, GetAddr: opts.CJDNSGetAddrTimeout,
		}
	}

	return openers, timeouts, nil
}

// buildTransportConcurrency maps each enabled non-IP transport kind to its
// configured session limit. IP has no entry, since IP concurrency is already
// bounded by num-workers and a local machine has no equivalent of a shared
// proxy or SAM bridge to protect.
func buildTransportConcurrency(opts Options) map[addr.Kind]int64 {
	limits := make(map[addr.Kind]int64)
	if opts.EnableTor && opts.TorConcurrency > 0 {
		limits[addr.KindOnionV3] = opts.TorConcurrency
	}
	if opts.EnableI2P && opts.I2PConcurrency > 0 {
		limits[addr.KindI2P] = opts.I2PConcurrency
	}
	if opts.EnableCJDNS && opts.CJDNSConcurrency > 0 {
		limits[addr.KindCJDNS] = opts.CJDNSConcurrency
	}
	return limits
}
