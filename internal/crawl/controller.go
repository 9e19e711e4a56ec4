// Package crawl implements the fixed-size worker pool and the crawl
// controller that together drive the frontier to quiescence: a collapsed
// single-phase crawl where every reachable node receives a getaddr, and an
// independently-sampled per-node decision governs whether its advertised
// addresses are persisted.
package crawl

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/frontier"
	"github.com/p2p-crawler/crawler/internal/metrics"
	"github.com/p2p-crawler/crawler/internal/session"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Controller orchestrates one crawl end to end: seeding the frontier with
// the bootstrap set, running the worker pool until quiescence, and closing
// both result sinks.
type Controller struct {
	cfg      Config
	frontier *frontier.Frontier
	nodes    ReachableNodeSink
	adverts  AdvertisedAddressSink
	limiters map[addr.Kind]*semaphore.Weighted

	busy atomic.Int64

	distMu sync.Mutex
	dist   map[string]int

	// randMu guards cfg.Rand. A *math/rand.Rand is not safe for concurrent
	// use, and every worker goroutine calls sampledForRecording.
	randMu sync.Mutex
}

// New builds a Controller. The frontier is created internally; callers only
// supply configuration and the two result sinks.
func New(cfg Config, nodes ReachableNodeSink, adverts AdvertisedAddressSink) *Controller {
	f := frontier.New()
	f.MinAge = cfg.FrontierMinAge

	limiters := make(map[addr.Kind]*semaphore.Weighted, len(cfg.TransportConcurrency))
	for kind, n := range cfg.TransportConcurrency {
		if n > 0 {
			limiters[kind] = semaphore.NewWeighted(n)
		}
	}

	return &Controller{
		cfg:      cfg,
		frontier: f,
		nodes:    nodes,
		adverts:  adverts,
		limiters: limiters,
		dist:     make(map[string]int),
	}
}

// Frontier exposes the controller's frontier as a metrics.FrontierStats, for
// registering a metrics.Collector against this crawl.
func (c *Controller) Frontier() *frontier.Frontier {
	return c.frontier
}

// RunStats summarizes one finished crawl for the stats file: how many
// addresses were ever seen, how many were reachable or fully handshaked,
// how many advertised-address records were persisted, and a per-network
// breakdown of successful sessions.
type RunStats struct {
	SeenCount       int
	ReachableCount  int
	HandshakeOK     int
	AdvertisedCount int
	ByKind          map[addr.Kind]int
}

// Stats reports RunStats as observed so far; call after Run returns for a
// final summary. SeenCount always comes from the frontier; if the controller
// was built without a Recorder, every other field is left zero.
func (c *Controller) Stats() RunStats {
	stats := RunStats{SeenCount: c.frontier.SizeSeen()}
	if c.cfg.Recorder == nil {
		return stats
	}
	stats.ReachableCount = c.cfg.Recorder.ReachableCount()
	stats.HandshakeOK = c.cfg.Recorder.HandshakeOKCount()
	stats.AdvertisedCount = c.cfg.Recorder.AdvertisedCount()
	stats.ByKind = c.cfg.Recorder.KindBreakdown()
	return stats
}

// Run seeds the bootstrap set, starts cfg.NumWorkers workers, and blocks
// until the frontier is quiescent and every worker has returned. A sink
// write failure is fatal to the crawl and cancels every in-flight worker.
func (c *Controller) Run(ctx context.Context) error {
	if c.cfg.DelayStart > 0 {
		log.Infof("crawl: waiting %s for transports to warm up", c.cfg.DelayStart)
		select {
		case <-time.After(c.cfg.DelayStart):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, a := range c.cfg.Bootstrap {
		c.frontier.Offer(a)
		c.distMu.Lock()
		c.dist[a.Key()] = 0
		c.distMu.Unlock()
	}
	log.Infof("crawl: seeded frontier with %d bootstrap addresses", len(c.cfg.Bootstrap))

	workers := c.cfg.NumWorkers
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return c.runWorker(gctx)
		})
	}

	stopMonitor := make(chan struct{})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		c.monitorQuiescence(gctx, stopMonitor)
	}()

	err := g.Wait()
	close(stopMonitor)
	<-monitorDone
	c.frontier.Close()

	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	return nil
}

// monitorQuiescence closes the frontier once it has no pending work and no
// worker is mid-session, which is the only termination condition besides
// cancellation or a fatal sink error.
func (c *Controller) monitorQuiescence(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.frontier.SizePending() == 0 && c.busy.Load() == 0 {
				c.frontier.Close()
				return
			}
		}
	}
}

func (c *Controller) runWorker(ctx context.Context) error {
	for {
		target, ok := c.frontier.Take(ctx)
		if !ok {
			return nil
		}
		c.busy.Add(1)
		if c.cfg.Recorder != nil {
			c.cfg.Recorder.WorkerStarted()
		}
		err := c.processNode(ctx, target)
		c.busy.Add(-1)
		if c.cfg.Recorder != nil {
			c.cfg.Recorder.WorkerFinished()
		}
		if err != nil {
			return err
		}
	}
}

func (c *Controller) processNode(ctx context.Context, target addr.Address) error {
	opener, ok := c.cfg.Openers[target.Kind]
	if !ok {
		log.Debugf("crawl: no transport configured for %s, dropping", target)
		return nil
	}
	timeouts, ok := c.cfg.Timeouts[target.Kind]
	if !ok {
		log.Debugf("crawl: no timeouts configured for %s, dropping", target)
		return nil
	}

	if limiter, ok := c.limiters[target.Kind]; ok {
		if err := limiter.Acquire(ctx, 1); err != nil {
			return nil
		}
		defer limiter.Release(1)
	}

	nonce, err := randomNonce()
	if err != nil {
		return fmt.Errorf("generate version nonce: %w", err)
	}

	sessionCfg := session.Config{
		Magic:             c.cfg.Magic,
		HandshakeAttempts: c.cfg.HandshakeAttempts,
		GetAddrRetries:    c.cfg.GetAddrRetries,
		ConnectTimeout:    timeouts.Connect,
		MessageTimeout:    timeouts.Message,
		GetAddrTimeout:    timeouts.GetAddr,
		ProtocolVersion:   c.cfg.ProtocolVersion,
		Services:          c.cfg.Services,
		UserAgent:         c.cfg.UserAgent,
		StartHeight:       c.cfg.StartHeight,
		CollectAddresses:  true,
	}

	res := session.Run(ctx, target, opener, nonce, sessionCfg)
	c.recordOutcome(res, target.Kind)

	if err := c.nodes.WriteReachableNode(toReachableNodeRecord(res, c.seedDistance(target))); err != nil {
		return fmt.Errorf("write reachable-node record: %w", err)
	}

	if !res.HandshakeSuccessful {
		return nil
	}

	childDistance := c.seedDistance(target) + 1
	for _, a := range res.Advertised {
		advertisedAt := time.Time{}
		if a.Timestamp > 0 {
			advertisedAt = time.Unix(int64(a.Timestamp), 0)
		}
		c.recordSeedDistance(a.Address, childDistance)
		c.frontier.OfferAged(a.Address, advertisedAt, time.Now())
	}

	if c.cfg.RecordAddrData && c.sampledForRecording() {
		for _, a := range res.Advertised {
			rec := AdvertisedAddressRecord{
				Source:              target,
				AdvertisedTimestamp: a.Timestamp,
				AdvertisedServices:  a.Services,
				Advertised:          a.Address,
			}
			if err := c.adverts.WriteAdvertisedAddress(rec); err != nil {
				return fmt.Errorf("write advertised-address record: %w", err)
			}
		}
		if c.cfg.Recorder != nil {
			c.cfg.Recorder.RecordAdvertised(len(res.Advertised))
		}
	}

	return nil
}

// sampledForRecording makes the independent per-node record-addr-data
// decision using the controller's seeded RNG. processNode calls it only for
// a node whose handshake succeeded, only when RecordAddrData is set, and only
// after that node's session has ended; the draw is not made at Take time, so
// draws are consumed in session-completion order. Workers call this
// concurrently, and cfg.Rand is typically a single *math/rand.Rand, which is
// not safe for concurrent use, so the draw itself is serialized under
// randMu; only the RNG call is under lock, not session work.
func (c *Controller) sampledForRecording() bool {
	if c.cfg.NodeShare >= 1.0 {
		return true
	}
	if c.cfg.NodeShare <= 0.0 {
		return false
	}
	if c.cfg.Rand == nil {
		log.Warnf("crawl: node-share %.2f configured but no Rand supplied, recording every node", c.cfg.NodeShare)
		return true
	}
	c.randMu.Lock()
	draw := c.cfg.Rand.Float64()
	c.randMu.Unlock()
	return draw < c.cfg.NodeShare
}

// recordOutcome buckets a terminated session for the sessions-by-outcome
// metric. LatencyConnect is only ever set once a connect attempt succeeds,
// so its zero value distinguishes an unreachable node from one that
// connected but never completed the handshake.
func (c *Controller) recordOutcome(res session.Result, kind addr.Kind) {
	if c.cfg.Recorder == nil {
		return
	}
	switch {
	case res.HandshakeSuccessful:
		c.cfg.Recorder.RecordOutcome(metrics.OutcomeSuccess, kind)
	case res.LatencyConnect == 0:
		c.cfg.Recorder.RecordOutcome(metrics.OutcomeUnreachable, kind)
	default:
		c.cfg.Recorder.RecordOutcome(metrics.OutcomeHandshakeFailed, kind)
	}
}

// seedDistance returns a's hop count from the bootstrap set, or 0 if a was
// never recorded (which should only happen for a bootstrap address offered
// before Run recorded it, or a programmer error).
func (c *Controller) seedDistance(a addr.Address) int {
	c.distMu.Lock()
	defer c.distMu.Unlock()
	return c.dist[a.Key()]
}

// recordSeedDistance records a's distance the first time it is seen; later
// calls for the same address are no-ops, since the frontier's own dedup
// guarantees the first hop that reaches an address is the one that matters.
func (c *Controller) recordSeedDistance(a addr.Address, distance int) {
	c.distMu.Lock()
	defer c.distMu.Unlock()
	key := a.Key()
	if _, ok := c.dist[key]; ok {
		return
	}
	c.dist[key] = distance
}

func toReachableNodeRecord(res session.Result, seedDistance int) ReachableNodeRecord {
	return ReachableNodeRecord{
		Timestamp:               res.Timestamp,
		SeedDistance:            seedDistance,
		Address:                 res.Address,
		HandshakeSuccessful:     res.HandshakeSuccessful,
		ProtocolVersion:         res.ProtocolVersion,
		UserAgent:               res.UserAgent,
		Services:                res.Services,
		StartHeight:             res.StartHeight,
		LatencyConnect:          res.LatencyConnect,
		LatencyVersionHandshake: res.LatencyVersionHandshake,
		LatencyVerAckHandshake:  res.LatencyVerAckHandshake,
		NumAddrMessages:         res.NumAddrMessages,
		NumAddresses:            res.NumAddresses,
		TimeFirstAddr:           res.TimeFirstAddr,
		TimeLastAddr:            res.TimeLastAddr,
	}
}
