package crawl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/metrics"
	"github.com/p2p-crawler/crawler/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refusingOpener struct{}

func (refusingOpener) Open(ctx context.Context, host string, port uint16, connectTimeout time.Duration) (transport.Stream, error) {
	return nil, context.DeadlineExceeded
}

type memNodeSink struct {
	mu      sync.Mutex
	records []ReachableNodeRecord
}

func (s *memNodeSink) WriteReachableNode(rec ReachableNodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

type memAdvertSink struct {
	mu      sync.Mutex
	records []AdvertisedAddressRecord
}

func (s *memAdvertSink) WriteAdvertisedAddress(rec AdvertisedAddressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func mustParse(t *testing.T, s string) addr.Address {
	t.Helper()
	a, err := addr.ParseHostPort(s)
	require.NoError(t, err)
	return a
}

func TestControllerRunUnreachableBootstrapTerminates(t *testing.T) {
	nodes := &memNodeSink{}
	adverts := &memAdvertSink{}
	bootstrap := []addr.Address{
		mustParse(t, "10.0.0.1:8333"),
		mustParse(t, "10.0.0.2:8333"),
	}

	cfg := Config{
		NumWorkers:        4,
		NodeShare:         1.0,
		HandshakeAttempts: 1,
		GetAddrRetries:    0,
		Openers:           map[addr.Kind]transport.Opener{addr.KindIPv4: refusingOpener{}},
		Timeouts: map[addr.Kind]TransportTimeouts{
			addr.KindIPv4: {Connect: 100 * time.Millisecond, Message: 100 * time.Millisecond, GetAddr: 100 * time.Millisecond},
		},
		UserAgent: "/crawler:test/",
		Bootstrap: bootstrap,
	}

	ctrl := New(cfg, nodes, adverts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, ctrl.Run(ctx))

	assert.Len(t, nodes.records, 2)
	for _, r := range nodes.records {
		assert.False(t, r.HandshakeSuccessful)
	}
	assert.Empty(t, adverts.records)
}

func TestControllerStatsReflectsUnreachableBootstrap(t *testing.T) {
	nodes := &memNodeSink{}
	adverts := &memAdvertSink{}
	bootstrap := []addr.Address{
		mustParse(t, "10.0.0.1:8333"),
		mustParse(t, "10.0.0.2:8333"),
	}

	recorder := metrics.NewRecorder()
	cfg := Config{
		NumWorkers:        4,
		NodeShare:         1.0,
		HandshakeAttempts: 1,
		GetAddrRetries:    0,
		Openers:           map[addr.Kind]transport.Opener{addr.KindIPv4: refusingOpener{}},
		Timeouts: map[addr.Kind]TransportTimeouts{
			addr.KindIPv4: {Connect: 100 * time.Millisecond, Message: 100 * time.Millisecond, GetAddr: 100 * time.Millisecond},
		},
		UserAgent: "/crawler:test/",
		Bootstrap: bootstrap,
		Recorder:  recorder,
	}

	ctrl := New(cfg, nodes, adverts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, ctrl.Run(ctx))

	stats := ctrl.Stats()
	assert.Equal(t, 2, stats.SeenCount)
	assert.Equal(t, 0, stats.ReachableCount)
	assert.Equal(t, 0, stats.HandshakeOK)
	assert.Equal(t, 0, stats.AdvertisedCount)
}

func TestSampledForRecordingBoundaries(t *testing.T) {
	c := &Controller{cfg: Config{NodeShare: 1.0}}
	assert.True(t, c.sampledForRecording())

	c = &Controller{cfg: Config{NodeShare: 0.0}}
	assert.False(t, c.sampledForRecording())
}

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func TestSampledForRecordingUsesRand(t *testing.T) {
	c := &Controller{cfg: Config{NodeShare: 0.5, Rand: fixedRand{v: 0.1}}}
	assert.True(t, c.sampledForRecording())

	c = &Controller{cfg: Config{NodeShare: 0.5, Rand: fixedRand{v: 0.9}}}
	assert.False(t, c.sampledForRecording())
}

func TestUnknownTransportKindIsDropped(t *testing.T) {
	nodes := &memNodeSink{}
	adverts := &memAdvertSink{}
	cfg := Config{
		NumWorkers: 1,
		NodeShare:  1.0,
		Openers:    map[addr.Kind]transport.Opener{},
		Timeouts:   map[addr.Kind]TransportTimeouts{},
		Bootstrap:  []addr.Address{mustParse(t, "10.0.0.1:8333")},
	}
	ctrl := New(cfg, nodes, adverts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, ctrl.Run(ctx))
	assert.Empty(t, nodes.records)
}
