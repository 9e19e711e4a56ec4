package frontier

import (
	"context"
	"testing"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAddr(t *testing.T, s string) addr.Address {
	t.Helper()
	a, err := addr.ParseHostPort(s)
	require.NoError(t, err)
	return a
}

func TestOfferDedup(t *testing.T) {
	f := New()
	a := mustAddr(t, "1.2.3.4:8333")

	assert.True(t, f.Offer(a))
	assert.False(t, f.Offer(a))
	assert.Equal(t, 1, f.SizeSeen())
	assert.Equal(t, 1, f.SizePending())
}

func TestTakeDrainsThenBlocksUntilOffer(t *testing.T) {
	f := New()
	a := mustAddr(t, "1.2.3.4:8333")
	f.Offer(a)

	got, ok := f.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, 0, f.SizePending())

	b := mustAddr(t, "5.6.7.8:8333")
	go func() {
		time.Sleep(20 * time.Millisecond)
		f.Offer(b)
	}()
	got, ok = f.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestCloseDrainsPendingThenSignalsClosed(t *testing.T) {
	f := New()
	a := mustAddr(t, "1.2.3.4:8333")
	f.Offer(a)
	f.Close()

	got, ok := f.Take(context.Background())
	require.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = f.Take(context.Background())
	assert.False(t, ok)
}

func TestOfferAfterCloseIsNoOp(t *testing.T) {
	f := New()
	f.Close()
	assert.False(t, f.Offer(mustAddr(t, "1.2.3.4:8333")))
}

func TestTakeRespectsCancellation(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, ok := f.Take(ctx)
	assert.False(t, ok)
}

func TestOfferAgedExcludesStaleFromPendingButStillMarksSeen(t *testing.T) {
	f := New()
	f.MinAge = 2 * 24 * time.Hour
	now := time.Now()
	stale := mustAddr(t, "1.2.3.4:8333")

	assert.True(t, f.OfferAged(stale, now.Add(-72*time.Hour), now))
	assert.Equal(t, 1, f.SizeSeen())
	assert.Equal(t, 0, f.SizePending())

	assert.False(t, f.OfferAged(stale, now, now))
}

func TestOfferAgedAcceptsFreshAddress(t *testing.T) {
	f := New()
	f.MinAge = 2 * 24 * time.Hour
	now := time.Now()
	fresh := mustAddr(t, "1.2.3.4:8333")

	assert.True(t, f.OfferAged(fresh, now.Add(-1*time.Hour), now))
	assert.Equal(t, 1, f.SizePending())
}

func TestCJDNSAndIPv6SameBytesAreDistinct(t *testing.T) {
	f := New()
	ipv6, err := addr.ParseHost("fc00::1", 8333)
	require.NoError(t, err)
	assert.Equal(t, addr.KindCJDNS, ipv6.Kind)

	plain, err := addr.ParseHost("2001:db8::1", 8333)
	require.NoError(t, err)
	assert.Equal(t, addr.KindIPv6, plain.Kind)

	assert.True(t, f.Offer(ipv6))
	assert.True(t, f.Offer(plain))
	assert.Equal(t, 2, f.SizeSeen())
}
