package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/crawl"
	"github.com/stretchr/testify/require"
)

func TestReachableNodeSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reachable_nodes.csv")

	sink, err := NewReachableNodeSink(path)
	require.NoError(t, err)

	a, err := addr.ParseHostPort("10.0.0.1:8333")
	require.NoError(t, err)

	rec := crawl.ReachableNodeRecord{
		Timestamp:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SeedDistance:        2,
		Address:             a,
		HandshakeSuccessful: true,
		ProtocolVersion:     70016,
		UserAgent:           "/Satoshi:25.0.0/",
		Services:            1,
		StartHeight:         800000,
		NumAddrMessages:     3,
		NumAddresses:        150,
	}
	require.NoError(t, sink.WriteReachableNode(rec))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, reachableNodesHeader, rows[0])

	distanceCol := -1
	for i, name := range reachableNodesHeader {
		if name == "seed_distance" {
			distanceCol = i
		}
	}
	require.GreaterOrEqual(t, distanceCol, 0, "seed_distance column must exist in the header")
	require.Equal(t, "2", rows[1][distanceCol])
	require.Equal(t, "10.0.0.1", rows[1][1])
	require.Equal(t, "true", rows[1][5])
}

func TestAdvertisedAddressSinkWritesHeaderAndRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "advertised_addresses.csv")

	sink, err := NewAdvertisedAddressSink(path)
	require.NoError(t, err)

	src, err := addr.ParseHostPort("10.0.0.1:8333")
	require.NoError(t, err)
	dst, err := addr.ParseHostPort("10.0.0.2:8333")
	require.NoError(t, err)

	rec := crawl.AdvertisedAddressRecord{
		Source:              src,
		AdvertisedTimestamp: 1700000000,
		AdvertisedServices:  1,
		Advertised:          dst,
	}
	require.NoError(t, sink.WriteAdvertisedAddress(rec))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, advertisedAddressesHeader, rows[0])
	require.Equal(t, "10.0.0.2", rows[1][5])
}

func TestFormatDurationAndTimeOmitZeroValues(t *testing.T) {
	require.Equal(t, "", formatDuration(0))
	require.Equal(t, "", formatTime(time.Time{}))
	require.NotEmpty(t, formatDuration(time.Second))
	require.NotEmpty(t, formatTime(time.Now()))
}
