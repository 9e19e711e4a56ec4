// Package output implements the crawl's two result sinks (append-only CSV
// files), the optional crawler-run stats file, and upload of a finished
// result directory to S3.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/p2p-crawler/crawler/internal/crawl"
)

var reachableNodesHeader = []string{
	"timestamp", "address", "port", "network", "seed_distance", "handshake_successful",
	"protocol_version", "user_agent", "services", "start_height",
	"latency_connect", "latency_version_handshake", "latency_verack_handshake",
	"num_addr_messages", "num_addresses", "time_first_addr", "time_last_addr",
}

var advertisedAddressesHeader = []string{
	"source_address", "source_port", "source_network",
	"advertised_timestamp", "advertised_services",
	"advertised_address", "advertised_port", "advertised_network",
}

// csvSink is the shared append-only, thread-safe CSV writer both result
// sinks build on. Workers may call Write concurrently; back-pressure from a
// slow disk simply blocks the calling worker, which is the crawl's only
// source of back-pressure.
type csvSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

func newCSVSink(path string, header []string) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("output: write header to %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("output: flush header to %s: %w", path, err)
	}
	return &csvSink{file: f, writer: w}, nil
}

func (s *csvSink) writeRow(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *csvSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// ReachableNodeSink writes one CSV row per terminated session.
type ReachableNodeSink struct {
	sink *csvSink
}

// NewReachableNodeSink creates (truncating) the reachable-nodes CSV file at
// path and writes its header.
func NewReachableNodeSink(path string) (*ReachableNodeSink, error) {
	sink, err := newCSVSink(path, reachableNodesHeader)
	if err != nil {
		return nil, err
	}
	return &ReachableNodeSink{sink: sink}, nil
}

// WriteReachableNode satisfies crawl.ReachableNodeSink.
func (s *ReachableNodeSink) WriteReachableNode(rec crawl.ReachableNodeRecord) error {
	row := []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Address.Host,
		strconv.Itoa(int(rec.Address.Port)),
		rec.Address.Kind.String(),
		strconv.Itoa(rec.SeedDistance),
		strconv.FormatBool(rec.HandshakeSuccessful),
		strconv.Itoa(int(rec.ProtocolVersion)),
		rec.UserAgent,
		strconv.FormatUint(uint64(rec.Services), 10),
		strconv.Itoa(int(rec.StartHeight)),
		formatDuration(rec.LatencyConnect),
		formatDuration(rec.LatencyVersionHandshake),
		formatDuration(rec.LatencyVerAckHandshake),
		strconv.Itoa(rec.NumAddrMessages),
		strconv.Itoa(rec.NumAddresses),
		formatTime(rec.TimeFirstAddr),
		formatTime(rec.TimeLastAddr),
	}
	if err := s.sink.writeRow(row); err != nil {
		return fmt.Errorf("output: write reachable-node row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *ReachableNodeSink) Close() error { return s.sink.Close() }

// AdvertisedAddressSink writes one CSV row per advertised-address record, for
// nodes selected by the node-share sample.
type AdvertisedAddressSink struct {
	sink *csvSink
}

// NewAdvertisedAddressSink creates (truncating) the advertised-addresses CSV
// file at path and writes its header.
func NewAdvertisedAddressSink(path string) (*AdvertisedAddressSink, error) {
	sink, err := newCSVSink(path, advertisedAddressesHeader)
	if err != nil {
		return nil, err
	}
	return &AdvertisedAddressSink{sink: sink}, nil
}

// WriteAdvertisedAddress satisfies crawl.AdvertisedAddressSink.
func (s *AdvertisedAddressSink) WriteAdvertisedAddress(rec crawl.AdvertisedAddressRecord) error {
	row := []string{
		rec.Source.Host,
		strconv.Itoa(int(rec.Source.Port)),
		rec.Source.Kind.String(),
		strconv.FormatUint(uint64(rec.AdvertisedTimestamp), 10),
		strconv.FormatUint(uint64(rec.AdvertisedServices), 10),
		rec.Advertised.Host,
		strconv.Itoa(int(rec.Advertised.Port)),
		rec.Advertised.Kind.String(),
	}
	if err := s.sink.writeRow(row); err != nil {
		return fmt.Errorf("output: write advertised-address row: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *AdvertisedAddressSink) Close() error { return s.sink.Close() }

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
