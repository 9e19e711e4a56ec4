package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Stats is the supplemented crawler-run summary written alongside the two
// CSV sinks: counts useful for monitoring a crawl without re-scanning the
// CSV files.
type Stats struct {
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      time.Time     `json:"finished_at"`
	Duration        time.Duration `json:"duration_nanoseconds"`
	BootstrapCount  int           `json:"bootstrap_count"`
	SeenCount       int           `json:"seen_count"`
	ReachableCount  int           `json:"reachable_count"`
	HandshakeOK     int           `json:"handshake_successful_count"`
	AdvertisedCount int           `json:"advertised_address_count"`
	NumWorkers      int           `json:"num_workers"`
	NodeShare       float64       `json:"node_share"`

	// ByNetwork breaks HandshakeOK down per address family, keyed by the
	// same string addr.Kind.String() produces (e.g. "ipv4", "onion_v3").
	ByNetwork map[string]int `json:"by_network,omitempty"`

	// ExtraVersionInfo is operator-supplied free text, never sent on the wire.
	ExtraVersionInfo string `json:"extra_version_info,omitempty"`
}

// WriteStats serializes stats as indented JSON to path.
func WriteStats(path string, stats Stats) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create stats file %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "\t")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("output: encode stats to %s: %w", path, err)
	}
	return nil
}
