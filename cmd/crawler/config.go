package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// timestampLayout matches the original crawler's default: an RFC3339-like
// stamp with colons swapped for hyphens so it's safe as a directory name on
// every filesystem.
const timestampLayout = "2006-01-02T15-04-05Z"

// Options is the crawler's command-line configuration surface, parsed by
// go-flags. Field tags map directly onto the option names a user passes on
// the command line.
type Options struct {
	NumWorkers int     `long:"num-workers" description:"Size of the worker pool" default:"64"`
	NodeShare  float64 `long:"node-share" description:"Fraction (0.0-1.0) of reachable nodes whose advertised addresses are persisted" default:"1.0"`

	DelayStart time.Duration `long:"delay-start" description:"Grace period before any transport is used, to let Tor/I2P routers warm up" default:"0s"`

	HandshakeAttempts int  `long:"handshake-attempts" description:"Retry count for the connect+handshake stage" default:"3"`
	GetAddrRetries    int  `long:"getaddr-retries" description:"Total number of getaddr windows attempted before giving up on empty results" default:"2"`
	RecordAddrData    bool `long:"record-addr-data" description:"Enable the advertised-address sink"`

	FrontierMinAge time.Duration `long:"frontier-min-age" description:"Addresses advertised with an older timestamp than this are still recorded but excluded from the frontier" default:"48h"`

	IPConnectTimeout time.Duration `long:"ip-connect-timeout" default:"10s"`
	IPMessageTimeout time.Duration `long:"ip-message-timeout" default:"20s"`
	IPGetAddrTimeout time.Duration `long:"ip-getaddr-timeout" default:"30s"`

	TorConnectTimeout time.Duration `long:"tor-connect-timeout" default:"30s"`
	TorMessageTimeout time.Duration `long:"tor-message-timeout" default:"40s"`
	TorGetAddrTimeout time.Duration `long:"tor-getaddr-timeout" default:"60s"`

	I2PConnectTimeout time.Duration `long:"i2p-connect-timeout" default:"60s"`
	I2PMessageTimeout time.Duration `long:"i2p-message-timeout" default:"60s"`
	I2PGetAddrTimeout time.Duration `long:"i2p-getaddr-timeout" default:"90s"`

	CJDNSConnectTimeout time.Duration `long:"cjdns-connect-timeout" default:"10s"`
	CJDNSMessageTimeout time.Duration `long:"cjdns-message-timeout" default:"20s"`
	CJDNSGetAddrTimeout time.Duration `long:"cjdns-getaddr-timeout" default:"30s"`

	TorProxyHost string `long:"tor-proxy-host" default:"127.0.0.1"`
	TorProxyPort uint16 `long:"tor-proxy-port" default:"9050"`

	I2PSamHost string `long:"i2p-sam-host" default:"127.0.0.1"`
	I2PSamPort uint16 `long:"i2p-sam-port" default:"7656"`

	EnableTor   bool `long:"enable-tor" description:"Dial .onion bootstrap/advertised peers"`
	EnableI2P   bool `long:"enable-i2p" description:"Dial .b32.i2p bootstrap/advertised peers"`
	EnableCJDNS bool `long:"enable-cjdns" description:"Dial fc00::/8 bootstrap/advertised peers"`

	TorConcurrency   int64 `long:"tor-concurrency" description:"Max simultaneous Tor sessions, independent of num-workers; 0 is unbounded" default:"16"`
	I2PConcurrency   int64 `long:"i2p-concurrency" description:"Max simultaneous I2P SAM sessions, independent of num-workers; 0 is unbounded" default:"16"`
	CJDNSConcurrency int64 `long:"cjdns-concurrency" description:"Max simultaneous CJDNS sessions, independent of num-workers; 0 is unbounded" default:"0"`

	Seeds    []string `long:"seed" description:"Override which DNS seeds to use" default-mask:"<bitcoin-core DNS seeds>"`
	SeedPort uint16   `long:"seed-port" default:"8333"`

	ResultPath    string `long:"result-path" description:"Base directory; results are written under result-path/<timestamp>/" default:"results"`
	StoreDebugLog bool   `long:"store-debug-log" description:"Additionally write a debug log file into the run's result directory"`
	Timestamp     string `long:"timestamp" description:"Override the crawl's nominal start time, used to name its result directory; empty uses the actual start time"`

	UserAgent        string `long:"user-agent" description:"Client name to advertise in our own version message" default:"/p2p-crawler:0.1.0/"`
	StartHeight      int32  `long:"start-height" default:"0"`
	ExtraVersionInfo string `long:"extra-version-info" description:"Free-form operator note recorded in the stats file, not sent on the wire"`

	RandomSeed int64 `long:"random-seed" description:"Seed for the node-share sample; 0 uses the process start time"`

	MetricsAddr string `long:"metrics-addr" description:"Address to serve Prometheus metrics on, e.g. :9100; empty disables metrics"`

	S3Bucket    string `long:"s3-bucket" description:"Upload result-path to this S3 bucket when the crawl finishes; empty disables upload"`
	S3KeyPrefix string `long:"s3-key-prefix" default:"crawls"`

	Verbose []bool `short:"v" long:"verbose" description:"Increase log verbosity; may be repeated"`
}

// Validate rejects configurations that can never produce a sensible crawl.
func (o Options) Validate() error {
	if o.NumWorkers <= 0 {
		return fmt.Errorf("num-workers must be positive, got %d", o.NumWorkers)
	}
	if o.NodeShare < 0.0 || o.NodeShare > 1.0 {
		return fmt.Errorf("node-share must be within [0.0, 1.0], got %f", o.NodeShare)
	}
	if o.HandshakeAttempts <= 0 {
		return fmt.Errorf("handshake-attempts must be positive, got %d", o.HandshakeAttempts)
	}
	if o.GetAddrRetries < 0 {
		return fmt.Errorf("getaddr-retries must not be negative, got %d", o.GetAddrRetries)
	}
	if o.ResultPath == "" {
		return errors.New("result-path is required")
	}
	return nil
}

// ResultDir returns the directory one crawl writes its sinks, stats file,
// and debug log into: result-path/<timestamp>/, per spec. o.Timestamp
// overrides the nominal started time when set, so a re-run can be made to
// write into the same directory as an earlier one.
func (o Options) ResultDir(started time.Time) string {
	stamp := o.Timestamp
	if stamp == "" {
		stamp = started.Format(timestampLayout)
	}
	return filepath.Join(o.ResultPath, stamp)
}
