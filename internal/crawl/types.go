package crawl

import (
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/p2p-crawler/crawler/internal/wire"
)

// ReachableNodeRecord is one row of the reachable-nodes sink.
type ReachableNodeRecord struct {
	Timestamp               time.Time
	SeedDistance            int
	Address                 addr.Address
	HandshakeSuccessful     bool
	ProtocolVersion         int32
	UserAgent               string
	Services                wire.ServiceFlag
	StartHeight             int32
	LatencyConnect          time.Duration
	LatencyVersionHandshake time.Duration
	LatencyVerAckHandshake  time.Duration
	NumAddrMessages         int
	NumAddresses            int
	TimeFirstAddr           time.Time
	TimeLastAddr            time.Time
}

// AdvertisedAddressRecord is one row of the advertised-addresses sink.
type AdvertisedAddressRecord struct {
	Source             addr.Address
	AdvertisedTimestamp uint32
	AdvertisedServices  wire.ServiceFlag
	Advertised          addr.Address
}

// ReachableNodeSink receives one record per terminated session.
type ReachableNodeSink interface {
	WriteReachableNode(rec ReachableNodeRecord) error
}

// AdvertisedAddressSink receives records only for nodes selected by the
// node-share sample.
type AdvertisedAddressSink interface {
	WriteAdvertisedAddress(rec AdvertisedAddressRecord) error
}
