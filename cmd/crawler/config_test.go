package main

import (
	"testing"
	"time"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/stretchr/testify/assert"
)

func validOptions() Options {
	return Options{
		NumWorkers:        64,
		NodeShare:         1.0,
		HandshakeAttempts: 3,
		GetAddrRetries:    2,
		ResultPath:        "results",
	}
}

func TestOptionsValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validOptions().Validate())
}

func TestOptionsValidateRejectsNonPositiveWorkers(t *testing.T) {
	o := validOptions()
	o.NumWorkers = 0
	assert.Error(t, o.Validate())
}

func TestOptionsValidateRejectsNodeShareOutOfRange(t *testing.T) {
	o := validOptions()
	o.NodeShare = 1.5
	assert.Error(t, o.Validate())

	o = validOptions()
	o.NodeShare = -0.1
	assert.Error(t, o.Validate())
}

func TestOptionsValidateRejectsNonPositiveHandshakeAttempts(t *testing.T) {
	o := validOptions()
	o.HandshakeAttempts = 0
	assert.Error(t, o.Validate())
}

func TestOptionsValidateRejectsNegativeGetAddrRetries(t *testing.T) {
	o := validOptions()
	o.GetAddrRetries = -1
	assert.Error(t, o.Validate())
}

func TestOptionsValidateRejectsEmptyResultPath(t *testing.T) {
	o := validOptions()
	o.ResultPath = ""
	assert.Error(t, o.Validate())
}

func TestResultDirUsesStartedTimeByDefault(t *testing.T) {
	o := validOptions()
	started := time.Date(2026, 8, 6, 12, 34, 56, 0, time.UTC)

	assert.Equal(t, "results/2026-08-06T12-34-56Z", o.ResultDir(started))
}

func TestResultDirHonorsTimestampOverride(t *testing.T) {
	o := validOptions()
	o.Timestamp = "2020-01-01T00-00-00Z"
	started := time.Date(2026, 8, 6, 12, 34, 56, 0, time.UTC)

	assert.Equal(t, "results/2020-01-01T00-00-00Z", o.ResultDir(started))
}

func TestBuildTransportConcurrencyOnlyIncludesEnabledKinds(t *testing.T) {
	o := validOptions()
	o.EnableTor = true
	o.TorConcurrency = 8
	o.I2PConcurrency = 16

	limits := buildTransportConcurrency(o)
	assert.Equal(t, int64(8), limits[addr.KindOnionV3])
	assert.NotContains(t, limits, addr.KindI2P)
}
