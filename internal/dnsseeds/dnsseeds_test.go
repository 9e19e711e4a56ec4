package dnsseeds

import (
	"testing"

	"github.com/p2p-crawler/crawler/internal/addr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenDedupsAcrossSeeds(t *testing.T) {
	a, err := addr.ParseHostPort("1.2.3.4:8333")
	require.NoError(t, err)
	b, err := addr.ParseHostPort("5.6.7.8:8333")
	require.NoError(t, err)

	results := []Result{
		{Seed: "seed1", Addresses: []addr.Address{a, b}},
		{Seed: "seed2", Addresses: []addr.Address{a}},
		{Seed: "seed3", Err: assert.AnError},
	}

	flat := Flatten(results)
	assert.Len(t, flat, 2)
}

func TestFlattenEmptyResults(t *testing.T) {
	assert.Empty(t, Flatten(nil))
}
