package addr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostPortClassification(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind Kind
		host string
	}{
		{"ipv4", "1.2.3.4:8333", KindIPv4, "1.2.3.4"},
		{"ipv6", "[2001:db8::1]:8333", KindIPv6, "2001:db8::1"},
		{"cjdns", "[fc00::1]:8333", KindCJDNS, "fc00::1"},
		{
			"onion",
			"eibh3mpkjbanffq4r3z4fo5h5jqnvbl3vk6ycnmkc5vspo2ku4v5vcyd.onion:8333",
			KindOnionV3,
			"eibh3mpkjbanffq4r3z4fo5h5jqnvbl3vk6ycnmkc5vspo2ku4v5vcyd",
		},
		{
			"i2p",
			"abababababababababababababababababababababababababab.b32.i2p:8333",
			KindI2P,
			"abababababababababababababababababababababababababab",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := ParseHostPort(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, a.Kind)
			assert.Equal(t, tc.host, a.Host)
			assert.EqualValues(t, 8333, a.Port)
		})
	}
}

func TestParseHostPortRejectsMixedForms(t *testing.T) {
	_, err := ParseHostPort("[2001:db8::1].onion:8333")
	assert.Error(t, err)
}

func TestAddressEqualityIgnoresNothingButKindHostPort(t *testing.T) {
	a1, err := ParseHostPort("1.2.3.4:8333")
	require.NoError(t, err)
	a2, err := ParseHostPort("1.2.3.4:8333")
	require.NoError(t, err)
	assert.Equal(t, a1.Key(), a2.Key())

	a3, err := ParseHostPort("1.2.3.4:8334")
	require.NoError(t, err)
	assert.NotEqual(t, a1.Key(), a3.Key())
}

func TestIPv4MappedIPv6Downcast(t *testing.T) {
	a, err := ParseHostPort("[::ffff:1.2.3.4]:8333")
	require.NoError(t, err)
	assert.Equal(t, KindIPv4, a.Kind)
	assert.Equal(t, "1.2.3.4", a.Host)
}

func TestTorV3RoundTrip(t *testing.T) {
	pubkey := make([]byte, 32)
	for i := range pubkey {
		pubkey[i] = byte(i)
	}
	label, err := DecodeTorV3PublicKey(pubkey)
	require.NoError(t, err)
	assert.Len(t, label, onionV3Len)

	recovered, err := EncodeTorV3PublicKey(label)
	require.NoError(t, err)
	assert.Equal(t, pubkey, recovered)
}

func TestI2PDestinationRoundTrip(t *testing.T) {
	hash := make([]byte, 32)
	for i := range hash {
		hash[i] = byte(255 - i)
	}
	label, err := DecodeI2PDestination(hash)
	require.NoError(t, err)
	assert.Len(t, label, i2pB32Len)

	recovered, err := EncodeI2PDestination(label)
	require.NoError(t, err)
	assert.Equal(t, hash, recovered)
}

func TestIsCJDNSRange(t *testing.T) {
	raw := make([]byte, 16)
	raw[0] = 0xfc
	assert.True(t, IsCJDNSRange(raw))
	raw[0] = 0x20
	assert.False(t, IsCJDNSRange(raw))
}

func TestFromBIP155ClassifiesCJDNSNetworkID(t *testing.T) {
	raw := net.ParseIP("fc00::1").To16()
	require.NotNil(t, raw)

	a, err := FromBIP155(6, raw, 8333)
	require.NoError(t, err)
	assert.Equal(t, KindCJDNS, a.Kind)
	assert.Equal(t, "fc00::1", a.Host)
	assert.EqualValues(t, 8333, a.Port)
}

func TestFromBIP155ReclassifiesCJDNSRangeSentAsIPv6(t *testing.T) {
	raw := net.ParseIP("fc00::1").To16()
	require.NotNil(t, raw)

	a, err := FromBIP155(2, raw, 8333)
	require.NoError(t, err)
	assert.Equal(t, KindCJDNS, a.Kind)
	assert.Equal(t, "fc00::1", a.Host)
}

func TestFromBIP155ClassifiesOrdinaryIPv6(t *testing.T) {
	raw := net.ParseIP("2001:db8::1").To16()
	require.NotNil(t, raw)

	a, err := FromBIP155(2, raw, 8333)
	require.NoError(t, err)
	assert.Equal(t, KindIPv6, a.Kind)
	assert.Equal(t, "2001:db8::1", a.Host)
}

func TestFromBIP155RejectsUnsupportedNetworkID(t *testing.T) {
	_, err := FromBIP155(42, []byte{0, 0, 0, 0}, 8333)
	assert.Error(t, err)
}
