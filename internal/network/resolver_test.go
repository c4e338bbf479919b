package network

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"airvault/internal/types"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   types.Network
	}{
		{"mtn 0803", "08031234567", types.NetworkMTN},
		{"mtn 0916", "09161234567", types.NetworkMTN},
		{"airtel 0802", "08021234567", types.NetworkAirtel},
		{"airtel 0901", "09011234567", types.NetworkAirtel},
		{"glo 0805", "08051234567", types.NetworkGlo},
		{"glo 0915", "09151234567", types.NetworkGlo},
		{"9mobile 0809", "08091234567", types.Network9Mobile},
		{"9mobile 0908", "09081234567", types.Network9Mobile},
		{"unknown prefix", "08991234567", types.NetworkUnknown},
		{"too short", "080", types.NetworkUnknown},
		{"empty", "", types.NetworkUnknown},
		{"non-numeric", "abcd1234567", types.NetworkUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.number))
		})
	}
}

// The prefix table must resolve on the prefix alone; trailing digits beyond
// the first four never influence the result.
func TestResolveIgnoresTrailingDigits(t *testing.T) {
	assert.Equal(t, Resolve("0803"), Resolve("08039999999"))
	assert.Equal(t, Resolve("0909"), Resolve("09090000000"))
}
