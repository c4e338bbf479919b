// Package network maps Nigerian phone number prefixes to carriers.
package network

import (
	"airvault/internal/types"
)

// carrierPrefixes is the static per-carrier prefix table. Lookup is
// first-match in declaration order; the prefixes are mutually exclusive by
// construction, but if two carriers ever claimed the same prefix the first
// carrier here wins, which keeps resolution deterministic.
var carrierPrefixes = []struct {
	Network  types.Network
	Prefixes []string
}{
	{types.NetworkMTN, []string{
		"0803", "0806", "0703", "0706", "0813", "0816", "0810", "0814",
		"0903", "0906", "0913", "0916", "0702", "0704",
	}},
	{types.NetworkAirtel, []string{
		"0802", "0808", "0708", "0812", "0701", "0901", "0902", "0904",
		"0907", "0911", "0912",
	}},
	{types.NetworkGlo, []string{
		"0805", "0807", "0705", "0815", "0811", "0905", "0915",
	}},
	{types.Network9Mobile, []string{
		"0809", "0818", "0817", "0909", "0908",
	}},
}

// Resolve inspects the 4-character prefix of a cleaned phone number and
// returns the matching carrier, or types.NetworkUnknown when the input is
// shorter than 4 characters or no prefix matches. It has no side effects.
func Resolve(number string) types.Network {
	if len(number) < 4 {
		return types.NetworkUnknown
	}
	prefix := number[:4]
	for _, carrier := range carrierPrefixes {
		for _, p := range carrier.Prefixes {
			if p == prefix {
				return carrier.Network
			}
		}
	}
	return types.NetworkUnknown
}
