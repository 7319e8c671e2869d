package domain

import "github.com/ethereum/go-ethereum/common"

// NormalizeAddress canonicalizes a hex account address to its EIP-55 checksum
// form so that the same seller reported with different casing compares equal.
// Non-hex input is returned unchanged.
func NormalizeAddress(addr string) string {
	if !common.IsHexAddress(addr) {
		return addr
	}
	return common.HexToAddress(addr).Hex()
}
