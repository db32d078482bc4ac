package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressKey is the canonical stored form of an address: lowercase 0x-prefixed hex.
func AddressKey(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// ParseAddress validates a user supplied address and returns its stored form.
func ParseAddress(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return AddressKey(common.HexToAddress(s)), nil
}
