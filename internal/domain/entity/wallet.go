package entity

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultChain is used for wallets registered without an explicit chain set.
const DefaultChain = "eth"

var addressPattern = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// Wallet is a tracked wallet address together with the chains it is read on.
type Wallet struct {
	Address string   `json:"address"`
	Chains  []string `json:"chains"`
}

// ValidateAddress reports whether addr is a 0x-prefixed 20-byte hex address.
func ValidateAddress(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("%w: please enter a wallet address", ErrInvalidAddress)
	}
	if !addressPattern.MatchString(addr) {
		return fmt.Errorf("%w: please enter a valid Ethereum address", ErrInvalidAddress)
	}
	return nil
}

// SameAddress compares two addresses ignoring hex case.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ChainsOrDefault returns the wallet chains, or DefaultChain when none are set.
func (w Wallet) ChainsOrDefault() []string {
	if len(w.Chains) == 0 {
		return []string{DefaultChain}
	}
	return w.Chains
}
