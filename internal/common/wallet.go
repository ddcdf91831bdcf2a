package common

import "strings"

// NormalizeWallet returns the canonical form of a wallet address: surrounding
// whitespace removed and letters lower-cased. Every lookup and every stored
// address goes through it, so "0xABC" and " 0xabc " name the same user.
func NormalizeWallet(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameWallet reports whether two addresses refer to the same wallet.
func SameWallet(a, b string) bool {
	return NormalizeWallet(a) == NormalizeWallet(b)
}
