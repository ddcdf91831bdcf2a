// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a wallet-identified account. WalletAddress is stored lower-cased.
type User struct {
	WalletAddress string
	Nonce         string
	CreatedAt     time.Time
	LastLogin     time.Time
}
