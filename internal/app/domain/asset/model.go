package asset

import "time"

// Native is the identifier of the chain-native asset. It is seeded into the
// registry at initialization and can never be removed.
const Native = "NATIVE"

// Invalid is the zero-value identifier rejected by registry operations.
const Invalid = ""

// Entry records whether an asset identifier is accepted for deposits and
// withdrawals.
type Entry struct {
	AssetID   string
	Supported bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNative reports whether id names the native asset.
func IsNative(id string) bool {
	return id == Native
}
