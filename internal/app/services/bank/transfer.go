package bank

import (
	"context"
	"math/big"
)

// TransferProvider moves secondary-asset and native value in and out of the
// custody account. Implementations may charge transfer fees; TransferIn
// therefore reports the amount actually received, which is what gets
// credited.
type TransferProvider interface {
	TransferIn(ctx context.Context, from, assetID string, amount *big.Int) (*big.Int, error)
	TransferOut(ctx context.Context, to, assetID string, amount *big.Int) (bool, error)
}

// IdentityProvider answers whether a caller holds the admin capability.
type IdentityProvider interface {
	IsAdmin(ctx context.Context, caller string) (bool, error)
}
