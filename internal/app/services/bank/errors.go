package bank

import "errors"

var (
	// ErrInvalidAccount rejects the empty account identifier.
	ErrInvalidAccount = errors.New("account is required")
	// ErrZeroAmount rejects operations with a zero or missing amount.
	ErrZeroAmount = errors.New("amount must be positive")
	// ErrInvalidAsset rejects the empty asset identifier.
	ErrInvalidAsset = errors.New("invalid asset identifier")
	// ErrWrongPath rejects the native identifier on the secondary-asset
	// path and vice versa.
	ErrWrongPath = errors.New("wrong operation path for asset")
	// ErrAssetNotSupported rejects operations on non-whitelisted assets.
	ErrAssetNotSupported = errors.New("asset not supported")
	// ErrPaused rejects deposit-path operations while the pause flag is
	// set. Withdrawals stay permitted so users can always recover funds.
	ErrPaused = errors.New("deposits are paused")
	// ErrReentrantCall rejects a mutating call made while another mutating
	// operation is in flight, including nested calls made by the external
	// transfer collaborator.
	ErrReentrantCall = errors.New("reentrant call")
	// ErrInboundTransferFailed wraps asset-provider failures on transfer-in.
	ErrInboundTransferFailed = errors.New("inbound transfer failed")
	// ErrOutboundTransferFailed wraps asset-provider failures on
	// transfer-out. The whole operation, including the already-applied
	// ledger debit, is unwound.
	ErrOutboundTransferFailed = errors.New("outbound transfer failed")
)
