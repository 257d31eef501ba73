// Package registry maintains the set of accepted asset identifiers. The
// native asset is seeded at initialization and can never be removed. Admin
// gating happens in the admin controller, not here.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencustody/ledger_layer/internal/app/domain/asset"
	"github.com/opencustody/ledger_layer/internal/app/storage"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

var (
	// ErrInvalidAsset is returned for the empty identifier.
	ErrInvalidAsset = errors.New("invalid asset identifier")
	// ErrCannotReaddNative is returned when adding the native identifier.
	ErrCannotReaddNative = errors.New("native asset cannot be re-added")
	// ErrAlreadySupported is returned when adding an identifier that is
	// already whitelisted. Re-adding is an error, not a no-op.
	ErrAlreadySupported = errors.New("asset already supported")
	// ErrCannotRemoveNative is returned when removing the native identifier.
	ErrCannotRemoveNative = errors.New("native asset cannot be removed")
	// ErrNotSupported is returned when an identifier is not whitelisted.
	ErrNotSupported = errors.New("asset not supported")
)

// Service implements whitelist reads and mutations over a RegistryStore.
type Service struct {
	store storage.RegistryStore
	log   *logger.Logger
}

// New constructs a registry service and seeds the native asset.
func New(ctx context.Context, store storage.RegistryStore, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	s := &Service{store: store, log: log}

	if _, err := store.GetAsset(ctx, asset.Native); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("check native asset: %w", err)
		}
		if err := store.PutAsset(ctx, asset.Entry{AssetID: asset.Native, Supported: true}); err != nil {
			return nil, fmt.Errorf("seed native asset: %w", err)
		}
		log.Info("native asset seeded into registry")
	}
	return s, nil
}

// IsSupported reports whether the identifier is whitelisted.
func (s *Service) IsSupported(ctx context.Context, assetID string) (bool, error) {
	entry, err := s.store.GetAsset(ctx, assetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return entry.Supported, nil
}

// List returns all whitelisted identifiers.
func (s *Service) List(ctx context.Context) ([]string, error) {
	entries, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Supported {
			ids = append(ids, entry.AssetID)
		}
	}
	return ids, nil
}

// Add whitelists a new asset identifier.
func (s *Service) Add(ctx context.Context, assetID string) error {
	if assetID == asset.Invalid {
		return ErrInvalidAsset
	}
	if asset.IsNative(assetID) {
		return ErrCannotReaddNative
	}

	supported, err := s.IsSupported(ctx, assetID)
	if err != nil {
		return err
	}
	if supported {
		return ErrAlreadySupported
	}

	if err := s.store.PutAsset(ctx, asset.Entry{AssetID: assetID, Supported: true}); err != nil {
		return fmt.Errorf("store asset %s: %w", assetID, err)
	}
	s.log.WithField("asset_id", assetID).Info("asset added to whitelist")
	return nil
}

// Remove drops an asset identifier from the whitelist.
func (s *Service) Remove(ctx context.Context, assetID string) error {
	if asset.IsNative(assetID) {
		return ErrCannotRemoveNative
	}

	supported, err := s.IsSupported(ctx, assetID)
	if err != nil {
		return err
	}
	if !supported {
		return ErrNotSupported
	}

	if err := s.store.DeleteAsset(ctx, assetID); err != nil {
		return fmt.Errorf("delete asset %s: %w", assetID, err)
	}
	s.log.WithField("asset_id", assetID).Info("asset removed from whitelist")
	return nil
}
