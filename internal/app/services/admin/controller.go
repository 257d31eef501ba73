// Package admin gates whitelist mutation and pause toggling behind the
// external identity provider. Each operation takes the caller's identity and
// asks the provider for the admin capability; there is no ambient privilege.
package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/opencustody/ledger_layer/internal/app/services/bank"
	"github.com/opencustody/ledger_layer/pkg/logger"
)

// ErrUnauthorized is returned when the caller does not hold the admin
// capability.
var ErrUnauthorized = errors.New("caller is not an admin")

// Controller performs admin operations on behalf of an authorized caller.
type Controller struct {
	identity bank.IdentityProvider
	bank     *bank.Coordinator
	log      *logger.Logger
}

// New constructs an admin controller.
func New(identity bank.IdentityProvider, coordinator *bank.Coordinator, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	return &Controller{identity: identity, bank: coordinator, log: log}
}

func (c *Controller) authorize(ctx context.Context, caller string) error {
	ok, err := c.identity.IsAdmin(ctx, caller)
	if err != nil {
		return fmt.Errorf("resolve admin capability: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// AddAsset whitelists a secondary asset.
func (c *Controller) AddAsset(ctx context.Context, caller, assetID string) error {
	if err := c.authorize(ctx, caller); err != nil {
		return err
	}
	if err := c.bank.AddAsset(ctx, assetID); err != nil {
		return err
	}
	c.log.WithField("caller", caller).WithField("asset_id", assetID).Info("asset whitelisted")
	return nil
}

// RemoveAsset delists a secondary asset.
func (c *Controller) RemoveAsset(ctx context.Context, caller, assetID string) error {
	if err := c.authorize(ctx, caller); err != nil {
		return err
	}
	if err := c.bank.RemoveAsset(ctx, assetID); err != nil {
		return err
	}
	c.log.WithField("caller", caller).WithField("asset_id", assetID).Info("asset delisted")
	return nil
}

// SetPaused toggles the deposit pause flag.
func (c *Controller) SetPaused(ctx context.Context, caller string, paused bool) error {
	if err := c.authorize(ctx, caller); err != nil {
		return err
	}
	if err := c.bank.SetPaused(ctx, paused); err != nil {
		return err
	}
	c.log.WithField("caller", caller).WithField("paused", paused).Info("pause toggled")
	return nil
}

// StaticIdentityProvider answers admin checks from a fixed set of principals.
type StaticIdentityProvider struct {
	admins map[string]struct{}
}

var _ bank.IdentityProvider = (*StaticIdentityProvider)(nil)

// NewStaticIdentityProvider builds a provider from the configured admin
// principals.
func NewStaticIdentityProvider(admins []string) *StaticIdentityProvider {
	set := make(map[string]struct{}, len(admins))
	for _, admin := range admins {
		if admin != "" {
			set[admin] = struct{}{}
		}
	}
	return &StaticIdentityProvider{admins: set}
}

func (p *StaticIdentityProvider) IsAdmin(_ context.Context, caller string) (bool, error) {
	_, ok := p.admins[caller]
	return ok, nil
}
