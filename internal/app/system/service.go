package system

import "context"

// Service is a long-running component with an explicit lifecycle. The manager
// starts registered services in order and stops them in reverse; background
// workers such as the price poller implement it.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
