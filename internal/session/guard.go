package session

import (
	"context"
	"sync"

	"github.com/otoco-io/ledger-web3-subprovider/internal/device"
	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// ConnectionGuard serializes access to the hardware device. Ledger
// firmware speaks to exactly one host channel at a time, so the guard
// owns the open/close lifecycle: the single permit is claimed before
// the channel is opened, which keeps a second caller blocked without
// ever touching the hardware.
type ConnectionGuard struct {
	factory device.Factory
	sem     chan struct{}

	mu     sync.Mutex
	handle device.Client
}

// NewConnectionGuard creates a guard permitting one live connection
// opened through factory.
func NewConnectionGuard(factory device.Factory) *ConnectionGuard {
	return &ConnectionGuard{
		factory: factory,
		sem:     make(chan struct{}, 1),
	}
}

// Acquire claims exclusive device access, then opens a connection and
// registers it. Callers block until the previous holder releases. A
// handle still registered after the claim succeeds means a release-path
// bug leaked a connection; that surfaces as ErrMultipleOpenConnections
// rather than silently talking over a live channel.
func (g *ConnectionGuard) Acquire(ctx context.Context) (device.Client, error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	g.mu.Lock()
	leaked := g.handle != nil
	g.mu.Unlock()
	if leaked {
		<-g.sem
		return nil, provErr.ErrMultipleOpenConnections
	}

	client, err := g.factory.Open(ctx)
	if err != nil {
		<-g.sem
		return nil, provErr.Device(err)
	}

	g.mu.Lock()
	g.handle = client
	g.mu.Unlock()
	return client, nil
}

// Release closes the registered connection and frees the guard. It is
// idempotent so callers can defer it on every path.
func (g *ConnectionGuard) Release() error {
	g.mu.Lock()
	handle := g.handle
	g.handle = nil
	g.mu.Unlock()

	if handle == nil {
		return nil
	}
	<-g.sem
	return handle.Close()
}

// OpenSessions reports how many connections are currently held, either
// zero or one.
func (g *ConnectionGuard) OpenSessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.handle != nil {
		return 1
	}
	return 0
}
