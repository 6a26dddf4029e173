package live

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrAlreadyRunning = errors.New("live trading already running")
	ErrNotRunning     = errors.New("live trading not running")
)

// Controller starts and stops a Trader in the background.
type Controller struct {
	trader *Trader

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewController(trader *Trader) *Controller {
	return &Controller{trader: trader}
}

func (c *Controller) Trader() *Trader {
	return c.trader
}

func (c *Controller) Start(parent context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	c.cancel, c.done = cancel, done
	go func() {
		defer close(done)
		c.trader.Run(ctx)
		c.mu.Lock()
		if c.done == done {
			c.cancel, c.done = nil, nil
		}
		c.mu.Unlock()
	}()
	return nil
}

// Stop cancels the runner and waits for it to exit. Orders it placed keep
// their watchers until they fill or expire.
func (c *Controller) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return ErrNotRunning
	}
	cancel()
	<-done
	return nil
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Controller) Status() Status {
	return c.trader.Status()
}
