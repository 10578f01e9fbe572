// Package dispatch delivers one message body to one destination on one
// channel. The worker only sees the Outcome; provider response formats stay
// inside the dispatchers.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/pkg/prom"
)

var (
	ErrNoDispatcher          = errors.New("no dispatcher registered for channel")
	ErrProviderNotConfigured = errors.New("provider is not configured")
)

// Outcome is the result of one delivery attempt. Simulated outcomes count as
// delivered but never reached a provider.
type Outcome struct {
	Delivered bool
	Error     string
	Simulated bool
	Segments  int
}

// Dispatcher performs one delivery attempt. A non-nil error always comes
// with an undelivered Outcome describing the failure.
type Dispatcher interface {
	Deliver(ctx context.Context, destination, subject, body string) (Outcome, error)
}

// Policy decides what an unconfigured provider does.
type Policy struct {
	AllowSimulated bool
}

// unconfigured is the shared path for a dispatcher without provider
// settings.
func (p Policy) unconfigured(op string, segments int) (Outcome, error) {
	if p.AllowSimulated {
		return Outcome{Delivered: true, Simulated: true, Segments: segments}, nil
	}
	return failed(op, ErrProviderNotConfigured)
}

func failed(op string, cause error) (Outcome, error) {
	return Outcome{Error: cause.Error()}, apperr.Dispatch(op, cause)
}

// Registry maps channels to dispatchers.
type Registry struct {
	dispatchers map[model.Channel]Dispatcher
}

func NewRegistry() *Registry {
	return &Registry{dispatchers: make(map[model.Channel]Dispatcher)}
}

func (r *Registry) Register(ch model.Channel, d Dispatcher) *Registry {
	r.dispatchers[ch] = d
	return r
}

// Deliver routes to the channel's dispatcher. An unknown channel is a failed
// outcome, not a panic.
func (r *Registry) Deliver(ctx context.Context, ch model.Channel, destination, subject, body string) (Outcome, error) {
	d, ok := r.dispatchers[ch]
	if !ok {
		return failed("deliver "+string(ch), ErrNoDispatcher)
	}

	start := time.Now()
	out, err := d.Deliver(ctx, destination, subject, body)
	if err != nil && out.Error == "" {
		out.Delivered = false
		out.Error = err.Error()
	}
	prom.ObserveDispatch(string(ch), outcomeLabel(out), time.Since(start).Seconds())
	return out, err
}

func outcomeLabel(o Outcome) string {
	switch {
	case o.Simulated:
		return "simulated"
	case o.Delivered:
		return "delivered"
	}
	return "failed"
}
