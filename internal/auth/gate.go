// Package auth tracks the user's calendar-access permission and decides
// which surface the application shows.
package auth

import (
	"context"

	"upcal/internal/core"
)

// Mode is the surface routing decision derived from the gate's state.
type Mode int

const (
	// Show a prompt with a "grant access" action
	ModeRequestPrompt Mode = iota
	// Show the event list and enable creation
	ModeEvents
	// Point at the provider's settings surface; no in-app retry
	ModeSettingsPrompt
)

// Gate owns the authorization state against one calendar provider.
// State changes only through CheckStatus (a read-only refresh that can
// pick up out-of-band grant changes) and RequestAccess. A Gate must be
// driven from a single goroutine, like the session manager it fronts.
type Gate struct {
	provider core.Provider
	state    core.AuthStatus
	errSink  func(msg string)
}

// NewGate creates a gate in the NotDetermined state. errSink receives a
// human-readable message when a permission request fails at the
// provider level; it may be nil.
func NewGate(provider core.Provider, errSink func(msg string)) *Gate {
	return &Gate{
		provider: provider,
		state:    core.AuthNotDetermined,
		errSink:  errSink,
	}
}

// State returns the current authorization state without touching the
// provider.
func (g *Gate) State() core.AuthStatus {
	return g.state
}

// CheckStatus refreshes the state from the provider. It has no side
// effects on the provider and never fails; any state can move to any
// other if the grant changed outside the app.
func (g *Gate) CheckStatus(ctx context.Context) core.AuthStatus {
	g.state = g.provider.AuthorizationStatus(ctx)
	return g.state
}

// RequestAccess issues the one-time permission flow. Meaningful only
// from NotDetermined; when already Denied it is an idempotent no-op
// that returns Denied without consulting the provider; callers route
// denied users to the provider's settings surface instead. A provider
// failure during the request leaves the state where the provider
// reports it and records a message through the error sink.
func (g *Gate) RequestAccess(ctx context.Context) core.AuthStatus {
	if g.state == core.AuthDenied {
		return g.state
	}

	state, err := g.provider.RequestFullAccess(ctx)
	g.state = state
	if err != nil && g.errSink != nil {
		g.errSink(core.NewProviderError(core.OpRequestAccess, err).Error())
	}
	return g.state
}

// Mode maps the current state to the surface that should be shown.
func (g *Gate) Mode() Mode {
	switch g.state {
	case core.AuthGranted:
		return ModeEvents
	case core.AuthDenied:
		return ModeSettingsPrompt
	default:
		return ModeRequestPrompt
	}
}
