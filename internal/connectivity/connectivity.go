// Package connectivity reports whether the device can reach the network.
package connectivity

import (
	"github.com/eshaffer321/docvault-go/internal/observable"
)

// Observer exposes the current reachability and its changes
type Observer interface {
	Online() bool

	// Subscribe yields the current state immediately and then every change.
	// The returned func stops the subscription.
	Subscribe() (<-chan bool, func())
}

// Manual is an Observer whose state is set by the caller
type Manual struct {
	online *observable.Value[bool]
}

var _ Observer = (*Manual)(nil)

// NewManual creates a Manual observer in the given state
func NewManual(online bool) *Manual {
	return &Manual{online: observable.New(online)}
}

func (m *Manual) Online() bool {
	return m.online.Get()
}

func (m *Manual) Subscribe() (<-chan bool, func()) {
	return m.online.Watch()
}

// Set changes the reported state
func (m *Manual) Set(online bool) {
	m.online.Set(online)
}
