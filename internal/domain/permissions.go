package domain

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	dperrors "github.com/mrz1836/deskpilot/internal/errors"
)

// Capability is a named permission category gating one class of side-effecting actions.
type Capability string

// Known capabilities.
const (
	CapabilityMouse    Capability = "mouse"
	CapabilityKeyboard Capability = "keyboard"
	CapabilityFile     Capability = "file"
	CapabilityProcess  Capability = "process"
)

// AllCapabilities returns every known capability in display order.
func AllCapabilities() []Capability {
	return []Capability{CapabilityMouse, CapabilityKeyboard, CapabilityFile, CapabilityProcess}
}

// ParseCapability converts a user supplied name into a Capability.
func ParseCapability(name string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllCapabilities() {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", dperrors.ErrInvalidPermission, name)
}

// Permissions maps capabilities to their granted state.
// Anything not explicitly granted is denied. The zero value denies everything.
type Permissions struct {
	mu      sync.RWMutex
	granted map[Capability]bool
}

// NewPermissions creates a permission set with the given capabilities granted.
func NewPermissions(granted ...Capability) *Permissions {
	p := &Permissions{granted: make(map[Capability]bool, len(granted))}
	for _, c := range granted {
		p.granted[c] = true
	}
	return p
}

// Allowed reports whether the capability is granted.
func (p *Permissions) Allowed(c Capability) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.granted[c]
}

// Set grants or revokes a capability.
func (p *Permissions) Set(c Capability, granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted == nil {
		p.granted = make(map[Capability]bool)
	}
	p.granted[c] = granted
}

// Grant grants a capability.
func (p *Permissions) Grant(c Capability) { p.Set(c, true) }

// Revoke revokes a capability.
func (p *Permissions) Revoke(c Capability) { p.Set(c, false) }

// Snapshot returns a copy of the full capability map, including denied entries.
func (p *Permissions) Snapshot() map[Capability]bool {
	out := make(map[Capability]bool, len(AllCapabilities()))
	for _, c := range AllCapabilities() {
		out[c] = p.Allowed(c)
	}
	return out
}

// Granted returns the granted capabilities sorted by name.
func (p *Permissions) Granted() []Capability {
	var out []Capability
	for c, ok := range p.Snapshot() {
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
