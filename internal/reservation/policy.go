package reservation

import "time"

const (
	DefaultLeaseDuration        = 15 * time.Minute
	DefaultExtensionDuration    = 5 * time.Minute
	DefaultWarningThreshold     = 5 * time.Minute
	DefaultMaxExtensions        = 1
	DefaultMaxEstimatedDuration = 180 // minutes
)

// Policy holds the lease rules applied by the engine.
type Policy struct {
	LeaseDuration        time.Duration
	ExtensionDuration    time.Duration
	WarningThreshold     time.Duration
	MaxEstimatedDuration int // minutes
}

// DefaultPolicy returns the standard 15 minute lease with a single 5 minute extension.
func DefaultPolicy() Policy {
	return Policy{
		LeaseDuration:        DefaultLeaseDuration,
		ExtensionDuration:    DefaultExtensionDuration,
		WarningThreshold:     DefaultWarningThreshold,
		MaxEstimatedDuration: DefaultMaxEstimatedDuration,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.LeaseDuration <= 0 {
		p.LeaseDuration = d.LeaseDuration
	}
	if p.ExtensionDuration <= 0 {
		p.ExtensionDuration = d.ExtensionDuration
	}
	if p.WarningThreshold <= 0 {
		p.WarningThreshold = d.WarningThreshold
	}
	if p.MaxEstimatedDuration <= 0 {
		p.MaxEstimatedDuration = d.MaxEstimatedDuration
	}
	return p
}
