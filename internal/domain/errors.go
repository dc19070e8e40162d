package domain

import "errors"

var (
	ErrRegistryFull    = errors.New("connection registry is full")
	ErrRegistryStopped = errors.New("connection registry is stopped")
	ErrIncidentActive  = errors.New("incident is already being processed")
	ErrMissingCallback = errors.New("missing callback for required phase")
	ErrPhaseTimeout    = errors.New("phase callback timed out")
)
