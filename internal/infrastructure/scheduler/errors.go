package scheduler

import "errors"

var (
	// ErrAlreadyRunning is returned when a job is triggered while its previous run is active
	ErrAlreadyRunning = errors.New("job already running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)
