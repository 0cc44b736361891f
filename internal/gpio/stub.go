//go:build !linux

package gpio

import (
	"errors"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
)

// RealSource is not available on non-Linux platforms.
type RealSource struct{}

// NewRealSource returns an error on non-Linux platforms.
func NewRealSource(chipName string, bank *Bank) (*RealSource, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Levels is not implemented on non-Linux platforms.
func (r *RealSource) Levels() ([button.Count]bool, error) {
	return [button.Count]bool{}, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealSource) Close() error {
	return nil
}

// Uptime returns time since process start.
func Uptime() time.Duration {
	return time.Since(processStart)
}
