//go:build linux

package gpio

import (
	"fmt"
	"time"

	"github.com/sweeney/orbs-display/internal/button"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// RealSource reads button edges from actual hardware using the Linux GPIO
// character device.
type RealSource struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealSource requests the bank's pins as active-low inputs with pull-up
// and both-edge detection. Edges are stamped by the kernel with
// CLOCK_MONOTONIC, the same clock Uptime reads.
func NewRealSource(chipName string, bank *Bank) (*RealSource, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	handler := func(evt gpiocdev.LineEvent) {
		bank.Deliver(evt.Offset, evt.Type == gpiocdev.LineEventRisingEdge, evt.Timestamp)
	}

	lines, err := chip.RequestLines(bank.Pins(),
		gpiocdev.AsInput,
		gpiocdev.AsActiveLow,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler),
	)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pins %v: %w", bank.Pins(), err)
	}

	return &RealSource{chip: chip, lines: lines}, nil
}

// Levels returns the logical level of each button (true = pressed).
func (r *RealSource) Levels() ([button.Count]bool, error) {
	var out [button.Count]bool
	vals := make([]int, button.Count)
	if err := r.lines.Values(vals); err != nil {
		return out, fmt.Errorf("read button pins: %w", err)
	}
	for i, v := range vals {
		out[i] = v == 1
	}
	return out, nil
}

// Close releases the lines and the chip.
func (r *RealSource) Close() error {
	var errs []error
	if r.lines != nil {
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// Uptime returns CLOCK_MONOTONIC, the clock used for edge timestamps.
func Uptime() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Since(processStart)
	}
	return time.Duration(ts.Nano())
}
