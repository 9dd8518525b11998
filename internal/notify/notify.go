// Package notify delivers discrepancy reports.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/wonny/marginrecon/internal/contracts"
)

// Sink receives one discrepancy report per unmatched pair
type Sink interface {
	Report(ctx context.Context, d *contracts.Discrepancy) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, d *contracts.Discrepancy) error

// Report calls f
func (f SinkFunc) Report(ctx context.Context, d *contracts.Discrepancy) error {
	return f(ctx, d)
}

// Multi fans a report out to every sink. All sinks are tried; their
// failures are joined.
type Multi []Sink

// Report delivers d to every sink
func (m Multi) Report(ctx context.Context, d *contracts.Discrepancy) error {
	var errs []error
	for _, s := range m {
		if err := s.Report(ctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
