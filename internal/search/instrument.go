package search

import (
	"context"
	"errors"
	"time"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/metrics"
)

type instrumented struct {
	next    Adapter
	timeout time.Duration
	log     *logger.Logger
}

// Instrument bounds each Fetch by timeout, records metrics and maps every
// failure to apperr.AdapterUnavailable.
func Instrument(a Adapter, timeout time.Duration, log *logger.Logger) Adapter {
	return &instrumented{next: a, timeout: timeout, log: logger.OrNop(log)}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Fetch(ctx context.Context, query, location string) ([]Signal, error) {
	name := i.next.Name()
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	metrics.AdapterRequestsTotal.WithLabelValues(name).Inc()
	signals, err := i.next.Fetch(ctx, query, location)
	metrics.AdapterDurationMs.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.AdapterFailTotal.WithLabelValues(name).Inc()
		LogError(i.log, name, "fetch", err)
		if errors.Is(err, apperr.ErrAdapterUnavailable) {
			return nil, err
		}
		return nil, apperr.AdapterUnavailable(name, err)
	}
	return signals, nil
}
