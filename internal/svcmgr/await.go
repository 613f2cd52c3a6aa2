package svcmgr

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

type queryFunc func(ctx context.Context, name string) (Status, error)

// awaitStatus polls query every interval until target is observed, timeout
// elapses or ctx is done. Every query runs under the same deadline, so a hung
// query cannot outlive timeout. Query errors count as StatusOther, except one
// cut short by the deadline, which keeps the previous observation.
func awaitStatus(ctx context.Context, clk clock.Clock, interval time.Duration,
	query queryFunc, name string, target Status, timeout time.Duration) Status {

	qctx, cancel := clk.WithTimeout(ctx, timeout)
	defer cancel()

	last := StatusOther
	observe := func() bool {
		st, err := query(qctx, name)
		switch {
		case err == nil:
			last = st
		case qctx.Err() == nil:
			last = StatusOther
		}
		return last == target
	}

	if observe() {
		return last
	}

	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-qctx.Done():
			return last
		case <-ticker.C:
			if qctx.Err() != nil {
				return last
			}
			if observe() {
				return last
			}
		}
	}
}
