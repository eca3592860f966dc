// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credgate Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/credgate/credgate/pkg/errutil"
)

// resetPurger clears expired reset tokens.
type resetPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeRecorder counts purged tokens.
type purgeRecorder interface {
	RecordResetTokensPurged(n int64)
}

// purgeJanitor periodically clears expired reset tokens.
type purgeJanitor struct {
	resets   resetPurger
	interval time.Duration
	recorder purgeRecorder
	logger   *slog.Logger
}

// Run purges every interval until ctx is done.
func (j *purgeJanitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.logger.Info("reset token janitor started", "interval", j.interval.String())
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("reset token janitor stopped")
			return
		case <-ticker.C:
			j.purgeOnce(ctx)
		}
	}
}

func (j *purgeJanitor) purgeOnce(ctx context.Context) {
	n, err := j.resets.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogErrorContext(ctx, j.logger, "reset token purge failed", err)
		}
		return
	}
	j.recorder.RecordResetTokensPurged(n)
	if n > 0 {
		j.logger.Info("purged expired reset tokens", "count", n)
	}
}
