package orders

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	pkgerrors "github.com/veloxrx/veloxrx-backend/pkg/errors"
)

// FormatOrderNumber renders prefix + YYMMDD + zero-padded daily sequence,
// e.g. VRX2606140042.
func FormatOrderNumber(prefix string, t time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", prefix, t.UTC().Format("060102"), seq)
}

func sequenceDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// nextOrderNumber assigns the next number for the day via the atomic
// order_sequences increment, retrying a bounded number of times before
// surfacing a conflict.
func (s *service) nextOrderNumber(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	repo := s.repo.WithTx(tx)
	attempts := s.cfg.SequenceMaxRetries
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			s.metrics.IncSequenceRetry()
		}
		seq, err := repo.NextSequence(ctx, sequenceDate(now))
		if err == nil {
			return FormatOrderNumber(s.cfg.NumberPrefix, now, seq), nil
		}
		lastErr = err
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeSequenceConflict, lastErr, "failed to assign order number")
}
