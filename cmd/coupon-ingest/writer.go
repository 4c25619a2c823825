package main

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/xenking/checkout-pricing/internal/domain/coupon"
	"github.com/xenking/checkout-pricing/internal/domain/discount"
)

// couponNamespace derives stable coupon ids so re-running an import updates
// rows instead of duplicating them.
var couponNamespace = uuid.MustParse("6f1c3e52-0c4b-4f5e-9a7e-2f1d8a4b9c10")

// couponStore persists coupon batches.
type couponStore interface {
	UpsertCoupons(ctx context.Context, coupons []*coupon.Coupon) error
}

type couponWriter struct {
	seeder    couponStore
	storeID   string
	maxUses   int
	batchSize int
}

// couponID returns the deterministic id for a store's code.
func couponID(storeID, code string) string {
	return uuid.NewSHA1(couponNamespace, []byte(storeID+"/"+code)).String()
}

// write upserts the batch's codes except conflicts and duplicates within the
// batch. It returns the number of coupons written.
func (w *couponWriter) write(ctx context.Context, b batch, conflicts map[string]struct{}) (int, error) {
	program := discount.Program{ID: b.programID}
	size := max(w.batchSize, 1)
	seen := make(map[string]struct{})
	pending := make([]*coupon.Coupon, 0, size)
	written := 0

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := w.seeder.UpsertCoupons(ctx, pending); err != nil {
			return err
		}
		written += len(pending)
		pending = make([]*coupon.Coupon, 0, size)
		return nil
	}

	var flushErr error
	err := streamCodes(ctx, b.path, func(code string) {
		if flushErr != nil {
			return
		}
		if _, ok := conflicts[code]; ok {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		pending = append(pending, &coupon.Coupon{
			ID:                couponID(w.storeID, code),
			StoreID:           w.storeID,
			Code:              code,
			Program:           program,
			Active:            true,
			MaxUsesPerProfile: w.maxUses,
		})
		if len(pending) == size {
			flushErr = flush()
		}
	})
	if err != nil {
		return written, err
	}
	if flushErr != nil {
		return written, flushErr
	}
	if err := flush(); err != nil {
		return written, err
	}
	slog.Debug("batch flushed", slog.String("program", b.programID), slog.Int("written", written))
	return written, nil
}
