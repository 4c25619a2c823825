package main

import (
	"bufio"
	"context"
	"log/slog"
	"math/bits"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"
)

const (
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	maxCodeLen    = 64
	// maxBatches is bounded by the width of the per-code batch bitmask.
	maxBatches = bits.UintSize
)

// normalizeCode trims a line and reports whether it is a usable code.
func normalizeCode(line string) (string, bool) {
	code := strings.TrimSpace(line)
	return code, code != "" && len(code) <= maxCodeLen
}

// findConflicts returns the codes listed in more than one batch. Coupon codes
// are unique per store, so such codes cannot be attributed to a program.
//
// The first pass builds one bloom filter per batch. The second pass collects
// codes that hit another batch's filter, tagged with their own batch bit. A
// code is a conflict only when at least two batches tagged it, so filter
// false positives never reject a code.
func findConflicts(ctx context.Context, batches []batch) (map[string]struct{}, error) {
	if len(batches) > maxBatches {
		return nil, errors.Errorf("too many batches: %d > %d", len(batches), maxBatches)
	}
	if len(batches) < 2 {
		return map[string]struct{}{}, nil
	}

	filters, err := buildFilters(ctx, batches)
	if err != nil {
		return nil, errors.Wrap(err, "build bloom filters")
	}

	candidates := make([]map[string]uint, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range batches {
		g.Go(func() error {
			found := make(map[string]uint)
			bit := uint(1) << uint(i)
			err := streamCodes(gctx, b.path, func(code string) {
				for j, f := range filters {
					if j != i && f.TestString(code) {
						found[code] |= bit
						return
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan batch %s", b.programID)
			}
			candidates[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, found := range candidates {
		for code, mask := range found {
			merged[code] |= mask
		}
	}
	conflicts := make(map[string]struct{})
	for code, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			conflicts[code] = struct{}{}
		}
	}
	return conflicts, nil
}

func buildFilters(ctx context.Context, batches []batch) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	for i, b := range batches {
		g.Go(func() error {
			n, err := countCodes(ctx, b.path)
			if err != nil {
				return err
			}
			filter := bloom.NewWithEstimates(uint(max(n, 1)), bloomFPR)
			if err := streamCodes(ctx, b.path, func(code string) { filter.AddString(code) }); err != nil {
				return errors.Wrapf(err, "build filter for %s", b.programID)
			}
			slog.Info("bloom filter built",
				slog.String("program", b.programID),
				slog.Int("codes", n),
			)
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

func countCodes(ctx context.Context, path string) (int, error) {
	var n int
	err := streamCodes(ctx, path, func(string) { n++ })
	return n, err
}

// streamCodes calls fn for every usable code in a gzip file.
func streamCodes(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var lines uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lines++
		if lines%progressEvery == 0 {
			slog.Debug("scan progress", slog.String("path", path), slog.Uint64("lines", lines))
		}
		if code, ok := normalizeCode(scanner.Text()); ok {
			fn(code)
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
