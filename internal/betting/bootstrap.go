package betting

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/baseline-edge/internal/scoring"
)

// BootstrapConfig configures percentile bootstrap resampling
type BootstrapConfig struct {
	Resamples int
	Level     float64
	Seed      int64
	ChunkSize int
	Workers   int
}

// DefaultBootstrapConfig returns 1000 resamples at the 95% level
func DefaultBootstrapConfig() BootstrapConfig {
	return BootstrapConfig{Resamples: 1000, Level: 0.95, ChunkSize: 100}
}

// BootstrapROI resamples (profit, stake) pairs with replacement and returns the percentile
// interval of total profit over total stake. Resamples are split into fixed chunks with
// derived seeds, so the interval does not depend on the worker count.
func BootstrapROI(ctx context.Context, profits, stakes []float64, cfg BootstrapConfig) (scoring.Interval, error) {
	if len(profits) != len(stakes) {
		return scoring.Interval{}, fmt.Errorf("bootstrap: %d profits but %d stakes", len(profits), len(stakes))
	}
	if cfg.Resamples < 1 {
		return scoring.Interval{}, fmt.Errorf("bootstrap: resamples must be positive, got %d", cfg.Resamples)
	}
	if cfg.Level <= 0 || cfg.Level >= 1 {
		return scoring.Interval{}, fmt.Errorf("bootstrap: confidence level must be in (0,1), got %v", cfg.Level)
	}
	n := len(profits)
	if n == 0 {
		return scoring.Interval{}, nil
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultBootstrapConfig().ChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	estimate := roi(profits, stakes)
	samples := make([]float64, cfg.Resamples)
	chunks := (cfg.Resamples + cfg.ChunkSize - 1) / cfg.ChunkSize

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for c := 0; c < chunks; c++ {
		c := c
		lo := c * cfg.ChunkSize
		hi := min(lo+cfg.ChunkSize, cfg.Resamples)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(scoring.DeriveSeed(cfg.Seed, uint64(c))))
			for r := lo; r < hi; r++ {
				var profit, stake float64
				for i := 0; i < n; i++ {
					j := rng.Intn(n)
					profit += profits[j]
					stake += stakes[j]
				}
				if stake == 0 {
					samples[r] = 0
					continue
				}
				samples[r] = profit / stake
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return scoring.Interval{}, err
	}

	sort.Float64s(samples)
	tail := (1 - cfg.Level) / 2
	return scoring.Interval{
		Estimate: estimate,
		Lower:    percentile(samples, tail),
		Upper:    percentile(samples, 1-tail),
	}, nil
}

func roi(profits, stakes []float64) float64 {
	var profit, stake float64
	for i := range profits {
		profit += profits[i]
		stake += stakes[i]
	}
	if stake == 0 {
		return 0
	}
	return profit / stake
}

// percentile reads a quantile from sorted values
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
