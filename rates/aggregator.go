/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package rates computes a consensus exchange rate from several independent price
// sources and serves it from a short-lived cache backed by the store.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/internal/cache"
	redlock "github.com/jerry-enebeli/payrelay/internal/lock"
	"github.com/jerry-enebeli/payrelay/internal/notification"
	"github.com/jerry-enebeli/payrelay/model"
)

var tracer = otel.Tracer("payrelay.rates")

// ErrNoSamples is returned for a pair when every source failed in a cycle. The previous
// consensus stays in place.
var ErrNoSamples = errors.New("no rate source returned a usable price")

const lockKey = "payrelay:rates:cycle"

// Store is the persistence the aggregator needs.
type Store interface {
	UpsertConsensusRate(ctx context.Context, rate *model.ConsensusRate) error
	GetLatestRate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error)
}

// Aggregator polls the sources on a fixed interval and writes the median per pair.
type Aggregator struct {
	store         Store
	sources       []Source
	pairs         []model.Pair
	cache         cache.Cache
	redis         redis.UniversalClient
	interval      time.Duration
	cacheTTL      time.Duration
	sourceTimeout time.Duration
	nodeID        string

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewAggregator validates the configured pairs. redisClient may be nil, in which case
// every instance runs every cycle.
func NewAggregator(cfg config.RatesConfig, store Store, rateCache cache.Cache, redisClient redis.UniversalClient, sources []Source) (*Aggregator, error) {
	pairs := make([]model.Pair, 0, len(cfg.Pairs))
	for _, raw := range cfg.Pairs {
		pair, err := model.ParsePair(raw)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	if rateCache == nil {
		rateCache = cache.NewLocalCache(len(pairs)*4+16, cfg.CacheTTL())
	}

	return &Aggregator{
		store:         store,
		sources:       sources,
		pairs:         pairs,
		cache:         rateCache,
		redis:         redisClient,
		interval:      cfg.Interval(),
		cacheTTL:      cfg.CacheTTL(),
		sourceTimeout: cfg.SourceTimeout(),
		nodeID:        uuid.NewString(),
		stopCh:        make(chan struct{}),
	}, nil
}

// Start runs a cycle immediately and then on every tick until Stop or ctx is done.
func (a *Aggregator) Start(ctx context.Context) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.stopCh = make(chan struct{})
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()

		a.tick(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-a.stopCh:
				return
			case <-ticker.C:
				a.tick(ctx)
			}
		}
	}()
	logrus.Infof("Rate aggregator started with interval: %v", a.interval)
}

func (a *Aggregator) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.stopCh)
	a.mu.Unlock()

	a.wg.Wait()
	logrus.Info("Rate aggregator stopped")
}

func (a *Aggregator) tick(ctx context.Context) {
	if err := a.RunCycle(ctx); err != nil {
		notification.NotifyError(err)
	}
}

// RunCycle aggregates every configured pair once. Pairs that got no samples are reported
// in the returned error; the others are still written.
func (a *Aggregator) RunCycle(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Rate aggregation cycle")
	defer span.End()

	if a.redis != nil {
		locker := redlock.NewLocker(a.redis, lockKey, a.nodeID)
		if err := locker.Lock(ctx, a.interval/2+time.Second); err != nil {
			if errors.Is(err, redlock.ErrLockHeld) {
				logrus.Debug("rate cycle is running on another instance")
				return nil
			}
			return err
		}
		defer func() {
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.Debug(err)
			}
		}()
	}

	var errs []error
	for _, pair := range a.pairs {
		if _, err := a.aggregate(ctx, pair); err != nil {
			span.RecordError(err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Aggregator) aggregate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error) {
	samples := a.collect(ctx, pair)
	if len(samples) == 0 {
		logrus.WithField("pair", pair.String()).Error("rate aggregation failed, keeping previous consensus")
		return nil, fmt.Errorf("%s: %w", pair, ErrNoSamples)
	}

	prices := make([]decimal.Decimal, len(samples))
	for i, s := range samples {
		prices[i] = s.Price
	}
	consensus := &model.ConsensusRate{
		FromCurrency: pair.From,
		ToCurrency:   pair.To,
		Source:       model.CombinedSource,
		Rate:         Median(prices),
		SampleCount:  len(samples),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := a.store.UpsertConsensusRate(ctx, consensus); err != nil {
		return nil, err
	}
	a.mirror(ctx, consensus)

	logrus.WithFields(logrus.Fields{
		"pair":    pair.String(),
		"rate":    consensus.Rate.String(),
		"samples": consensus.SampleCount,
	}).Info("consensus rate updated")
	return consensus, nil
}

// collect queries every source concurrently, each under its own timeout. Failed sources
// and non-positive prices are left out.
func (a *Aggregator) collect(ctx context.Context, pair model.Pair) []model.RateSample {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		samples []model.RateSample
	)

	for _, src := range a.sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			_, span := tracer.Start(ctx, "Fetching price")
			span.SetAttributes(attribute.String("source", src.Name()), attribute.String("pair", pair.String()))
			defer span.End()

			fetchCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
			defer cancel()
			price, err := src.FetchPrice(fetchCtx, pair)
			if err != nil {
				logrus.WithFields(logrus.Fields{"source": src.Name(), "pair": pair.String(), "error": err}).Warn("rate source unavailable")
				return
			}
			if !price.IsPositive() {
				logrus.WithFields(logrus.Fields{"source": src.Name(), "pair": pair.String(), "price": price.String()}).Warn("rate source returned a non-positive price")
				return
			}

			mu.Lock()
			samples = append(samples, model.RateSample{Source: src.Name(), Price: price, FetchedAt: time.Now().UTC()})
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return samples
}

// Median of prices; the mean of the two middle values for an even count.
func Median(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	sorted := append([]decimal.Decimal(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

func cacheKey(pair model.Pair) string {
	return "rates:" + pair.String()
}

func (a *Aggregator) mirror(ctx context.Context, rate *model.ConsensusRate) {
	data, err := json.Marshal(rate)
	if err != nil {
		return
	}
	pair := model.Pair{From: rate.FromCurrency, To: rate.ToCurrency}
	if err := a.cache.Set(ctx, cacheKey(pair), data, a.cacheTTL); err != nil {
		logrus.WithField("pair", pair.String()).Warn(err)
	}
}

// GetRate serves the cached consensus, falling back to the latest persisted one. It never
// calls a source.
func (a *Aggregator) GetRate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error) {
	var data []byte
	if err := a.cache.Get(ctx, cacheKey(pair), &data); err == nil {
		var rate model.ConsensusRate
		if err := json.Unmarshal(data, &rate); err == nil {
			return &rate, nil
		}
	}

	rate, err := a.store.GetLatestRate(ctx, pair)
	if err != nil {
		return nil, err
	}
	a.mirror(ctx, rate)
	return rate, nil
}

// Pairs returns the configured currency pairs.
func (a *Aggregator) Pairs() []model.Pair {
	return append([]model.Pair(nil), a.pairs...)
}
