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

package payrelay

import (
	"context"
	"embed"
	"net/http"
	"sync"

	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/database"
	"github.com/jerry-enebeli/payrelay/internal/channel"
	"github.com/jerry-enebeli/payrelay/internal/search"
	"github.com/jerry-enebeli/payrelay/internal/storage"
	"github.com/jerry-enebeli/payrelay/internal/tokenization"
	"github.com/jerry-enebeli/payrelay/model"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("payrelay.engine")

//go:embed sql/*.sql
var SQLFiles embed.FS

// RateReader is the read side of the rate aggregator.
type RateReader interface {
	GetRate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error)
}

// Payrelay drives payout transactions through their lifecycle.
type Payrelay struct {
	config     *config.Configuration
	datasource database.IDataSource
	notifier   channel.Notifier
	store      storage.Store
	scheduler  Scheduler
	shortIDs   *ShortIDs
	inputModes *inputModes
	queue      *Queue
	search     *search.TypesenseClient
	tokenizer  *tokenization.TokenizationService
	rates      RateReader
	httpClient *http.Client

	// background side effects, waited on by Close
	wg sync.WaitGroup
}

// NewPayrelay wires the engine from the loaded configuration. The expiry scheduler is
// the durable queue scheduler when queue.durable_schedule is set and an in-process
// timer scheduler otherwise.
func NewPayrelay(db database.IDataSource, notifier channel.Notifier, store storage.Store) (*Payrelay, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	p := newPayrelay(cfg, db, notifier, store)

	queue, err := NewQueue(cfg)
	if err != nil {
		return nil, err
	}
	p.queue = queue
	if cfg.Queue.DurableSchedule {
		p.scheduler = NewQueueScheduler(queue, cfg.Queue.ExpiryQueue)
	}

	if cfg.TypeSense.Dns != "" {
		p.search = search.NewTypesenseClient(cfg.TypeSenseKey, []string{cfg.TypeSense.Dns})
	}
	return p, nil
}

func newPayrelay(cfg *config.Configuration, db database.IDataSource, notifier channel.Notifier, store storage.Store) *Payrelay {
	p := &Payrelay{
		config:     cfg,
		datasource: db,
		notifier:   notifier,
		store:      store,
		shortIDs:   NewShortIDs(cfg.Transaction.ShortIDLength, cfg.Transaction.ShortIDCacheSize, cfg.Transaction.ShortIDTTL()),
		inputModes: newInputModes(),
		httpClient: &http.Client{Timeout: cfg.Transaction.CallbackTimeout()},
	}
	if key := cfg.Transaction.DestinationEncryptionKey; key != "" {
		p.tokenizer = tokenization.NewTokenizationService([]byte(key))
	}
	p.scheduler = NewTimerScheduler(func(id string) {
		if err := p.ExpireTransaction(context.Background(), id); err != nil {
			logExpiryError(id, err)
		}
	})
	return p
}

// SetRateReader attaches the aggregator so new transactions record the reference rate.
func (p *Payrelay) SetRateReader(r RateReader) {
	p.rates = r
}

// Datasource exposes the store to the workers.
func (p *Payrelay) Datasource() database.IDataSource {
	return p.datasource
}

// SearchClient returns the Typesense client, nil when search is not configured.
func (p *Payrelay) SearchClient() *search.TypesenseClient {
	return p.search
}

// Close stops pending expiry timers and waits for in-flight side effects.
func (p *Payrelay) Close() {
	if s, ok := p.scheduler.(interface{ Stop() }); ok {
		s.Stop()
	}
	p.wg.Wait()
	if p.queue != nil {
		_ = p.queue.Close()
	}
}

// goAsync runs fn detached from the caller's lifecycle.
func (p *Payrelay) goAsync(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}
