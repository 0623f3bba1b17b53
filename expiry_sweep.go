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
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/model"
)

// ExpirySweeper expires PENDING transactions whose deadline passed while no timer was
// armed for them, e.g. across a restart. It runs once on Start and then on every tick.
type ExpirySweeper struct {
	payrelay     *Payrelay
	batchSize    int
	maxWorkers   int
	pollInterval time.Duration
	stopCh       chan struct{}
	wg           sync.WaitGroup
	running      bool
	mu           sync.Mutex
}

func NewExpirySweeper(p *Payrelay) *ExpirySweeper {
	cfg := p.config.Transaction
	maxWorkers := 10
	if cfg.MaxWorkers > 0 {
		maxWorkers = cfg.MaxWorkers
	}
	batchSize := maxWorkers * 50
	if cfg.SweepBatchSize > 0 {
		batchSize = cfg.SweepBatchSize
	}
	pollInterval := time.Minute
	if cfg.SweepIntervalSeconds > 0 {
		pollInterval = cfg.SweepInterval()
	}

	return &ExpirySweeper{
		payrelay:     p,
		batchSize:    batchSize,
		maxWorkers:   maxWorkers,
		pollInterval: pollInterval,
		stopCh:       make(chan struct{}),
	}
}

func (s *ExpirySweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sweep(ctx)
		s.run(ctx)
	}()

	logrus.Info("Expiry sweeper started")
}

func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logrus.Info("Expiry sweeper stopped")
}

func (s *ExpirySweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ExpirySweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep expires one batch of overdue PENDING transactions through the normal conditional
// path and returns how many were examined.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	overdue, err := s.payrelay.datasource.GetExpiredPendingTransactions(ctx, time.Now().UTC(), s.batchSize)
	if err != nil {
		logrus.Errorf("failed to get overdue pending transactions: %v", err)
		return 0
	}
	if len(overdue) == 0 {
		return 0
	}

	logrus.Infof("Expiring %d overdue pending transactions with %d workers", len(overdue), s.maxWorkers)

	sem := make(chan struct{}, s.maxWorkers)
	var batchWg sync.WaitGroup
	for _, txn := range overdue {
		sem <- struct{}{}
		batchWg.Add(1)
		go func(t *model.Transaction) {
			defer batchWg.Done()
			defer func() { <-sem }()
			if err := s.payrelay.ExpireTransaction(ctx, t.TransactionID); err != nil {
				logExpiryError(t.TransactionID, err)
			}
		}(txn)
	}
	batchWg.Wait()
	return len(overdue)
}
