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
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Scheduler arms one deadline per transaction. A fire after the transaction left
// PENDING is harmless because expiry is a conditional update, so Cancel only frees resources.
type Scheduler interface {
	Schedule(ctx context.Context, transactionID string, at time.Time) error
	Cancel(transactionID string)
}

func logExpiryError(transactionID string, err error) {
	logrus.WithFields(logrus.Fields{"transaction_id": transactionID, "error": err}).Error("failed to expire transaction")
}

// TimerScheduler keeps one in-process timer per transaction. Timers do not survive a
// restart; ExpirySweeper covers that gap.
type TimerScheduler struct {
	fire   func(transactionID string)
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTimerScheduler(fire func(transactionID string)) *TimerScheduler {
	return &TimerScheduler{fire: fire, timers: make(map[string]*time.Timer)}
}

func (s *TimerScheduler) Schedule(_ context.Context, transactionID string, at time.Time) error {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.timers[transactionID]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if s.timers[transactionID] == timer {
			delete(s.timers, transactionID)
		}
		s.mu.Unlock()
		s.fire(transactionID)
	})
	s.timers[transactionID] = timer
	return nil
}

func (s *TimerScheduler) Cancel(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if timer, ok := s.timers[transactionID]; ok {
		timer.Stop()
		delete(s.timers, transactionID)
	}
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every armed timer.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// QueueScheduler stores deadlines as delayed asynq tasks keyed by transaction id so they
// survive restarts. The workers command runs the handler.
type QueueScheduler struct {
	queue     *Queue
	queueName string
}

func NewQueueScheduler(queue *Queue, queueName string) *QueueScheduler {
	return &QueueScheduler{queue: queue, queueName: queueName}
}

func (s *QueueScheduler) Schedule(ctx context.Context, transactionID string, at time.Time) error {
	payload, err := json.Marshal(transactionID)
	if err != nil {
		return err
	}
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	task := asynq.NewTask(TaskExpireTransaction, payload,
		asynq.TaskID(transactionID),
		asynq.Queue(s.queueName),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(3),
	)
	_, err = s.queue.Client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func (s *QueueScheduler) Cancel(transactionID string) {
	err := s.queue.Inspector.DeleteTask(s.queueName, transactionID)
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		logrus.WithFields(logrus.Fields{"transaction_id": transactionID, "error": err}).Debug("could not delete scheduled expiry")
	}
}
