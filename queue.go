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
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/config"
	redis_db "github.com/jerry-enebeli/payrelay/internal/redis-db"
	"github.com/jerry-enebeli/payrelay/internal/search"
)

// Task types handled by the workers command.
const (
	TaskExpireTransaction   = "transaction:expire"
	TaskTransactionCallback = "transaction:callback"
	TaskIndexDocument       = "search:index"
)

// Queue represents a queue for handling background tasks.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
	config    config.QueueConfig
}

// IndexPayload is the body of a search indexing task.
type IndexPayload struct {
	Collection string                 `json:"collection"`
	Payload    map[string]interface{} `json:"payload"`
}

// RedisClientOpt converts the configured Redis DNS into asynq connection options.
func RedisClientOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      redisOption.Addr,
		Username:  redisOption.Username,
		Password:  redisOption.Password,
		DB:        redisOption.DB,
		TLSConfig: redisOption.TLSConfig,
	}, nil
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := RedisClientOpt(conf)
	if err != nil {
		return nil, err
	}
	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
		config:    conf.Queue,
	}, nil
}

func (q *Queue) Close() error {
	err := q.Client.Close()
	if inspectErr := q.Inspector.Close(); err == nil {
		err = inspectErr
	}
	return err
}

// enqueueCallback hands a callback to the workers. Callbacks are fire-and-forget, so the
// task is never retried.
func (q *Queue) enqueueCallback(ctx context.Context, callback callbackTask) error {
	payload, err := json.Marshal(callback)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskTransactionCallback, payload,
		asynq.Queue(q.config.CallbackQueue),
		asynq.MaxRetry(0),
	)
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		logrus.Error(err, info)
		return err
	}
	logrus.Debugf(" [*] Successfully enqueued callback: %s", callback.Payload.ID)
	return nil
}

// enqueueIndex queues a document for the search index.
func (q *Queue) enqueueIndex(ctx context.Context, collection string, data map[string]interface{}) error {
	payload, err := json.Marshal(IndexPayload{Collection: collection, Payload: data})
	if err != nil {
		return err
	}
	task := asynq.NewTask(TaskIndexDocument, payload, asynq.Queue(q.config.IndexQueue), asynq.MaxRetry(5))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		logrus.Error(err, info)
		return err
	}
	return nil
}

// HandleExpiryTask expires the transaction named in the task payload.
func (p *Payrelay) HandleExpiryTask(ctx context.Context, task *asynq.Task) error {
	var transactionID string
	if err := json.Unmarshal(task.Payload(), &transactionID); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return p.ExpireTransaction(ctx, transactionID)
}

// HandleCallbackTask delivers one terminal-state callback. Delivery failures are logged
// and swallowed.
func (p *Payrelay) HandleCallbackTask(ctx context.Context, task *asynq.Task) error {
	var callback callbackTask
	if err := json.Unmarshal(task.Payload(), &callback); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	p.deliverCallback(ctx, callback)
	return nil
}

// HandleIndexTask upserts a document into the search index.
func (p *Payrelay) HandleIndexTask(ctx context.Context, task *asynq.Task) error {
	if p.search == nil {
		return nil
	}
	var payload IndexPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if !search.IsCollection(payload.Collection) {
		return fmt.Errorf("unknown collection %s: %w", payload.Collection, asynq.SkipRetry)
	}
	return p.search.IndexDocument(ctx, payload.Collection, payload.Payload)
}
