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

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/internal/request"
	"github.com/jerry-enebeli/payrelay/model"
)

// CallbackPayload is POSTed to the caller's callback URL when a transaction reaches a
// terminal state.
type CallbackPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type callbackTask struct {
	URL     string          `json:"url"`
	Payload CallbackPayload `json:"payload"`
}

// fireCallback schedules exactly one best-effort callback for a terminal transition.
// It never blocks or fails the transition that triggered it.
func (p *Payrelay) fireCallback(txn *model.Transaction, status model.Status, reason string) {
	if txn == nil || txn.CallbackURL == "" {
		return
	}
	task := callbackTask{
		URL:     txn.CallbackURL,
		Payload: CallbackPayload{ID: txn.TransactionID, Status: string(status), Reason: reason},
	}

	if p.queue != nil {
		if err := p.queue.enqueueCallback(context.Background(), task); err == nil {
			return
		}
	}
	p.goAsync(func() {
		p.deliverCallback(context.Background(), task)
	})
}

// deliverCallback makes a single POST bounded by the callback timeout.
func (p *Payrelay) deliverCallback(ctx context.Context, task callbackTask) {
	timeout := p.config.Transaction.CallbackTimeout()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	_, err := request.PostJSON(ctx, p.httpClient, task.URL, task.Payload, nil, nil)
	fields := logrus.Fields{"transaction_id": task.Payload.ID, "status": task.Payload.Status, "url": task.URL}
	if err != nil {
		fields["error"] = err
		logrus.WithFields(fields).Warn("callback delivery failed")
		return
	}
	logrus.WithFields(fields).Info("callback delivered")
}
