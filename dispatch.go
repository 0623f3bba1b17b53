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
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/internal/channel"
	"github.com/jerry-enebeli/payrelay/internal/tokenization"
	"github.com/jerry-enebeli/payrelay/model"
)

const (
	acceptActionPrefix = "accept:"
	notifyTimeout      = 15 * time.Second
)

// AcceptActionData builds the button payload that routes an accept back to the engine.
func AcceptActionData(short string) string {
	return acceptActionPrefix + short
}

// ParseAcceptActionData extracts the short id from an accept button payload.
func ParseAcceptActionData(data string) (string, bool) {
	if !strings.HasPrefix(data, acceptActionPrefix) {
		return "", false
	}
	short := strings.TrimPrefix(data, acceptActionPrefix)
	return short, short != ""
}

func offerMessage(txn *model.Transaction, short string) channel.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "New payout %s\n", short)
	fmt.Fprintf(&b, "Amount: %s %s\n", txn.Amount.StringFixed(2), txn.Currency)
	fmt.Fprintf(&b, "Method: %s", txn.PaymentMethod)
	if sub, ok := txn.MetaData["sub_method"].(string); ok && sub != "" {
		fmt.Fprintf(&b, " (%s)", sub)
	}
	fmt.Fprintf(&b, "\nDestination: %s\n", tokenization.MaskedHint(txn.Destination))
	fmt.Fprintf(&b, "Expires: %s", txn.ExpiresAt.UTC().Format(time.RFC3339))

	return channel.Message{
		Text:    b.String(),
		Actions: []channel.Action{{Label: "Accept", Data: AcceptActionData(short)}},
	}
}

// dispatch registers the short id and notifies every eligible operator. Each send runs in
// its own goroutine with its own timeout, so one unreachable operator cannot delay the
// others or the caller.
func (p *Payrelay) dispatch(ctx context.Context, txn *model.Transaction, operators []*model.Operator) {
	short, err := p.shortIDs.Register(ctx, txn.TransactionID)
	if err != nil {
		logrus.WithFields(logrus.Fields{"transaction_id": txn.TransactionID, "error": err}).Error("failed to register short id")
		return
	}
	msg := offerMessage(txn, short)

	for _, op := range operators {
		op := op
		p.goAsync(func() {
			notifyCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if err := p.notifier.Notify(notifyCtx, op.ChatID, msg); err != nil {
				logrus.WithFields(logrus.Fields{
					"transaction_id": txn.TransactionID,
					"operator_id":    op.OperatorID,
					"error":          err,
				}).Warn("operator notification failed")
			}
		})
	}
}
