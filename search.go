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
	"github.com/typesense/typesense-go/typesense/api"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/internal/search"
	"github.com/jerry-enebeli/payrelay/internal/tokenization"
	"github.com/jerry-enebeli/payrelay/model"
)

// Search runs a Typesense query against one of the indexed collections.
func (p *Payrelay) Search(ctx context.Context, collection string, query *api.SearchCollectionParams) (interface{}, error) {
	if p.search == nil {
		return nil, apierror.NewAPIError(apierror.ErrBadRequest, "search is not configured", nil)
	}
	if !search.IsCollection(collection) {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "unknown collection "+collection, nil)
	}
	return p.search.Search(ctx, collection, query)
}

func transactionDocument(txn *model.Transaction) (map[string]interface{}, error) {
	doc, err := search.ToDocument(txn)
	if err != nil {
		return nil, err
	}
	// clear destinations and callback addresses stay out of the index
	delete(doc, "destination")
	delete(doc, "callback_url")
	delete(doc, "available_from")
	doc["destination_hint"] = tokenization.MaskedHint(txn.Destination)
	return doc, nil
}

func (p *Payrelay) indexTransaction(txn *model.Transaction) {
	doc, err := transactionDocument(txn)
	if err != nil {
		logrus.WithField("transaction_id", txn.TransactionID).Warn(err)
		return
	}
	p.index(search.CollectionTransactions, doc)
}

func (p *Payrelay) indexOperator(op *model.Operator) {
	doc, err := search.ToDocument(op)
	if err != nil {
		logrus.WithField("operator_id", op.OperatorID).Warn(err)
		return
	}
	delete(doc, "chat_id")
	p.index(search.CollectionOperators, doc)
}

// index is best effort: through the index queue when available, directly otherwise.
func (p *Payrelay) index(collection string, doc map[string]interface{}) {
	if p.search == nil {
		return
	}
	if p.queue != nil {
		if err := p.queue.enqueueIndex(context.Background(), collection, doc); err == nil {
			return
		}
	}
	p.goAsync(func() {
		if err := p.search.IndexDocument(context.Background(), collection, doc); err != nil {
			logrus.WithFields(logrus.Fields{"collection": collection, "error": err}).Warn("failed to index document")
		}
	})
}
