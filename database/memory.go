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

package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
	"github.com/shopspring/decimal"
)

// MemoryDatasource is an in-process IDataSource. A single mutex makes every
// conditional transition atomic, matching the guarded UPDATE of the Postgres store.
type MemoryDatasource struct {
	mu           sync.Mutex
	transactions map[string]model.Transaction
	operators    map[string]model.Operator
	proofs       map[string]model.Proof
	rates        map[string]model.ConsensusRate
}

func NewMemoryDataSource() *MemoryDatasource {
	return &MemoryDatasource{
		transactions: make(map[string]model.Transaction),
		operators:    make(map[string]model.Operator),
		proofs:       make(map[string]model.Proof),
		rates:        make(map[string]model.ConsensusRate),
	}
}

func (m *MemoryDatasource) CreateTransaction(_ context.Context, txn *model.Transaction) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.transactions[txn.TransactionID]; ok {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Transaction '%s' already exists", txn.TransactionID), nil)
	}
	m.transactions[txn.TransactionID] = *txn
	return txn, nil
}

func (m *MemoryDatasource) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}
	return &txn, nil
}

func (m *MemoryDatasource) ConditionalTransition(_ context.Context, id string, expected []model.Status, next model.Status, patch model.TransitionPatch) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[id]
	if !ok {
		return false, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}
	matched := false
	for _, s := range expected {
		if txn.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	now := time.Now().UTC()
	txn.Status = next
	if patch.OperatorID != "" {
		txn.OperatorID = patch.OperatorID
	}
	if patch.Destination != "" {
		txn.Destination = patch.Destination
	}
	if patch.Reason != "" {
		txn.Reason = patch.Reason
	}
	if next == model.StatusAccepted {
		txn.AcceptedAt = &now
	}
	txn.UpdatedAt = now
	m.transactions[id] = txn
	return true, nil
}

func (m *MemoryDatasource) GetExpiredPendingTransactions(_ context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, txn := range m.transactions {
		if txn.Status == model.StatusPending && !txn.ExpiresAt.After(now) {
			t := txn
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryDatasource) CreateOperator(_ context.Context, op *model.Operator) (*model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.operators[op.OperatorID]; ok {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Operator '%s' already exists", op.OperatorID), nil)
	}
	m.operators[op.OperatorID] = *op
	return op, nil
}

func (m *MemoryDatasource) GetOperator(_ context.Context, id string) (*model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operator with ID '%s' not found", id), nil)
	}
	return &op, nil
}

func (m *MemoryDatasource) ListEligibleOperators(_ context.Context, minBalance decimal.Decimal) ([]*model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Operator
	for _, op := range m.operators {
		if op.CanFulfil(minBalance) {
			o := op
			out = append(out, &o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryDatasource) UpdateOperatorBalance(_ context.Context, id string, balance decimal.Decimal) (*model.Operator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.operators[id]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operator with ID '%s' not found", id), nil)
	}
	op.ApplyBalance(balance)
	m.operators[id] = op
	return &op, nil
}

func (m *MemoryDatasource) CreateProof(_ context.Context, p *model.Proof) (*model.Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.proofs[p.TransactionID]; ok {
		return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Proof for transaction '%s' already exists", p.TransactionID), nil)
	}
	m.proofs[p.TransactionID] = *p
	return p, nil
}

func (m *MemoryDatasource) CompleteWithProof(_ context.Context, p *model.Proof, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.transactions[p.TransactionID]
	if !ok || txn.Status != model.StatusAccepted || txn.OperatorID != p.OperatorID {
		return false, nil
	}
	if _, ok := m.proofs[p.TransactionID]; ok {
		return false, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Proof for transaction '%s' already exists", p.TransactionID), nil)
	}

	txn.Status = model.StatusCompleted
	txn.Reason = reason
	txn.UpdatedAt = time.Now().UTC()
	m.transactions[p.TransactionID] = txn
	m.proofs[p.TransactionID] = *p
	return true, nil
}

func (m *MemoryDatasource) GetProofByTransactionID(_ context.Context, transactionID string) (*model.Proof, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proofs[transactionID]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Proof for transaction '%s' not found", transactionID), nil)
	}
	return &p, nil
}

func rateKey(from, to, source string) string {
	return from + "/" + to + "/" + source
}

func (m *MemoryDatasource) UpsertConsensusRate(_ context.Context, r *model.ConsensusRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[rateKey(r.FromCurrency, r.ToCurrency, r.Source)] = *r
	return nil
}

func (m *MemoryDatasource) GetLatestRate(_ context.Context, pair model.Pair) (*model.ConsensusRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rates[rateKey(pair.From, pair.To, model.CombinedSource)]
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No rate recorded for %s", pair), nil)
	}
	return &r, nil
}

// TransactionCount is used by tests to assert nothing was persisted.
func (m *MemoryDatasource) TransactionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions)
}
