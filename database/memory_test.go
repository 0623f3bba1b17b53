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
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPending(t *testing.T, ds *MemoryDatasource, id string, expiresAt time.Time) {
	_, err := ds.CreateTransaction(context.Background(), &model.Transaction{
		TransactionID: id,
		Amount:        decimal.NewFromInt(100),
		Status:        model.StatusPending,
		Destination:   "dest",
		ExpiresAt:     expiresAt,
	})
	require.NoError(t, err)
}

func TestMemoryConditionalTransition_SingleWinner(t *testing.T) {
	ds := NewMemoryDataSource()
	seedPending(t, ds, "txn_race", time.Now().Add(time.Hour))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := ds.ConditionalTransition(context.Background(), "txn_race",
				[]model.Status{model.StatusPending}, model.StatusAccepted,
				model.TransitionPatch{OperatorID: fmt.Sprintf("op%d", i)})
			assert.NoError(t, err)
			if ok {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	txn, err := ds.GetTransaction(context.Background(), "txn_race")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, txn.Status)
	assert.NotEmpty(t, txn.OperatorID)
	assert.NotNil(t, txn.AcceptedAt)
}

func TestMemoryConditionalTransition_KeepsOperator(t *testing.T) {
	ds := NewMemoryDataSource()
	seedPending(t, ds, "txn_1", time.Now().Add(time.Hour))
	ctx := context.Background()

	ok, err := ds.ConditionalTransition(ctx, "txn_1", []model.Status{model.StatusPending}, model.StatusAccepted,
		model.TransitionPatch{OperatorID: "op1", Destination: "new-dest"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = ds.ConditionalTransition(ctx, "txn_1", model.NonTerminalStatuses, model.StatusCancelled,
		model.TransitionPatch{Reason: "stop"})
	require.NoError(t, err)
	require.True(t, ok)

	txn, _ := ds.GetTransaction(ctx, "txn_1")
	assert.Equal(t, "op1", txn.OperatorID)
	assert.Equal(t, "new-dest", txn.Destination)
	assert.Equal(t, "stop", txn.Reason)
}

func TestMemoryConditionalTransition_UnknownID(t *testing.T) {
	ds := NewMemoryDataSource()
	ok, err := ds.ConditionalTransition(context.Background(), "nope", []model.Status{model.StatusPending},
		model.StatusExpired, model.TransitionPatch{})
	assert.False(t, ok)
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
}

func TestMemoryExpiredPending(t *testing.T) {
	ds := NewMemoryDataSource()
	now := time.Now()
	seedPending(t, ds, "txn_old", now.Add(-2*time.Minute))
	seedPending(t, ds, "txn_older", now.Add(-time.Hour))
	seedPending(t, ds, "txn_future", now.Add(time.Hour))

	txns, err := ds.GetExpiredPendingTransactions(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "txn_older", txns[0].TransactionID)

	txns, _ = ds.GetExpiredPendingTransactions(context.Background(), now, 1)
	assert.Len(t, txns, 1)
}

func TestMemoryProofUnique(t *testing.T) {
	ds := NewMemoryDataSource()
	ctx := context.Background()
	_, err := ds.CreateProof(ctx, &model.Proof{ProofID: "prf_1", TransactionID: "txn_1"})
	require.NoError(t, err)
	_, err = ds.CreateProof(ctx, &model.Proof{ProofID: "prf_2", TransactionID: "txn_1"})
	assert.True(t, apierror.IsCode(err, apierror.ErrConflict))
}

func TestMemoryCompleteWithProof(t *testing.T) {
	ds := NewMemoryDataSource()
	ctx := context.Background()
	seedPending(t, ds, "txn_1", time.Now().Add(time.Hour))

	matched, err := ds.CompleteWithProof(ctx, &model.Proof{ProofID: "prf_1", TransactionID: "txn_1", OperatorID: "op1"}, "done")
	require.NoError(t, err)
	assert.False(t, matched, "pending transaction")
	_, err = ds.GetProofByTransactionID(ctx, "txn_1")
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))

	ok, err := ds.ConditionalTransition(ctx, "txn_1", []model.Status{model.StatusPending}, model.StatusAccepted,
		model.TransitionPatch{OperatorID: "op1"})
	require.NoError(t, err)
	require.True(t, ok)

	matched, err = ds.CompleteWithProof(ctx, &model.Proof{ProofID: "prf_1", TransactionID: "txn_1", OperatorID: "op2"}, "done")
	require.NoError(t, err)
	assert.False(t, matched, "other operator")

	matched, err = ds.CompleteWithProof(ctx, &model.Proof{ProofID: "prf_1", TransactionID: "txn_1", OperatorID: "op1"}, "done")
	require.NoError(t, err)
	assert.True(t, matched)
	txn, _ := ds.GetTransaction(ctx, "txn_1")
	assert.Equal(t, model.StatusCompleted, txn.Status)
	assert.Equal(t, "done", txn.Reason)
}

func TestMemoryOperatorWatermark(t *testing.T) {
	ds := NewMemoryDataSource()
	ctx := context.Background()
	_, err := ds.CreateOperator(ctx, &model.Operator{OperatorID: "op1", IsOperator: true, Balance: decimal.NewFromInt(100), MaxBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	op, err := ds.UpdateOperatorBalance(ctx, "op1", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.True(t, op.MaxBalance.Equal(decimal.NewFromInt(500)))

	op, err = ds.UpdateOperatorBalance(ctx, "op1", decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.True(t, op.MaxBalance.Equal(decimal.NewFromInt(500)))

	eligible, err := ds.ListEligibleOperators(ctx, decimal.NewFromInt(60))
	require.NoError(t, err)
	assert.Empty(t, eligible)
}
