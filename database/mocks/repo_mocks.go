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

package mocks

import (
	"context"
	"time"

	"github.com/jerry-enebeli/payrelay/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockDataSource is a mock implementation of the IDataSource interface
type MockDataSource struct {
	mock.Mock
}

// Transaction methods

func (m *MockDataSource) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockDataSource) ConditionalTransition(ctx context.Context, id string, expected []model.Status, next model.Status, patch model.TransitionPatch) (bool, error) {
	args := m.Called(ctx, id, expected, next, patch)
	return args.Bool(0), args.Error(1)
}

func (m *MockDataSource) GetExpiredPendingTransactions(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Transaction), args.Error(1)
}

// Operator methods

func (m *MockDataSource) CreateOperator(ctx context.Context, op *model.Operator) (*model.Operator, error) {
	args := m.Called(ctx, op)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockDataSource) GetOperator(ctx context.Context, id string) (*model.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *MockDataSource) ListEligibleOperators(ctx context.Context, minBalance decimal.Decimal) ([]*model.Operator, error) {
	args := m.Called(ctx, minBalance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Operator), args.Error(1)
}

func (m *MockDataSource) UpdateOperatorBalance(ctx context.Context, id string, balance decimal.Decimal) (*model.Operator, error) {
	args := m.Called(ctx, id, balance)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

// Proof methods

func (m *MockDataSource) CreateProof(ctx context.Context, p *model.Proof) (*model.Proof, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Proof), args.Error(1)
}

func (m *MockDataSource) GetProofByTransactionID(ctx context.Context, transactionID string) (*model.Proof, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Proof), args.Error(1)
}

func (m *MockDataSource) CompleteWithProof(ctx context.Context, p *model.Proof, reason string) (bool, error) {
	args := m.Called(ctx, p, reason)
	return args.Bool(0), args.Error(1)
}

// Rate methods

func (m *MockDataSource) UpsertConsensusRate(ctx context.Context, r *model.ConsensusRate) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockDataSource) GetLatestRate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error) {
	args := m.Called(ctx, pair)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ConsensusRate), args.Error(1)
}
