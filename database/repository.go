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
	"time"

	"github.com/jerry-enebeli/payrelay/model"
	"github.com/shopspring/decimal"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	transaction // Interface for transaction-related operations
	operator    // Interface for operator-related operations
	proof       // Interface for proof-related operations
	rate        // Interface for consensus rate operations
}

// transaction defines methods for handling payout transactions.
type transaction interface {
	CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) // Persists a new transaction
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)                 // Retrieves a transaction by ID
	// ConditionalTransition moves id to next only if its current status is one of expected,
	// writing patch in the same statement. It reports whether a row matched.
	ConditionalTransition(ctx context.Context, id string, expected []model.Status, next model.Status, patch model.TransitionPatch) (bool, error)
	GetExpiredPendingTransactions(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error) // PENDING rows past their deadline
}

// operator defines methods for handling operators.
type operator interface {
	CreateOperator(ctx context.Context, op *model.Operator) (*model.Operator, error)
	GetOperator(ctx context.Context, id string) (*model.Operator, error)
	ListEligibleOperators(ctx context.Context, minBalance decimal.Decimal) ([]*model.Operator, error)
	UpdateOperatorBalance(ctx context.Context, id string, balance decimal.Decimal) (*model.Operator, error)
}

// proof defines methods for handling proof artifacts.
type proof interface {
	CreateProof(ctx context.Context, p *model.Proof) (*model.Proof, error)
	GetProofByTransactionID(ctx context.Context, transactionID string) (*model.Proof, error)
	// CompleteWithProof records p and moves its transaction ACCEPTED -> COMPLETED in one
	// store transaction. Nothing is written unless the transaction is still ACCEPTED by
	// p.OperatorID; the bool reports whether it was.
	CompleteWithProof(ctx context.Context, p *model.Proof, reason string) (bool, error)
}

// rate defines methods for handling consensus rates.
type rate interface {
	UpsertConsensusRate(ctx context.Context, r *model.ConsensusRate) error
	GetLatestRate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error)
}
