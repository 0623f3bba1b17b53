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
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("payrelay.database")

const transactionColumns = `transaction_id, amount, currency, destination, payment_method, operator_id, callback_url,
	status, reason, available_from, expires_at, accepted_at, created_at, updated_at, meta_data`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var (
		operatorID, callbackURL, reason sql.NullString
		acceptedAt                      sql.NullTime
		metaDataJSON                    []byte
		status                          string
	)
	err := row.Scan(&txn.TransactionID, &txn.Amount, &txn.Currency, &txn.Destination, &txn.PaymentMethod,
		&operatorID, &callbackURL, &status, &reason, &txn.AvailableFrom, &txn.ExpiresAt, &acceptedAt,
		&txn.CreatedAt, &txn.UpdatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}
	txn.Status = model.Status(status)
	txn.OperatorID = operatorID.String
	txn.CallbackURL = callbackURL.String
	txn.Reason = reason.String
	if acceptedAt.Valid {
		t := acceptedAt.Time
		txn.AcceptedAt = &t
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, err
		}
	}
	return txn, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (d Datasource) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Saving transaction to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO payrelay.transactions(transaction_id, amount, currency, destination, payment_method, callback_url,
			status, available_from, expires_at, created_at, updated_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		txn.TransactionID, txn.Amount, txn.Currency, txn.Destination, txn.PaymentMethod, nullString(txn.CallbackURL),
		string(txn.Status), txn.AvailableFrom, txn.ExpiresAt, txn.CreatedAt, txn.UpdatedAt, metaDataJSON,
	)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Fetching transaction from db")
	defer span.End()

	row := d.Conn.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM payrelay.transactions WHERE transaction_id = $1`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

// ConditionalTransition is a single UPDATE guarded on the current status. Operator and
// destination are only overwritten when the patch carries a value, so an assigned operator
// is never cleared. A miss on an unknown id is reported as NOT_FOUND.
func (d Datasource) ConditionalTransition(ctx context.Context, id string, expected []model.Status, next model.Status, patch model.TransitionPatch) (bool, error) {
	ctx, span := tracer.Start(ctx, "Conditional transaction transition")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("transaction.next_status", string(next)))

	expectedStatuses := make([]string, len(expected))
	for i, s := range expected {
		expectedStatuses[i] = string(s)
	}

	now := time.Now().UTC()
	var acceptedAt sql.NullTime
	if next == model.StatusAccepted {
		acceptedAt = sql.NullTime{Time: now, Valid: true}
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payrelay.transactions
		SET status = $2,
			operator_id = COALESCE($3, operator_id),
			destination = COALESCE($4, destination),
			reason = COALESCE($5, reason),
			accepted_at = COALESCE($6, accepted_at),
			updated_at = $7
		WHERE transaction_id = $1 AND status = ANY($8)`,
		id, string(next), nullString(patch.OperatorID), nullString(patch.Destination), nullString(patch.Reason),
		acceptedAt, now, pq.Array(expectedStatuses),
	)
	if err != nil {
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected > 0 {
		return true, nil
	}

	var exists bool
	err = d.Conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM payrelay.transactions WHERE transaction_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check if transaction exists", err)
	}
	if !exists {
		return false, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}
	return false, nil
}

func (d Datasource) GetExpiredPendingTransactions(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Fetching expired pending transactions")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM payrelay.transactions
		WHERE status = $1 AND expires_at <= $2
		ORDER BY expires_at ASC
		LIMIT $3`, string(model.StatusPending), now, limit)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve expired transactions", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []*model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error over transaction rows", err)
	}
	return transactions, nil
}
