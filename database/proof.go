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
	"errors"
	"fmt"
	"time"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
	"github.com/lib/pq"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateProof records the proof for a transaction. A second proof for the same
// transaction is rejected with CONFLICT by the unique constraint.
func (d Datasource) CreateProof(ctx context.Context, p *model.Proof) (*model.Proof, error) {
	ctx, span := tracer.Start(ctx, "Saving proof to db")
	defer span.End()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payrelay.proofs(proof_id, transaction_id, operator_id, path, content_type, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ProofID, p.TransactionID, p.OperatorID, p.Path, p.ContentType, p.Verified, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Proof for transaction '%s' already exists", p.TransactionID), nil)
		}
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record proof", err)
	}
	return p, nil
}

// CompleteWithProof guards on status and operator first so a proof row is only ever
// inserted for a transaction this call completed.
func (d Datasource) CompleteWithProof(ctx context.Context, p *model.Proof, reason string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Completing transaction with proof")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE payrelay.transactions
		SET status = $3, reason = $4, updated_at = $5
		WHERE transaction_id = $1 AND operator_id = $2 AND status = $6`,
		p.TransactionID, p.OperatorID, string(model.StatusCompleted), reason, time.Now().UTC(), string(model.StatusAccepted),
	)
	if err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to complete transaction", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payrelay.proofs(proof_id, transaction_id, operator_id, path, content_type, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ProofID, p.TransactionID, p.OperatorID, p.Path, p.ContentType, p.Verified, p.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback()
		span.RecordError(err)
		if isUniqueViolation(err) {
			return false, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Proof for transaction '%s' already exists", p.TransactionID), nil)
		}
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record proof", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit proof", err)
	}
	return true, nil
}

func (d Datasource) GetProofByTransactionID(ctx context.Context, transactionID string) (*model.Proof, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT proof_id, transaction_id, operator_id, path, content_type, verified, verified_by, verified_at, created_at
		FROM payrelay.proofs
		WHERE transaction_id = $1`, transactionID)

	p := &model.Proof{}
	var verifiedBy sql.NullString
	var verifiedAt sql.NullTime
	err := row.Scan(&p.ProofID, &p.TransactionID, &p.OperatorID, &p.Path, &p.ContentType, &p.Verified, &verifiedBy, &verifiedAt, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Proof for transaction '%s' not found", transactionID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve proof", err)
	}
	p.VerifiedBy = verifiedBy.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		p.VerifiedAt = &t
	}
	return p, nil
}
