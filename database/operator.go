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
	"fmt"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
	"github.com/shopspring/decimal"
)

const operatorColumns = `operator_id, name, chat_id, balance, max_balance, is_operator, created_at`

func scanOperator(row rowScanner) (*model.Operator, error) {
	op := &model.Operator{}
	err := row.Scan(&op.OperatorID, &op.Name, &op.ChatID, &op.Balance, &op.MaxBalance, &op.IsOperator, &op.CreatedAt)
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (d Datasource) CreateOperator(ctx context.Context, op *model.Operator) (*model.Operator, error) {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payrelay.operators(operator_id, name, chat_id, balance, max_balance, is_operator, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		op.OperatorID, op.Name, op.ChatID, op.Balance, op.MaxBalance, op.IsOperator, op.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Operator '%s' already exists", op.OperatorID), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create operator", err)
	}
	return op, nil
}

func (d Datasource) GetOperator(ctx context.Context, id string) (*model.Operator, error) {
	row := d.Conn.QueryRowContext(ctx, `SELECT `+operatorColumns+` FROM payrelay.operators WHERE operator_id = $1`, id)
	op, err := scanOperator(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operator with ID '%s' not found", id), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve operator", err)
	}
	return op, nil
}

// ListEligibleOperators returns operators holding the role flag whose balance covers minBalance.
func (d Datasource) ListEligibleOperators(ctx context.Context, minBalance decimal.Decimal) ([]*model.Operator, error) {
	ctx, span := tracer.Start(ctx, "Listing eligible operators")
	defer span.End()

	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+operatorColumns+`
		FROM payrelay.operators
		WHERE is_operator = TRUE AND balance >= $1
		ORDER BY created_at ASC`, minBalance)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to list eligible operators", err)
	}
	defer func() { _ = rows.Close() }()

	var operators []*model.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan operator", err)
		}
		operators = append(operators, op)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error over operator rows", err)
	}
	return operators, nil
}

// UpdateOperatorBalance sets the balance and raises max_balance in the same statement.
func (d Datasource) UpdateOperatorBalance(ctx context.Context, id string, balance decimal.Decimal) (*model.Operator, error) {
	row := d.Conn.QueryRowContext(ctx, `
		UPDATE payrelay.operators
		SET balance = $2, max_balance = GREATEST(max_balance, $2)
		WHERE operator_id = $1
		RETURNING `+operatorColumns, id, balance)
	op, err := scanOperator(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Operator with ID '%s' not found", id), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update operator balance", err)
	}
	return op, nil
}
