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
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jerry-enebeli/payrelay/model"
)

// CreateOperator registers an operator. The watermark starts at the initial balance.
func (p *Payrelay) CreateOperator(ctx context.Context, op *model.Operator) (*model.Operator, error) {
	if strings.TrimSpace(op.Name) == "" {
		return nil, invalidInput("name is required")
	}
	if strings.TrimSpace(op.ChatID) == "" {
		return nil, invalidInput("chat_id is required")
	}
	if op.Balance.IsNegative() {
		return nil, invalidInput("balance cannot be negative")
	}
	if op.OperatorID == "" {
		op.OperatorID = model.GenerateUUIDWithSuffix("op")
	}
	if op.MaxBalance.LessThan(op.Balance) {
		op.MaxBalance = op.Balance
	}
	op.CreatedAt = time.Now().UTC()

	created, err := p.datasource.CreateOperator(ctx, op)
	if err != nil {
		return nil, err
	}
	p.indexOperator(created)
	return created, nil
}

func (p *Payrelay) GetOperator(ctx context.Context, id string) (*model.Operator, error) {
	return p.datasource.GetOperator(ctx, id)
}

// UpdateOperatorBalance sets the operator's available balance, raising the watermark.
func (p *Payrelay) UpdateOperatorBalance(ctx context.Context, id string, balance decimal.Decimal) (*model.Operator, error) {
	if balance.IsNegative() {
		return nil, invalidInput("balance cannot be negative")
	}
	op, err := p.datasource.UpdateOperatorBalance(ctx, id, balance)
	if err != nil {
		return nil, err
	}
	p.indexOperator(op)
	return op, nil
}
