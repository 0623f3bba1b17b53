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

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operator is a human allowed to fulfil payouts.
type Operator struct {
	OperatorID string          `json:"operator_id"`
	Name       string          `json:"name"`
	ChatID     string          `json:"chat_id"`
	Balance    decimal.Decimal `json:"balance"`
	MaxBalance decimal.Decimal `json:"max_balance"`
	IsOperator bool            `json:"is_operator"`
	CreatedAt  time.Time       `json:"created_at"`
}

// CanFulfil reports whether the operator is eligible for a payout of amount.
func (o *Operator) CanFulfil(amount decimal.Decimal) bool {
	return o.IsOperator && o.Balance.GreaterThanOrEqual(amount)
}

// ApplyBalance sets a new balance and raises the watermark when exceeded.
func (o *Operator) ApplyBalance(balance decimal.Decimal) {
	o.Balance = balance
	if balance.GreaterThan(o.MaxBalance) {
		o.MaxBalance = balance
	}
}

type Proof struct {
	ProofID       string     `json:"proof_id"`
	TransactionID string     `json:"transaction_id"`
	OperatorID    string     `json:"operator_id"`
	Path          string     `json:"path"`
	ContentType   string     `json:"content_type"`
	Verified      bool       `json:"verified"`
	VerifiedBy    string     `json:"verified_by,omitempty"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
