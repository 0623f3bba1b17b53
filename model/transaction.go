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
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a payout transaction.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether no further transitions are accepted from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// NonTerminalStatuses lists the states a cancellation may start from.
var NonTerminalStatuses = []Status{StatusPending, StatusAccepted}

// Coarse statuses reported to the caller by the status query.
const (
	CoarseInProgress = "in_progress"
	CoarseCompleted  = "completed"
	CoarseFailed     = "failed"
)

// Coarse maps a lifecycle state to the caller-facing status.
func (s Status) Coarse() string {
	switch s {
	case StatusCompleted:
		return CoarseCompleted
	case StatusFailed, StatusExpired, StatusCancelled:
		return CoarseFailed
	default:
		return CoarseInProgress
	}
}

type Transaction struct {
	TransactionID string                 `json:"transaction_id"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	Destination   string                 `json:"destination"`
	PaymentMethod string                 `json:"payment_method"`
	OperatorID    string                 `json:"operator_id,omitempty"`
	CallbackURL   string                 `json:"callback_url,omitempty"`
	Status        Status                 `json:"status"`
	Reason        string                 `json:"reason,omitempty"`
	AvailableFrom time.Time              `json:"available_from"`
	ExpiresAt     time.Time              `json:"expires_at"`
	AcceptedAt    *time.Time             `json:"accepted_at,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// TransitionPatch holds the fields written together with a status change.
// Empty fields are left untouched.
type TransitionPatch struct {
	OperatorID  string
	Destination string
	Reason      string
}

// TransactionStatus is the answer to a status query.
type TransactionStatus struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	State         Status          `json:"state"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Currency      string          `json:"currency"`
	Proof         string          `json:"proof,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}
