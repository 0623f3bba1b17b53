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

	"github.com/jerry-enebeli/payrelay/model"
)

type CreateTransaction struct {
	Destination   string                 `json:"destination"`
	Amount        float64                `json:"amount"`
	Currency      string                 `json:"currency"`
	PaymentMethod string                 `json:"payment_method"`
	SubMethod     string                 `json:"sub_method"`
	AvailableFrom int64                  `json:"available_from"`
	ExpiresAt     int64                  `json:"expires_at"`
	CallbackURL   string                 `json:"callback_url"`
	MetaData      map[string]interface{} `json:"meta_data"`
}

// Coarse outcome of a creation request.
const (
	StatusSuccess         = "success"
	StatusValidationError = "validation_error"
	StatusNoOperators     = "no_operators"
	StatusInternalError   = "internal_error"
)

var errorCodes = map[string]int{
	StatusSuccess:         0,
	StatusValidationError: 1,
	StatusNoOperators:     2,
	StatusInternalError:   3,
}

type CreateTransactionResponse struct {
	TransactionID string `json:"transaction_id,omitempty"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
	ErrorCode     int    `json:"error_code"`
}

func NewCreateTransactionResponse(transactionID, status, reason string) CreateTransactionResponse {
	return CreateTransactionResponse{
		TransactionID: transactionID,
		Status:        status,
		Reason:        reason,
		ErrorCode:     errorCodes[status],
	}
}

type CancelTransaction struct {
	Reason string `json:"reason"`
}

func (t *CreateTransaction) ToTransaction() *model.Transaction {
	metaData := make(map[string]interface{}, len(t.MetaData)+1)
	for k, v := range t.MetaData {
		metaData[k] = v
	}
	if t.SubMethod != "" {
		metaData["sub_method"] = t.SubMethod
	}

	return &model.Transaction{
		Destination:   t.Destination,
		Amount:        decimal.NewFromFloat(t.Amount),
		Currency:      t.Currency,
		PaymentMethod: t.PaymentMethod,
		AvailableFrom: time.Unix(t.AvailableFrom, 0).UTC(),
		ExpiresAt:     time.Unix(t.ExpiresAt, 0).UTC(),
		CallbackURL:   t.CallbackURL,
		MetaData:      metaData,
	}
}
