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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var methods = []string{"sberbank", "tinkoff", "sbp", "card"}

func validCreateTransaction() CreateTransaction {
	now := time.Now().Unix()
	return CreateTransaction{
		Destination:   "4276 0000 1111 2222",
		Amount:        500,
		PaymentMethod: "sberbank",
		AvailableFrom: now,
		ExpiresAt:     now + 600,
		CallbackURL:   "https://merchant.example.com/payouts/callback",
	}
}

func TestValidateCreateTransaction(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *CreateTransaction)
		wantErr string
	}{
		{"valid", func(t *CreateTransaction) {}, ""},
		{"missing destination", func(t *CreateTransaction) { t.Destination = "" }, "destination"},
		{"negative amount", func(t *CreateTransaction) { t.Amount = -1 }, "amount"},
		{"zero amount", func(t *CreateTransaction) { t.Amount = 0 }, "amount"},
		{"typo in method", func(t *CreateTransaction) { t.PaymentMethod = "sberbnk" }, `did you mean "sberbank"`},
		{"unknown method", func(t *CreateTransaction) { t.PaymentMethod = "western-union" }, "supported methods are"},
		{"method is case insensitive", func(t *CreateTransaction) { t.PaymentMethod = "SBP" }, ""},
		{"expiry before availability", func(t *CreateTransaction) { t.ExpiresAt = t.AvailableFrom - 1 }, "expires_at"},
		{"missing availability", func(t *CreateTransaction) { t.AvailableFrom = 0 }, "available_from"},
		{"relative callback", func(t *CreateTransaction) { t.CallbackURL = "/callback" }, "callback_url"},
		{"ftp callback", func(t *CreateTransaction) { t.CallbackURL = "ftp://example.com/x" }, "callback_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateTransaction()
			tt.mutate(&req)
			err := req.ValidateCreateTransaction(methods)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSuggestMethod(t *testing.T) {
	assert.Equal(t, "tinkoff", SuggestMethod("tinkof", methods))
	assert.Equal(t, "sbp", SuggestMethod("SPB", methods))
	assert.Equal(t, "", SuggestMethod("paypal-express", methods))
}

func TestCreateTransaction_ToTransaction(t *testing.T) {
	req := validCreateTransaction()
	req.SubMethod = "sbp"
	req.MetaData = map[string]interface{}{"merchant_ref": "ord-1"}

	txn := req.ToTransaction()
	assert.Equal(t, "500", txn.Amount.String())
	assert.Equal(t, req.AvailableFrom, txn.AvailableFrom.Unix())
	assert.Equal(t, req.ExpiresAt, txn.ExpiresAt.Unix())
	assert.Equal(t, "sbp", txn.MetaData["sub_method"])
	assert.Equal(t, "ord-1", txn.MetaData["merchant_ref"])
	_, mutated := req.MetaData["sub_method"]
	assert.False(t, mutated)
}

func TestNewCreateTransactionResponse(t *testing.T) {
	assert.Equal(t, 0, NewCreateTransactionResponse("txn_1", StatusSuccess, "").ErrorCode)
	assert.Equal(t, 1, NewCreateTransactionResponse("", StatusValidationError, "bad").ErrorCode)
	assert.Equal(t, 2, NewCreateTransactionResponse("txn_1", StatusNoOperators, "none").ErrorCode)
	assert.Equal(t, 3, NewCreateTransactionResponse("", StatusInternalError, "boom").ErrorCode)
}

func TestValidateOperatorRequests(t *testing.T) {
	assert.NoError(t, (&CreateOperator{Name: "Ivan", ChatID: "1001", Balance: 5000}).ValidateCreateOperator())
	assert.Error(t, (&CreateOperator{Name: "Ivan", Balance: 5000}).ValidateCreateOperator())
	assert.Error(t, (&CreateOperator{Name: "Ivan", ChatID: "1001", Balance: -1}).ValidateCreateOperator())

	op := (&CreateOperator{Name: "Ivan", ChatID: "1001"}).ToOperator()
	assert.True(t, op.IsOperator)
	no := false
	op = (&CreateOperator{Name: "Ivan", ChatID: "1001", IsOperator: &no}).ToOperator()
	assert.False(t, op.IsOperator)

	zero := 0.0
	assert.NoError(t, (&UpdateOperatorBalance{Balance: &zero}).ValidateUpdateOperatorBalance())
	assert.Error(t, (&UpdateOperatorBalance{}).ValidateUpdateOperatorBalance())
	neg := -10.0
	assert.Error(t, (&UpdateOperatorBalance{Balance: &neg}).ValidateUpdateOperatorBalance())
}

func TestValidateOperatorAction(t *testing.T) {
	assert.NoError(t, (&OperatorAction{Kind: "accept", OperatorID: "op1", ShortID: "abc"}).ValidateOperatorAction())
	assert.Error(t, (&OperatorAction{Kind: "reject", OperatorID: "op1", ShortID: "abc"}).ValidateOperatorAction())
	assert.Error(t, (&OperatorAction{Kind: "accept", ShortID: "abc"}).ValidateOperatorAction())
}
