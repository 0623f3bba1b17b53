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

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	model2 "github.com/jerry-enebeli/payrelay/api/model"
	"github.com/jerry-enebeli/payrelay/internal/apierror"
)

// CreateTransaction accepts a payout request. The body always carries the coarse
// outcome: success, validation_error, no_operators or internal_error.
//
// Responses:
// - 201 Created: the transaction is PENDING and operators were notified.
// - 400 Bad Request: the request failed validation, nothing was stored.
// - 422 Unprocessable Entity: no operator could take it, the transaction is FAILED.
// - 500 Internal Server Error: the transaction could not be stored.
func (a Api) CreateTransaction(c *gin.Context) {
	var newTransaction model2.CreateTransaction
	if err := c.ShouldBindJSON(&newTransaction); err != nil {
		c.JSON(http.StatusBadRequest, model2.NewCreateTransactionResponse("", model2.StatusValidationError, err.Error()))
		return
	}

	if err := newTransaction.ValidateCreateTransaction(a.payrelay.SupportedPaymentMethods()); err != nil {
		c.JSON(http.StatusBadRequest, model2.NewCreateTransactionResponse("", model2.StatusValidationError, err.Error()))
		return
	}

	txn, err := a.payrelay.CreateTransaction(c.Request.Context(), newTransaction.ToTransaction())
	if err != nil {
		id := ""
		if txn != nil {
			id = txn.TransactionID
		}
		status := model2.StatusInternalError
		switch apierror.CodeOf(err) {
		case apierror.ErrInvalidInput:
			status = model2.StatusValidationError
		case apierror.ErrNoOperators:
			status = model2.StatusNoOperators
		default:
			logrus.WithField("transaction_id", id).Error(err)
		}
		c.JSON(apierror.MapErrorToHTTPStatus(err), model2.NewCreateTransactionResponse(id, status, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, model2.NewCreateTransactionResponse(txn.TransactionID, model2.StatusSuccess, ""))
}

// GetTransactionStatus reports the coarse status, the amount paid and the proof path.
func (a Api) GetTransactionStatus(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.payrelay.GetTransactionStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) CancelTransaction(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var req model2.CancelTransaction
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	txn, err := a.payrelay.CancelTransaction(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction_id": txn.TransactionID, "status": txn.Status, "reason": txn.Reason})
}
