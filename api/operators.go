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
	"github.com/shopspring/decimal"

	"github.com/jerry-enebeli/payrelay"
	model2 "github.com/jerry-enebeli/payrelay/api/model"
	"github.com/jerry-enebeli/payrelay/internal/apierror"
)

func (a Api) CreateOperator(c *gin.Context) {
	var newOperator model2.CreateOperator
	if err := c.ShouldBindJSON(&newOperator); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := newOperator.ValidateCreateOperator(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payrelay.CreateOperator(c.Request.Context(), newOperator.ToOperator())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (a Api) GetOperator(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	resp, err := a.payrelay.GetOperator(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (a Api) UpdateOperatorBalance(c *gin.Context) {
	id, passed := c.Params.Get("id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required. pass id in the route /:id"})
		return
	}

	var update model2.UpdateOperatorBalance
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := update.ValidateUpdateOperatorBalance(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	resp, err := a.payrelay.UpdateOperatorBalance(c.Request.Context(), id, decimal.NewFromFloat(*update.Balance))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func replyBody(reply *payrelay.ActionReply, err error) gin.H {
	body := gin.H{}
	if reply != nil {
		body["transaction_id"] = reply.TransactionID
		body["status"] = reply.Status
		body["message"] = reply.Message
	}
	if err != nil {
		body["error"] = err.Error()
		body["code"] = apierror.CodeOf(err)
	}
	return body
}

// HandleOperatorAction receives accept events from the operator channel gateway.
//
// Responses:
// - 200 OK: the transaction was accepted, message holds the instructions for the operator.
// - 404 Not Found / 409 Conflict: the payout is gone, message tells the operator so.
// - 403 Forbidden: the sender is not a registered operator.
func (a Api) HandleOperatorAction(c *gin.Context) {
	var action model2.OperatorAction
	if err := c.ShouldBindJSON(&action); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}
	if err := action.ValidateOperatorAction(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err.Error()})
		return
	}

	reply, err := a.payrelay.HandleOperatorAction(c.Request.Context(), payrelay.ActionEvent{
		Kind:              payrelay.ActionKind(action.Kind),
		OperatorID:        action.OperatorID,
		ShortID:           action.ShortID,
		DestinationSuffix: action.DestinationSuffix,
	})
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), replyBody(reply, err))
		return
	}

	c.JSON(http.StatusOK, replyBody(reply, nil))
}

// UploadProof receives a proof artifact as multipart form data with the fields
// operator_id and file.
func (a Api) UploadProof(c *gin.Context) {
	operatorID := c.PostForm("operator_id")
	if operatorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator_id is required"})
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	artifact, err := payrelay.ReadArtifact(file, a.payrelay.MaxUploadBytes())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reply, err := a.payrelay.HandleOperatorAction(c.Request.Context(), payrelay.ActionEvent{
		Kind:       payrelay.ActionProofUpload,
		OperatorID: operatorID,
		Artifact:   artifact,
	})
	if err != nil {
		c.JSON(apierror.MapErrorToHTTPStatus(err), replyBody(reply, err))
		return
	}

	c.JSON(http.StatusOK, replyBody(reply, nil))
}
