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
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
)

const (
	ReasonNoOperators = "no operators available"
	ReasonExpired     = "transaction expired before it was accepted"
	ReasonCancelled   = "transaction cancelled"
	ReasonCompleted   = "payout confirmed by operator"
)

func staleState(id string) error {
	return apierror.NewAPIError(apierror.ErrStaleState, fmt.Sprintf("transaction %s is no longer available", id), nil)
}

func invalidInput(message string) error {
	return apierror.NewAPIError(apierror.ErrInvalidInput, message, nil)
}

// SupportedPaymentMethods returns the configured closed set of payment methods.
func (p *Payrelay) SupportedPaymentMethods() []string {
	return p.config.Transaction.PaymentMethods
}

func (p *Payrelay) isSupportedMethod(method string) bool {
	for _, m := range p.config.Transaction.PaymentMethods {
		if m == method {
			return true
		}
	}
	return false
}

// validateTransaction checks the creation invariants: a supported payment method, an
// amount in minor units inside the configured bounds, and an availability window that
// opens before it closes.
func (p *Payrelay) validateTransaction(txn *model.Transaction) error {
	cfg := p.config.Transaction

	if strings.TrimSpace(txn.Destination) == "" {
		return invalidInput("destination is required")
	}
	if !p.isSupportedMethod(txn.PaymentMethod) {
		return invalidInput(fmt.Sprintf("unsupported payment method %q, supported methods are %s",
			txn.PaymentMethod, strings.Join(cfg.PaymentMethods, ", ")))
	}

	minAmount := decimal.NewFromFloat(cfg.MinAmount)
	maxAmount := decimal.NewFromFloat(cfg.MaxAmount)
	if !txn.Amount.IsPositive() {
		return invalidInput("amount must be positive")
	}
	if !txn.Amount.Equal(txn.Amount.Round(2)) {
		return invalidInput("amount must have at most two decimal places")
	}
	if txn.Amount.LessThan(minAmount) || txn.Amount.GreaterThan(maxAmount) {
		return invalidInput(fmt.Sprintf("amount %s is outside the allowed range [%s, %s]",
			txn.Amount.String(), minAmount.String(), maxAmount.String()))
	}

	if txn.AvailableFrom.IsZero() || txn.AvailableFrom.Unix() <= 0 {
		return invalidInput("available_from must be a positive unix timestamp")
	}
	if txn.ExpiresAt.IsZero() || txn.ExpiresAt.Unix() <= 0 {
		return invalidInput("expires_at must be a positive unix timestamp")
	}
	if !txn.AvailableFrom.Before(txn.ExpiresAt) {
		return invalidInput("expires_at must be after available_from")
	}
	return nil
}

// CreateTransaction validates and persists a PENDING transaction, then dispatches it.
// When no operator is eligible the transaction is moved to FAILED before anyone is
// notified and an error with code NO_OPERATORS is returned together with the transaction.
func (p *Payrelay) CreateTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Creating transaction")
	defer span.End()

	txn.PaymentMethod = strings.ToLower(strings.TrimSpace(txn.PaymentMethod))
	txn.Currency = strings.ToUpper(strings.TrimSpace(txn.Currency))
	if txn.Currency == "" {
		txn.Currency = p.config.Transaction.DefaultCurrency
	}
	if err := p.validateTransaction(txn); err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := time.Now().UTC()
	txn.TransactionID = model.GenerateUUIDWithSuffix("txn")
	txn.Status = model.StatusPending
	txn.OperatorID = ""
	txn.Reason = ""
	txn.AcceptedAt = nil
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if txn.MetaData == nil {
		txn.MetaData = make(map[string]interface{})
	}
	p.attachReferenceRate(ctx, txn)

	destination, err := p.protectDestination(txn.Destination)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to protect destination", err)
	}
	txn.Destination = destination

	span.SetAttributes(attribute.String("transaction.id", txn.TransactionID))
	if _, err := p.datasource.CreateTransaction(ctx, txn); err != nil {
		span.RecordError(err)
		return nil, err
	}

	operators, err := p.datasource.ListEligibleOperators(ctx, txn.Amount)
	if err != nil {
		// the deadline still applies so the transaction cannot stay PENDING forever
		p.arm(ctx, txn)
		span.RecordError(err)
		return txn, err
	}

	if len(operators) == 0 {
		matched, err := p.datasource.ConditionalTransition(ctx, txn.TransactionID,
			[]model.Status{model.StatusPending}, model.StatusFailed, model.TransitionPatch{Reason: ReasonNoOperators})
		if err != nil {
			return txn, err
		}
		if matched {
			txn.Status = model.StatusFailed
			txn.Reason = ReasonNoOperators
			p.afterTerminal(txn, model.StatusFailed, ReasonNoOperators)
		}
		return txn, apierror.NewAPIError(apierror.ErrNoOperators, ReasonNoOperators, nil)
	}

	p.arm(ctx, txn)
	p.dispatch(ctx, txn, operators)
	p.indexTransaction(txn)

	logrus.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"amount":         txn.Amount.String(),
		"method":         txn.PaymentMethod,
		"operators":      len(operators),
	}).Info("transaction created")
	return txn, nil
}

// AcceptTransaction assigns the transaction to operatorID in a single conditional update
// from PENDING. Of any number of concurrent accepts, and an expiry racing them, exactly
// one wins; the rest receive STALE_STATE.
func (p *Payrelay) AcceptTransaction(ctx context.Context, id, operatorID, destinationOverride string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Accepting transaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id), attribute.String("operator.id", operatorID))

	op, err := p.datasource.GetOperator(ctx, operatorID)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrNotFound) {
			return nil, apierror.NewAPIError(apierror.ErrUnauthorized, "operator is not registered", nil)
		}
		return nil, err
	}
	if !op.IsOperator {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, "user is not an operator", nil)
	}

	patch := model.TransitionPatch{OperatorID: operatorID}
	if override := strings.TrimSpace(destinationOverride); override != "" {
		patch.Destination, err = p.protectDestination(override)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to protect destination", err)
		}
	}

	matched, err := p.datasource.ConditionalTransition(ctx, id, []model.Status{model.StatusPending}, model.StatusAccepted, patch)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !matched {
		return nil, staleState(id)
	}
	p.scheduler.Cancel(id)

	txn, err := p.datasource.GetTransaction(ctx, id)
	if err != nil {
		logrus.WithFields(logrus.Fields{"transaction_id": id, "error": err}).Warn("accepted transaction could not be reloaded")
		return &model.Transaction{TransactionID: id, Status: model.StatusAccepted, OperatorID: operatorID}, nil
	}
	p.indexTransaction(txn)
	return txn, nil
}

// ExpireTransaction moves a PENDING transaction to EXPIRED. A transaction that already
// left PENDING is not touched and no error is returned.
func (p *Payrelay) ExpireTransaction(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Expiring transaction")
	defer span.End()

	matched, err := p.datasource.ConditionalTransition(ctx, id, []model.Status{model.StatusPending}, model.StatusExpired,
		model.TransitionPatch{Reason: ReasonExpired})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !matched {
		return nil
	}

	txn, err := p.datasource.GetTransaction(ctx, id)
	if err != nil {
		span.RecordError(err)
		logrus.WithFields(logrus.Fields{"transaction_id": id, "error": err}).
			Warn("expired transaction could not be reloaded, callback and index update skipped")
		return nil
	}
	p.afterTerminal(txn, model.StatusExpired, ReasonExpired)
	logrus.WithField("transaction_id", id).Info("transaction expired")
	return nil
}

// CancelTransaction moves a non-terminal transaction to CANCELLED.
func (p *Payrelay) CancelTransaction(ctx context.Context, id, reason string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Cancelling transaction")
	defer span.End()

	if strings.TrimSpace(reason) == "" {
		reason = ReasonCancelled
	}
	matched, err := p.datasource.ConditionalTransition(ctx, id, model.NonTerminalStatuses, model.StatusCancelled,
		model.TransitionPatch{Reason: reason})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !matched {
		return nil, staleState(id)
	}
	p.scheduler.Cancel(id)

	txn, err := p.datasource.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	p.afterTerminal(txn, model.StatusCancelled, reason)
	return txn, nil
}

// GetTransaction returns the stored transaction.
func (p *Payrelay) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return p.datasource.GetTransaction(ctx, id)
}

// GetTransactionStatus answers the caller-facing status query.
func (p *Payrelay) GetTransactionStatus(ctx context.Context, id string) (*model.TransactionStatus, error) {
	txn, err := p.datasource.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &model.TransactionStatus{
		TransactionID: txn.TransactionID,
		Status:        txn.Status.Coarse(),
		State:         txn.Status,
		Amount:        txn.Amount,
		AmountPaid:    decimal.Zero,
		Currency:      txn.Currency,
		Reason:        txn.Reason,
	}
	if txn.Status == model.StatusCompleted {
		status.AmountPaid = txn.Amount
	}

	proof, err := p.datasource.GetProofByTransactionID(ctx, id)
	switch {
	case err == nil:
		status.Proof = proof.Path
	case !apierror.IsCode(err, apierror.ErrNotFound):
		return nil, err
	}
	return status, nil
}

// afterTerminal runs the side effects of reaching a terminal state. None of them can fail
// the transition.
func (p *Payrelay) afterTerminal(txn *model.Transaction, status model.Status, reason string) {
	txn.Status = status
	txn.Reason = reason
	p.inputModes.clearTransaction(txn.TransactionID)
	p.fireCallback(txn, status, reason)
	p.indexTransaction(txn)
}

func (p *Payrelay) arm(ctx context.Context, txn *model.Transaction) {
	if err := p.scheduler.Schedule(ctx, txn.TransactionID, txn.ExpiresAt); err != nil {
		logrus.WithFields(logrus.Fields{"transaction_id": txn.TransactionID, "error": err}).
			Warn("failed to arm expiry, the sweeper will expire it")
	}
}

// protectDestination tokenizes destinations when an encryption key is configured.
func (p *Payrelay) protectDestination(destination string) (string, error) {
	if p.tokenizer == nil {
		return destination, nil
	}
	return p.tokenizer.Tokenize(destination)
}

// RevealDestination returns the clear destination of txn.
func (p *Payrelay) RevealDestination(txn *model.Transaction) (string, error) {
	if p.tokenizer == nil {
		return txn.Destination, nil
	}
	return p.tokenizer.Reveal(txn.Destination)
}

// attachReferenceRate records the current consensus rate for the transaction currency.
func (p *Payrelay) attachReferenceRate(ctx context.Context, txn *model.Transaction) {
	if p.rates == nil {
		return
	}
	for _, raw := range p.config.Rates.Pairs {
		pair, err := model.ParsePair(raw)
		if err != nil || pair.To != txn.Currency {
			continue
		}
		rate, err := p.rates.GetRate(ctx, pair)
		if err != nil {
			return
		}
		txn.MetaData["reference_pair"] = pair.String()
		txn.MetaData["reference_rate"] = rate.Rate.String()
		return
	}
}
