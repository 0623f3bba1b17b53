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
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
)

// ActionKind is the type of an inbound operator event.
type ActionKind string

const (
	ActionAccept      ActionKind = "accept"
	ActionProofUpload ActionKind = "proof_upload"
)

const replyNoLongerAvailable = "This payout is no longer available."

const replyProofOutstanding = "Upload the proof for payout %s before accepting another one."

// ActionEvent is an event delivered by the operator channel.
type ActionEvent struct {
	Kind              ActionKind `json:"kind"`
	OperatorID        string     `json:"operator_id"`
	ShortID           string     `json:"short_id,omitempty"`
	DestinationSuffix string     `json:"destination_suffix,omitempty"`
	Artifact          []byte     `json:"-"`
}

// ActionReply is what the channel should show the operator.
type ActionReply struct {
	TransactionID string       `json:"transaction_id,omitempty"`
	Status        model.Status `json:"status,omitempty"`
	Message       string       `json:"message"`
}

// inputModes remembers which transaction an operator is expected to upload a proof for.
// An operator awaits at most one proof at a time. It is soft state and is lost on restart.
type inputModes struct {
	mu       sync.Mutex
	awaiting map[string]string
}

func newInputModes() *inputModes {
	return &inputModes{awaiting: make(map[string]string)}
}

// claim makes transactionID the operator's awaited proof unless the slot is taken.
func (m *inputModes) claim(operatorID, transactionID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, ok := m.awaiting[operatorID]; ok {
		return held, false
	}
	m.awaiting[operatorID] = transactionID
	return transactionID, true
}

func (m *inputModes) get(operatorID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.awaiting[operatorID]
	return id, ok
}

// release drops the operator's slot only while it still holds transactionID.
func (m *inputModes) release(operatorID, transactionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.awaiting[operatorID] == transactionID {
		delete(m.awaiting, operatorID)
	}
}

func (m *inputModes) clearTransaction(transactionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for op, id := range m.awaiting {
		if id == transactionID {
			delete(m.awaiting, op)
		}
	}
}

// HandleOperatorAction routes an inbound channel event. Stale and unresolvable events
// return the error together with a reply telling the operator the payout is gone.
func (p *Payrelay) HandleOperatorAction(ctx context.Context, event ActionEvent) (*ActionReply, error) {
	if event.OperatorID == "" {
		return nil, invalidInput("operator_id is required")
	}

	switch event.Kind {
	case ActionAccept:
		return p.handleAccept(ctx, event)
	case ActionProofUpload:
		return p.handleProofUpload(ctx, event)
	default:
		return nil, invalidInput(fmt.Sprintf("unknown action kind %q", event.Kind))
	}
}

func (p *Payrelay) handleAccept(ctx context.Context, event ActionEvent) (*ActionReply, error) {
	short := event.ShortID
	if parsed, ok := ParseAcceptActionData(short); ok {
		short = parsed
	}

	if held, ok := p.inputModes.get(event.OperatorID); ok && p.stillAwaitingProof(ctx, held, event.OperatorID) {
		return p.proofOutstanding(held)
	}

	id, err := p.shortIDs.Resolve(ctx, short)
	if err != nil {
		return &ActionReply{Message: replyNoLongerAvailable}, err
	}

	if held, ok := p.inputModes.claim(event.OperatorID, id); !ok {
		return p.proofOutstanding(held)
	}
	txn, err := p.AcceptTransaction(ctx, id, event.OperatorID, event.DestinationSuffix)
	if err != nil {
		p.inputModes.release(event.OperatorID, id)
		if apierror.IsCode(err, apierror.ErrStaleState) || apierror.IsCode(err, apierror.ErrNotFound) {
			return &ActionReply{TransactionID: id, Message: replyNoLongerAvailable}, err
		}
		return nil, err
	}

	destination, err := p.RevealDestination(txn)
	if err != nil {
		logrus.WithFields(logrus.Fields{"transaction_id": id, "error": err}).Error("failed to reveal destination")
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to reveal destination", err)
	}

	return &ActionReply{
		TransactionID: id,
		Status:        model.StatusAccepted,
		Message: fmt.Sprintf("Payout %s accepted. Send %s %s via %s to %s, then upload the payment proof.",
			p.shortIDs.Short(id), txn.Amount.StringFixed(2), txn.Currency, txn.PaymentMethod, destination),
	}, nil
}

// stillAwaitingProof reports whether id is still ACCEPTED by operatorID. A slot whose
// transaction moved on is released.
func (p *Payrelay) stillAwaitingProof(ctx context.Context, id, operatorID string) bool {
	txn, err := p.datasource.GetTransaction(ctx, id)
	if err == nil && txn.Status == model.StatusAccepted && txn.OperatorID == operatorID {
		return true
	}
	if err != nil && !apierror.IsCode(err, apierror.ErrNotFound) {
		return true
	}
	p.inputModes.release(operatorID, id)
	return false
}

func (p *Payrelay) proofOutstanding(held string) (*ActionReply, error) {
	return &ActionReply{TransactionID: held, Message: fmt.Sprintf(replyProofOutstanding, p.shortIDs.Short(held))},
		apierror.NewAPIError(apierror.ErrConflict, "operator has a payout awaiting proof", nil)
}

func (p *Payrelay) handleProofUpload(ctx context.Context, event ActionEvent) (*ActionReply, error) {
	id, ok := p.inputModes.get(event.OperatorID)
	if !ok {
		return &ActionReply{Message: "There is no accepted payout waiting for a proof."},
			apierror.NewAPIError(apierror.ErrNotFound, "no transaction is awaiting proof from this operator", nil)
	}

	proof, err := p.ConfirmProof(ctx, id, event.OperatorID, event.Artifact)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrStaleState) {
			p.inputModes.release(event.OperatorID, id)
			return &ActionReply{TransactionID: id, Message: replyNoLongerAvailable}, err
		}
		return nil, err
	}
	p.inputModes.release(event.OperatorID, id)

	return &ActionReply{
		TransactionID: proof.TransactionID,
		Status:        model.StatusCompleted,
		Message:       fmt.Sprintf("Proof received, payout %s is completed.", p.shortIDs.Short(id)),
	}, nil
}
