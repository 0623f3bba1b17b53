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
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/internal/files"
	"github.com/jerry-enebeli/payrelay/internal/storage"
	"github.com/jerry-enebeli/payrelay/model"
)

// ConfirmProof stores the operator's proof artifact and completes the transaction. Only
// the assigned operator may confirm and only while the transaction is ACCEPTED.
func (p *Payrelay) ConfirmProof(ctx context.Context, id, operatorID string, artifact []byte) (*model.Proof, error) {
	ctx, span := tracer.Start(ctx, "Confirming proof")
	defer span.End()

	txn, err := p.datasource.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if txn.Status != model.StatusAccepted {
		return nil, staleState(id)
	}
	if txn.OperatorID != operatorID {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized, "transaction is assigned to another operator", nil)
	}

	if limit := p.config.Storage.MaxUploadBytes; limit > 0 && int64(len(artifact)) > limit {
		return nil, invalidInput(fmt.Sprintf("proof is larger than %d bytes", limit))
	}
	ext, contentType, err := files.ProofExtension(artifact)
	if err != nil {
		return nil, invalidInput(err.Error())
	}

	name := id + ext
	path, err := p.store.Save(ctx, name, contentType, artifact)
	if err != nil {
		span.RecordError(err)
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "failed to store proof", err)
	}

	proof := &model.Proof{
		ProofID:       model.GenerateUUIDWithSuffix("prf"),
		TransactionID: id,
		OperatorID:    operatorID,
		Path:          path,
		ContentType:   contentType,
		CreatedAt:     time.Now().UTC(),
	}
	matched, err := p.datasource.CompleteWithProof(ctx, proof, ReasonCompleted)
	if err != nil || !matched {
		p.discardArtifact(ctx, id, path)
		if err != nil && !apierror.IsCode(err, apierror.ErrConflict) {
			return nil, err
		}
		return nil, staleState(id)
	}

	p.afterTerminal(txn, model.StatusCompleted, ReasonCompleted)
	logrus.WithFields(logrus.Fields{"transaction_id": id, "operator_id": operatorID}).Info("transaction completed")
	return proof, nil
}

// discardArtifact removes an artifact whose completion did not land. A concurrent
// confirm that won writes to the same name, so the file stays when it is recorded.
func (p *Payrelay) discardArtifact(ctx context.Context, id, path string) {
	if recorded, err := p.datasource.GetProofByTransactionID(ctx, id); err == nil && recorded.Path == path {
		return
	}
	if err := p.store.Delete(ctx, path); err != nil {
		logrus.WithFields(logrus.Fields{"transaction_id": id, "path": path, "error": err}).Warn("orphaned proof artifact could not be removed")
	}
}

// GetProofFile serves a stored proof by file name. The name must be
// "<transaction_id>.<ext>" and must match the recorded proof of that transaction, so only
// recorded artifacts are ever read from storage.
func (p *Payrelay) GetProofFile(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	if err := storage.ValidateName(filename); err != nil {
		return nil, "", apierror.NewAPIError(apierror.ErrBadRequest, "invalid proof file name", nil)
	}
	ext := filepath.Ext(filename)
	transactionID := strings.TrimSuffix(filename, ext)
	if ext == "" || transactionID == "" {
		return nil, "", apierror.NewAPIError(apierror.ErrBadRequest, "invalid proof file name", nil)
	}

	proof, err := p.datasource.GetProofByTransactionID(ctx, transactionID)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrNotFound) {
			return nil, "", apierror.NewAPIError(apierror.ErrNotFound, "proof not found", nil)
		}
		return nil, "", err
	}
	if proof.Path != filename {
		return nil, "", apierror.NewAPIError(apierror.ErrNotFound, "proof not found", nil)
	}

	rc, err := p.store.Open(ctx, filename)
	if err != nil {
		return nil, "", apierror.NewAPIError(apierror.ErrNotFound, "proof not found", err)
	}

	contentType := proof.ContentType
	if contentType == "" {
		contentType = files.DetectByExtension(filename)
	}
	return rc, contentType, nil
}

// MaxUploadBytes is the configured proof size limit, 0 for none.
func (p *Payrelay) MaxUploadBytes() int64 {
	return p.config.Storage.MaxUploadBytes
}

// ReadArtifact reads at most limit+1 bytes so oversized uploads are detected without
// buffering them whole.
func ReadArtifact(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, limit+1); err != nil && err != io.EOF {
		return nil, err
	}
	return buf.Bytes(), nil
}
