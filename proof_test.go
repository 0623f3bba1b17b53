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
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/payrelay/database"
	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/internal/storage"
	"github.com/jerry-enebeli/payrelay/model"
)

func completedPayout(t *testing.T) (*Payrelay, string) {
	p, ds, _ := newTestPayrelay(t)
	seedOperator(t, ds, "op1", 10_000)
	created, err := p.CreateTransaction(context.Background(), newPayout(500, time.Hour))
	require.NoError(t, err)
	_, err = p.AcceptTransaction(context.Background(), created.TransactionID, "op1", "")
	require.NoError(t, err)
	_, err = p.ConfirmProof(context.Background(), created.TransactionID, "op1", pngArtifact)
	require.NoError(t, err)
	return p, created.TransactionID
}

func TestGetProofFile(t *testing.T) {
	p, id := completedPayout(t)

	rc, contentType, err := p.GetProofFile(context.Background(), id+".png")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, pngArtifact, body)
	assert.Equal(t, "image/png", contentType)
}

func TestGetProofFile_RejectsTraversal(t *testing.T) {
	p, _ := completedPayout(t)

	for _, name := range []string{"../etc/passwd", "..", "a/b.png", `a\b.png`, ""} {
		_, _, err := p.GetProofFile(context.Background(), name)
		assert.True(t, apierror.IsCode(err, apierror.ErrBadRequest), "name %q: %v", name, err)
	}
}

func TestGetProofFile_UnknownOrMismatched(t *testing.T) {
	p, id := completedPayout(t)

	_, _, err := p.GetProofFile(context.Background(), "txn_unknown.png")
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))

	// right transaction, wrong extension
	_, _, err = p.GetProofFile(context.Background(), id+".pdf")
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))
}

func TestConfirmProof_SizeLimit(t *testing.T) {
	p, ds, _ := newTestPayrelay(t)
	p.config.Storage.MaxUploadBytes = 16
	seedOperator(t, ds, "op1", 10_000)
	created, err := p.CreateTransaction(context.Background(), newPayout(500, time.Hour))
	require.NoError(t, err)
	_, err = p.AcceptTransaction(context.Background(), created.TransactionID, "op1", "")
	require.NoError(t, err)

	_, err = p.ConfirmProof(context.Background(), created.TransactionID, "op1", pngArtifact)
	assert.True(t, apierror.IsCode(err, apierror.ErrInvalidInput))
}

func TestReadArtifact(t *testing.T) {
	data, err := ReadArtifact(bytes.NewReader(make([]byte, 100)), 10)
	require.NoError(t, err)
	assert.Len(t, data, 11)

	data, err = ReadArtifact(bytes.NewReader(make([]byte, 5)), 10)
	require.NoError(t, err)
	assert.Len(t, data, 5)

	data, err = ReadArtifact(bytes.NewReader(make([]byte, 5)), 0)
	require.NoError(t, err)
	assert.Len(t, data, 5)
}

// racingDatasource runs race just before the completion lands.
type racingDatasource struct {
	*database.MemoryDatasource
	race func(ctx context.Context, proof *model.Proof)
}

func (r *racingDatasource) CompleteWithProof(ctx context.Context, proof *model.Proof, reason string) (bool, error) {
	if r.race != nil {
		r.race(ctx, proof)
	}
	return r.MemoryDatasource.CompleteWithProof(ctx, proof, reason)
}

func newRacingPayrelay(t *testing.T) (*Payrelay, *racingDatasource, string) {
	mem := database.NewMemoryDataSource()
	ds := &racingDatasource{MemoryDatasource: mem}
	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir)
	require.NoError(t, err)
	p := newPayrelay(newTestConfig(t), ds, &recordingNotifier{fail: map[string]bool{}}, store)
	t.Cleanup(p.Close)
	seedOperator(t, mem, "op1", 10_000)
	return p, ds, dir
}

func acceptedPayout(t *testing.T, p *Payrelay) string {
	created, err := p.CreateTransaction(context.Background(), newPayout(500, time.Hour))
	require.NoError(t, err)
	_, err = p.AcceptTransaction(context.Background(), created.TransactionID, "op1", "")
	require.NoError(t, err)
	return created.TransactionID
}

func TestConfirmProof_CancelledMidwayLeavesNoProof(t *testing.T) {
	p, ds, dir := newRacingPayrelay(t)
	id := acceptedPayout(t, p)
	ds.race = func(ctx context.Context, proof *model.Proof) {
		_, err := p.CancelTransaction(ctx, proof.TransactionID, "merchant cancelled")
		require.NoError(t, err)
	}

	_, err := p.ConfirmProof(context.Background(), id, "op1", pngArtifact)
	assert.True(t, apierror.IsCode(err, apierror.ErrStaleState), "got %v", err)

	_, err = ds.GetProofByTransactionID(context.Background(), id)
	assert.True(t, apierror.IsCode(err, apierror.ErrNotFound))

	status, err := p.GetTransactionStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, status.State)
	assert.Empty(t, status.Proof)

	_, err = os.Stat(filepath.Join(dir, id+".png"))
	assert.True(t, os.IsNotExist(err), "artifact should be removed, stat err: %v", err)
}

func TestConfirmProof_LosingConfirmKeepsWinnersArtifact(t *testing.T) {
	p, ds, dir := newRacingPayrelay(t)
	id := acceptedPayout(t, p)
	ds.race = func(ctx context.Context, proof *model.Proof) {
		winner := *proof
		winner.ProofID = "prf_winner"
		matched, err := ds.MemoryDatasource.CompleteWithProof(ctx, &winner, ReasonCompleted)
		require.NoError(t, err)
		require.True(t, matched)
	}

	_, err := p.ConfirmProof(context.Background(), id, "op1", pngArtifact)
	assert.True(t, apierror.IsCode(err, apierror.ErrStaleState), "got %v", err)

	recorded, err := ds.GetProofByTransactionID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "prf_winner", recorded.ProofID)
	_, err = os.Stat(filepath.Join(dir, id+".png"))
	assert.NoError(t, err)
}
