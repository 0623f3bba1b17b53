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
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("txn")
	assert.True(t, strings.HasPrefix(id, "txn_"))
	assert.Len(t, StripModulePrefix(id), 36)
}

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
		coarse   string
	}{
		{StatusPending, false, CoarseInProgress},
		{StatusAccepted, false, CoarseInProgress},
		{StatusCompleted, true, CoarseCompleted},
		{StatusFailed, true, CoarseFailed},
		{StatusExpired, true, CoarseFailed},
		{StatusCancelled, true, CoarseFailed},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.coarse, tt.status.Coarse())
		})
	}
}

func TestOperatorEligibilityAndWatermark(t *testing.T) {
	op := &Operator{IsOperator: true, Balance: decimal.NewFromInt(100), MaxBalance: decimal.NewFromInt(150)}
	assert.True(t, op.CanFulfil(decimal.NewFromInt(100)))
	assert.False(t, op.CanFulfil(decimal.NewFromInt(101)))

	op.ApplyBalance(decimal.NewFromInt(120))
	assert.True(t, op.MaxBalance.Equal(decimal.NewFromInt(150)))
	op.ApplyBalance(decimal.NewFromInt(200))
	assert.True(t, op.MaxBalance.Equal(decimal.NewFromInt(200)))

	op.IsOperator = false
	assert.False(t, op.CanFulfil(decimal.NewFromInt(1)))
}

func TestParsePair(t *testing.T) {
	p, err := ParsePair("usdt/rub")
	assert.NoError(t, err)
	assert.Equal(t, Pair{From: "USDT", To: "RUB"}, p)
	assert.Equal(t, "USDT/RUB", p.String())

	_, err = ParsePair("USDTRUB")
	assert.Error(t, err)
}
