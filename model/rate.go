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
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CombinedSource tags the consensus row of a currency pair.
const CombinedSource = "COMBINED"

// Pair is a currency pair such as USDT/RUB.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ParsePair parses "FROM/TO".
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid currency pair %q, expected FROM/TO", s)
	}
	return Pair{From: strings.ToUpper(parts[0]), To: strings.ToUpper(parts[1])}, nil
}

func (p Pair) String() string {
	return p.From + "/" + p.To
}

// RateSample is one source's quote at a point in time.
type RateSample struct {
	Source    string          `json:"source"`
	Price     decimal.Decimal `json:"price"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// ConsensusRate is a persisted rate row for a pair and source.
type ConsensusRate struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Source       string          `json:"source"`
	Rate         decimal.Decimal `json:"rate"`
	SampleCount  int             `json:"sample_count"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
