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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
)

// UpsertConsensusRate overwrites the row keyed by (from, to, source).
func (d Datasource) UpsertConsensusRate(ctx context.Context, r *model.ConsensusRate) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO payrelay.consensus_rates(from_currency, to_currency, source, rate, sample_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (from_currency, to_currency, source)
		DO UPDATE SET rate = EXCLUDED.rate, sample_count = EXCLUDED.sample_count, updated_at = EXCLUDED.updated_at`,
		r.FromCurrency, r.ToCurrency, r.Source, r.Rate, r.SampleCount, r.UpdatedAt,
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert consensus rate", err)
	}
	return nil
}

// GetLatestRate returns the COMBINED row for pair.
func (d Datasource) GetLatestRate(ctx context.Context, pair model.Pair) (*model.ConsensusRate, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT from_currency, to_currency, source, rate, sample_count, updated_at
		FROM payrelay.consensus_rates
		WHERE from_currency = $1 AND to_currency = $2 AND source = $3`,
		pair.From, pair.To, model.CombinedSource)

	r := &model.ConsensusRate{}
	err := row.Scan(&r.FromCurrency, &r.ToCurrency, &r.Source, &r.Rate, &r.SampleCount, &r.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("No rate recorded for %s", pair), nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve rate", err)
	}
	return r, nil
}
