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

package rates

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/internal/request"
	"github.com/jerry-enebeli/payrelay/model"
)

// Source reports the current price of a currency pair.
type Source interface {
	Name() string
	FetchPrice(ctx context.Context, pair model.Pair) (decimal.Decimal, error)
}

// HTTPSource reads a price out of a JSON document served over HTTP. The URL may contain
// {from} and {to}; the price is found by walking PricePath, e.g. "data.0.price".
type HTTPSource struct {
	config config.RateSourceConfig
	client *http.Client
}

func NewHTTPSource(cfg config.RateSourceConfig, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: request.DefaultTimeout}
	}
	return &HTTPSource{config: cfg, client: client}
}

// SourcesFromConfig builds one HTTPSource per configured entry, sharing client.
func SourcesFromConfig(cfgs []config.RateSourceConfig, client *http.Client) []Source {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		sources = append(sources, NewHTTPSource(c, client))
	}
	return sources
}

func (s *HTTPSource) Name() string {
	return s.config.Name
}

func (s *HTTPSource) FetchPrice(ctx context.Context, pair model.Pair) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(pair), nil)
	if err != nil {
		return decimal.Zero, err
	}
	if s.config.AuthHeader != "" {
		req.Header.Set(s.config.AuthHeader, s.config.AuthValue)
	}

	var body interface{}
	if _, err := request.CallWithClient(s.client, req, &body); err != nil {
		return decimal.Zero, errors.Wrapf(err, "source %s", s.config.Name)
	}

	value := getNestedValue(body, s.config.PricePath)
	if value == nil {
		return decimal.Zero, fmt.Errorf("source %s: no value at %s", s.config.Name, s.config.PricePath)
	}
	price, err := toDecimal(value)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "source %s", s.config.Name)
	}
	return price, nil
}

func (s *HTTPSource) endpoint(pair model.Pair) string {
	return strings.NewReplacer(
		"{from}", pair.From,
		"{to}", pair.To,
		"{from_lower}", strings.ToLower(pair.From),
		"{to_lower}", strings.ToLower(pair.To),
	).Replace(s.config.URL)
}

// getNestedValue walks a dotted path through objects and arrays.
func getNestedValue(data interface{}, path string) interface{} {
	current := data
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			current = node[part]
		case []interface{}:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			current = node[i]
		default:
			return nil
		}
	}
	return current
}

func toDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(v))
	default:
		return decimal.Zero, fmt.Errorf("price has unexpected type %T", value)
	}
}
