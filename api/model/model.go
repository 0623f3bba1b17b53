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
	"errors"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// maxSuggestionDistance bounds how far a typo may be from a known method to be suggested.
const maxSuggestionDistance = 3

// SuggestMethod returns the closest supported method to method, or "" when none is close.
func SuggestMethod(method string, supported []string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	best, bestDistance := "", maxSuggestionDistance+1
	for _, candidate := range supported {
		distance := levenshtein.DistanceForStrings([]rune(method), []rune(candidate), levenshtein.DefaultOptions)
		if distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}
	return best
}

func paymentMethodRule(supported []string) validation.RuleFunc {
	return func(value interface{}) error {
		method, _ := value.(string)
		method = strings.ToLower(strings.TrimSpace(method))
		for _, m := range supported {
			if m == method {
				return nil
			}
		}
		if suggestion := SuggestMethod(method, supported); suggestion != "" {
			return fmt.Errorf("unsupported payment method %q, did you mean %q?", method, suggestion)
		}
		return fmt.Errorf("unsupported payment method %q, supported methods are %s", method, strings.Join(supported, ", "))
	}
}

func callbackURLRule(value interface{}) error {
	raw, _ := value.(string)
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an absolute http or https URL")
	}
	return nil
}

func (t *CreateTransaction) ValidateCreateTransaction(supportedMethods []string) error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Destination, validation.Required),
		validation.Field(&t.Amount, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&t.PaymentMethod, validation.Required, validation.By(paymentMethodRule(supportedMethods))),
		validation.Field(&t.AvailableFrom, validation.Required, validation.Min(int64(1))),
		validation.Field(&t.ExpiresAt, validation.Required, validation.By(func(value interface{}) error {
			if expires, _ := value.(int64); expires <= t.AvailableFrom {
				return errors.New("must be after available_from")
			}
			return nil
		})),
		validation.Field(&t.Currency, validation.When(t.Currency != "", validation.Length(3, 5))),
		validation.Field(&t.CallbackURL, validation.When(t.CallbackURL != "", validation.By(callbackURLRule))),
	)
}

func (o *CreateOperator) ValidateCreateOperator() error {
	return validation.ValidateStruct(o,
		validation.Field(&o.Name, validation.Required),
		validation.Field(&o.ChatID, validation.Required),
		validation.Field(&o.Balance, validation.Min(0.0)),
	)
}

func (u *UpdateOperatorBalance) ValidateUpdateOperatorBalance() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Balance, validation.NotNil, validation.Min(0.0)),
	)
}

func (a *OperatorAction) ValidateOperatorAction() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Kind, validation.Required, validation.In("accept")),
		validation.Field(&a.OperatorID, validation.Required),
		validation.Field(&a.ShortID, validation.Required),
	)
}
