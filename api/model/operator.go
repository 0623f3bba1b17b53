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
	"github.com/shopspring/decimal"

	"github.com/jerry-enebeli/payrelay/model"
)

type CreateOperator struct {
	Name       string  `json:"name"`
	ChatID     string  `json:"chat_id"`
	Balance    float64 `json:"balance"`
	IsOperator *bool   `json:"is_operator"`
}

type UpdateOperatorBalance struct {
	Balance *float64 `json:"balance"`
}

type OperatorAction struct {
	Kind              string `json:"kind"`
	OperatorID        string `json:"operator_id"`
	ShortID           string `json:"short_id"`
	DestinationSuffix string `json:"destination_suffix"`
}

func (o *CreateOperator) ToOperator() *model.Operator {
	isOperator := true
	if o.IsOperator != nil {
		isOperator = *o.IsOperator
	}
	return &model.Operator{
		Name:       o.Name,
		ChatID:     o.ChatID,
		Balance:    decimal.NewFromFloat(o.Balance),
		IsOperator: isOperator,
	}
}
