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

// Package channel delivers messages to operators through the chat-bot gateway.
package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/internal/request"
)

// MaxActionDataBytes is the gateway's limit on an action button payload.
const MaxActionDataBytes = 64

// Action is an interactive button attached to a message.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type Message struct {
	Text    string   `json:"text"`
	Actions []Action `json:"actions,omitempty"`
}

func (m Message) validate() error {
	for _, a := range m.Actions {
		if len(a.Data) > MaxActionDataBytes {
			return fmt.Errorf("action %q payload is %d bytes, limit is %d", a.Label, len(a.Data), MaxActionDataBytes)
		}
	}
	return nil
}

// Notifier sends a message to one operator chat. A nil error means the message was delivered.
type Notifier interface {
	Notify(ctx context.Context, chatID string, msg Message) error
}

// HTTPGateway posts messages to a bot gateway at <url>/messages.
type HTTPGateway struct {
	url         string
	token       string
	client      *http.Client
	maxAttempts int
}

func NewHTTPGateway(cfg config.OperatorChannelConfig) *HTTPGateway {
	return &HTTPGateway{
		url:         strings.TrimRight(cfg.Url, "/"),
		token:       cfg.Token,
		client:      &http.Client{Timeout: cfg.Timeout()},
		maxAttempts: cfg.MaxAttempts,
	}
}

type outgoingMessage struct {
	ChatID string `json:"chat_id"`
	Message
}

func (g *HTTPGateway) Notify(ctx context.Context, chatID string, msg Message) error {
	if g.url == "" {
		return errors.New("operator channel url is not configured")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	headers := map[string]string{}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}

	attempts := g.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(backoff.WithMaxRetries(newBackoff(), uint64(attempts-1)), ctx)

	return backoff.Retry(func() error {
		_, err := request.PostJSON(ctx, g.client, g.url+"/messages", outgoingMessage{ChatID: chatID, Message: msg}, headers, nil)
		if err == nil {
			return nil
		}
		var statusErr *request.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < http.StatusInternalServerError && statusErr.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(err)
		}
		logrus.WithFields(logrus.Fields{"chat_id": chatID, "error": err}).Debug("operator notification attempt failed")
		return err
	}, b)
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
