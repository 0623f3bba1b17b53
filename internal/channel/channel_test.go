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

package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/payrelay/config"
)

const gatewayURL = "http://bot-gateway.local"

func newTestGateway(attempts int) *HTTPGateway {
	return NewHTTPGateway(config.OperatorChannelConfig{
		Url:            gatewayURL + "/",
		Token:          "secret",
		TimeoutSeconds: 1,
		MaxAttempts:    attempts,
	})
}

func TestNotifyDelivers(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var got outgoingMessage
	httpmock.RegisterResponder(http.MethodPost, gatewayURL+"/messages", func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(req.Body).Decode(&got))
		return httpmock.NewStringResponse(200, `{"ok":true}`), nil
	})

	msg := Message{Text: "New payout 500 RUB", Actions: []Action{{Label: "Accept", Data: "accept:a1b2c3d4:1234"}}}
	require.NoError(t, newTestGateway(3).Notify(context.Background(), "42", msg))

	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "accept:a1b2c3d4:1234", got.Actions[0].Data)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNotifyRetriesServerErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, gatewayURL+"/messages", httpmock.NewStringResponder(503, "unavailable"))

	err := newTestGateway(3).Notify(context.Background(), "42", Message{Text: "hi"})
	assert.Error(t, err)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestNotifyDoesNotRetryClientErrors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, gatewayURL+"/messages", httpmock.NewStringResponder(400, "chat not found"))

	err := newTestGateway(3).Notify(context.Background(), "42", Message{Text: "hi"})
	assert.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNotifyRejectsOversizedActions(t *testing.T) {
	msg := Message{Text: "x", Actions: []Action{{Label: "Accept", Data: strings.Repeat("a", MaxActionDataBytes+1)}}}
	err := newTestGateway(1).Notify(context.Background(), "42", msg)
	assert.Error(t, err)
}

func TestNotifyWithoutURL(t *testing.T) {
	g := NewHTTPGateway(config.OperatorChannelConfig{})
	assert.Error(t, g.Notify(context.Background(), "42", Message{Text: "x"}))
}
