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

package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/internal/request"
)

const slackTimeout = 10 * time.Second

func slackPayload(project string, err error) map[string]interface{} {
	field := func(label, value string) map[string]interface{} {
		return map[string]interface{}{
			"type": "section",
			"fields": []map[string]string{
				{"type": "mrkdwn", "text": fmt.Sprintf("*%s:*\n%s", label, value)},
			},
		}
	}
	return map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]interface{}{
					"type":  "plain_text",
					"text":  fmt.Sprintf("Error From %s 🐞", project),
					"emoji": true,
				},
			},
			field("Error", err.Error()),
			field("Time", time.Now().Format(time.RFC822)),
		},
	}
}

// SlackNotification posts err to the configured Slack webhook.
func SlackNotification(ctx context.Context, webhookURL, project string, err error) error {
	client := &http.Client{Timeout: slackTimeout}
	_, postErr := request.PostJSON(ctx, client, webhookURL, slackPayload(project, err), nil, nil)
	return postErr
}

// NotifyError logs systemError and forwards it to Slack when a webhook is configured.
// It never blocks the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			logrus.Warn(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl == "" {
			return
		}
		if err := SlackNotification(context.Background(), conf.Notification.Slack.WebhookUrl, conf.ProjectName, systemError); err != nil {
			logrus.WithError(err).Warn("failed to send slack notification")
		}
	}(systemError)
}
