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

package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/payrelay/config"
)

const redacted = "********"

// redactConfig blanks out credentials before the configuration is printed.
func redactConfig(cfg config.Configuration) config.Configuration {
	mask := func(s *string) {
		if *s != "" {
			*s = redacted
		}
	}
	mask(&cfg.Server.SecretKey)
	mask(&cfg.TypeSenseKey)
	mask(&cfg.OperatorChannel.Token)
	mask(&cfg.Storage.AwsSecretAccessKey)
	mask(&cfg.Transaction.DestinationEncryptionKey)
	mask(&cfg.DataSource.Dns)
	mask(&cfg.Redis.Dns)
	mask(&cfg.Notification.Slack.WebhookUrl)

	sources := make([]config.RateSourceConfig, len(cfg.Rates.Sources))
	copy(sources, cfg.Rates.Sources)
	for i := range sources {
		mask(&sources[i].AuthValue)
	}
	cfg.Rates.Sources = sources
	return cfg
}

func configCommands(b *payrelayInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "config outputs your instance's computed configuration",
		Run: func(cmd *cobra.Command, args []string) {
			data, err := json.MarshalIndent(redactConfig(*b.cnf), "", "    ")
			if err != nil {
				log.Fatalf("Error printing config: %v\n", err)
			}

			fmt.Println(string(data))
		},
	}
	return cmd
}
