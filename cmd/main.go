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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/payrelay"
	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/database"
	"github.com/jerry-enebeli/payrelay/internal/channel"
	"github.com/jerry-enebeli/payrelay/internal/notification"
	"github.com/jerry-enebeli/payrelay/internal/storage"
)

// Payrelay represents the CLI application.
type Payrelay struct {
	cmd *cobra.Command
}

// payrelayInstance holds the engine and the configuration it was built from.
type payrelayInstance struct {
	payrelay *payrelay.Payrelay
	cnf      *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs.
// Migrations only need the configuration, so the engine is not built for them.
func preRun(app *payrelayInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if !needsEngine(cmd) {
			return nil
		}

		p, err := setupPayrelay(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.payrelay = p
		return nil
	}
}

func needsEngine(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "migrate" || c.Name() == "config" {
			return false
		}
	}
	return true
}

// setupPayrelay connects the datasource, the proof store and the operator channel.
func setupPayrelay(cfg *config.Configuration) (*payrelay.Payrelay, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("error creating proof store: %v", err)
	}

	p, err := payrelay.NewPayrelay(db, channel.NewHTTPGateway(cfg.OperatorChannel), store)
	if err != nil {
		return nil, fmt.Errorf("error creating payrelay: %v", err)
	}
	return p, nil
}

func NewCLI() *Payrelay {
	var configFile string
	p := &payrelayInstance{}

	var rootCmd = &cobra.Command{
		Use:   "payrelay",
		Short: "Payout relay between merchants and payout operators",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./payrelay.json", "Configuration file for payrelay")
	rootCmd.PersistentPreRunE = preRun(p, &configFile)

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands(p))
	rootCmd.AddCommand(migrateCommands(p))
	rootCmd.AddCommand(configCommands(p))

	return &Payrelay{cmd: rootCmd}
}

func (w Payrelay) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
