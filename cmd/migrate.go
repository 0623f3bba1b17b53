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

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/jerry-enebeli/payrelay"
	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/database"
)

var migrations = migrate.EmbedFileSystemMigrationSource{
	FileSystem: payrelay.SQLFiles,
	Root:       "sql",
}

func migrateCommands(b *payrelayInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run payrelay schema migrations",
	}

	cmd.AddCommand(migrateDirectionCommand(b, "up", migrate.Up))
	cmd.AddCommand(migrateDirectionCommand(b, "down", migrate.Down))

	return cmd
}

func migrateDirectionCommand(b *payrelayInstance, use string, direction migrate.MigrationDirection) *cobra.Command {
	return &cobra.Command{
		Use: use,
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(b.cnf, direction)
			if err != nil {
				log.Printf("Error migrating %s: %v", use, err)
				return
			}
			if direction == migrate.Up {
				fmt.Printf("Applied %d migrations!\n", n)
			} else {
				fmt.Printf("Rolled back %d migrations!\n", n)
			}
		},
	}
}

func runMigrations(cnf *config.Configuration, direction migrate.MigrationDirection) (int, error) {
	db, err := database.ConnectDB(cnf.DataSource.Dns)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	migrate.SetSchema("payrelay")
	return migrate.Exec(db, "postgres", migrations, direction)
}
