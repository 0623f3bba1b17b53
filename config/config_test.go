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

package config

import (
	"encoding/json"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		Redis: RedisConfig{Dns: "localhost:6379"},
	}
	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Dns: "postgres://localhost:5432"},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "redis DNS is required" {
		t.Errorf("Expected redis DNS required error, got %v", err)
	}

	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource:  DataSourceConfig{Dns: "some-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
	}
	if err := cnf.validateAndAddDefaults(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cnf.Server.Port != DEFAULT_PORT {
		t.Errorf("Expected default port %s, got %s", DEFAULT_PORT, cnf.Server.Port)
	}
	if cnf.Transaction.ShortIDLength != 8 {
		t.Errorf("Expected short id length 8, got %d", cnf.Transaction.ShortIDLength)
	}
	if len(cnf.Transaction.PaymentMethods) == 0 {
		t.Error("Expected default payment methods")
	}
	if cnf.Queue.ExpiryQueue != "transaction_expiry" {
		t.Errorf("Expected default expiry queue, got %s", cnf.Queue.ExpiryQueue)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil || *cnf.RateLimit.CleanupIntervalSec != 10800 {
		t.Error("Expected default rate limit cleanup interval")
	}
}

func TestRateCacheTTLShorterThanInterval(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Rates:      RatesConfig{IntervalSeconds: 30, CacheTTLSeconds: 45},
	}
	if err := cnf.validateAndAddDefaults(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cnf.Rates.CacheTTL() >= cnf.Rates.Interval() {
		t.Errorf("Expected cache ttl below interval, got ttl=%v interval=%v", cnf.Rates.CacheTTL(), cnf.Rates.Interval())
	}
	if cnf.Rates.CacheTTL() != 15*time.Second {
		t.Errorf("Expected 15s cache ttl, got %v", cnf.Rates.CacheTTL())
	}
}

func TestInvalidTransactionBounds(t *testing.T) {
	cnf := Configuration{
		DataSource:  DataSourceConfig{Dns: "some-dns"},
		Redis:       RedisConfig{Dns: "localhost:6379"},
		Transaction: TransactionConfig{MinAmount: 500, MaxAmount: 100},
	}
	if err := cnf.validateAndAddDefaults(); err == nil {
		t.Error("Expected error for min_amount above max_amount")
	}

	cnf.Transaction = TransactionConfig{DestinationEncryptionKey: "short"}
	if err := cnf.validateAndAddDefaults(); err == nil {
		t.Error("Expected error for invalid encryption key length")
	}
}

func TestRateSourceValidation(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: "some-dns"},
		Redis:      RedisConfig{Dns: "localhost:6379"},
		Rates:      RatesConfig{Sources: []RateSourceConfig{{Name: "binance"}}},
	}
	if err := cnf.validateAndAddDefaults(); err == nil {
		t.Error("Expected error for rate source without url")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "payrelay.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Redis:       RedisConfig{Dns: "temp-redis"},
		Transaction: TransactionConfig{PaymentMethods: []string{" Sberbank "}},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	os.Setenv("PAYRELAY_PROJECT_NAME", "Env Project")
	defer os.Unsetenv("PAYRELAY_PROJECT_NAME")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected DataSource.Dns to be 'temp-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
	if loadedConfig.Transaction.PaymentMethods[0] != "sberbank" {
		t.Errorf("Expected normalized payment method, got '%s'", loadedConfig.Transaction.PaymentMethods[0])
	}
}

func TestInitConfigFromEnvOnly(t *testing.T) {
	os.Setenv("PAYRELAY_DATA_SOURCE_DNS", "postgres://env")
	os.Setenv("PAYRELAY_REDIS_DNS", "localhost:6379")
	os.Setenv("PAYRELAY_TRANSACTION_PAYMENT_METHODS", "sberbank,tinkoff")
	defer func() {
		os.Unsetenv("PAYRELAY_DATA_SOURCE_DNS")
		os.Unsetenv("PAYRELAY_REDIS_DNS")
		os.Unsetenv("PAYRELAY_TRANSACTION_PAYMENT_METHODS")
	}()

	if err := InitConfig("does-not-exist.json"); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	cnf, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if cnf.DataSource.Dns != "postgres://env" {
		t.Errorf("Expected env data source, got %s", cnf.DataSource.Dns)
	}
	if len(cnf.Transaction.PaymentMethods) != 2 {
		t.Errorf("Expected 2 payment methods, got %v", cnf.Transaction.PaymentMethods)
	}
}

func TestFetchWithoutConfig(t *testing.T) {
	ConfigStore = atomic.Value{}
	if _, err := Fetch(); err == nil {
		t.Error("Expected error when config is not loaded")
	}
}
