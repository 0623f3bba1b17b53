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
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"
)

const (
	DEFAULT_PORT = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"PAYRELAY_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"PAYRELAY_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"PAYRELAY_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"PAYRELAY_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"PAYRELAY_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"PAYRELAY_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PAYRELAY_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"PAYRELAY_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"PAYRELAY_REDIS_SKIP_TLS_VERIFY"`
}

type TypeSenseConfig struct {
	Dns string `json:"dns" envconfig:"PAYRELAY_TYPESENSE_DNS"`
}

type QueueConfig struct {
	ExpiryQueue     string `json:"expiry_queue" envconfig:"PAYRELAY_QUEUE_EXPIRY"`
	CallbackQueue   string `json:"callback_queue" envconfig:"PAYRELAY_QUEUE_CALLBACK"`
	IndexQueue      string `json:"index_queue" envconfig:"PAYRELAY_QUEUE_INDEX"`
	Concurrency     int    `json:"concurrency" envconfig:"PAYRELAY_QUEUE_CONCURRENCY"`
	MonitoringPort  string `json:"monitoring_port" envconfig:"PAYRELAY_QUEUE_MONITORING_PORT"`
	DurableSchedule bool   `json:"durable_schedule" envconfig:"PAYRELAY_QUEUE_DURABLE_SCHEDULE"`
}

type TransactionConfig struct {
	MinAmount                float64  `json:"min_amount" envconfig:"PAYRELAY_TRANSACTION_MIN_AMOUNT"`
	MaxAmount                float64  `json:"max_amount" envconfig:"PAYRELAY_TRANSACTION_MAX_AMOUNT"`
	DefaultCurrency          string   `json:"default_currency" envconfig:"PAYRELAY_TRANSACTION_DEFAULT_CURRENCY"`
	PaymentMethods           []string `json:"payment_methods" envconfig:"PAYRELAY_TRANSACTION_PAYMENT_METHODS"`
	ShortIDLength            int      `json:"short_id_length" envconfig:"PAYRELAY_TRANSACTION_SHORT_ID_LENGTH"`
	ShortIDTTLSeconds        int      `json:"short_id_ttl_seconds" envconfig:"PAYRELAY_TRANSACTION_SHORT_ID_TTL_SECONDS"`
	ShortIDCacheSize         int      `json:"short_id_cache_size" envconfig:"PAYRELAY_TRANSACTION_SHORT_ID_CACHE_SIZE"`
	CallbackTimeoutSeconds   int      `json:"callback_timeout_seconds" envconfig:"PAYRELAY_TRANSACTION_CALLBACK_TIMEOUT_SECONDS"`
	SweepIntervalSeconds     int      `json:"sweep_interval_seconds" envconfig:"PAYRELAY_TRANSACTION_SWEEP_INTERVAL_SECONDS"`
	SweepBatchSize           int      `json:"sweep_batch_size" envconfig:"PAYRELAY_TRANSACTION_SWEEP_BATCH_SIZE"`
	MaxWorkers               int      `json:"max_workers" envconfig:"PAYRELAY_TRANSACTION_MAX_WORKERS"`
	DestinationEncryptionKey string   `json:"destination_encryption_key" envconfig:"PAYRELAY_TRANSACTION_DESTINATION_ENCRYPTION_KEY"`
}

// RateSourceConfig describes one HTTP price source. URL may contain {from} and {to}.
type RateSourceConfig struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	PricePath  string `json:"price_path"`
	AuthHeader string `json:"auth_header"`
	AuthValue  string `json:"auth_value"`
}

type RatesConfig struct {
	Enabled              bool               `json:"enabled" envconfig:"PAYRELAY_RATES_ENABLED"`
	IntervalSeconds      int                `json:"interval_seconds" envconfig:"PAYRELAY_RATES_INTERVAL_SECONDS"`
	CacheTTLSeconds      int                `json:"cache_ttl_seconds" envconfig:"PAYRELAY_RATES_CACHE_TTL_SECONDS"`
	SourceTimeoutSeconds int                `json:"source_timeout_seconds" envconfig:"PAYRELAY_RATES_SOURCE_TIMEOUT_SECONDS"`
	Pairs                []string           `json:"pairs" envconfig:"PAYRELAY_RATES_PAIRS"`
	Sources              []RateSourceConfig `json:"sources" ignored:"true"`
}

type StorageConfig struct {
	Driver             string `json:"driver" envconfig:"PAYRELAY_STORAGE_DRIVER"`
	LocalDir           string `json:"local_dir" envconfig:"PAYRELAY_STORAGE_LOCAL_DIR"`
	S3Endpoint         string `json:"s3_endpoint" envconfig:"PAYRELAY_STORAGE_S3_ENDPOINT"`
	S3BucketName       string `json:"s3_bucket_name" envconfig:"PAYRELAY_STORAGE_S3_BUCKET"`
	S3Region           string `json:"s3_region" envconfig:"PAYRELAY_STORAGE_S3_REGION"`
	AwsAccessKeyId     string `json:"aws_access_key_id" envconfig:"PAYRELAY_STORAGE_AWS_ACCESS_KEY_ID"`
	AwsSecretAccessKey string `json:"aws_secret_access_key" envconfig:"PAYRELAY_STORAGE_AWS_SECRET_ACCESS_KEY"`
	MaxUploadBytes     int64  `json:"max_upload_bytes" envconfig:"PAYRELAY_STORAGE_MAX_UPLOAD_BYTES"`
}

// OperatorChannelConfig points at the chat-bot gateway used to reach operators.
type OperatorChannelConfig struct {
	Url            string `json:"url" envconfig:"PAYRELAY_OPERATOR_CHANNEL_URL"`
	Token          string `json:"token" envconfig:"PAYRELAY_OPERATOR_CHANNEL_TOKEN"`
	TimeoutSeconds int    `json:"timeout_seconds" envconfig:"PAYRELAY_OPERATOR_CHANNEL_TIMEOUT_SECONDS"`
	MaxAttempts    int    `json:"max_attempts" envconfig:"PAYRELAY_OPERATOR_CHANNEL_MAX_ATTEMPTS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PAYRELAY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PAYRELAY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PAYRELAY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PAYRELAY_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName         string                `json:"project_name" envconfig:"PAYRELAY_PROJECT_NAME"`
	Server              ServerConfig          `json:"server"`
	DataSource          DataSourceConfig      `json:"data_source"`
	Redis               RedisConfig           `json:"redis"`
	TypeSense           TypeSenseConfig       `json:"typesense"`
	TypeSenseKey        string                `json:"type_sense_key" envconfig:"PAYRELAY_TYPESENSE_KEY"`
	Queue               QueueConfig           `json:"queue"`
	Transaction         TransactionConfig     `json:"transaction"`
	Rates               RatesConfig           `json:"rates"`
	Storage             StorageConfig         `json:"storage"`
	OperatorChannel     OperatorChannelConfig `json:"operator_channel"`
	Notification        Notification          `json:"notification"`
	RateLimit           RateLimitConfig       `json:"rate_limit"`
	EnableTelemetry     bool                  `json:"enable_telemetry" envconfig:"PAYRELAY_ENABLE_TELEMETRY"`
	EnableObservability bool                  `json:"enable_observability" envconfig:"PAYRELAY_ENABLE_OBSERVABILITY"`
}

// Second-based settings as durations.

func (t TransactionConfig) ShortIDTTL() time.Duration {
	return time.Duration(t.ShortIDTTLSeconds) * time.Second
}

func (t TransactionConfig) CallbackTimeout() time.Duration {
	return time.Duration(t.CallbackTimeoutSeconds) * time.Second
}

func (t TransactionConfig) SweepInterval() time.Duration {
	return time.Duration(t.SweepIntervalSeconds) * time.Second
}

func (r RatesConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

func (r RatesConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

func (r RatesConfig) SourceTimeout() time.Duration {
	return time.Duration(r.SourceTimeoutSeconds) * time.Second
}

func (o OperatorChannelConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("payrelay", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called payrelay.json with your config ❌")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Payrelay Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	cnf.setQueueDefaults()
	if err := cnf.setTransactionDefaults(); err != nil {
		return err
	}
	if err := cnf.setRateDefaults(); err != nil {
		return err
	}
	cnf.setStorageDefaults()

	if cnf.OperatorChannel.TimeoutSeconds <= 0 {
		cnf.OperatorChannel.TimeoutSeconds = 10
	}
	if cnf.OperatorChannel.MaxAttempts <= 0 {
		cnf.OperatorChannel.MaxAttempts = 3
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		cnf.RateLimit.Burst = ptr.Int(2 * int(*cnf.RateLimit.RequestsPerSecond))
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", *cnf.RateLimit.Burst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		cnf.RateLimit.RequestsPerSecond = ptr.Float64(float64(*cnf.RateLimit.Burst) / 2)
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", *cnf.RateLimit.RequestsPerSecond)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		cnf.RateLimit.CleanupIntervalSec = ptr.Int(10800) // 3 hours
	}

	return nil
}

func (cnf *Configuration) setQueueDefaults() {
	if cnf.Queue.ExpiryQueue == "" {
		cnf.Queue.ExpiryQueue = "transaction_expiry"
	}
	if cnf.Queue.CallbackQueue == "" {
		cnf.Queue.CallbackQueue = "transaction_callbacks"
	}
	if cnf.Queue.IndexQueue == "" {
		cnf.Queue.IndexQueue = "index_transactions"
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 10
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5005"
	}
}

func (cnf *Configuration) setTransactionDefaults() error {
	t := &cnf.Transaction
	if t.MinAmount <= 0 {
		t.MinAmount = 1
	}
	if t.MaxAmount <= 0 {
		t.MaxAmount = 1000000
	}
	if t.MinAmount > t.MaxAmount {
		return errors.New("transaction min_amount must not exceed max_amount")
	}
	if t.DefaultCurrency == "" {
		t.DefaultCurrency = "RUB"
	}
	if len(t.PaymentMethods) == 0 {
		t.PaymentMethods = []string{"sberbank", "tinkoff", "sbp", "card"}
	}
	for i, m := range t.PaymentMethods {
		t.PaymentMethods[i] = strings.ToLower(strings.TrimSpace(m))
	}
	if t.ShortIDLength <= 0 {
		t.ShortIDLength = 8
	}
	if t.ShortIDTTLSeconds <= 0 {
		t.ShortIDTTLSeconds = 24 * 60 * 60
	}
	if t.ShortIDCacheSize <= 0 {
		t.ShortIDCacheSize = 100000
	}
	if t.CallbackTimeoutSeconds <= 0 {
		t.CallbackTimeoutSeconds = 10
	}
	if t.SweepIntervalSeconds <= 0 {
		t.SweepIntervalSeconds = 60
	}
	if t.SweepBatchSize <= 0 {
		t.SweepBatchSize = 500
	}
	if t.MaxWorkers <= 0 {
		t.MaxWorkers = 10
	}
	if k := len(t.DestinationEncryptionKey); k != 0 && k != 16 && k != 24 && k != 32 {
		return errors.New("destination encryption key must be 16, 24 or 32 bytes")
	}
	return nil
}

func (cnf *Configuration) setRateDefaults() error {
	r := &cnf.Rates
	if r.IntervalSeconds <= 0 {
		r.IntervalSeconds = 60
	}
	if r.SourceTimeoutSeconds <= 0 {
		r.SourceTimeoutSeconds = 10
	}
	// the cache has to go stale before the next poll writes a fresh value
	if r.CacheTTLSeconds <= 0 || r.CacheTTLSeconds >= r.IntervalSeconds {
		r.CacheTTLSeconds = r.IntervalSeconds / 2
		if r.CacheTTLSeconds == 0 {
			r.CacheTTLSeconds = 1
		}
	}
	if len(r.Pairs) == 0 {
		r.Pairs = []string{"USDT/RUB"}
	}
	for _, s := range r.Sources {
		if s.Name == "" || s.URL == "" || s.PricePath == "" {
			return errors.New("every rate source needs a name, url and price_path")
		}
	}
	return nil
}

func (cnf *Configuration) setStorageDefaults() {
	if cnf.Storage.Driver == "" {
		cnf.Storage.Driver = "local"
	}
	if cnf.Storage.LocalDir == "" {
		cnf.Storage.LocalDir = "proofs"
	}
	if cnf.Storage.MaxUploadBytes <= 0 {
		cnf.Storage.MaxUploadBytes = 10 << 20
	}
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

// MockConfigWithDefaults stores mockConfig after filling in the defaults file loading would apply.
func MockConfigWithDefaults(mockConfig *Configuration) error {
	if err := mockConfig.validateAndAddDefaults(); err != nil {
		return err
	}
	ConfigStore.Store(mockConfig)
	return nil
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
