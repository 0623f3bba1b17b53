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

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/typesense/typesense-go/typesense"
	"github.com/typesense/typesense-go/typesense/api"
)

const (
	CollectionTransactions = "transactions"
	CollectionOperators    = "operators"
)

// CollectionConfig holds configuration for a specific collection.
type CollectionConfig struct {
	Schema        *api.CollectionSchema
	IDField       string
	TimeFields    []string
	DecimalFields []string
}

var collectionConfigs map[string]CollectionConfig

func init() {
	collectionConfigs = map[string]CollectionConfig{
		CollectionTransactions: {
			Schema:        getTransactionSchema(),
			IDField:       "transaction_id",
			TimeFields:    []string{"created_at", "updated_at", "expires_at", "accepted_at"},
			DecimalFields: []string{"amount"},
		},
		CollectionOperators: {
			Schema:        getOperatorSchema(),
			IDField:       "operator_id",
			TimeFields:    []string{"created_at"},
			DecimalFields: []string{"balance", "max_balance"},
		},
	}
}

// IsCollection reports whether name is a collection this package manages.
func IsCollection(name string) bool {
	_, ok := collectionConfigs[name]
	return ok
}

// TypesenseClient wraps the Typesense client and provides methods to interact with it.
type TypesenseClient struct {
	Client *typesense.Client
}

// NewTypesenseClient initializes and returns a new Typesense client instance.
func NewTypesenseClient(apiKey string, hosts []string) *TypesenseClient {
	client := typesense.NewClient(
		typesense.WithServer(hosts[0]),
		typesense.WithAPIKey(apiKey),
		typesense.WithConnectionTimeout(5*time.Second),
		typesense.WithCircuitBreakerMaxRequests(50),
		typesense.WithCircuitBreakerInterval(2*time.Minute),
		typesense.WithCircuitBreakerTimeout(1*time.Minute),
	)
	return &TypesenseClient{Client: client}
}

// EnsureCollectionsExist creates any missing collection from its latest schema.
func (t *TypesenseClient) EnsureCollectionsExist(ctx context.Context) error {
	for name, config := range collectionConfigs {
		if _, err := t.CreateCollection(ctx, config.Schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// CreateCollection creates a collection in Typesense based on the provided schema.
// If the collection already exists, it will return without error.
func (t *TypesenseClient) CreateCollection(ctx context.Context, schema *api.CollectionSchema) (*api.CollectionResponse, error) {
	resp, err := t.Client.Collections().Create(ctx, schema)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return nil, nil
		}
		return nil, err
	}
	return resp, nil
}

// Search performs a search query on a specific collection with the provided search parameters.
func (t *TypesenseClient) Search(ctx context.Context, collection string, searchParams *api.SearchCollectionParams) (*api.SearchResult, error) {
	return t.Client.Collection(collection).Documents().Search(ctx, searchParams)
}

// IndexDocument normalizes data against the collection schema and upserts it.
func (t *TypesenseClient) IndexDocument(ctx context.Context, collection string, data map[string]interface{}) error {
	config, ok := collectionConfigs[collection]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collection)
	}

	if err := processMetadata(data); err != nil {
		return err
	}
	convertDecimals(config, data)
	ensureSchemaFields(config, data)
	normalizeTimeFields(config, data)

	return t.upsertDocument(ctx, collection, data)
}

// ToDocument flattens a model value into the generic map the index expects.
func ToDocument(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func processMetadata(data map[string]interface{}) error {
	if metaData, ok := data["meta_data"]; ok {
		if metaData == nil {
			data["meta_data"] = make(map[string]interface{})
		} else if metaDataMap, ok := metaData.(map[string]interface{}); ok {
			data["meta_data"] = metaDataMap
		} else {
			jsonString, err := json.Marshal(metaData)
			if err != nil {
				return fmt.Errorf("failed to marshal meta_data: %w", err)
			}
			data["meta_data"] = string(jsonString)
		}
	}
	return nil
}

// convertDecimals turns decimal strings into floats so amounts can be faceted and ranged.
func convertDecimals(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.DecimalFields {
		switch v := data[field].(type) {
		case string:
			if d, err := decimal.NewFromString(v); err == nil {
				data[field] = d.InexactFloat64()
			}
		case decimal.Decimal:
			data[field] = v.InexactFloat64()
		}
	}
}

// ensureSchemaFields fills required fields with zero values and drops empty optional strings.
func ensureSchemaFields(config CollectionConfig, data map[string]interface{}) {
	optionalFieldMap := make(map[string]bool)
	for _, field := range config.Schema.Fields {
		isOptional := field.Optional != nil && *field.Optional
		if isOptional {
			optionalFieldMap[field.Name] = true
			continue
		}
		if _, ok := data[field.Name]; !ok {
			data[field.Name] = getDefaultValue(field.Type)
		}
	}

	for key, value := range data {
		if !optionalFieldMap[key] {
			continue
		}
		if value == nil {
			delete(data, key)
			continue
		}
		if strVal, ok := value.(string); ok && strVal == "" {
			delete(data, key)
		}
	}
}

// normalizeTimeFields converts time fields to Unix timestamps.
func normalizeTimeFields(config CollectionConfig, data map[string]interface{}) {
	for _, field := range config.TimeFields {
		fieldValue, ok := data[field]
		if !ok || fieldValue == nil {
			continue
		}
		switch v := fieldValue.(type) {
		case time.Time:
			data[field] = v.Unix()
		case *time.Time:
			data[field] = v.Unix()
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				data[field] = time.Now().Unix()
				continue
			}
			data[field] = parsed.Unix()
		case int64:
		case float64:
			data[field] = int64(v)
		default:
			data[field] = time.Now().Unix()
		}
	}
}

func (t *TypesenseClient) upsertDocument(ctx context.Context, collection string, data map[string]interface{}) error {
	config := collectionConfigs[collection]
	if id, ok := data[config.IDField].(string); ok && id != "" {
		data["id"] = id
	}

	_, err := t.Client.Collection(collection).Documents().Upsert(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to upsert document in Typesense: %w", err)
	}
	return nil
}

// MigrateTypeSenseSchema adds fields present in the latest schema to an existing collection.
func (t *TypesenseClient) MigrateTypeSenseSchema(ctx context.Context, collectionName string) error {
	config, ok := collectionConfigs[collectionName]
	if !ok {
		return fmt.Errorf("unknown collection: %s", collectionName)
	}

	collection := t.Client.Collection(collectionName)
	currentSchemaResponse, err := collection.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve current schema: %w", err)
	}

	currentSchema := &api.CollectionSchema{
		Name:   currentSchemaResponse.Name,
		Fields: currentSchemaResponse.Fields,
	}

	for _, field := range compareSchemas(currentSchema, config.Schema) {
		_, err := collection.Update(ctx, &api.CollectionUpdateSchema{Fields: []api.Field{field}})
		if err != nil {
			return fmt.Errorf("failed to add field %s: %w", field.Name, err)
		}
		logrus.Infof("Added new field %s to collection %s", field.Name, collectionName)
	}

	return nil
}

func compareSchemas(oldSchema, newSchema *api.CollectionSchema) []api.Field {
	var newFields []api.Field
	oldFieldMap := make(map[string]bool)
	for _, field := range oldSchema.Fields {
		oldFieldMap[field.Name] = true
	}
	for _, field := range newSchema.Fields {
		if !oldFieldMap[field.Name] {
			newFields = append(newFields, field)
		}
	}
	return newFields
}

func getDefaultValue(fieldType string) interface{} {
	switch fieldType {
	case "string":
		return ""
	case "int32", "int64":
		return int64(0)
	case "float":
		return float64(0)
	case "bool":
		return false
	case "string[]":
		return []string{}
	default:
		return nil
	}
}

func getTransactionSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	optional := true
	return &api.CollectionSchema{
		Name: CollectionTransactions,
		Fields: []api.Field{
			{Name: "transaction_id", Type: "string", Facet: &facet},
			{Name: "amount", Type: "float", Facet: &facet},
			{Name: "currency", Type: "string", Facet: &facet},
			{Name: "status", Type: "string", Facet: &facet},
			{Name: "payment_method", Type: "string", Facet: &facet},
			{Name: "operator_id", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "destination_hint", Type: "string", Facet: &facet, Optional: &optional},
			{Name: "created_at", Type: "int64", Facet: &facet},
			{Name: "updated_at", Type: "int64", Facet: &facet},
			{Name: "expires_at", Type: "int64", Facet: &facet},
			{Name: "accepted_at", Type: "int64", Facet: &facet, Optional: &optional},
			{Name: "meta_data", Type: "object", Facet: &facet, Optional: &optional},
		},
		DefaultSortingField: &sortBy,
		EnableNestedFields:  &optional,
	}
}

func getOperatorSchema() *api.CollectionSchema {
	facet := true
	sortBy := "created_at"
	return &api.CollectionSchema{
		Name: CollectionOperators,
		Fields: []api.Field{
			{Name: "operator_id", Type: "string", Facet: &facet},
			{Name: "name", Type: "string", Facet: &facet},
			{Name: "balance", Type: "float", Facet: &facet},
			{Name: "max_balance", Type: "float", Facet: &facet},
			{Name: "is_operator", Type: "bool", Facet: &facet},
			{Name: "created_at", Type: "int64", Facet: &facet},
		},
		DefaultSortingField: &sortBy,
	}
}
