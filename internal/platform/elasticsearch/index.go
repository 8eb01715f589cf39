package elasticsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// loginLogsMapping returns the JSON mapping for the login log index.
func loginLogsMapping() (string, error) {
	keyword := map[string]interface{}{"type": "keyword"}
	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":         keyword,
				"user_id":    keyword,
				"email":      keyword,
				"method":     keyword,
				"success":    map[string]interface{}{"type": "boolean"},
				"reason":     keyword,
				"ip":         map[string]interface{}{"type": "ip", "ignore_malformed": true},
				"user_agent": map[string]interface{}{"type": "text", "fields": map[string]interface{}{"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256}}},
				"created_at": map[string]interface{}{"type": "date"},
			},
		},
	}
	b, err := json.Marshal(mapping)
	if err != nil {
		return "", fmt.Errorf("error marshalling login logs mapping to JSON: %w", err)
	}
	return string(b), nil
}

// CreateLoginLogsIndexIfNotExists creates the login log index with its mapping
// if it does not already exist.
func CreateLoginLogsIndexIfNotExists(ctx context.Context, client *ESClientWrapper, index string, logger *zap.Logger) error {
	log := logger.Named("elasticsearch_index_setup").With(zap.String("index_name", index))

	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error checking if login logs index exists", zap.Error(err))
		return fmt.Errorf("error checking if index %s exists: %w", index, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Debug("Login logs index already exists")
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Error("Unexpected status checking login logs index", zap.String("status", res.Status()))
		return fmt.Errorf("error checking if index %s exists: status %s", index, res.Status())
	}

	mappingJSON, err := loginLogsMapping()
	if err != nil {
		return err
	}

	createRes, err := esapi.IndicesCreateRequest{
		Index: index,
		Body:  strings.NewReader(mappingJSON),
	}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Error creating login logs index", zap.Error(err))
		return fmt.Errorf("error creating index %s: %w", index, err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		var errorBody map[string]interface{}
		if err := decodeJSONBody(createRes.Body, &errorBody); err != nil {
			log.Error("Failed to parse index creation error response", zap.Error(err), zap.String("status", createRes.Status()))
		} else {
			log.Error("Failed to create login logs index", zap.String("status", createRes.Status()), zap.Any("error_details", errorBody))
		}
		return fmt.Errorf("failed to create index %s: status %s", index, createRes.Status())
	}

	log.Info("Login logs index created successfully")
	return nil
}
