package loginlog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	platformElasticsearch "music_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// SyncResult counts what a bulk sync did.
type SyncResult struct {
	Batches int
	Synced  int
	Failed  int
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			ID     string                 `json:"_id"`
			Status int                    `json:"status"`
			Error  map[string]interface{} `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

// SyncToElasticsearch re-indexes every stored login log in batches of batchSize.
// refresh is passed to the bulk API (true, false or wait_for).
func SyncToElasticsearch(
	ctx context.Context,
	repo Repository,
	client *platformElasticsearch.ESClientWrapper,
	index string,
	logger *zap.Logger,
	batchSize int,
	refresh string,
) (SyncResult, error) {
	var result SyncResult
	if client == nil {
		return result, fmt.Errorf("elasticsearch client is not configured")
	}
	if batchSize <= 0 {
		return result, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	log := logger.Named("loginlog_sync").With(zap.String("index", index))
	log.Info("Starting login log synchronization", zap.Int("batchSize", batchSize), zap.String("refresh", refresh))

	for offset := 0; ; {
		logs, err := repo.FindAllForSync(ctx, offset, batchSize)
		if err != nil {
			return result, fmt.Errorf("fetch batch %d: %w", result.Batches+1, err)
		}
		if len(logs) == 0 {
			break
		}
		result.Batches++
		offset += len(logs)

		synced, failed := indexBatch(ctx, client, index, logs, refresh, log)
		result.Synced += synced
		result.Failed += failed
		log.Info("Batch processed",
			zap.Int("batchNumber", result.Batches),
			zap.Int("syncedInBatch", synced),
			zap.Int("failedInBatch", failed),
		)
	}

	log.Info("Login log synchronization finished",
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed),
	)
	if result.Failed > 0 {
		return result, fmt.Errorf("%d login logs failed to sync", result.Failed)
	}
	return result, nil
}

func indexBatch(
	ctx context.Context,
	client *platformElasticsearch.ESClientWrapper,
	index string,
	logs []LoginLog,
	refresh string,
	log *zap.Logger,
) (synced, failed int) {
	var body strings.Builder
	for i := range logs {
		doc, err := json.Marshal(ToDocument(&logs[i]))
		if err != nil {
			log.Error("Failed to encode login log", zap.String("loginLogID", logs[i].ID.String()), zap.Error(err))
			failed++
			continue
		}
		action, _ := json.Marshal(map[string]interface{}{
			"index": map[string]string{"_index": index, "_id": logs[i].ID.String()},
		})
		body.Write(action)
		body.WriteByte('\n')
		body.Write(doc)
		body.WriteByte('\n')
	}
	sent := len(logs) - failed
	if sent == 0 {
		return 0, failed
	}

	res, err := esapi.BulkRequest{
		Body:    strings.NewReader(body.String()),
		Refresh: refresh,
	}.Do(ctx, client.Client)
	if err != nil {
		log.Error("Bulk request failed", zap.Error(err))
		return 0, failed + sent
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Error("Bulk request rejected", zap.String("status", res.Status()))
		return 0, failed + sent
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		log.Error("Failed to parse bulk response", zap.Error(err))
		return 0, failed + sent
	}
	for _, item := range parsed.Items {
		if item.Index.Error != nil {
			log.Error("Failed to index login log",
				zap.String("loginLogID", item.Index.ID),
				zap.Int("status", item.Index.Status),
				zap.Any("error", item.Index.Error),
			)
			failed++
			continue
		}
		synced++
	}
	return synced, failed
}
