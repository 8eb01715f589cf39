package loginlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	platformElasticsearch "music_backend/internal/platform/elasticsearch"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Sink receives every stored login log.
type Sink interface {
	Name() string
	Publish(ctx context.Context, entry *LoginLog) error
}

// ElasticsearchSink indexes login logs for search.
type ElasticsearchSink struct {
	client *platformElasticsearch.ESClientWrapper
	index  string
}

func NewElasticsearchSink(client *platformElasticsearch.ESClientWrapper, index string) *ElasticsearchSink {
	return &ElasticsearchSink{client: client, index: index}
}

func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

func (s *ElasticsearchSink) Publish(ctx context.Context, entry *LoginLog) error {
	body, err := json.Marshal(ToDocument(entry))
	if err != nil {
		return fmt.Errorf("marshal login log document: %w", err)
	}
	res, err := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: entry.ID.String(),
		Body:       bytes.NewReader(body),
	}.Do(ctx, s.client.Client)
	if err != nil {
		return fmt.Errorf("index login log: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index login log: status %s", res.Status())
	}
	return nil
}

// EventPublisher is satisfied by broker.Publisher.
type EventPublisher interface {
	PublishJSON(ctx context.Context, queue string, v interface{}) error
}

// QueueSink publishes a LoginEvent per login log.
type QueueSink struct {
	publisher EventPublisher
	queue     string
}

func NewQueueSink(publisher EventPublisher, queue string) *QueueSink {
	return &QueueSink{publisher: publisher, queue: queue}
}

func (s *QueueSink) Name() string { return "rabbitmq" }

func (s *QueueSink) Publish(ctx context.Context, entry *LoginLog) error {
	return s.publisher.PublishJSON(ctx, s.queue, ToEvent(entry))
}
