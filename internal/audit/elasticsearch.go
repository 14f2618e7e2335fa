package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"session-sentinel/internal/common/database"
)

// ElasticsearchSink indexes one document per event so operators can query
// the session trail alongside the rest of the platform's audit data.
type ElasticsearchSink struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchSink(client *database.ElasticsearchClient, index string) *ElasticsearchSink {
	return &ElasticsearchSink{
		client: client,
		index:  index,
	}
}

func (s *ElasticsearchSink) Write(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}
	return s.client.IndexDocument(ctx, s.index, event.ID, body)
}
