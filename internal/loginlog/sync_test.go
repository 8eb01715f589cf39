package loginlog

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	platformElasticsearch "music_backend/internal/platform/elasticsearch"
	"music_backend/internal/shared"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeES answers index and bulk requests like Elasticsearch. Documents whose id is in reject fail.
type fakeES struct {
	mu       sync.Mutex
	indexed  map[string]Document
	bulkRuns int
	refresh  string
	reject   map[string]bool
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/_bulk"):
		f.bulkRuns++
		f.refresh = r.URL.Query().Get("refresh")
		f.handleBulk(w, r)
	case r.Method == http.MethodPut && strings.Contains(r.URL.Path, "/_doc/"):
		var doc Document
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.indexed[doc.ID] = doc
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{}`))
	}
}

func (f *fakeES) handleBulk(w http.ResponseWriter, r *http.Request) {
	type item struct {
		Index map[string]interface{} `json:"index"`
	}
	var items []item
	hasErrors := false

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var action struct {
			Index struct {
				ID string `json:"_id"`
			} `json:"index"`
		}
		_ = json.Unmarshal(scanner.Bytes(), &action)
		if !scanner.Scan() {
			break
		}
		var doc Document
		_ = json.Unmarshal(scanner.Bytes(), &doc)

		id := action.Index.ID
		if f.reject[id] {
			hasErrors = true
			items = append(items, item{Index: map[string]interface{}{
				"_id": id, "status": 400, "error": map[string]interface{}{"type": "mapper_parsing_exception"},
			}})
			continue
		}
		f.indexed[id] = doc
		items = append(items, item{Index: map[string]interface{}{"_id": id, "status": 201}})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"errors": hasErrors, "items": items})
}

func newFakeES(t *testing.T) (*fakeES, *platformElasticsearch.ESClientWrapper) {
	t.Helper()
	fake := &fakeES{indexed: map[string]Document{}, reject: map[string]bool{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return fake, &platformElasticsearch.ESClientWrapper{Client: client}
}

func seedLogs(t *testing.T, repo Repository, n int) []uuid.UUID {
	t.Helper()
	ids := make([]uuid.UUID, 0, n)
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		entry := FromAttempt(attempt(nil, shared.LoginReasonUserNotFound, base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, repo.Create(context.Background(), entry))
		ids = append(ids, entry.ID)
	}
	return ids
}

func TestElasticsearchSink_Publish(t *testing.T) {
	fake, client := newFakeES(t)
	userID := uuid.New()
	entry := FromAttempt(attempt(&userID, shared.LoginReasonSuccess, time.Now()))
	entry.ID = uuid.New()

	require.NoError(t, NewElasticsearchSink(client, "login_logs").Publish(context.Background(), entry))

	doc, ok := fake.indexed[entry.ID.String()]
	require.True(t, ok)
	assert.Equal(t, userID.String(), doc.UserID)
	assert.True(t, doc.Success)
}

func TestSyncToElasticsearch(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	ids := seedLogs(t, repo, 5)
	fake, client := newFakeES(t)

	result, err := SyncToElasticsearch(context.Background(), repo, client, "login_logs", zap.NewNop(), 2, "wait_for")

	require.NoError(t, err)
	assert.Equal(t, SyncResult{Batches: 3, Synced: 5}, result)
	assert.Equal(t, 3, fake.bulkRuns)
	assert.Equal(t, "wait_for", fake.refresh)
	for _, id := range ids {
		assert.Contains(t, fake.indexed, id.String())
	}
}

func TestSyncToElasticsearch_ReportsItemFailures(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	ids := seedLogs(t, repo, 3)
	fake, client := newFakeES(t)
	fake.reject[ids[1].String()] = true

	result, err := SyncToElasticsearch(context.Background(), repo, client, "login_logs", zap.NewNop(), 10, "false")

	require.Error(t, err)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Failed)
}

func TestSyncToElasticsearch_RequiresClient(t *testing.T) {
	repo := NewGORMRepository(newTestDB(t))
	_, err := SyncToElasticsearch(context.Background(), repo, nil, "login_logs", zap.NewNop(), 10, "false")
	assert.Error(t, err)
}
