package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aithena-ai/chatstream/internal/model"
	"github.com/aithena-ai/chatstream/pkg/metrics"
)

// modelCacheEntry is one immutable {list, timestamp} snapshot. The cache
// pointer is replaced atomically on refresh so readers never observe a
// partial update.
type modelCacheEntry struct {
	models    []model.ModelInfo
	fetchedAt time.Time
}

// GetModels returns the gateway's model list with a stale-while-error cache:
// within the freshness window the cached list is served without a network
// call; after it, a failed refresh serves the last good list indefinitely.
// An error is returned only when no cache exists yet.
func (c *Client) GetModels(ctx context.Context) ([]model.ModelInfo, error) {
	ctx, span := c.tracer.Start(ctx, "chat.GetModels")
	defer span.End()

	if entry := c.modelCache.Load(); entry != nil && c.now().Sub(entry.fetchedAt) < c.cacheTTL {
		metrics.RecordCacheLookup(metrics.CacheHit)
		return entry.models, nil
	}

	// Concurrent callers share one refresh.
	v, err, _ := c.refresh.Do("models", func() (interface{}, error) {
		models, err := c.fetchModels(ctx)
		if err != nil {
			return nil, err
		}
		c.modelCache.Store(&modelCacheEntry{models: models, fetchedAt: c.now()})
		return models, nil
	})
	if err != nil {
		if entry := c.modelCache.Load(); entry != nil {
			metrics.RecordCacheLookup(metrics.CacheStaleServe)
			c.logger.Warn("model list refresh failed, serving stale cache",
				zap.Time("fetched_at", entry.fetchedAt),
				zap.Error(err),
			)
			return entry.models, nil
		}
		metrics.RecordCacheLookup(metrics.CacheMiss)
		return nil, fmt.Errorf("fetch model list: %w", err)
	}

	metrics.RecordCacheLookup(metrics.CacheMiss)
	return v.([]model.ModelInfo), nil
}

// fetchModels performs the actual model list request with the short
// metadata timeout.
func (c *Client) fetchModels(ctx context.Context) ([]model.ModelInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.metadataTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, http.MethodGet, c.baseURL+"/models/list", nil)
	if err != nil {
		return nil, &model.TransportError{Op: "prepare model list request", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransportError{Op: "list models", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := readErrorDetail(resp)
		return nil, &model.ServerError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var models []model.ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&models); err != nil {
		return nil, &model.DecodeError{Reason: err.Error()}
	}
	return models, nil
}
