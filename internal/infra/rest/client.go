// Package rest implements the persistence port on a PostgREST-style
// document API. Each collection is a table with two columns: key (primary
// key) and doc (jsonb). Reads go through a TTL cache that is flushed on
// every write; writes go through the circuit breaker and retry policy.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/granaapp/grana-go/internal/infra/resilience"
	"github.com/granaapp/grana-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("rest")

// row is the wire shape of one stored document.
type row struct {
	Key string          `json:"key"`
	Doc json.RawMessage `json:"doc"`
}

// Client wraps HTTP calls to the document API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	bulkhead   *resilience.Bulkhead
	cache      port.Cache[[][]byte]
	metrics    cacheMeter
	logger     *zap.Logger
}

// cacheMeter is the slice of the metrics surface the client needs.
type cacheMeter interface {
	IncrCacheHit(cache string)
	IncrCacheMiss(cache string)
	IncrPersistenceError(collection string)
}

// NewClient creates a REST persistence client.
func NewClient(httpClient *http.Client, baseURL, apiKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, cache port.Cache[[][]byte], metrics cacheMeter, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		cb:         cb,
		cfg:        cfg,
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetAll returns every item in a collection, by key order.
func (c *Client) GetAll(ctx context.Context, collection string) ([][]byte, error) {
	ctx, span := tracer.Start(ctx, "rest.GetAll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	if items, ok := c.cache.Get(collection); ok {
		c.metrics.IncrCacheHit("persistence")
		return items, nil
	}
	c.metrics.IncrCacheMiss("persistence")

	var items [][]byte
	err := c.execute(ctx, collection, func() error {
		body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s?order=key.asc", collection), nil)
		if err != nil {
			return err
		}
		var rows []row
		if body != nil {
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode %s rows: %w", collection, err)
			}
		}
		items = make([][]byte, 0, len(rows))
		for _, r := range rows {
			items = append(items, []byte(r.Doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(collection, items)
	return items, nil
}

// Get returns one item by key, or (nil, nil) when absent.
func (c *Client) Get(ctx context.Context, collection, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "rest.Get")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("key", key))

	var item []byte
	err := c.execute(ctx, collection, func() error {
		path := fmt.Sprintf("%s?key=eq.%s&limit=1", collection, url.QueryEscape(key))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		if body == nil || string(body) == "[]" {
			item = nil
			return nil
		}
		var rows []row
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode %s row: %w", collection, err)
		}
		if len(rows) == 0 {
			item = nil
			return nil
		}
		item = []byte(rows[0].Doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Put upserts the item under key.
func (c *Client) Put(ctx context.Context, collection, key string, item []byte) error {
	ctx, span := tracer.Start(ctx, "rest.Put")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("key", key))

	payload, err := json.Marshal(row{Key: key, Doc: json.RawMessage(item)})
	if err != nil {
		return err
	}

	err = c.execute(ctx, collection, func() error {
		// on_conflict upsert keyed by the primary key column.
		path := fmt.Sprintf("%s?on_conflict=key", collection)
		_, err := c.doRequest(ctx, http.MethodPost, path, payload)
		return err
	})
	if err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}

// Delete removes the item under key. Absent keys are not an error.
func (c *Client) Delete(ctx context.Context, collection, key string) error {
	ctx, span := tracer.Start(ctx, "rest.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.String("key", key))

	err := c.execute(ctx, collection, func() error {
		path := fmt.Sprintf("%s?key=eq.%s", collection, url.QueryEscape(key))
		_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
		return err
	})
	if err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}

// Clear removes every item in a collection.
func (c *Client) Clear(ctx context.Context, collection string) error {
	ctx, span := tracer.Start(ctx, "rest.Clear")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	err := c.execute(ctx, collection, func() error {
		// PostgREST requires a filter on DELETE; key=neq. matches all rows.
		path := fmt.Sprintf("%s?key=neq.", collection)
		_, err := c.doRequest(ctx, http.MethodDelete, path, nil)
		return err
	})
	if err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}

// ReplaceAll swaps a collection's contents: clear, then bulk insert.
func (c *Client) ReplaceAll(ctx context.Context, collection string, items [][]byte, keys []string) error {
	ctx, span := tracer.Start(ctx, "rest.ReplaceAll")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection), attribute.Int("count", len(items)))

	if len(items) != len(keys) {
		return fmt.Errorf("replaceAll %s: %d items, %d keys", collection, len(items), len(keys))
	}

	rows := make([]row, 0, len(items))
	for i, item := range items {
		rows = append(rows, row{Key: keys[i], Doc: json.RawMessage(item)})
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}

	err = c.execute(ctx, collection, func() error {
		if _, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("%s?key=neq.", collection), nil); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := c.doRequest(ctx, http.MethodPost, collection, payload)
		return err
	})
	if err != nil {
		return err
	}

	c.cache.Flush()
	return nil
}

// execute runs fn behind the bulkhead, circuit breaker and retry policy.
func (c *Client) execute(ctx context.Context, collection string, fn func() error) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, fn)
	})
	if err != nil {
		c.metrics.IncrPersistenceError(collection)
	}
	return err
}

// doRequest executes an authenticated request against the document API.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		c.logger.Error("rest: failed to create request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost {
		req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("rest: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("rest: failed to read response body",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, nil // no data
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("rest: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("rest: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	return respBody, nil
}
