// Package redisstore implements the durable Response Store engine (spec
// §6, "durable mode") on top of go-redis/v9, one JSON blob per response id.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/masaic-ai/open-responses-go/internal/domain"
	"github.com/masaic-ai/open-responses-go/internal/store"
)

const keyPrefix = "response:"

// Engine persists StoredResponse values as JSON under response:<id> keys.
type Engine struct {
	client *redis.Client
}

// New wraps an existing go-redis client. Callers construct the client (and
// own its lifecycle/auth/TLS config) so this package stays agnostic to
// connection details.
func New(client *redis.Client) *Engine {
	return &Engine{client: client}
}

func (e *Engine) Put(ctx context.Context, stored *domain.StoredResponse) error {
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding stored response: %w", err)
	}
	if err := e.client.Set(ctx, keyPrefix+stored.Response.ID, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

func (e *Engine) Get(ctx context.Context, id string) (*domain.StoredResponse, error) {
	raw, err := e.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("redis GET: %w", err)
	}
	var stored domain.StoredResponse
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decoding stored response: %w", err)
	}
	return &stored, nil
}

func (e *Engine) Delete(ctx context.Context, id string) error {
	n, err := e.client.Del(ctx, keyPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("redis DEL: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
