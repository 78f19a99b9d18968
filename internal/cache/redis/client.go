package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetDecision caches a finished decision under the hash of the raw claim
// text so identical claims skip the full pipeline.
func (c *Client) SetDecision(ctx context.Context, claimHash string, decision interface{}, ttl time.Duration) error {
	data, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("failed to marshal decision: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("decision:%s", claimHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set decision cache: %w", err)
	}

	logger.Debug("Decision cached", zap.String("claim_hash", claimHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetDecision(ctx context.Context, claimHash string, decision interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("decision:%s", claimHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get decision cache: %w", err)
	}

	err = json.Unmarshal(data, decision)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal decision: %w", err)
	}

	logger.Debug("Decision cache hit", zap.String("claim_hash", claimHash))
	return true, nil
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// InvalidateDecisionCache drops every cached decision. Called after a
// corpus rebuild since old decisions may cite clauses that no longer exist.
func (c *Client) InvalidateDecisionCache(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "decision:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Decision cache invalidated")
	return nil
}
