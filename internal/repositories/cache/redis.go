package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"kobopay/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewRedisClient(cfg *RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// WalletCache is the Redis read cache for wallet snapshots. Mutating paths
// invalidate; only the read path populates.
type WalletCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewWalletCache(client *redis.Client, ttl time.Duration) *WalletCache {
	return &WalletCache{client: client, ttl: ttl}
}

func (c *WalletCache) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	val, err := c.client.Get(ctx, walletKey(userID)).Bytes()
	if err != nil {
		return nil, err
	}

	var wallet models.Wallet
	if err := json.Unmarshal(val, &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (c *WalletCache) SetWallet(ctx context.Context, wallet *models.Wallet) error {
	data, err := json.Marshal(wallet)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, walletKey(wallet.UserID), data, c.ttl).Err()
}

func (c *WalletCache) InvalidateWallet(ctx context.Context, userID uint) error {
	return c.client.Del(ctx, walletKey(userID)).Err()
}

func (c *WalletCache) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

func (c *WalletCache) Close() error {
	return c.client.Close()
}

func walletKey(userID uint) string {
	return fmt.Sprintf("wallet:%d", userID)
}
