package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the connection. More than one address selects cluster
// mode.
type Options struct {
	Addrs    []string
	Password string
	DB       int
	PoolSize int
}

// ParseAddrs splits a comma separated address list.
func ParseAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// Client is the connection shared by the view caches and the event stream.
type Client struct {
	redis.UniversalClient
}

// NewClient connects and pings once; a client that cannot reach Redis is
// closed and not returned.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if len(opts.Addrs) == 0 {
		return nil, fmt.Errorf("redis address is required")
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        opts.Addrs,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	c := &Client{UniversalClient: rdb}
	if err := c.Check(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return c, nil
}

// Check pings Redis within a short deadline.
func (c *Client) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.UniversalClient.Close()
}
