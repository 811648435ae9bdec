package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues sequence automation work.
type Client struct {
	client *asynq.Client
	queue  string
}

// SweepScheduler is the narrow interface handed to modules that need to
// trigger background reconciliation.
type SweepScheduler interface {
	EnqueueSweep(ctx context.Context) error
	EnqueueContactReconcile(ctx context.Context, contactID string) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSweep schedules a full reconciliation pass. Sweeps are idempotent
// so duplicate enqueues are harmless.
func (c *Client) EnqueueSweep(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	_, err := c.client.EnqueueContext(ctx, NewSequenceSweepTask(), asynq.Queue(c.queue))
	return err
}

// EnqueueContactReconcile schedules reconciliation for a single contact.
func (c *Client) EnqueueContactReconcile(ctx context.Context, contactID string) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewContactReconcileTask(ContactReconcilePayload{ContactID: contactID})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
