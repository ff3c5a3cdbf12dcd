package queue

import (
	"codepath_backend/pkg/logger"
	"codepath_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("queue-consumer")

// 消费者心跳的有效期。心跳过期的实例视为已崩溃，
// 它的 processing 列表会被下一个启动的实例找回
const heartbeatTTL = 30 * time.Second

// HandlerFunc 单个任务类型的处理函数。返回错误会触发队列级重试，
// 重试耗尽后任务进入死信队列
type HandlerFunc func(ctx context.Context, job *Job) error

// Options 消费者运行参数
type Options struct {
	Concurrency  int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	JobTimeout   time.Duration
}

// Consumer 从队列拉取任务并分发给已注册的处理函数。
// 任意数量的实例可以并发消费同一个队列；每个实例有独立的
// processing 列表，重启时先找回自己上次遗留的任务。
type Consumer struct {
	queue    *Queue
	opts     Options
	instance string
	handlers map[string]HandlerFunc
}

func NewConsumer(q *Queue, opts Options) *Consumer {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Consumer{
		queue:    q,
		opts:     opts,
		instance: fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		handlers: make(map[string]HandlerFunc),
	}
}

// Register 注册任务类型的处理函数，每个类型一个
func (c *Consumer) Register(jobType string, h HandlerFunc) {
	c.handlers[jobType] = h
}

// Run 启动消费循环，阻塞直到 ctx 取消
func (c *Consumer) Run(ctx context.Context) error {
	// 先注册心跳再找回孤儿任务，避免自己的列表被并发启动的实例误判
	if err := c.queue.rdb.Set(ctx, c.queue.heartbeatKey(c.instance), time.Now().Unix(), heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("register consumer heartbeat: %w", err)
	}

	if err := c.recover(ctx); err != nil {
		return fmt.Errorf("recover processing jobs: %w", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.pollLoop(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.promoteLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.reportDepth(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.heartbeatLoop(ctx)
	}()

	logger.Log.Info("Queue consumer started",
		zap.String("instance", c.instance),
		zap.Int("concurrency", c.opts.Concurrency))

	wg.Wait()
	return nil
}

// recover 找回崩溃实例遗留在 processing 列表里的任务并移回 pending。
// 实例 ID 含 PID，重启后不会复用，所以不能只看自己的列表：
// 这里扫描队列的全部 processing 列表，凡属主心跳已过期的一律认定为
// 崩溃残留。这是 at-least-once 语义的另一半：确认前崩溃的任务必须被重投
func (c *Consumer) recover(ctx context.Context) error {
	prefix := c.queue.processingPrefix()
	var cursor uint64
	for {
		keys, next, err := c.queue.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return err
		}

		for _, key := range keys {
			owner := strings.TrimPrefix(key, prefix)
			if owner != c.instance {
				alive, err := c.queue.rdb.Exists(ctx, c.queue.heartbeatKey(owner)).Result()
				if err != nil {
					return err
				}
				if alive > 0 {
					continue
				}
			}
			if err := c.drainToPending(ctx, key); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *Consumer) drainToPending(ctx context.Context, key string) error {
	for {
		raw, err := c.queue.rdb.RPopLPush(ctx, key, c.queue.pendingKey()).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		logger.Log.Warn("Requeued orphaned job",
			zap.String("list", key),
			zap.String("raw", raw))
	}
}

// heartbeatLoop 周期性续期本实例的心跳；正常退出时删除心跳，
// 让后继实例无需等待 TTL 过期即可接管
func (c *Consumer) heartbeatLoop(ctx context.Context) {
	key := c.queue.heartbeatKey(c.instance)
	ticker := time.NewTicker(heartbeatTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cleanup, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			c.queue.rdb.Del(cleanup, key)
			cancel()
			return
		case <-ticker.C:
			if err := c.queue.rdb.Set(ctx, key, time.Now().Unix(), heartbeatTTL).Err(); err != nil {
				logger.Log.Error("Failed to refresh consumer heartbeat", zap.Error(err))
			}
		}
	}
}

func (c *Consumer) pollLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := c.queue.rdb.BRPopLPush(ctx,
			c.queue.pendingKey(),
			c.queue.processingKey(c.instance),
			5*time.Second,
		).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Error("Failed to poll queue", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		c.dispatch(ctx, raw)
	}
}

func (c *Consumer) dispatch(ctx context.Context, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// 无法解析的消息直接进死信，重试没有意义
		logger.Log.Error("Discarding malformed job", zap.Error(err))
		c.moveToDead(ctx, raw)
		return
	}

	handler, ok := c.handlers[job.Type]
	if !ok {
		logger.Log.Error("No handler registered for job type", zap.String("type", job.Type))
		c.moveToDead(ctx, raw)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, c.opts.JobTimeout)
	defer cancel()

	jobCtx, span := tracer.Start(jobCtx, "queue.handle "+job.Type)
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.Int("job.attempts", job.Attempts),
	)
	defer span.End()

	start := time.Now()
	err := handler(jobCtx, &job)
	monitoring.JobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())

	if err == nil {
		monitoring.JobCounter.WithLabelValues(job.Type, "ok").Inc()
		c.ack(ctx, raw)
		return
	}

	monitoring.JobCounter.WithLabelValues(job.Type, "error").Inc()
	c.fail(ctx, raw, &job, err)
}

// ack 处理成功，从 processing 列表移除
func (c *Consumer) ack(ctx context.Context, raw string) {
	if err := c.queue.rdb.LRem(ctx, c.queue.processingKey(c.instance), 1, raw).Err(); err != nil {
		logger.Log.Error("Failed to ack job", zap.Error(err))
	}
}

// fail 处理失败：带退避重新调度，重试耗尽后进入死信队列。
// 死信对学生而言是静默失败，只在运维日志里可见
func (c *Consumer) fail(ctx context.Context, raw string, job *Job, cause error) {
	c.ack(ctx, raw)

	job.Attempts++
	job.LastError = cause.Error()

	if job.Attempts > c.opts.MaxRetries {
		logger.Log.Error("Job exhausted retries, moving to dead letter queue",
			zap.String("type", job.Type),
			zap.String("id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Error(cause))
		data, _ := json.Marshal(job)
		c.moveToDead(ctx, string(data))
		return
	}

	delay := Backoff(c.opts.RetryBackoff, c.opts.MaxBackoff, job.Attempts)
	logger.Log.Warn("Job failed, scheduling retry",
		zap.String("type", job.Type),
		zap.String("id", job.ID),
		zap.Int("attempts", job.Attempts),
		zap.Duration("delay", delay),
		zap.Error(cause))

	data, _ := json.Marshal(job)
	err := c.queue.rdb.ZAdd(ctx, c.queue.delayedKey(), &redis.Z{
		Score:  float64(time.Now().Add(delay).UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		logger.Log.Error("Failed to schedule retry", zap.Error(err))
	}
}

func (c *Consumer) moveToDead(ctx context.Context, raw string) {
	c.ack(ctx, raw)
	if err := c.queue.rdb.LPush(ctx, c.queue.deadKey(), raw).Err(); err != nil {
		logger.Log.Error("Failed to move job to dead letter queue", zap.Error(err))
	}
}

// promoteLoop 把到期的延迟任务移回 pending。ZRem 返回值做并发保护：
// 多个实例同时运行时，只有成功移除成员的那个实例负责重新入队
func (c *Consumer) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := fmt.Sprintf("%d", time.Now().UnixMilli())
		members, err := c.queue.rdb.ZRangeByScore(ctx, c.queue.delayedKey(), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   now,
			Count: 100,
		}).Result()
		if err != nil {
			logger.Log.Error("Failed to read delayed jobs", zap.Error(err))
			continue
		}

		for _, member := range members {
			removed, err := c.queue.rdb.ZRem(ctx, c.queue.delayedKey(), member).Result()
			if err != nil || removed == 0 {
				continue
			}
			if err := c.queue.rdb.LPush(ctx, c.queue.pendingKey(), member).Err(); err != nil {
				logger.Log.Error("Failed to promote delayed job", zap.Error(err))
			}
		}
	}
}

func (c *Consumer) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		depth, err := c.queue.PendingDepth(ctx)
		if err != nil {
			continue
		}
		monitoring.QueueDepth.WithLabelValues(c.queue.name).Set(float64(depth))
	}
}

// Backoff 第 attempts 次重试的指数退避延迟，封顶 max
func Backoff(base, max time.Duration, attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
