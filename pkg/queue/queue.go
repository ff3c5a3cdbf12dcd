package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Job 队列中流转的消息信封。Payload 是各任务类型自定义的 JSON，
// Attempts 记录已失败次数，用于重试退避计算
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// Queue 基于 Redis 的持久任务队列。投递语义是 at-least-once：
// 任务经 BRPOPLPUSH 从 pending 移入 processing，处理成功后才从
// processing 移除；消费者在确认前崩溃，任务会在下次启动时被找回重投。
type Queue struct {
	rdb  *redis.Client
	name string
}

func New(rdb *redis.Client, name string) *Queue {
	return &Queue{rdb: rdb, name: name}
}

// Enqueue 将一条任务推入队列，返回任务 ID
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	job := &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	if err := q.rdb.LPush(ctx, q.pendingKey(), raw).Err(); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	return job.ID, nil
}

// PendingDepth 当前 pending 队列长度，供监控上报
func (q *Queue) PendingDepth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.pendingKey()).Result()
}

func (q *Queue) pendingKey() string {
	return fmt.Sprintf("queue:%s:pending", q.name)
}

func (q *Queue) delayedKey() string {
	return fmt.Sprintf("queue:%s:delayed", q.name)
}

func (q *Queue) deadKey() string {
	return fmt.Sprintf("queue:%s:dead", q.name)
}

func (q *Queue) processingKey(instance string) string {
	return fmt.Sprintf("queue:%s:processing:%s", q.name, instance)
}

func (q *Queue) processingPrefix() string {
	return fmt.Sprintf("queue:%s:processing:", q.name)
}

func (q *Queue) heartbeatKey(instance string) string {
	return fmt.Sprintf("queue:%s:heartbeat:%s", q.name, instance)
}
