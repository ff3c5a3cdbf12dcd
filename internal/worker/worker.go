package worker

import (
	"codepath_backend/internal/config"
	"codepath_backend/internal/service"
	"codepath_backend/pkg/logger"
	"codepath_backend/pkg/queue"
	"context"
	"time"
)

// Worker 分析流水线的消费端进程。与 HTTP 服务各自独立伸缩，
// 任意数量的实例可以同时消费同一个队列
type Worker struct {
	consumer *queue.Consumer
}

// New 组装消费者并注册各任务类型的处理函数
func New(q *queue.Queue, cfg *config.QueueConfig, analysis *service.AnalysisService) *Worker {
	consumer := queue.NewConsumer(q, queue.Options{
		Concurrency:  cfg.Concurrency,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: time.Duration(cfg.RetryBackoffSeconds) * time.Second,
		MaxBackoff:   time.Duration(cfg.MaxBackoffSeconds) * time.Second,
		JobTimeout:   time.Duration(cfg.JobTimeoutSeconds) * time.Second,
	})

	consumer.Register(service.JobAnalyzeSubmission, analysis.HandleJob)

	return &Worker{consumer: consumer}
}

// Run 阻塞消费直到 ctx 取消
func (w *Worker) Run(ctx context.Context) error {
	logger.Log.Info("Adaptive path worker starting")
	return w.consumer.Run(ctx)
}
