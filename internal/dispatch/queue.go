// Package dispatch выполняет побочные эффекты изменений тендера (уведомления,
// автоматические приглашения) асинхронно, после фиксации изменения.
package dispatch

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

// QueueConfig - параметры очереди.
type QueueConfig struct {
	Workers        int
	Size           int
	MaxRetries     uint64
	Backoff        time.Duration
	AttemptTimeout time.Duration
}

type job struct {
	name string
	run  func(ctx context.Context) error
}

// Queue - ограниченная очередь задач с пулом обработчиков и повтором по экспоненте.
// Переполненная очередь отбрасывает задачу, а не блокирует вызывающего.
type Queue struct {
	cfg    QueueConfig
	jobs   chan job
	logger *log.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewQueue создает очередь. Обработчики запускаются методом Start.
func NewQueue(cfg QueueConfig, logger *log.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 100 * time.Millisecond
	}
	return &Queue{
		cfg:    cfg,
		jobs:   make(chan job, cfg.Size),
		logger: logger,
	}
}

// Start запускает обработчики. Отмена ctx прерывает ожидание между повторами.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for j := range q.jobs {
				q.process(ctx, j)
			}
		}()
	}
}

// Enqueue ставит задачу в очередь. Возвращает false, если очередь заполнена или закрыта.
func (q *Queue) Enqueue(name string, run func(ctx context.Context) error) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		q.logger.Printf("dispatch queue closed, job dropped: job=%s", name)
		return false
	}
	select {
	case q.jobs <- job{name: name, run: run}:
		return true
	default:
		q.dropped.Add(1)
		q.logger.Printf("dispatch queue full, job dropped: job=%s", name)
		return false
	}
}

// Shutdown закрывает очередь и ждет завершения оставшихся задач.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) process(ctx context.Context, j job) {
	backoff := retry.WithMaxRetries(q.cfg.MaxRetries, retry.NewExponential(q.cfg.Backoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		attemptCtx := ctx
		if q.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, q.cfg.AttemptTimeout)
			defer cancel()
		}

		err := j.run(attemptCtx)
		if err == nil {
			return nil
		}
		q.logger.Printf("dispatch job failed: job=%s attempt=%d err=%v", j.name, attempt, err)
		if IsPermanent(err) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		q.failed.Add(1)
		q.logger.Printf("dispatch job abandoned: job=%s attempts=%d err=%v", j.name, attempt, err)
		return
	}
	q.processed.Add(1)
}

// Stats - счетчики очереди.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Stats возвращает текущие счетчики.
func (q *Queue) Stats() Stats {
	return Stats{
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
		Pending:   len(q.jobs),
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку как неповторяемую.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent сообщает, помечена ли ошибка как неповторяемая.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
