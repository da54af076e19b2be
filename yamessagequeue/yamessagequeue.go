// Package yamessagequeue paces outbound bot calls through a priority queue.
//
// Queue wraps a yabot.Bot and is a yabot.Bot itself, so it can be handed to
// the dispatcher, the webhook handler or the MTProto bridge unchanged.
//
// Example usage:
//
//	queue := yamessagequeue.New(bot, yamessagequeue.Options{Workers: 1, Interval: time.Second})
//	queue.Start(ctx)
//
//	ctx = yamessagequeue.WithPriority(ctx, yamessagequeue.PriorityHigh)
//	_, err := queue.Call(ctx, &yabot.SendMessage{ChatID: chatID, Text: "hi"})
package yamessagequeue

import (
	"container/heap"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/YaCodeDev/GoYaBotKit/yabot"
	"github.com/YaCodeDev/GoYaBotKit/yaerrors"
	"github.com/YaCodeDev/GoYaBotKit/yalogger"
	"github.com/google/uuid"
)

// Priorities, lower runs first.
const (
	PriorityHigh   uint16 = 0
	PriorityNormal uint16 = 100
	PriorityLow    uint16 = 200
)

type priorityKey struct{}

// WithPriority sets the priority used by Queue.Call.
func WithPriority(ctx context.Context, priority uint16) context.Context {
	return context.WithValue(ctx, priorityKey{}, priority)
}

// PriorityFrom returns the priority stored in ctx or PriorityNormal.
func PriorityFrom(ctx context.Context) uint16 {
	if priority, ok := ctx.Value(priorityKey{}).(uint16); ok {
		return priority
	}

	return PriorityNormal
}

// Result is what a job produced.
type Result struct {
	Value any
	Err   error
}

// Job is one queued call.
type Job struct {
	ID        uuid.UUID
	Priority  uint16
	Timestamp time.Time
	Method    yabot.Method

	ctx      context.Context
	result   chan Result
	sequence uint64
	index    int
}

func (j *Job) finish(result Result) {
	j.result <- result
}

type Options struct {
	// Workers is the number of concurrent callers, at least one.
	Workers uint
	// Interval is the minimum time a worker spends per call.
	Interval time.Duration
	Logger   yalogger.Logger
}

// Queue is a yabot.Bot that runs calls of the wrapped bot in priority order.
type Queue struct {
	bot      yabot.Bot
	options  Options
	mu       sync.Mutex
	cond     *sync.Cond
	heap     jobHeap
	sequence uint64
	closed   bool
	jobs     chan *Job
	started  sync.Once
	workers  sync.WaitGroup
}

var _ yabot.Bot = (*Queue)(nil)

func New(bot yabot.Bot, options Options) *Queue {
	if options.Workers == 0 {
		options.Workers = 1
	}

	if options.Logger == nil {
		options.Logger = yalogger.NewLogger()
	}

	queue := &Queue{
		bot:     bot,
		options: options,
		jobs:    make(chan *Job),
	}

	queue.cond = sync.NewCond(&queue.mu)

	return queue
}

// Start launches the workers. They stop and fail pending jobs once ctx is done.
func (q *Queue) Start(ctx context.Context) {
	q.started.Do(func() {
		context.AfterFunc(ctx, q.close)

		go q.pump(ctx)

		for i := range q.options.Workers {
			q.workers.Add(1)

			go q.worker(ctx, i)
		}
	})
}

// Wait blocks until the workers stopped.
func (q *Queue) Wait() {
	q.workers.Wait()
}

func (q *Queue) ID() int64 {
	return q.bot.ID()
}

// Call enqueues method with the priority of ctx and waits for its result.
// A done ctx removes a still queued job.
func (q *Queue) Call(ctx context.Context, method yabot.Method) (any, error) {
	id, result := q.Enqueue(ctx, method, PriorityFrom(ctx))

	select {
	case res := <-result:
		return res.Value, res.Err
	case <-ctx.Done():
		q.Delete(id)

		return nil, ctx.Err()
	}
}

// Enqueue adds method and returns the job id with a channel receiving one Result.
func (q *Queue) Enqueue(ctx context.Context, method yabot.Method, priority uint16) (uuid.UUID, <-chan Result) {
	job := &Job{
		ID:        uuid.New(),
		Priority:  priority,
		Timestamp: time.Now(),
		Method:    method,
		ctx:       ctx,
		result:    make(chan Result, 1),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		job.finish(Result{Err: q.closedError()})

		return job.ID, job.result
	}

	q.sequence++
	job.sequence = q.sequence

	heap.Push(&q.heap, job)
	q.cond.Signal()

	return job.ID, job.result
}

// Delete cancels a queued job. It reports false once the job left the queue.
func (q *Queue) Delete(id uuid.UUID) bool {
	return len(q.DeleteFunc(func(job Job) bool { return job.ID == id })) > 0
}

// DeleteFunc cancels every queued job matching match and returns their ids.
//
// Example usage:
//
//	ids := queue.DeleteFunc(func(job yamessagequeue.Job) bool {
//	    return job.Priority >= yamessagequeue.PriorityLow
//	})
func (q *Queue) DeleteFunc(match func(Job) bool) []uuid.UUID {
	q.mu.Lock()
	removed := q.heap.remove(func(job *Job) bool { return match(*job) })
	q.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(removed))

	for _, job := range removed {
		job.finish(Result{Err: yaerrors.FromError(
			http.StatusConflict,
			ErrJobCanceled,
			"[QUEUE] job was removed before it ran",
		)})

		ids = append(ids, job.ID)
	}

	return ids
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.heap.Len()
}

// pump moves jobs from the heap to the workers in priority order.
func (q *Queue) pump(ctx context.Context) {
	for {
		q.mu.Lock()

		for q.heap.Len() == 0 && !q.closed {
			q.cond.Wait()
		}

		if q.closed {
			q.mu.Unlock()

			return
		}

		job, _ := heap.Pop(&q.heap).(*Job)
		q.mu.Unlock()

		select {
		case q.jobs <- job:
		case <-ctx.Done():
			job.finish(Result{Err: q.closedError()})
		}
	}
}

func (q *Queue) worker(ctx context.Context, id uint) {
	defer q.workers.Done()

	for {
		select {
		case job := <-q.jobs:
			if err := job.ctx.Err(); err != nil {
				job.finish(Result{Err: err})

				continue
			}

			start := time.Now()

			value, err := q.bot.Call(job.ctx, job.Method)
			if err != nil {
				q.options.Logger.Debugf("[QUEUE] worker %d: %s failed: %v", id, job.Method.MethodName(), err)
			}

			job.finish(Result{Value: value, Err: err})

			q.pace(ctx, start)
		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) pace(ctx context.Context, start time.Time) {
	wait := q.options.Interval - time.Since(start)
	if wait <= 0 {
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (q *Queue) close() {
	q.mu.Lock()
	q.closed = true
	pending := q.heap.remove(func(*Job) bool { return true })
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, job := range pending {
		job.finish(Result{Err: q.closedError()})
	}
}

func (q *Queue) closedError() yaerrors.Error {
	return yaerrors.FromError(http.StatusServiceUnavailable, ErrQueueClosed, "[QUEUE] queue is closed")
}
