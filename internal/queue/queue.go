// Package queue adapts pkg/queue's SQS transport to the domain: it turns
// an AnalysisTask into an enqueued SQSEvent (spec §4.8) and runs the
// consumer loop that drains analysis_queue, drives the workflow machine,
// and publishes outcomes to analysis_results or dlq.analysis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/riskguard/analyzer/internal/model"
	"github.com/riskguard/analyzer/internal/workflow"
	"github.com/riskguard/analyzer/pkg/common/cache"
	"github.com/riskguard/analyzer/pkg/observability"
	"github.com/riskguard/analyzer/pkg/queue"
)

// MaxDelivery bounds redelivery attempts before a message is routed to
// dlq.analysis (spec §4.8 "after the broker's max-delivery retries").
const MaxDelivery = 5

// GracefulTimeout bounds how long Run waits for in-flight tasks to finish
// once its context is cancelled (spec §5 graceful_timeout=30s).
const GracefulTimeout = 30 * time.Second

const (
	eventAnalysisTask   = "analysis_task"
	eventAnalysisResult = "analysis_result"
)

// Publisher enqueues an AnalysisTask onto analysis_queue. It satisfies
// internal/api.Publisher.
type Publisher struct {
	queue    queue.SQSAdapter
	clientNm string
}

// NewPublisher wraps an SQSAdapter bound to analysis_queue.
func NewPublisher(adapter queue.SQSAdapter) *Publisher {
	return &Publisher{queue: adapter}
}

// Enqueue marshals task and sends it as an analysis_task event.
func (p *Publisher) Enqueue(ctx context.Context, task model.AnalysisTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("queue: marshal task: %w", err)
	}
	return p.queue.EnqueueEvent(ctx, queue.SQSEvent{
		TaskID:     task.TaskID,
		EventType:  eventAnalysisTask,
		ClientName: task.ClientName,
		Priority:   task.Priority,
		Payload:    payload,
	})
}

// Consumer drains analysis_queue, drives the workflow machine per task,
// and publishes the outcome to analysis_results. Messages that fail
// MaxDelivery times are moved to dlq.analysis (spec §4.8, §5).
type Consumer struct {
	inbox    queue.SQSAdapter
	results  queue.SQSAdapter
	dlq      queue.SQSAdapter
	machine  *workflow.Machine
	logger   observability.Logger

	maxConsumers int

	dedup    cache.Cache
	dedupTTL time.Duration
}

// NewConsumer builds a Consumer. inbox is analysis_queue, results is
// analysis_results, dlq is dlq.analysis. maxConsumers bounds the number
// of tasks processed concurrently (spec §5 max_consumers=10 default).
// dedup is the Redis-backed (or no-op) cache guarding against duplicate
// task_id delivery within dedupTTL (spec §5 edge case 5).
func NewConsumer(inbox, results, dlq queue.SQSAdapter, machine *workflow.Machine, maxConsumers int, dedup cache.Cache, dedupTTL time.Duration, logger observability.Logger) *Consumer {
	if maxConsumers <= 0 {
		maxConsumers = 10
	}
	if dedup == nil {
		dedup = cache.NewNoOpCache()
	}
	if dedupTTL <= 0 {
		dedupTTL = 60 * time.Second
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Consumer{
		inbox: inbox, results: results, dlq: dlq, machine: machine, maxConsumers: maxConsumers,
		dedup: dedup, dedupTTL: dedupTTL, logger: logger,
	}
}

// Run polls inbox until ctx is cancelled, then waits up to
// GracefulTimeout for in-flight handlers before returning.
func (c *Consumer) Run(ctx context.Context) error {
	sem := make(chan struct{}, c.maxConsumers)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			waitCh := make(chan struct{})
			go func() { wg.Wait(); close(waitCh) }()
			select {
			case <-waitCh:
			case <-time.After(GracefulTimeout):
				c.logger.Warn("queue consumer: graceful timeout exceeded, in-flight tasks abandoned", nil)
			}
			return ctx.Err()
		default:
		}

		events, handles, err := c.inbox.ReceiveEvents(ctx, 10, 5)
		if err != nil {
			c.logger.Error("queue consumer: receive failed", map[string]interface{}{"error": err.Error()})
			continue
		}

		for i, evt := range events {
			evt, handle := evt, handles[i]
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				c.handle(ctx, evt, handle)
			}()
		}
	}
}

func (c *Consumer) handle(ctx context.Context, evt queue.SQSEvent, receiptHandle string) {
	var task model.AnalysisTask
	if err := json.Unmarshal(evt.Payload, &task); err != nil {
		c.deadLetter(ctx, evt, fmt.Sprintf("unmarshal task: %v", err))
		_ = c.inbox.DeleteMessage(ctx, receiptHandle)
		return
	}

	dedupKey := "queue:dedup:" + task.TaskID
	if seen, _ := c.dedup.Exists(ctx, dedupKey); seen {
		c.logger.Warn("queue consumer: task_id already completed within dedup window, skipping", map[string]interface{}{"task_id": task.TaskID})
		_ = c.inbox.DeleteMessage(ctx, receiptHandle)
		return
	}

	state, err := c.machine.Run(ctx, task, nil)
	if err != nil {
		attempts := evt.Attempts + 1
		if attempts >= MaxDelivery {
			c.deadLetter(ctx, evt, err.Error())
			_ = c.inbox.DeleteMessage(ctx, receiptHandle)
			return
		}
		// Re-enqueue a copy carrying the incremented attempts counter and
		// delete the original, so the next delivery sees the updated
		// count (spec §4.8 "lets the broker redeliver for transient...
		// errors up to max_delivery").
		evt.Attempts = attempts
		_ = c.inbox.EnqueueEvent(ctx, evt)
		_ = c.inbox.DeleteMessage(ctx, receiptHandle)
		c.logger.Warn("queue consumer: task failed, requeued", map[string]interface{}{"task_id": task.TaskID, "attempts": attempts})
		return
	}

	c.publishResult(ctx, task, state)
	if err := c.dedup.Set(ctx, dedupKey, "1", c.dedupTTL); err != nil {
		c.logger.Warn("queue consumer: dedup cache write failed", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
	}
	_ = c.inbox.DeleteMessage(ctx, receiptHandle)
}

func (c *Consumer) publishResult(ctx context.Context, task model.AnalysisTask, state *model.WorkflowState) {
	result := model.AnalysisResult{TaskID: task.TaskID, Status: model.TaskCompleted, Report: state.Report, CompletedAt: time.Now().UTC()}
	if state.Stage != model.StageCompleted {
		result.Status = model.TaskFailed
	}
	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("queue consumer: marshal result", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
		return
	}
	if err := c.results.EnqueueEvent(ctx, queue.SQSEvent{
		TaskID:     task.TaskID,
		EventType:  eventAnalysisResult,
		ClientName: task.ClientName,
		Payload:    payload,
	}); err != nil {
		c.logger.Error("queue consumer: publish result", map[string]interface{}{"task_id": task.TaskID, "error": err.Error()})
	}
}

func (c *Consumer) deadLetter(ctx context.Context, evt queue.SQSEvent, lastErr string) {
	env := queue.DeadLetterEnvelope{Original: evt, LastError: lastErr, Attempts: evt.Attempts + 1}
	payload, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("queue consumer: marshal DLQ envelope", map[string]interface{}{"task_id": evt.TaskID, "error": err.Error()})
		return
	}
	if err := c.dlq.EnqueueEvent(ctx, queue.SQSEvent{
		TaskID:     evt.TaskID,
		EventType:  "dead_letter",
		ClientName: evt.ClientName,
		Payload:    payload,
		Attempts:   env.Attempts,
	}); err != nil {
		c.logger.Error("queue consumer: enqueue to DLQ failed", map[string]interface{}{"task_id": evt.TaskID, "error": err.Error()})
	}
}
