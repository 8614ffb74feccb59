package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/smukkama/pm25-intent/internal/connection"
	"github.com/smukkama/pm25-intent/internal/protocol"
)

// ErrPoolBusy is returned when the invocation queue is full
var ErrPoolBusy = errors.New("gateway busy, try again later")

// Invoker runs the air quality intent for one device
type Invoker interface {
	Invoke(ctx context.Context, deviceID string) string
}

// InvokeJob is one queued invocation. Ctx belongs to the device's
// connection; a nil Ctx runs under the pool's context.
type InvokeJob struct {
	Ctx       context.Context
	Client    *connection.ClientInfo
	RequestID string
	Timestamp time.Time
	reply     func(*connection.ClientInfo, interface{}) error
}

// InvokePool runs invocations off the connection's read loop. An invocation
// waits for the same device to send its fix, which the read loop must be
// free to receive.
type InvokePool struct {
	invoker     Invoker
	jobQueue    chan *InvokeJob
	workerCount int
	logger      *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewInvokePool creates a pool; non-positive sizes fall back to defaults
func NewInvokePool(invoker Invoker, workerCount, queueSize int, logger *slog.Logger) *InvokePool {
	if workerCount <= 0 {
		workerCount = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &InvokePool{
		invoker:     invoker,
		jobQueue:    make(chan *InvokeJob, queueSize),
		workerCount: workerCount,
		logger:      logger,
	}
}

// Start starts the workers; they abort running invocations when ctx ends
func (p *InvokePool) Start(ctx context.Context) {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Submit queues a job without blocking
func (p *InvokePool) Submit(job *InvokeJob) error {
	select {
	case p.jobQueue <- job:
		return nil
	default:
		return ErrPoolBusy
	}
}

// Stop closes the queue and waits for queued jobs to finish
func (p *InvokePool) Stop() {
	p.stopOnce.Do(func() {
		close(p.jobQueue)
		p.wg.Wait()
	})
}

func (p *InvokePool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		p.process(ctx, id, job)
	}
}

func (p *InvokePool) process(ctx context.Context, id int, job *InvokeJob) {
	logger := p.logger.With("worker", id, "device_id", job.Client.DeviceID, "request_id", job.RequestID)

	if job.Ctx != nil {
		ctx = job.Ctx
	}
	text := p.invoker.Invoke(ctx, job.Client.DeviceID)
	if ctx.Err() != nil {
		logger.Debug("device gone before result", "error", ctx.Err())
		return
	}
	if err := job.reply(job.Client, protocol.NewResultMessage(job.RequestID, text)); err != nil {
		logger.Warn("failed to send result", "error", err)
		return
	}
	logger.Debug("invocation finished", "queued_for", time.Since(job.Timestamp))
}
