package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/pm25-intent/internal/protocol"
)

// ErrDeviceNotConnected is returned by a Deliverer when the device has no
// live connection on this gateway
var ErrDeviceNotConnected = errors.New("device not connected")

// MessageSource is satisfied by *Consumer
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Deliverer forwards a request to a connected device
type Deliverer interface {
	Deliver(ctx context.Context, req *protocol.LocationRequest) error
}

// Dispatcher consumes location requests and hands them to device connections
type Dispatcher struct {
	source    MessageSource
	deliverer Deliverer
	maxAge    time.Duration
	logger    *slog.Logger
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Requests older than maxAge are dropped
// since nobody is waiting for their answer anymore; zero keeps everything.
func NewDispatcher(source MessageSource, deliverer Deliverer, maxAge time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		source:    source,
		deliverer: deliverer,
		maxAge:    maxAge,
		logger:    logger,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins consuming
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		<-d.stopCh
		cancel()
	}()

	d.wg.Add(1)
	go d.run(ctx)
}

// Stop stops the dispatcher gracefully
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		msg, err := d.source.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("consumer error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		d.logger.Debug("consumed location request", "partition", msg.Partition, "offset", msg.Offset)

		if err := d.processMessage(ctx, msg); err != nil {
			d.logger.Warn("failed to dispatch location request", "error", err, "offset", msg.Offset)
		}

		// Requests are fire-and-forget; a failed delivery is not retried
		if err := d.source.Commit(ctx, msg); err != nil && ctx.Err() == nil {
			d.logger.Error("failed to commit offset", "error", err, "offset", msg.Offset)
		}
	}
}

func (d *Dispatcher) processMessage(ctx context.Context, msg kafka.Message) error {
	req, err := protocol.DecodeLocationRequest(msg.Value)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	if d.maxAge > 0 && d.now().Sub(req.RequestedAt) > d.maxAge {
		d.logger.Debug("dropping expired location request", "request_id", req.RequestID, "device_id", req.DeviceID)
		return nil
	}

	if err := d.deliverer.Deliver(ctx, req); err != nil {
		if errors.Is(err, ErrDeviceNotConnected) {
			d.logger.Debug("device not connected", "request_id", req.RequestID, "device_id", req.DeviceID)
			return nil
		}
		return fmt.Errorf("failed to deliver %s request to %s: %w", req.Kind, req.DeviceID, err)
	}

	d.logger.Info("location request delivered", "request_id", req.RequestID, "device_id", req.DeviceID, "kind", req.Kind)
	return nil
}
