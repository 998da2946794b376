package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	logger "github.com/GapNapatS/PredictableTimingExperiment/server/internal/logging"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/metrics"
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/models"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Topic carries serialized trial payloads.
const Topic = "trial-results"

const defaultBuffer = 256

var (
	ErrNotStarted = errors.New("telemetry dispatcher not started")
	ErrClosed     = errors.New("telemetry dispatcher closed")
	ErrQueueFull  = errors.New("telemetry queue full")
)

// Dispatcher queues trial payloads and delivers them to a Sink in the order
// they were forwarded. A publisher goroutine moves the queue onto an
// in-process pub/sub and waits for each message to be acked, so a slow sink
// backs up the queue, never Forward. Delivery failures are logged and
// counted, never retried.
type Dispatcher struct {
	pubSub  *gochannel.GoChannel
	queue   chan models.Payload
	sink    Sink
	timeout time.Duration
	buffer  int
	metrics *metrics.Metrics
	log     *zap.Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	publishWG sync.WaitGroup
	deliverWG sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithLogger(log *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithTimeout bounds each Send call.
func WithTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = t }
}

// WithBuffer sets how many payloads may wait for delivery before Forward
// starts dropping them.
func WithBuffer(n int64) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.buffer = int(n)
		}
	}
}

func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		timeout: 5 * time.Second,
		buffer:  defaultBuffer,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan models.Payload, d.buffer)
	d.pubSub = gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		logger.NewWatermillZapLogger(d.log),
	)
	return d
}

// Start subscribes the delivery worker and starts the publisher. Payloads
// forwarded before Start are dropped.
func (d *Dispatcher) Start(ctx context.Context) error {
	messages, err := d.pubSub.Subscribe(ctx, Topic)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.started = true

	d.deliverWG.Add(1)
	go func() {
		defer d.deliverWG.Done()
		for msg := range messages {
			d.deliver(ctx, msg)
		}
	}()

	d.publishWG.Add(1)
	go func() {
		defer d.publishWG.Done()
		for p := range d.queue {
			if err := d.publish(p); err != nil {
				d.log.Warn("Failed to publish telemetry",
					zap.String("participant_id", p.ParticipantID),
					zap.Error(err))
				d.countFailure()
			}
		}
	}()
	return nil
}

// Forward implements experiment.Forwarder. It never blocks.
func (d *Dispatcher) Forward(participantID string, result models.TrialResult) {
	if err := d.enqueue(models.NewPayload(participantID, result)); err != nil {
		d.log.Warn("Failed to queue telemetry",
			zap.String("participant_id", participantID),
			zap.Error(err))
		d.countFailure()
	}
}

func (d *Dispatcher) enqueue(p models.Payload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.closed:
		return ErrClosed
	case !d.started:
		return ErrNotStarted
	}
	select {
	case d.queue <- p:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) publish(p models.Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("participant_id", p.ParticipantID)
	return d.pubSub.Publish(Topic, msg)
}

func (d *Dispatcher) deliver(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var p models.Payload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		d.log.Error("Dropping malformed telemetry message", zap.String("uuid", msg.UUID), zap.Error(err))
		d.countFailure()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sink.Send(sendCtx, p); err != nil {
		d.log.Warn("Telemetry delivery failed",
			zap.String("sink", d.sink.Name()),
			zap.String("participant_id", p.ParticipantID),
			zap.String("condition", p.Condition),
			zap.Error(err))
		d.countFailure()
		return
	}
	if d.metrics != nil {
		d.metrics.TelemetryDelivered.WithLabelValues(d.sink.Name()).Inc()
	}
}

func (d *Dispatcher) countFailure() {
	if d.metrics != nil {
		d.metrics.TelemetryFailed.WithLabelValues(d.sink.Name()).Inc()
	}
}

// Close stops accepting payloads, delivers what is queued, then closes the
// pub/sub and the sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.publishWG.Wait()
	err := d.pubSub.Close()
	d.deliverWG.Wait()
	return errors.Join(err, d.sink.Close())
}
