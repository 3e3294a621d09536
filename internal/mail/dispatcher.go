package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/personal-calendar/internal/application"
)

var (
	// ErrQueueFull is returned when the delivery queue has no free slot.
	ErrQueueFull = errors.New("mail: queue full")
	// ErrDispatcherClosed is returned once Close has been called.
	ErrDispatcherClosed = errors.New("mail: dispatcher closed")
)

// Delivery outcomes reported to a DeliveryObserver.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
)

// DeliveryObserver is told about every queued, dropped or delivered message.
type DeliveryObserver interface {
	ObserveDelivery(outcome string)
	ObserveQueueDepth(depth int)
}

// DispatcherConfig sizes the queue and worker pool.
type DispatcherConfig struct {
	QueueSize   int
	Workers     int
	SendTimeout time.Duration
}

// Dispatcher renders invitations and hands them to a fixed pool of workers
// through a bounded queue. A full queue drops the message.
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	queue    chan Message
	workers  int
	timeout  time.Duration
	observer DeliveryObserver
	logger   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher. Call Start to launch the workers.
func NewDispatcher(renderer *Renderer, sender Sender, config DispatcherConfig, logger *slog.Logger) *Dispatcher {
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		renderer: renderer,
		sender:   sender,
		queue:    make(chan Message, config.QueueSize),
		workers:  config.Workers,
		timeout:  config.SendTimeout,
		logger:   logger.With("component", "mail_dispatcher"),
	}
}

// SetObserver registers a delivery observer. It must be called before Start.
func (d *Dispatcher) SetObserver(observer DeliveryObserver) {
	d.observer = observer
}

// Start launches the worker pool. Calling Start more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(i)
	}
}

// SendInvitation implements application.InvitationSender. It renders the
// message and enqueues it without waiting for delivery.
func (d *Dispatcher) SendInvitation(ctx context.Context, invitation application.Invitation) error {
	message, err := d.renderer.Render(invitation)
	if err != nil {
		return err
	}
	return d.Enqueue(ctx, message)
}

// Enqueue hands message to the workers, failing fast when the queue is full.
func (d *Dispatcher) Enqueue(ctx context.Context, message Message) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queue <- message:
		d.observeDepth()
		return nil
	default:
		d.observe(OutcomeDropped)
		d.logger.WarnContext(ctx, "mail queue full, dropping message", "to", message.To, "capacity", cap(d.queue))
		return ErrQueueFull
	}
}

// Depth reports the number of queued messages.
func (d *Dispatcher) Depth() int {
	return len(d.queue)
}

// Close stops accepting messages and waits for queued ones to be delivered
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) run(worker int) {
	defer d.wg.Done()
	for message := range d.queue {
		d.observeDepth()
		d.deliver(worker, message)
	}
}

func (d *Dispatcher) deliver(worker int, message Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, message); err != nil {
		d.observe(OutcomeFailed)
		d.logger.ErrorContext(ctx, "failed to deliver mail", "worker", worker, "to", message.To, "error", err)
		return
	}
	d.observe(OutcomeSent)
	d.logger.DebugContext(ctx, "mail delivered", "worker", worker, "to", message.To)
}

func (d *Dispatcher) observe(outcome string) {
	if d.observer != nil {
		d.observer.ObserveDelivery(outcome)
	}
}

func (d *Dispatcher) observeDepth() {
	if d.observer != nil {
		d.observer.ObserveQueueDepth(len(d.queue))
	}
}
