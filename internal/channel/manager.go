package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrInboundQueueFull is returned when the inbound queue cannot accept another message.
var ErrInboundQueueFull = errors.New("inbound queue is full")

// ConnectionStatus describes runtime status for the platform connection.
type ConnectionStatus struct {
	ChannelType ChannelType `json:"channel_type"`
	Running     bool        `json:"running"`
	LastError   string      `json:"last_error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// ManagerOptions sizes the inbound worker pool.
type ManagerOptions struct {
	QueueSize int
	Workers   int
}

type inboundTask struct {
	msg        DirectMessage
	enqueuedAt time.Time
}

// Manager owns the platform connection and drains received direct messages
// through a bounded queue into a fixed pool of workers. The platform's event
// callbacks only enqueue, so a slow helpdesk call never stalls the gateway.
type Manager struct {
	receiver Receiver
	handler  InboundHandler
	logger   *slog.Logger

	inboundQueue   chan inboundTask
	inboundWorkers int
	inboundOnce    sync.Once
	inboundCtx     context.Context
	inboundCancel  context.CancelFunc
	workers        sync.WaitGroup

	mu         sync.Mutex
	connection Connection
	status     ConnectionStatus
}

// NewManager creates a Manager for one receiver and inbound handler.
func NewManager(log *slog.Logger, receiver Receiver, handler InboundHandler, opts ManagerOptions) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	m := &Manager{
		receiver:       receiver,
		handler:        handler,
		logger:         log.With(slog.String("component", "channel")),
		inboundQueue:   make(chan inboundTask, opts.QueueSize),
		inboundWorkers: opts.Workers,
	}
	if receiver != nil {
		m.status.ChannelType = receiver.Type()
	}
	return m
}

// Start launches the worker pool and connects the receiver.
func (m *Manager) Start(ctx context.Context) error {
	m.logger.Info("manager start", slog.Int("workers", m.inboundWorkers), slog.Int("queue_size", cap(m.inboundQueue)))
	m.startInboundWorkers(ctx)
	if m.receiver == nil {
		return fmt.Errorf("channel receiver not configured")
	}
	conn, err := m.receiver.Connect(ctx, m.Enqueue)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.UpdatedAt = time.Now().UTC()
	if err != nil {
		m.status.Running = false
		m.status.LastError = err.Error()
		return fmt.Errorf("connect %s: %w", m.receiver.Type(), err)
	}
	m.connection = conn
	m.status.Running = true
	m.status.LastError = ""
	return nil
}

// Enqueue schedules msg for processing. It never blocks the caller: when the
// queue is full the message is dropped and ErrInboundQueueFull returned.
func (m *Manager) Enqueue(ctx context.Context, msg DirectMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case m.inboundQueue <- inboundTask{msg: msg, enqueuedAt: time.Now()}:
		return nil
	default:
		m.logger.Warn("inbound queue full, message dropped",
			slog.String("message_id", msg.ID),
			slog.String("user_id", msg.UserID()),
		)
		return ErrInboundQueueFull
	}
}

func (m *Manager) startInboundWorkers(ctx context.Context) {
	m.inboundOnce.Do(func() {
		m.inboundCtx, m.inboundCancel = context.WithCancel(context.WithoutCancel(ctx))
		for i := 0; i < m.inboundWorkers; i++ {
			m.workers.Add(1)
			go m.runInboundWorker(i)
		}
	})
}

func (m *Manager) runInboundWorker(id int) {
	defer m.workers.Done()
	for {
		select {
		case <-m.inboundCtx.Done():
			return
		case task := <-m.inboundQueue:
			m.dispatch(id, task)
		}
	}
}

func (m *Manager) dispatch(worker int, task inboundTask) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("inbound handler panic",
				slog.Int("worker", worker),
				slog.String("message_id", task.msg.ID),
				slog.Any("panic", r),
			)
		}
	}()
	if m.handler == nil {
		return
	}
	if err := m.handler(m.inboundCtx, task.msg); err != nil {
		m.logger.Error("handle inbound failed",
			slog.Int("worker", worker),
			slog.String("message_id", task.msg.ID),
			slog.Duration("queued", time.Since(task.enqueuedAt)),
			slog.Any("error", err),
		)
	}
}

// Shutdown stops the platform connection and waits for in-flight messages.
// Messages still queued when the workers stop are discarded.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	conn := m.connection
	m.connection = nil
	m.status.Running = false
	m.status.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()

	var stopErr error
	if conn != nil {
		if err := conn.Stop(ctx); err != nil && !errors.Is(err, ErrStopNotSupported) {
			m.logger.Warn("connection stop failed", slog.Any("error", err))
			stopErr = err
		}
	}
	if m.inboundCancel != nil {
		m.inboundCancel()
	}
	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.logger.Info("manager stop")
	return stopErr
}

// ConnectionStatuses returns the observed connection status.
func (m *Manager) ConnectionStatuses() []ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := m.status
	if m.connection != nil {
		status.Running = m.connection.Running()
	}
	return []ConnectionStatus{status}
}

// QueueDepth returns the number of messages waiting for a worker.
func (m *Manager) QueueDepth() int {
	return len(m.inboundQueue)
}
