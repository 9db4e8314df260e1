package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const testChannelType = ChannelType("test")

type fakeReceiver struct {
	mu         sync.Mutex
	handler    InboundHandler
	connectErr error
	stopped    bool
}

func (r *fakeReceiver) Type() ChannelType { return testChannelType }

func (r *fakeReceiver) Connect(ctx context.Context, handler InboundHandler) (Connection, error) {
	if r.connectErr != nil {
		return nil, r.connectErr
	}
	r.mu.Lock()
	r.handler = handler
	r.mu.Unlock()
	return NewConnection(testChannelType, func(context.Context) error {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		return nil
	}), nil
}

func (r *fakeReceiver) deliver(ctx context.Context, msg DirectMessage) error {
	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	return handler(ctx, msg)
}

func TestManagerDispatchesToHandler(t *testing.T) {
	t.Parallel()

	received := make(chan DirectMessage, 4)
	receiver := &fakeReceiver{}
	manager := NewManager(nil, receiver, func(ctx context.Context, msg DirectMessage) error {
		received <- msg
		return nil
	}, ManagerOptions{QueueSize: 4, Workers: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := receiver.deliver(ctx, DirectMessage{ID: "m1", Sender: Identity{SubjectID: "U1"}, Text: "hi"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	select {
	case msg := <-received:
		if msg.ID != "m1" || msg.UserID() != "U1" {
			t.Fatalf("unexpected message: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("message was not dispatched")
	}

	statuses := manager.ConnectionStatuses()
	if len(statuses) != 1 || !statuses[0].Running || statuses[0].ChannelType != testChannelType {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	receiver.mu.Lock()
	stopped := receiver.stopped
	receiver.mu.Unlock()
	if !stopped {
		t.Fatalf("expected connection to be stopped")
	}
	if manager.ConnectionStatuses()[0].Running {
		t.Fatalf("expected status not running after shutdown")
	}
}

func TestManagerEnqueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	manager := NewManager(nil, &fakeReceiver{}, nil, ManagerOptions{QueueSize: 1, Workers: 1})
	ctx := context.Background()

	if err := manager.Enqueue(ctx, DirectMessage{ID: "1"}); err != nil {
		t.Fatalf("first enqueue failed: %v", err)
	}
	if err := manager.Enqueue(ctx, DirectMessage{ID: "2"}); !errors.Is(err, ErrInboundQueueFull) {
		t.Fatalf("expected ErrInboundQueueFull, got %v", err)
	}
	if manager.QueueDepth() != 1 {
		t.Fatalf("unexpected queue depth: %d", manager.QueueDepth())
	}
}

func TestManagerStartRecordsConnectError(t *testing.T) {
	t.Parallel()

	connectErr := errors.New("gateway refused")
	manager := NewManager(nil, &fakeReceiver{connectErr: connectErr}, nil, ManagerOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Start(ctx); !errors.Is(err, connectErr) {
		t.Fatalf("expected connect error, got %v", err)
	}
	status := manager.ConnectionStatuses()[0]
	if status.Running || status.LastError != "gateway refused" {
		t.Fatalf("unexpected status: %+v", status)
	}
	_ = manager.Shutdown(context.Background())
}

func TestManagerRecoversHandlerPanic(t *testing.T) {
	t.Parallel()

	done := make(chan struct{}, 2)
	receiver := &fakeReceiver{}
	manager := NewManager(nil, receiver, func(ctx context.Context, msg DirectMessage) error {
		done <- struct{}{}
		if msg.ID == "boom" {
			panic("boom")
		}
		return nil
	}, ManagerOptions{QueueSize: 4, Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = receiver.deliver(ctx, DirectMessage{ID: "boom"})
	_ = receiver.deliver(ctx, DirectMessage{ID: "ok"})
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("worker stopped after panic")
		}
	}
	_ = manager.Shutdown(context.Background())
}
