package task

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

// Func is the body of a task. It owns everything it touches; other tasks
// reach it only through its mailbox.
type Func func(ctx context.Context, t *Task) error

type Task struct {
	ID   uuid.UUID
	Name string

	mailbox *Mailbox
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// New creates a task without starting it, so that others can hold a
// reference to its mailbox before it runs.
func New(name string) *Task {
	return &Task{
		ID:      uuid.Must(uuid.NewV4()),
		Name:    name,
		mailbox: NewMailbox(),
		done:    make(chan struct{}),
	}
}

// Spawn creates a task and runs fn on its own goroutine.
func Spawn(ctx context.Context, name string, fn Func) *Task {
	t := New(name)
	t.Start(ctx, fn)
	return t
}

func (t *Task) Start(ctx context.Context, fn Func) {
	ctx, t.cancel = context.WithCancel(ctx)
	go func() {
		defer close(t.done)
		defer t.mailbox.Close()
		err := fn(ctx, t)
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}()
}

func (t *Task) Send(msg any) bool {
	return t.mailbox.Send(msg)
}

func (t *Task) Receive(ctx context.Context) (any, error) {
	return t.mailbox.Receive(ctx)
}

func (t *Task) TryReceive() (any, bool) {
	return t.mailbox.TryReceive()
}

func (t *Task) ReceiveTimeout(ctx context.Context, d time.Duration) (any, error) {
	return t.mailbox.ReceiveTimeout(ctx, d)
}

func (t *Task) Mailbox() *Mailbox {
	return t.mailbox
}

// Stop cancels the task context and waits for it to return.
func (t *Task) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	return t.Wait()
}

func (t *Task) Wait() error {
	<-t.done
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) String() string {
	return t.Name + "/" + t.ID.String()[:8]
}
