package task

import (
	"context"
	"errors"
)

var ErrNotDelivered = errors.New("request not delivered")

// Request carries a question to a task. The receiving task answers with
// Reply from inside its own loop, so the asker never touches its state.
type Request struct {
	Body  any
	reply chan any
}

func (r *Request) Reply(v any) {
	select {
	case r.reply <- v:
	default:
	}
}

// Ask sends body to t wrapped in a Request and waits for the reply.
func Ask(ctx context.Context, t *Task, body any) (any, error) {
	req := &Request{Body: body, reply: make(chan any, 1)}
	if !t.Send(req) {
		return nil, ErrNotDelivered
	}
	select {
	case v := <-req.reply:
		return v, nil
	case <-t.Done():
		return nil, ErrNotDelivered
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
