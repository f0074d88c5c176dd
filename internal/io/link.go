package io

import (
	"context"
	"errors"
	"net"
	"sync"

	"go.uber.org/zap"

	"uesim/internal/task"
	"uesim/pkg/ngap"
)

// ConnectionRelease is posted to the endpoint when the link to the core
// is lost, in either direction.
type ConnectionRelease struct {
	Err error
}

func (r *ConnectionRelease) String() string {
	if r.Err == nil {
		return "connection released"
	}
	return "connection released: " + r.Err.Error()
}

// Poster is the endpoint mailbox inbound PDUs and releases are posted to.
type Poster interface {
	Send(msg any) bool
}

// Link carries NGAP PDUs between an endpoint and the core over one
// connection. Sends are queued to a writer task and never block the caller.
type Link struct {
	conn   net.Conn
	writer *task.Task
	log    *zap.SugaredLogger
	once   sync.Once
}

func NewLink(conn net.Conn, log *zap.SugaredLogger) *Link {
	return &Link{conn: conn, writer: task.New("link-writer"), log: log}
}

// SendPdu queues pdu for the writer. Failures surface later as a
// ConnectionRelease.
func (l *Link) SendPdu(pdu *ngap.PDU) {
	if !l.writer.Send(pdu) {
		l.log.Warnw("link closed, pdu dropped", "message", pdu.Name())
	}
}

// Run posts every inbound PDU to inbox until the connection fails or ctx
// is done. A failure is posted to inbox once, as a ConnectionRelease.
func (l *Link) Run(ctx context.Context, inbox Poster) error {
	linkCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.writer.Start(linkCtx, func(ctx context.Context, t *task.Task) error {
		for {
			msg, err := t.Receive(ctx)
			if err != nil {
				return nil
			}
			pdu, ok := msg.(*ngap.PDU)
			if !ok {
				continue
			}
			if err := SendPdu(l.conn, pdu); err != nil {
				l.release(inbox, err)
				l.conn.Close()
				return err
			}
		}
	})

	go func() {
		<-linkCtx.Done()
		l.conn.Close()
	}()

	for {
		pdu, err := RecvPdu(l.conn)
		if errors.Is(err, ngap.ErrDecode) {
			l.log.Warnw("cannot decode ngap pdu, message dropped", "error", err)
			continue
		}
		if err != nil {
			cancel()
			l.writer.Wait()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.release(inbox, err)
			return nil
		}
		inbox.Send(pdu)
	}
}

func (l *Link) release(inbox Poster, err error) {
	l.once.Do(func() {
		if !errors.Is(err, EOF) {
			l.log.Warnw("connection lost", "remote", l.conn.RemoteAddr().String(), "error", err)
		}
		inbox.Send(&ConnectionRelease{Err: err})
	})
}
