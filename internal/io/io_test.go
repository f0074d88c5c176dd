package io

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uesim/internal/task"
	"uesim/pkg/ngap"
)

func testPdu(t *testing.T) *ngap.PDU {
	t.Helper()
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.SuccessfulOutcome).
		WithProcedure(ngap.UEContextRelease, ngap.Reject).
		AddRanUeNgapID(1, ngap.Ignore).
		AddAmfUeNgapID(2, ngap.Ignore).
		Build()
	require.NoError(t, err)
	return pdu
}

func TestSendRecv(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		assert.NoError(t, Send(client, []byte("hello")))
	}()
	buf, err := Recv(server)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), buf)

	assert.Error(t, Send(client, nil))
	assert.Error(t, Send(client, make([]byte, MaxMsgLen+1)))
}

func TestSendRecvPdu(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	pdu := testPdu(t)
	go func() {
		assert.NoError(t, SendPdu(client, pdu))
	}()
	got, err := RecvPdu(server)
	require.NoError(t, err)
	assert.Equal(t, "UEContextReleaseComplete", got.Name())
	id, ok := got.AmfUeNgapID()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), id)
}

func TestRecvShortFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	go func() {
		client.Write([]byte{0x00, 0x05, 'a', 'b'})
		client.Close()
	}()
	_, err := Recv(server)
	assert.Error(t, err)
}

func TestLink(t *testing.T) {
	ue, amf := net.Pipe()
	inbox := task.NewMailbox()
	link := NewLink(ue, zap.NewNop().Sugar())

	done := make(chan error, 1)
	go func() {
		done <- link.Run(context.Background(), inbox)
	}()

	link.SendPdu(testPdu(t))
	got, err := RecvPdu(amf)
	require.NoError(t, err)
	assert.Equal(t, "UEContextReleaseComplete", got.Name())

	require.NoError(t, SendPdu(amf, testPdu(t)))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := inbox.Receive(ctx)
	require.NoError(t, err)
	assert.IsType(t, &ngap.PDU{}, msg)

	amf.Close()
	msg, err = inbox.Receive(ctx)
	require.NoError(t, err)
	assert.IsType(t, &ConnectionRelease{}, msg)
	assert.NoError(t, <-done)

	// sends after the release are dropped without blocking
	link.SendPdu(testPdu(t))
}

func TestLinkCancel(t *testing.T) {
	ue, amf := net.Pipe()
	defer amf.Close()
	inbox := task.NewMailbox()
	link := NewLink(ue, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- link.Run(ctx, inbox)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("link did not stop")
	}
	assert.Equal(t, 0, inbox.Len())
}
