package io

import (
	"errors"
	"fmt"
	"io"
	"net"

	"uesim/pkg/ngap"
)

var EOF error = io.EOF

var (
	errEmpty    = errors.New("msg length of buffer is zero")
	errTooLarge = errors.New("msg does not fit a 2 byte length prefix")
)

// MaxMsgLen is the largest frame the 2 byte length prefix can carry.
const MaxMsgLen = 0xffff

func Send(conn net.Conn, msg []byte) (err error) {
	if len(msg) == 0 {
		return errEmpty
	}
	if len(msg) > MaxMsgLen {
		return fmt.Errorf("%w: %d bytes", errTooLarge, len(msg))
	}
	msgLen := uint16(len(msg))
	buf := make([]byte, 2, 2+len(msg))
	buf[0] = uint8(msgLen >> 8)
	buf[1] = uint8(msgLen & 0xff)
	_, err = conn.Write(append(buf, msg...))
	return err
}

func SendPdu(conn net.Conn, pdu *ngap.PDU) (err error) {
	pkt, err := ngap.Encode(pdu)
	if err != nil {
		return err
	}
	return Send(conn, pkt)
}

func Recv(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 2)

	_, err := io.ReadFull(conn, buf)
	if err != nil {
		return nil, err
	}

	msgLen := uint16(buf[1]) | uint16(buf[0])<<8
	if msgLen < 1 {
		return nil, errEmpty
	}
	buf = make([]byte, msgLen)
	_, err = io.ReadFull(conn, buf)
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return buf, err
}

func RecvPdu(conn net.Conn) (*ngap.PDU, error) {
	buf, err := Recv(conn)
	if err != nil {
		return nil, err
	}
	return ngap.Decode(buf)
}
