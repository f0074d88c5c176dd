package ngap

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

var ErrDecode = errors.New("malformed NGAP PDU")

// Encode writes the procedure code followed by the gob encoded PDU.
func Encode(pdu *PDU) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(pdu.Procedure))
	e := gob.NewEncoder(&b)
	if err := e.Encode(pdu); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func Decode(buf []byte) (*PDU, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("%w: short buffer", ErrDecode)
	}
	var pdu PDU
	dec := gob.NewDecoder(bytes.NewReader(buf[1:]))
	if err := dec.Decode(&pdu); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if byte(pdu.Procedure) != buf[0] {
		return nil, fmt.Errorf("%w: header procedure %d, body %d", ErrDecode, buf[0], pdu.Procedure)
	}
	for _, ie := range pdu.IEs {
		if ie.Value == nil || ie.Value.ProtocolIEID() != ie.ID {
			return nil, fmt.Errorf("%w: %s IE %d has mismatched value", ErrDecode, pdu.Name(), ie.ID)
		}
	}
	return &pdu, nil
}
