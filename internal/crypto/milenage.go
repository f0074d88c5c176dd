package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/wmnsk/milenage"
)

var (
	ErrInvalidLength = errors.New("invalid length")
	ErrMACFailure    = errors.New("network authentication code mismatch")
)

const (
	RandLen = 16
	AutnLen = 16
	KeyLen  = 16
	SqnLen  = 6
	AmfLen  = 2
)

// KeySet is the subscriber's long term material.
type KeySet struct {
	K       []byte
	OP      []byte
	OPIsOPc bool
	SQN     []byte
	AMF     []byte
}

// Vector holds the Milenage outputs for one challenge.
type Vector struct {
	RAND []byte
	SQN  []byte
	RES  []byte
	CK   []byte
	IK   []byte
	AK   []byte
	MACA []byte
}

// SQNxorAK is the first AUTN field, also a KDF input.
func (v *Vector) SQNxorAK() []byte {
	out := make([]byte, SqnLen)
	for i := range out {
		out[i] = v.SQN[i] ^ v.AK[i]
	}
	return out
}

// AUTN builds SQN^AK || AMF || MAC-A.
func (v *Vector) AUTN(amf []byte) []byte {
	autn := make([]byte, 0, AutnLen)
	autn = append(autn, v.SQNxorAK()...)
	autn = append(autn, amf...)
	return append(autn, v.MACA...)
}

func checkLen(name string, b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("%w: %s is %d octets, want %d", ErrInvalidLength, name, len(b), n)
	}
	return nil
}

func (k KeySet) validate() error {
	if err := checkLen("K", k.K, KeyLen); err != nil {
		return err
	}
	if err := checkLen("OP", k.OP, KeyLen); err != nil {
		return err
	}
	if err := checkLen("SQN", k.SQN, SqnLen); err != nil {
		return err
	}
	return checkLen("AMF", k.AMF, AmfLen)
}

// Compute runs f1 to f5 for rand using the stored SQN.
func (k KeySet) Compute(rand []byte) (*Vector, error) {
	return k.computeWith(rand, k.SQN)
}

func (k KeySet) computeWith(rand, sqn []byte) (*Vector, error) {
	if err := k.validate(); err != nil {
		return nil, err
	}
	if err := checkLen("RAND", rand, RandLen); err != nil {
		return nil, err
	}
	if err := checkLen("SQN", sqn, SqnLen); err != nil {
		return nil, err
	}

	var s [8]byte
	copy(s[2:], sqn)
	amf := binary.BigEndian.Uint16(k.AMF)

	var m *milenage.Milenage
	if k.OPIsOPc {
		m = milenage.NewWithOPc(k.K, k.OP, rand, binary.BigEndian.Uint64(s[:]), amf)
	} else {
		m = milenage.New(k.K, k.OP, rand, binary.BigEndian.Uint64(s[:]), amf)
	}
	if err := m.ComputeAll(); err != nil {
		return nil, err
	}
	return &Vector{
		RAND: append([]byte(nil), rand...),
		SQN:  append([]byte(nil), sqn...),
		RES:  m.RES,
		CK:   m.CK,
		IK:   m.IK,
		AK:   m.AK,
		MACA: m.MACA,
	}, nil
}

// VerifyAUTN recovers the network's SQN from autn and checks MAC-A. The
// returned vector is computed with the recovered SQN.
func (k KeySet) VerifyAUTN(rand, autn []byte) (*Vector, error) {
	if err := checkLen("AUTN", autn, AutnLen); err != nil {
		return nil, err
	}
	v, err := k.Compute(rand)
	if err != nil {
		return nil, err
	}
	sqn := make([]byte, SqnLen)
	for i := range sqn {
		sqn[i] = autn[i] ^ v.AK[i]
	}
	netK := k
	netK.AMF = autn[SqnLen : SqnLen+AmfLen]
	v, err = netK.computeWith(rand, sqn)
	if err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare(v.MACA, autn[SqnLen+AmfLen:]) != 1 {
		return v, ErrMACFailure
	}
	return v, nil
}

// ComputeResponse derives RES for a challenge. It keeps no state between
// calls.
func ComputeResponse(rand, op, sqn, amf, k []byte) ([]byte, error) {
	v, err := KeySet{K: k, OP: op, SQN: sqn, AMF: amf}.Compute(rand)
	if err != nil {
		return nil, err
	}
	return v.RES, nil
}

// PadResponse lays RES out as a 2 octet bit length followed by the response
// left padded with zero octets to a 4 octet boundary.
func PadResponse(res []byte) []byte {
	pad := (4 - len(res)%4) % 4
	out := make([]byte, 2+pad+len(res))
	binary.BigEndian.PutUint16(out, uint16((pad+len(res))*8))
	copy(out[2+pad:], res)
	return out
}

// UnpadResponse reverses PadResponse.
func UnpadResponse(b []byte, resLen int) ([]byte, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("%w: AT_RES is %d octets", ErrInvalidLength, len(b))
	}
	bits := int(binary.BigEndian.Uint16(b))
	if bits%8 != 0 || 2+bits/8 != len(b) || bits/8 < resLen {
		return nil, fmt.Errorf("%w: AT_RES announces %d bits in %d octets", ErrInvalidLength, bits, len(b))
	}
	return b[len(b)-resLen:], nil
}
