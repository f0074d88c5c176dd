package crypto

import (
	"crypto/aes"
	"crypto/hmac"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/aead/cmac"
	"github.com/free5gc/nas/security"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

var ErrUnsupportedAlg = errors.New("integrity algorithm not supported")

// Integrity algorithm identifiers. IA4 and IA5 sit on spare code points and
// are only understood by this simulator and its AMF.
const (
	NIA0 uint8 = 0
	NIA1 uint8 = 1
	NIA2 uint8 = 2
	NIA3 uint8 = 3
	IA4  uint8 = 4
	IA5  uint8 = 5
)

const (
	DirectionUplink   uint8 = 0
	DirectionDownlink uint8 = 1
)

// Bearer3GPP is the bearer id used for 3GPP access.
const Bearer3GPP uint8 = 1

// MACFunc computes a 32 bit NAS-MAC.
type MACFunc func(key [16]byte, count uint32, bearer, dir uint8, msg []byte) ([]byte, error)

var IAalg = map[uint8]MACFunc{
	NIA0: nia0,
	NIA1: nia1,
	NIA2: nia2,
	IA4:  ia4,
	IA5:  ia5,
}

// ComputeMAC runs the integrity algorithm alg.
func ComputeMAC(alg uint8, key []byte, count uint32, bearer, dir uint8, msg []byte) ([]byte, error) {
	f, ok := IAalg[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedAlg, alg)
	}
	if err := checkLen("KNASint", key, KeyLen); err != nil {
		return nil, err
	}
	var k [16]byte
	copy(k[:], key)
	return f(k, count, bearer, dir, msg)
}

func Supported(alg uint8) bool {
	_, ok := IAalg[alg]
	return ok
}

func nia0(_ [16]byte, _ uint32, _, _ uint8, _ []byte) ([]byte, error) {
	return make([]byte, 4), nil
}

func nia1(key [16]byte, count uint32, bearer, dir uint8, msg []byte) ([]byte, error) {
	return security.NIA1(key, count, bearer, uint32(dir), msg, uint64(len(msg))*8)
}

// header is COUNT || BEARER | DIRECTION || 0^26, as used by 128-NIA2.
func header(count uint32, bearer, dir uint8) []byte {
	h := make([]byte, 8)
	binary.BigEndian.PutUint32(h, count)
	h[4] = bearer<<3 | dir<<2
	return h
}

func nia2(key [16]byte, count uint32, bearer, dir uint8, msg []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	mac, err := cmac.Sum(concat(header(count, bearer, dir), msg), block, 16)
	if err != nil {
		return nil, err
	}
	return mac[:4], nil
}

func ia4(key [16]byte, count uint32, bearer, dir uint8, msg []byte) ([]byte, error) {
	h, err := blake2b.New256(key[:])
	if err != nil {
		return nil, err
	}
	h.Write(header(count, bearer, dir))
	h.Write(msg)
	return h.Sum(nil)[:4], nil
}

func ia5(key [16]byte, count uint32, bearer, dir uint8, msg []byte) ([]byte, error) {
	h := hmac.New(sha3.New256, key[:])
	h.Write(header(count, bearer, dir))
	h.Write(msg)
	return h.Sum(nil)[:4], nil
}
