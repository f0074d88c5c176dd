package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
)

// FC values of TS 33.220 / TS 33.501 Annex A.
const (
	fcCkIkPrime = 0x20
	fcAlgorithm = 0x69
	fcKausf     = 0x6a
	fcResStar   = 0x6b
	fcKseaf     = 0x6c
	fcKamf      = 0x6d
)

// Algorithm type distinguishers (TS 33.501 A.8).
const (
	NasEncAlg uint8 = 0x01
	NasIntAlg uint8 = 0x02
)

// KDF is the generic key derivation function of TS 33.220 B.2: HMAC-SHA-256
// over FC || P0 || L0 || P1 || L1 ...
func KDF(key []byte, fc byte, params ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte{fc})
	for _, p := range params {
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(len(p)))
		mac.Write(p)
		mac.Write(l[:])
	}
	return mac.Sum(nil)
}

// ServingNetworkName formats "5G:mnc<MNC>.mcc<MCC>.3gppnetwork.org" with
// three digit fields.
func ServingNetworkName(mcc, mnc string) (string, error) {
	c, err := strconv.Atoi(mcc)
	if err != nil {
		return "", fmt.Errorf("mcc %q: %w", mcc, err)
	}
	n, err := strconv.Atoi(mnc)
	if err != nil {
		return "", fmt.Errorf("mnc %q: %w", mnc, err)
	}
	return fmt.Sprintf("5G:mnc%03d.mcc%03d.3gppnetwork.org", n, c), nil
}

// Kausf for 5G AKA (TS 33.501 A.2).
func Kausf(ck, ik []byte, snn string, sqnXorAK []byte) []byte {
	return KDF(concat(ck, ik), fcKausf, []byte(snn), sqnXorAK)
}

// ResStar is the 128 least significant bits of the A.4 KDF output.
func ResStar(ck, ik []byte, snn string, rand, res []byte) []byte {
	out := KDF(concat(ck, ik), fcResStar, []byte(snn), rand, res)
	return out[len(out)-16:]
}

// HResStar is the serving network's hash of (X)RES* (TS 33.501 A.5).
func HResStar(rand, resStar []byte) []byte {
	h := sha256.Sum256(concat(rand, resStar))
	return h[16:]
}

func Kseaf(kausf []byte, snn string) []byte {
	return KDF(kausf, fcKseaf, []byte(snn))
}

func Kamf(kseaf []byte, supi string, abba []byte) []byte {
	return KDF(kseaf, fcKamf, []byte(supi), abba)
}

// AlgorithmKey derives KNASenc or KNASint (TS 33.501 A.8).
func AlgorithmKey(kamf []byte, distinguisher, algID uint8) []byte {
	out := KDF(kamf, fcAlgorithm, []byte{distinguisher}, []byte{algID})
	return out[len(out)-16:]
}

// CkIkPrime derives CK' and IK' for EAP-AKA' (TS 33.402 A.2).
func CkIkPrime(ck, ik []byte, snn string, sqnXorAK []byte) (ckp, ikp []byte) {
	out := KDF(concat(ck, ik), fcCkIkPrime, []byte(snn), sqnXorAK)
	return out[:16], out[16:]
}

func concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
