package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
)

// EapAkaPrimeKeys are the keys of RFC 5448 3.3.
type EapAkaPrimeKeys struct {
	Kencr []byte
	Kaut  []byte
	Kre   []byte
	MSK   []byte
	EMSK  []byte
}

// Kausf is the first 256 bits of EMSK (TS 33.501 6.1.3.1).
func (k *EapAkaPrimeKeys) Kausf() []byte {
	return k.EMSK[:32]
}

// PRFPrime is PRF' of RFC 5448 3.4.
func PRFPrime(key, s []byte, n int) []byte {
	var out, t []byte
	for i := byte(1); len(out) < n; i++ {
		mac := hmac.New(sha256.New, key)
		mac.Write(t)
		mac.Write(s)
		mac.Write([]byte{i})
		t = mac.Sum(nil)
		out = append(out, t...)
	}
	return out[:n]
}

// DeriveEapAkaPrime computes MK = PRF'(IK'|CK', "EAP-AKA'"|identity) and
// splits it into the EAP-AKA' keys.
func DeriveEapAkaPrime(ckp, ikp []byte, identity string) *EapAkaPrimeKeys {
	mk := PRFPrime(concat(ikp, ckp), concat([]byte("EAP-AKA'"), []byte(identity)), 208)
	return &EapAkaPrimeKeys{
		Kencr: mk[0:16],
		Kaut:  mk[16:48],
		Kre:   mk[48:80],
		MSK:   mk[80:144],
		EMSK:  mk[144:208],
	}
}

// EapMAC is the AT_MAC value, HMAC-SHA-256-128 keyed with K_aut.
func EapMAC(kaut, packet []byte) []byte {
	mac := hmac.New(sha256.New, kaut)
	mac.Write(packet)
	return mac.Sum(nil)[:16]
}
