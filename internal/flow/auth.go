package flow

import (
	"errors"
	"fmt"

	"uesim/internal/crypto"
	"uesim/pkg/nas"
)

var (
	errNoChallenge = errors.New("authentication request carries no challenge")
	errBadEap      = errors.New("unexpected EAP packet")
)

// AT_KDF value for the default key derivation function.
var kdfDefault = []byte{0x00, 0x01}

// Subscriber is the identity and key material used to answer challenges.
type Subscriber struct {
	SUPI           string
	Identity       string
	Keys           crypto.KeySet
	ServingNetwork string
}

// Authenticate answers an authentication request. On success the session
// holds the new Kamf. For 5G AKA a MAC-A mismatch yields an Authentication
// Failure message together with crypto.ErrMACFailure.
func Authenticate(sub *Subscriber, sess *Session, req *nas.AuthenticationRequest) (nas.Message, error) {
	if req.EAP != nil {
		return authenticateEap(sub, sess, req)
	}
	if len(req.RAND) == 0 || len(req.AUTN) == 0 {
		return nil, errNoChallenge
	}
	return authenticate5G(sub, sess, req)
}

// attribute values of AT_RAND and AT_AUTN start with two reserved octets
func stripReserved(b []byte) []byte {
	if len(b) < 2 {
		return nil
	}
	return b[2:]
}

func authenticateEap(sub *Subscriber, sess *Session, req *nas.AuthenticationRequest) (nas.Message, error) {
	eap := req.EAP
	if eap.Code != nas.EapRequest || eap.Subtype != nas.AkaChallenge {
		return nil, fmt.Errorf("%w: code %d subtype %d", errBadEap, eap.Code, eap.Subtype)
	}
	at, _ := eap.Attribute(nas.AtRand)
	rand := stripReserved(at)
	mac, _ := eap.Attribute(nas.AtMac)

	v, err := sub.Keys.Compute(rand)
	if err != nil {
		return nil, err
	}

	sqnXorAK := v.SQNxorAK()
	if at, ok := eap.Attribute(nas.AtAutn); ok {
		if autn := stripReserved(at); len(autn) == crypto.AutnLen {
			sqnXorAK = autn[:crypto.SqnLen]
		}
	}
	ckp, ikp := crypto.CkIkPrime(v.CK, v.IK, sub.ServingNetwork, sqnXorAK)
	keys := crypto.DeriveEapAkaPrime(ckp, ikp, sub.Identity)
	kseaf := crypto.Kseaf(keys.Kausf(), sub.ServingNetwork)
	sess.Kamf = crypto.Kamf(kseaf, sub.SUPI, req.ABBA)
	sess.NgKSI = req.NgKSI.Ksi

	resp := nas.NewEapAkaPrime(nas.EapResponse, eap.ID, nas.AkaChallenge)
	resp.Set(nas.AtRes, crypto.PadResponse(v.RES))
	resp.Set(nas.AtMac, mac)
	resp.Set(nas.AtKdf, kdfDefault)
	return &nas.AuthenticationResponse{EAP: resp}, nil
}

func authenticate5G(sub *Subscriber, sess *Session, req *nas.AuthenticationRequest) (nas.Message, error) {
	v, err := sub.Keys.VerifyAUTN(req.RAND, req.AUTN)
	if errors.Is(err, crypto.ErrMACFailure) {
		return &nas.AuthenticationFailure{Cause: nas.CauseMACFailure}, err
	}
	if err != nil {
		return nil, err
	}

	sqnXorAK := req.AUTN[:crypto.SqnLen]
	kausf := crypto.Kausf(v.CK, v.IK, sub.ServingNetwork, sqnXorAK)
	kseaf := crypto.Kseaf(kausf, sub.ServingNetwork)
	sess.Kamf = crypto.Kamf(kseaf, sub.SUPI, req.ABBA)
	sess.NgKSI = req.NgKSI.Ksi

	res := crypto.ResStar(v.CK, v.IK, sub.ServingNetwork, req.RAND, v.RES)
	return &nas.AuthenticationResponse{ResponseParameter: res}, nil
}
