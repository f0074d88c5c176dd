package flow

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"uesim/internal/crypto"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

type recorder struct {
	pdus []*ngap.PDU
}

func (r *recorder) SendPdu(p *ngap.PDU) {
	r.pdus = append(r.pdus, p)
}

func (r *recorder) last() *ngap.PDU {
	return r.pdus[len(r.pdus)-1]
}

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func testSubscriber(t *testing.T) *Subscriber {
	return &Subscriber{
		SUPI:     "imsi-001010000000001",
		Identity: "suci-0-001-01-0000-0-0-0000000001",
		Keys: crypto.KeySet{
			K:   unhex(t, "465b5ce8b199b49faa5f0a2ee238a6bc"),
			OP:  unhex(t, "cdc202d5123e20f62b6d676ac72cb318"),
			SQN: unhex(t, "ff9bb4d0b607"),
			AMF: unhex(t, "b9b9"),
		},
		ServingNetwork: "5G:mnc001.mcc001.3gppnetwork.org",
	}
}

func testSession() *Session {
	return &Session{RanUeNgapID: 1}
}

func registrationInput(t *testing.T) RegistrationInput {
	return RegistrationInput{
		Type:           nas.InitialRegistration,
		NgKSI:          nas.NoKeyAvailable,
		MobileIdentity: nas.MobileIdentity{Type: nas.SUCI, Value: "suci-0-001-01-0000-0-0-0000000001"},
		IMEI:           "356938035643803",
		Capability:     nas.SecurityCapability{EA: 0x01, IA: 0x07},
		RRCCause:       ngap.RRCMoSignalling,
		Subscriber:     testSubscriber(t),
	}
}

func downlink(t *testing.T, msg nas.Message) *Incoming {
	t.Helper()
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.DownlinkNASTransport, ngap.Ignore).
		AddAmfUeNgapID(5, ngap.Reject).
		AddRanUeNgapID(1, ngap.Reject).
		AddNasPdu(msg, ngap.Reject).
		Build()
	require.NoError(t, err)
	return &Incoming{PDU: pdu, NAS: msg}
}

func releaseCommand(t *testing.T) *Incoming {
	t.Helper()
	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.UEContextRelease, ngap.Reject).
		AddProtocolIE(ngap.UENGAPIDs{AmfUeNgapID: 5, RanUeNgapID: 1, Pair: true}, ngap.Reject).
		AddProtocolIE(ngap.Cause{Group: ngap.CauseNas, Value: ngap.NasDeregister}, ngap.Ignore).
		Build()
	require.NoError(t, err)
	return &Incoming{PDU: pdu}
}

func sentNas(t *testing.T, pdu *ngap.PDU) nas.Message {
	t.Helper()
	b, ok := pdu.NasPdu()
	require.True(t, ok, "%s carries no NAS PDU", pdu.Name())
	msg, err := nas.Decode(b)
	require.NoError(t, err)
	return msg
}

func eapChallenge(rand []byte) *nas.AuthenticationRequest {
	eap := nas.NewEapAkaPrime(nas.EapRequest, 42, nas.AkaChallenge)
	eap.Set(nas.AtRand, append([]byte{0, 0}, rand...))
	eap.Set(nas.AtAutn, append([]byte{0, 0}, make([]byte, 16)...))
	eap.Set(nas.AtMac, append([]byte{0, 0}, make([]byte, 16)...))
	eap.Set(nas.AtKdf, []byte{0, 1})
	return &nas.AuthenticationRequest{
		NgKSI: nas.NasKeySetIdentifier{Ksi: 1},
		ABBA:  []byte{0, 0},
		EAP:   eap,
	}
}

func TestStateTerminal(t *testing.T) {
	assert.True(t, Complete.IsTerminal())
	assert.True(t, Abort.IsTerminal())
	assert.Equal(t, "complete", Complete.Next(&Incoming{}).Name())

	s := NewState("step", func(*Incoming) State { return Complete })
	assert.False(t, s.IsTerminal())
	assert.Equal(t, Complete.Name(), s.Next(&Incoming{}).Name())
}

// registration request, challenge, response, accept, complete
func TestRegistrationScenario(t *testing.T) {
	rec := &recorder{}
	sess := testSession()
	in := registrationInput(t)
	r := Start(NewRegistration(in, sess, rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	require.Len(t, rec.pdus, 1)
	first := rec.pdus[0]
	assert.Equal(t, "InitialUEMessage", first.Name())
	assert.Equal(t, ngap.Ignore, first.Criticality)
	req, ok := sentNas(t, first).(*nas.RegistrationRequest)
	require.True(t, ok)
	assert.Equal(t, nas.InitialRegistration, req.RegistrationType.Value)
	assert.NotEmpty(t, sess.InitialRequest)
	assert.Equal(t, "waitAmfMessages", r.State().Name())

	sess.AmfUeNgapID = 5
	rand := unhex(t, "23553cbe9637a89d218ae64dae47bf35")
	assert.Equal(t, Running, r.Deliver(downlink(t, eapChallenge(rand))))
	require.Len(t, rec.pdus, 2)
	assert.Equal(t, "UplinkNASTransport", rec.last().Name())

	resp, ok := sentNas(t, rec.last()).(*nas.AuthenticationResponse)
	require.True(t, ok)
	require.NotNil(t, resp.EAP)
	assert.Equal(t, uint8(42), resp.EAP.ID)
	assert.Equal(t, nas.EapResponse, resp.EAP.Code)

	want, err := crypto.ComputeResponse(rand, in.Subscriber.Keys.OP, in.Subscriber.Keys.SQN, in.Subscriber.Keys.AMF, in.Subscriber.Keys.K)
	require.NoError(t, err)
	atRes, _ := resp.EAP.Attribute(nas.AtRes)
	assert.Equal(t, crypto.PadResponse(want), atRes)
	kdf, _ := resp.EAP.Attribute(nas.AtKdf)
	assert.Equal(t, []byte{0, 1}, kdf)
	assert.Len(t, sess.Kamf, 32)
	assert.Equal(t, uint8(1), sess.NgKSI)

	amf, _ := rec.last().AmfUeNgapID()
	assert.Equal(t, uint64(5), amf)

	assert.Equal(t, Completed, r.Deliver(downlink(t, &nas.RegistrationAccept{Result: 1})))
	require.Len(t, rec.pdus, 3)
	_, ok = sentNas(t, rec.last()).(*nas.RegistrationComplete)
	assert.True(t, ok)

	// terminal flows absorb further input
	assert.Equal(t, Completed, r.Deliver(downlink(t, &nas.RegistrationAccept{})))
	assert.Len(t, rec.pdus, 3)
}

func TestRegistrationDeterministicResponse(t *testing.T) {
	rand := unhex(t, "23553cbe9637a89d218ae64dae47bf35")
	var answers [][]byte
	for i := 0; i < 2; i++ {
		rec := &recorder{}
		r := Start(NewRegistration(registrationInput(t), testSession(), rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())
		r.Deliver(downlink(t, eapChallenge(rand)))
		resp := sentNas(t, rec.last()).(*nas.AuthenticationResponse)
		res, _ := resp.EAP.Attribute(nas.AtRes)
		answers = append(answers, res)
	}
	assert.Equal(t, answers[0], answers[1])
}

func TestRegistrationInitialContextSetup(t *testing.T) {
	rec := &recorder{}
	sess := testSession()
	r := Start(NewRegistration(registrationInput(t), sess, rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	sess.AmfUeNgapID = 5

	pdu, err := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.InitialContextSetup, ngap.Reject).
		AddAmfUeNgapID(5, ngap.Reject).
		AddRanUeNgapID(1, ngap.Reject).
		Build()
	require.NoError(t, err)

	assert.Equal(t, Completed, r.Deliver(&Incoming{PDU: pdu}))
	require.Len(t, rec.pdus, 3)
	assert.Equal(t, "InitialContextSetupResponse", rec.pdus[1].Name())
	assert.Equal(t, ngap.Reject, rec.pdus[1].Criticality)
	_, ok := sentNas(t, rec.pdus[2]).(*nas.RegistrationComplete)
	assert.True(t, ok)
}

func TestRegistrationReject(t *testing.T) {
	rec := &recorder{}
	r := Start(NewRegistration(registrationInput(t), testSession(), rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	assert.Equal(t, Aborted, r.Deliver(downlink(t, &nas.RegistrationReject{Cause: nas.CauseCongestion})))
	assert.Len(t, rec.pdus, 1)
}

func TestRegistrationIdentityRequest(t *testing.T) {
	rec := &recorder{}
	in := registrationInput(t)
	r := Start(NewRegistration(in, testSession(), rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	r.Deliver(downlink(t, &nas.IdentityRequest{IdentityType: nas.IMEI}))
	require.Len(t, rec.pdus, 2)
	resp := sentNas(t, rec.last()).(*nas.IdentityResponse)
	assert.Equal(t, nas.MobileIdentity{Type: nas.IMEI, Value: in.IMEI}, resp.MobileIdentity)

	r.Deliver(downlink(t, &nas.IdentityRequest{IdentityType: nas.SUCI}))
	require.Len(t, rec.pdus, 3)
	resp = sentNas(t, rec.last()).(*nas.IdentityResponse)
	assert.Equal(t, in.MobileIdentity, resp.MobileIdentity)

	// unsupported identity types are logged, nothing is sent
	r.Deliver(downlink(t, &nas.IdentityRequest{IdentityType: nas.MACAddress}))
	assert.Len(t, rec.pdus, 3)
	assert.Equal(t, "waitAmfMessages", r.State().Name())
}

func TestRegistration5GAKA(t *testing.T) {
	rec := &recorder{}
	in := registrationInput(t)
	r := Start(NewRegistration(in, testSession(), rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	rand := unhex(t, "23553cbe9637a89d218ae64dae47bf35")
	v, err := in.Subscriber.Keys.Compute(rand)
	require.NoError(t, err)
	autn := v.AUTN(in.Subscriber.Keys.AMF)

	r.Deliver(downlink(t, &nas.AuthenticationRequest{ABBA: []byte{0, 0}, RAND: rand, AUTN: autn}))
	resp := sentNas(t, rec.last()).(*nas.AuthenticationResponse)
	want := crypto.ResStar(v.CK, v.IK, in.Subscriber.ServingNetwork, rand, v.RES)
	assert.Equal(t, want, resp.ResponseParameter)

	autn[15] ^= 0xff
	r.Deliver(downlink(t, &nas.AuthenticationRequest{ABBA: []byte{0, 0}, RAND: rand, AUTN: autn}))
	fail, ok := sentNas(t, rec.last()).(*nas.AuthenticationFailure)
	require.True(t, ok)
	assert.Equal(t, nas.CauseMACFailure, fail.Cause)
	assert.Equal(t, Running, r.Result())
}

func TestRegistrationProtectedAfterSecurityMode(t *testing.T) {
	rec := &recorder{}
	sess := testSession()
	r := Start(NewRegistration(registrationInput(t), sess, rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	sc, err := crypto.NewSecurityContext(1, make([]byte, 32), crypto.NIA2, 0)
	require.NoError(t, err)
	sess.Security = sc

	assert.Equal(t, Completed, r.Deliver(downlink(t, &nas.RegistrationAccept{Result: 1})))
	b, _ := rec.last().NasPdu()
	p, err := nas.DecodeProtected(b)
	require.NoError(t, err)
	assert.Equal(t, nas.IntegrityProtected, p.Header)
	assert.Equal(t, uint32(1), sc.ULCount)

	verify := *sc
	verify.ULCount = 0
	assert.True(t, p.Verify(verify.UplinkMAC()))
}

func deregistration(t *testing.T, rec *recorder) *Runner {
	sess := testSession()
	sess.AmfUeNgapID = 5
	in := DeregistrationInput{
		SwitchOff:      nas.NormalDeregistration,
		NgKSI:          1,
		MobileIdentity: nas.MobileIdentity{Type: nas.GUTI5G, Value: "guti-1"},
	}
	return Start(NewDeregistration(in, sess, rec, zap.NewNop().Sugar()), zap.NewNop().Sugar())
}

func TestDeregistrationNoise(t *testing.T) {
	rec := &recorder{}
	r := deregistration(t, rec)
	require.Len(t, rec.pdus, 1)
	_, ok := sentNas(t, rec.pdus[0]).(*nas.DeregistrationRequestUEOriginating)
	require.True(t, ok)

	waiting := r.State().Name()
	assert.Equal(t, "waitDeregistrationAccept", waiting)

	noise := []*Incoming{
		downlink(t, &nas.ConfigurationUpdateCommand{}),
		downlink(t, &nas.RegistrationAccept{}),
		releaseCommand(t),
		{},
	}
	for _, in := range noise {
		assert.Equal(t, Running, r.Deliver(in))
		assert.Equal(t, waiting, r.State().Name(), "after %s", in.Name())
	}
	assert.Len(t, rec.pdus, 1)
}

// deregistration request, out of order downlink, accept, release, complete
func TestDeregistrationScenario(t *testing.T) {
	rec := &recorder{}
	r := deregistration(t, rec)

	r.Deliver(downlink(t, &nas.ServiceAccept{}))
	assert.Equal(t, "waitDeregistrationAccept", r.State().Name())

	r.Deliver(downlink(t, &nas.DeregistrationAcceptUEOriginating{}))
	assert.Equal(t, "waitUeContextReleaseCommand", r.State().Name())

	// unexpected input keeps waiting for the release
	r.Deliver(downlink(t, &nas.ServiceAccept{}))
	assert.Equal(t, "waitUeContextReleaseCommand", r.State().Name())

	assert.Equal(t, Completed, r.Deliver(releaseCommand(t)))
	require.Len(t, rec.pdus, 2)
	done := rec.last()
	assert.Equal(t, "UEContextReleaseComplete", done.Name())
	assert.Equal(t, ngap.SuccessfulOutcome, done.Description)
	assert.Equal(t, ngap.Reject, done.Criticality)
	for _, ie := range done.IEs {
		assert.Equal(t, ngap.Ignore, ie.Criticality)
	}
}

func TestRunnerAbort(t *testing.T) {
	rec := &recorder{}
	r := deregistration(t, rec)
	r.Abort("T3521 expired")
	assert.Equal(t, Aborted, r.Result())
	assert.True(t, r.Done())
	assert.Equal(t, Aborted, r.Deliver(releaseCommand(t)))
	assert.Len(t, rec.pdus, 1)
}
