package core

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"

	"uesim/internal/crypto"
	"uesim/internal/io"
	"uesim/internal/metrics"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

var (
	errDecode       = errors.New("cannot decode message")
	errEncode       = errors.New("cannot encode message")
	errAuth         = errors.New("cannot authenticate UE")
	errUnexpected   = errors.New("unexpected message")
	errUnknownUE    = errors.New("unknown UE context")
	errUnknownSub   = errors.New("unknown subscriber")
	errBadSuci      = errors.New("malformed SUCI")
	errNoAlgorithm  = errors.New("no common integrity algorithm")
	errIntegrity    = errors.New("integrity check failed")
	errNotSetUp     = errors.New("association not set up")
	errNoChallenge  = errors.New("no challenge pending")
	errUnauthorized = errors.New("UE not authenticated")
)

var kdfDefault = []byte{0x00, 0x01}

// HandleNGAP dispatches one uplink PDU of an association.
func (a *Amf) HandleNGAP(as *Association, pdu *ngap.PDU) error {
	switch {
	case pdu.Is(ngap.InitiatingMessage, ngap.NGSetup):
		return a.handleNGSetupRequest(as, pdu)
	case pdu.Is(ngap.InitiatingMessage, ngap.InitialUEMessage):
		return a.handleInitialUEMessage(as, pdu)
	case pdu.Is(ngap.InitiatingMessage, ngap.UplinkNASTransport):
		return a.handleUplinkNASTransport(as, pdu)
	case pdu.Is(ngap.SuccessfulOutcome, ngap.InitialContextSetup):
		a.log.Debugw("initial context setup response", "ue", ranID(pdu))
		return nil
	case pdu.Is(ngap.SuccessfulOutcome, ngap.UEContextRelease):
		return a.handleUEContextReleaseComplete(as, pdu)
	default:
		return fmt.Errorf("%w: %s", errUnexpected, pdu.Name())
	}
}

func ranID(pdu *ngap.PDU) uint32 {
	id, _ := pdu.RanUeNgapID()
	return id
}

func (a *Amf) send(as *Association, pdu *ngap.PDU, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", errEncode, err)
	}
	return io.SendPdu(as.conn, pdu)
}

func (a *Amf) handleNGSetupRequest(as *Association, pdu *ngap.PDU) error {
	v, _ := pdu.Find(ngap.GlobalRANNodeIDID)
	id, ok := v.(ngap.GlobalRANNodeID)
	if !ok {
		return errDecode
	}
	if id.PLMN != a.opts.PLMN {
		a.log.Warnw("ng setup from foreign plmn", "plmn", id.PLMN.String())
		out, berr := ngap.NewBuilder().
			WithDescription(ngap.UnsuccessfulOutcome).
			WithProcedure(ngap.NGSetup, ngap.Reject).
			AddProtocolIE(ngap.Cause{Group: ngap.CauseMisc, Value: 0}, ngap.Ignore).
			Build()
		return a.send(as, out, berr)
	}
	as.Setup = true
	as.RanID = id
	a.log.Infow("ng setup", "gnb", id.GNBID, "plmn", id.PLMN.String())

	out, berr := ngap.NewBuilder().
		WithDescription(ngap.SuccessfulOutcome).
		WithProcedure(ngap.NGSetup, ngap.Reject).
		AddProtocolIE(ngap.AMFName(a.opts.Name), ngap.Reject).
		AddProtocolIE(ngap.ServedGUAMIList{{
			PLMN:        a.opts.PLMN,
			AMFRegionID: a.opts.RegionID,
			AMFSetID:    a.opts.SetID,
			AMFPointer:  a.opts.Pointer,
		}}, ngap.Reject).
		AddProtocolIE(ngap.RelativeAMFCapacity(a.opts.Capacity), ngap.Ignore).
		Build()
	return a.send(as, out, berr)
}

func (a *Amf) handleInitialUEMessage(as *Association, pdu *ngap.PDU) error {
	if !as.Setup {
		return errNotSetUp
	}
	id, ok := pdu.RanUeNgapID()
	if !ok {
		return errDecode
	}
	b, ok := pdu.NasPdu()
	if !ok {
		return errDecode
	}
	ue, ok := as.ues[id]
	if !ok {
		ue = &AmfUE{RanUeNgapID: id, AmfUeNgapID: a.amfUeNgapIDs.Add(1), NgKSI: nas.NoKeyAvailable}
		as.ues[id] = ue
	}
	return a.handleNASPDU(as, ue, b)
}

func (a *Amf) handleUplinkNASTransport(as *Association, pdu *ngap.PDU) error {
	ue, ok := as.ues[ranID(pdu)]
	if !ok {
		return fmt.Errorf("%w: ran ue ngap id %d", errUnknownUE, ranID(pdu))
	}
	b, ok := pdu.NasPdu()
	if !ok {
		return errDecode
	}
	return a.handleNASPDU(as, ue, b)
}

func (a *Amf) handleUEContextReleaseComplete(as *Association, pdu *ngap.PDU) error {
	id := ranID(pdu)
	if _, ok := as.ues[id]; !ok {
		return fmt.Errorf("%w: ran ue ngap id %d", errUnknownUE, id)
	}
	delete(as.ues, id)
	a.log.Infow("ue context released", "ue", id)
	return nil
}

// handleNASPDU checks the security header and dispatches the message.
// Without a context only a registration request is accepted, protected or
// not; it starts a new authentication.
func (a *Amf) handleNASPDU(as *Association, ue *AmfUE, b []byte) error {
	p, err := nas.DecodeProtected(b)
	if err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	verified := false
	switch {
	case p.Header == nas.PlainNas:
	case ue.Security != nil:
		if !p.Verify(ue.Security.UplinkMAC()) {
			return fmt.Errorf("%w: %s", errIntegrity, p.Message.MsgType())
		}
		ue.Security.ULCount = (ue.Security.ULCount&^0xff | uint32(p.Sequence)) + 1
		verified = true
	default:
		if _, ok := p.Message.(*nas.RegistrationRequest); !ok {
			return fmt.Errorf("%w: %s without security context", errIntegrity, p.Message.MsgType())
		}
	}

	if m, ok := p.Message.(*nas.RegistrationRequest); ok {
		return a.handleRegistrationRequest(as, ue, m, verified)
	}
	if ue.Security != nil && !verified {
		switch p.Message.(type) {
		case *nas.AuthenticationResponse, *nas.AuthenticationFailure, *nas.IdentityResponse:
		default:
			return fmt.Errorf("%w: plain %s", errIntegrity, p.Message.MsgType())
		}
	}

	switch m := p.Message.(type) {
	case *nas.AuthenticationResponse:
		return a.handleAuthenticationResponse(as, ue, m)
	case *nas.AuthenticationFailure:
		return a.handleAuthenticationFailure(as, ue, m)
	case *nas.IdentityResponse:
		return a.handleIdentityResponse(as, ue, m)
	case *nas.SecurityModeComplete:
		return a.handleSecurityModeComplete(as, ue, m)
	case *nas.SecurityModeReject:
		a.log.Warnw("security mode rejected", "ue", ue.RanUeNgapID, "cause", m.Cause)
		ue.Security = nil
		metrics.CoreRegistrations.WithLabelValues("rejected").Inc()
		return nil
	case *nas.RegistrationComplete:
		if !ue.Authenticated {
			return errUnauthorized
		}
		ue.Registered = true
		metrics.CoreRegistrations.WithLabelValues("accepted").Inc()
		a.log.Infow("registration complete", "supi", ue.Sub.SUPI, "guti", ue.GUTI.Value)
		return nil
	case *nas.DeregistrationRequestUEOriginating:
		return a.handleDeregistrationRequest(as, ue, m)
	case *nas.ConfigurationUpdateComplete, *nas.DeregistrationAcceptUETerminated:
		a.log.Infow("nas message received", "ue", ue.RanUeNgapID, "message", m.MsgType().String())
		return nil
	default:
		return fmt.Errorf("%w: %s", errUnexpected, m.MsgType())
	}
}

func (a *Amf) handleRegistrationRequest(as *Association, ue *AmfUE, m *nas.RegistrationRequest, verified bool) error {
	ue.SecCap = m.UESecurityCapability
	ue.NSSAI = m.RequestedNSSAI
	a.log.Infow("registration request", "ue", ue.RanUeNgapID, "type", m.RegistrationType.Value.String(),
		"identity", m.MobileIdentity.String())

	if verified && ue.Authenticated && m.RegistrationType.Value != nas.InitialRegistration {
		return a.sendRegistrationAccept(as, ue)
	}

	ue.Security = nil
	ue.Authenticated = false
	ue.Registered = false
	if m.MobileIdentity.Type == nas.GUTI5G && ue.Sub != nil && ue.GUTI != nil && m.MobileIdentity == *ue.GUTI {
		return a.sendChallenge(as, ue)
	}
	if m.MobileIdentity.Type != nas.SUCI {
		return a.sendDownlinkNas(as, ue, &nas.IdentityRequest{IdentityType: nas.SUCI})
	}
	sub, err := a.subscriber(m.MobileIdentity)
	if err != nil {
		a.log.Warnw("registration rejected", "error", err)
		metrics.CoreRegistrations.WithLabelValues("rejected").Inc()
		if serr := a.sendDownlinkNas(as, ue, &nas.RegistrationReject{Cause: nas.CauseIllegalUE}); serr != nil {
			return serr
		}
		return err
	}
	ue.Sub = sub
	return a.sendChallenge(as, ue)
}

func (a *Amf) handleIdentityResponse(as *Association, ue *AmfUE, m *nas.IdentityResponse) error {
	switch m.MobileIdentity.Type {
	case nas.SUCI:
		sub, err := a.subscriber(m.MobileIdentity)
		if err != nil {
			return err
		}
		ue.Sub = sub
		return a.sendChallenge(as, ue)
	default:
		a.log.Infow("identity response", "ue", ue.RanUeNgapID, "identity", m.MobileIdentity.String())
		return nil
	}
}

// sendChallenge runs Milenage for a fresh RAND and sends the
// authentication request. The resulting Kamf is kept until the response
// proves the UE derived the same one.
func (a *Amf) sendChallenge(as *Association, ue *AmfUE) error {
	sub := ue.Sub
	r := make([]byte, crypto.RandLen)
	if _, err := rand.Read(r); err != nil {
		return err
	}
	v, err := sub.Keys.Compute(r)
	if err != nil {
		return err
	}
	autn := v.AUTN(sub.Keys.AMF)
	abba := []byte{0x00, 0x00}
	ue.NgKSI = (ue.NgKSI + 1) % nas.NoKeyAvailable
	req := &nas.AuthenticationRequest{
		NgKSI: nas.NasKeySetIdentifier{Tsc: nas.NativeSecurityContext, Ksi: ue.NgKSI},
		ABBA:  abba,
	}

	var kausf []byte
	if a.opts.Use5GAKA {
		kausf = crypto.Kausf(v.CK, v.IK, sub.ServingNetwork, v.SQNxorAK())
		ue.xres = crypto.ResStar(v.CK, v.IK, sub.ServingNetwork, r, v.RES)
		req.RAND = r
		req.AUTN = autn
	} else {
		ckp, ikp := crypto.CkIkPrime(v.CK, v.IK, sub.ServingNetwork, v.SQNxorAK())
		keys := crypto.DeriveEapAkaPrime(ckp, ikp, sub.Identity)
		kausf = keys.Kausf()
		ue.xres = v.RES
		ue.eapID++

		eap := nas.NewEapAkaPrime(nas.EapRequest, ue.eapID, nas.AkaChallenge)
		eap.Set(nas.AtRand, reserved(r))
		eap.Set(nas.AtAutn, reserved(autn))
		eap.Set(nas.AtKdf, kdfDefault)
		eap.Set(nas.AtMac, crypto.EapMAC(keys.Kaut, append(append([]byte{}, r...), autn...)))
		req.EAP = eap
	}
	ue.Kamf = crypto.Kamf(crypto.Kseaf(kausf, sub.ServingNetwork), sub.SUPI, abba)
	return a.sendDownlinkNas(as, ue, req)
}

func reserved(v []byte) []byte {
	return append([]byte{0x00, 0x00}, v...)
}

func (a *Amf) handleAuthenticationResponse(as *Association, ue *AmfUE, m *nas.AuthenticationResponse) error {
	if ue.xres == nil {
		return errNoChallenge
	}
	res := m.ResponseParameter
	if m.EAP != nil {
		at, _ := m.EAP.Attribute(nas.AtRes)
		var err error
		if res, err = crypto.UnpadResponse(at, len(ue.xres)); err != nil {
			res = nil
		}
	}
	if subtle.ConstantTimeCompare(res, ue.xres) != 1 {
		ue.xres = nil
		metrics.CoreRegistrations.WithLabelValues("auth_failed").Inc()
		if err := a.sendDownlinkNas(as, ue, &nas.AuthenticationReject{}); err != nil {
			return err
		}
		return errAuth
	}
	ue.xres = nil
	ue.Authenticated = true
	a.log.Infow("authentication successful", "supi", ue.Sub.SUPI)

	if m.EAP != nil {
		err := a.sendDownlinkNas(as, ue, &nas.AuthenticationResult{
			NgKSI: nas.NasKeySetIdentifier{Tsc: nas.NativeSecurityContext, Ksi: ue.NgKSI},
			EAP:   nas.NewEapAkaPrime(nas.EapSuccess, ue.eapID, nas.AkaChallenge),
		})
		if err != nil {
			return err
		}
	}
	return a.sendSecurityModeCommand(as, ue)
}

func (a *Amf) handleAuthenticationFailure(as *Association, ue *AmfUE, m *nas.AuthenticationFailure) error {
	a.log.Warnw("authentication failure", "ue", ue.RanUeNgapID, "cause", m.Cause)
	ue.xres = nil
	metrics.CoreRegistrations.WithLabelValues("auth_failed").Inc()
	return a.sendDownlinkNas(as, ue, &nas.AuthenticationReject{})
}

// sendSecurityModeCommand activates the new context right away: the
// command is the first message protected with it.
func (a *Amf) sendSecurityModeCommand(as *Association, ue *AmfUE) error {
	alg, err := selectIntegrity(ue.SecCap)
	if err != nil {
		metrics.CoreRegistrations.WithLabelValues("rejected").Inc()
		if serr := a.sendDownlinkNas(as, ue, &nas.RegistrationReject{Cause: nas.CauseUESecurityCapMismatch}); serr != nil {
			return serr
		}
		return err
	}
	sc, err := crypto.NewSecurityContext(ue.NgKSI, ue.Kamf, alg, 0)
	if err != nil {
		return err
	}
	cmd := &nas.SecurityModeCommand{
		IntegrityAlg:       alg,
		NgKSI:              nas.NasKeySetIdentifier{Tsc: nas.NativeSecurityContext, Ksi: ue.NgKSI},
		ReplayedCapability: ue.SecCap,
		IMEISVRequested:    a.opts.RequestIMEISV,
		ABBA:               []byte{0x00, 0x00},
	}
	b, err := nas.EncodeProtected(cmd, nas.IntegrityProtectedWithNewContext, uint8(sc.DLCount), sc.DownlinkMAC())
	if err != nil {
		return fmt.Errorf("%w: %v", errEncode, err)
	}
	sc.DLCount++
	ue.Security = sc
	return a.sendDownlinkNasBytes(as, ue, b)
}

func (a *Amf) handleSecurityModeComplete(as *Association, ue *AmfUE, m *nas.SecurityModeComplete) error {
	if !ue.Authenticated {
		return errUnauthorized
	}
	if m.IMEISV != nil {
		ue.IMEISV = m.IMEISV.Value
		a.log.Infow("imeisv received", "ue", ue.RanUeNgapID, "imeisv", ue.IMEISV)
	}
	return a.sendRegistrationAccept(as, ue)
}

func (a *Amf) sendRegistrationAccept(as *Association, ue *AmfUE) error {
	if ue.GUTI == nil {
		ue.GUTI = a.newGUTI()
	}
	accept := &nas.RegistrationAccept{
		Result:       1,
		GUTI:         ue.GUTI,
		AllowedNSSAI: ue.NSSAI,
		T3512:        a.opts.T3512,
	}
	b, err := a.encodeNas(ue, accept)
	if err != nil {
		return err
	}
	if !a.opts.InitialContextSetup {
		return a.sendDownlinkNasBytes(as, ue, b)
	}
	out, berr := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.InitialContextSetup, ngap.Reject).
		AddAmfUeNgapID(ue.AmfUeNgapID, ngap.Reject).
		AddRanUeNgapID(ue.RanUeNgapID, ngap.Reject).
		AddProtocolIE(ngap.UESecurityCapabilities{NREncryption: ue.SecCap.EA, NRIntegrity: ue.SecCap.IA}, ngap.Reject).
		AddNasPduBytes(b, ngap.Ignore).
		Build()
	return a.send(as, out, berr)
}

func (a *Amf) handleDeregistrationRequest(as *Association, ue *AmfUE, m *nas.DeregistrationRequestUEOriginating) error {
	a.log.Infow("deregistration request", "ue", ue.RanUeNgapID, "switchOff", m.DeregistrationType.SwitchOff)
	if err := a.sendDownlinkNas(as, ue, &nas.DeregistrationAcceptUEOriginating{}); err != nil {
		return err
	}
	ue.Registered = false
	ue.Authenticated = false
	metrics.CoreRegistrations.WithLabelValues("deregistered").Inc()

	out, berr := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.UEContextRelease, ngap.Reject).
		AddProtocolIE(ngap.UENGAPIDs{
			AmfUeNgapID: ngap.AmfUeNgapID(ue.AmfUeNgapID),
			RanUeNgapID: ngap.RanUeNgapID(ue.RanUeNgapID),
			Pair:        true,
		}, ngap.Reject).
		AddProtocolIE(ngap.Cause{Group: ngap.CauseNas, Value: ngap.NasDeregister}, ngap.Ignore).
		Build()
	return a.send(as, out, berr)
}

// encodeNas protects msg once a security context is active.
func (a *Amf) encodeNas(ue *AmfUE, msg nas.Message) ([]byte, error) {
	sc := ue.Security
	if sc == nil {
		return nas.Encode(msg)
	}
	b, err := nas.EncodeProtected(msg, nas.IntegrityProtected, uint8(sc.DLCount), sc.DownlinkMAC())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errEncode, err)
	}
	sc.DLCount++
	return b, nil
}

func (a *Amf) sendDownlinkNas(as *Association, ue *AmfUE, msg nas.Message) error {
	b, err := a.encodeNas(ue, msg)
	if err != nil {
		return err
	}
	return a.sendDownlinkNasBytes(as, ue, b)
}

func (a *Amf) sendDownlinkNasBytes(as *Association, ue *AmfUE, b []byte) error {
	out, berr := ngap.NewBuilder().
		WithDescription(ngap.InitiatingMessage).
		WithProcedure(ngap.DownlinkNASTransport, ngap.Ignore).
		AddAmfUeNgapID(ue.AmfUeNgapID, ngap.Reject).
		AddRanUeNgapID(ue.RanUeNgapID, ngap.Reject).
		AddNasPduBytes(b, ngap.Reject).
		Build()
	return a.send(as, out, berr)
}
