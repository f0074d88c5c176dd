package ue

import (
	"uesim/internal/flow"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

// routeNgap demultiplexes a PDU from the core. NAS payloads go through
// routeNas, the rest is handled here or dropped.
func (u *UE) routeNgap(pdu *ngap.PDU) {
	if pdu.Description == ngap.InitiatingMessage {
		if id, ok := pdu.AmfUeNgapID(); ok {
			u.sess.AmfUeNgapID = id
		}
	}

	switch {
	case pdu.Is(ngap.SuccessfulOutcome, ngap.NGSetup):
		v, _ := pdu.Find(ngap.AMFNameID)
		u.log.Infow("NG setup accepted", "amf", v)
		return
	case pdu.Is(ngap.UnsuccessfulOutcome, ngap.NGSetup):
		cause, _ := pdu.Cause()
		u.log.Warnw("NG setup failed", "causeGroup", cause.Group, "cause", cause.Value)
		return
	case pdu.Is(ngap.InitiatingMessage, ngap.UEContextRelease):
		u.onContextRelease(pdu)
		return
	case pdu.Is(ngap.InitiatingMessage, ngap.ErrorIndication):
		cause, _ := pdu.Cause()
		u.log.Warnw("error indication from core", "causeGroup", cause.Group, "cause", cause.Value)
		return
	}

	b, ok := pdu.NasPdu()
	if !ok {
		if pdu.Is(ngap.InitiatingMessage, ngap.InitialContextSetup) && u.deliver(&flow.Incoming{PDU: pdu}) {
			return
		}
		u.drop(pdu.Name(), "no handler")
		return
	}

	p, err := nas.DecodeProtected(b)
	if err != nil {
		u.log.Warnw("cannot decode nas pdu", "message", pdu.Name(), "error", err)
		u.drop(pdu.Name(), "nas decode")
		return
	}
	if !u.checkIntegrity(p) {
		u.drop(p.Message.MsgType().String(), "integrity check failed")
		return
	}
	u.routeNas(&flow.Incoming{PDU: pdu, NAS: p.Message}, p)
}

// checkIntegrity verifies protected downlink messages once a security
// context exists. The security mode command is checked by its handler
// against the context it creates.
func (u *UE) checkIntegrity(p *nas.Protected) bool {
	sc := u.sess.Security
	if sc == nil || p.Header == nas.IntegrityProtectedWithNewContext {
		return true
	}
	if p.Header == nas.PlainNas {
		switch p.Message.(type) {
		// TS 24.501 4.4.4.2, accepted without integrity protection
		case *nas.AuthenticationRequest, *nas.AuthenticationReject, *nas.AuthenticationResult,
			*nas.IdentityRequest, *nas.RegistrationReject, *nas.ServiceReject,
			*nas.DeregistrationAcceptUEOriginating:
			return true
		}
		return false
	}
	if !p.Verify(sc.DownlinkMAC()) {
		return false
	}
	sc.DLCount = (sc.DLCount&^0xff | uint32(p.Sequence)) + 1
	return true
}

// routeNas offers the message to mobility management, then to session
// management, then drops it.
func (u *UE) routeNas(in *flow.Incoming, p *nas.Protected) {
	if in.NAS.Accept(&mmHandler{u: u, in: in, p: p}) {
		return
	}
	if in.NAS.Accept(&smHandler{u: u, in: in}) {
		return
	}
	u.drop(in.NAS.MsgType().String(), "no handler")
}

func (u *UE) onContextRelease(pdu *ngap.PDU) {
	in := &flow.Incoming{PDU: pdu}
	if u.activeIs("deregistration") {
		u.deliver(in)
		return
	}
	u.abortFlow("ue context released")
	if err := flow.SendUEContextReleaseComplete(&u.sess, u.send); err != nil {
		u.log.Errorw("cannot send message", "message", "UEContextReleaseComplete", "error", err)
	}
	u.switchCm(CmIdle)
}
