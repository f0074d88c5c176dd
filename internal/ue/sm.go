package ue

import (
	"uesim/internal/command"
	"uesim/internal/flow"
	"uesim/internal/timer"
	"uesim/pkg/nas"
)

// smHandler is the session management router. Only the downlink transport
// envelope belongs to it; everything else is left to the caller to drop.
type smHandler struct {
	u  *UE
	in *flow.Incoming
}

var _ nas.Handler = (*smHandler)(nil)

func (h *smHandler) HandleDLNASTransport(m *nas.DLNASTransport) bool {
	if m.Cause != 0 {
		h.u.log.Warnw("downlink nas transport with cause", "cause", m.Cause, "pduSession", m.PDUSessionID)
	}
	h.u.log.Infow("downlink nas transport received",
		"payload", m.PayloadContainerType, "pduSession", m.PDUSessionID, "length", len(m.PayloadContainer))
	return true
}

func (h *smHandler) HandleAuthenticationRequest(*nas.AuthenticationRequest) bool   { return false }
func (h *smHandler) HandleAuthenticationResult(*nas.AuthenticationResult) bool     { return false }
func (h *smHandler) HandleAuthenticationResponse(*nas.AuthenticationResponse) bool { return false }
func (h *smHandler) HandleAuthenticationReject(*nas.AuthenticationReject) bool     { return false }
func (h *smHandler) HandleRegistrationReject(*nas.RegistrationReject) bool         { return false }
func (h *smHandler) HandleRegistrationAccept(*nas.RegistrationAccept) bool         { return false }
func (h *smHandler) HandleIdentityRequest(*nas.IdentityRequest) bool               { return false }
func (h *smHandler) HandleServiceAccept(*nas.ServiceAccept) bool                   { return false }
func (h *smHandler) HandleServiceReject(*nas.ServiceReject) bool                   { return false }
func (h *smHandler) HandleSecurityModeCommand(*nas.SecurityModeCommand) bool       { return false }
func (h *smHandler) HandleConfigurationUpdateCommand(*nas.ConfigurationUpdateCommand) bool {
	return false
}
func (h *smHandler) HandleDeregistrationAccept(*nas.DeregistrationAcceptUEOriginating) bool {
	return false
}
func (h *smHandler) HandleDeregistrationRequest(*nas.DeregistrationRequestUETerminated) bool {
	return false
}
func (h *smHandler) HandleUplink(nas.Message) bool { return false }

// smExecute claims session management commands. There are none yet.
func (u *UE) smExecute(command.Command) bool {
	return false
}

func (u *UE) smTimerExpire(t *timer.Timer) {
	u.log.Infow("session management timer expired, no procedure pending", "timer", t.String())
}
