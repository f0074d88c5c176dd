package nas

// Handler has one method per network-originated message. Messages the
// network never sends are funnelled into HandleUplink so that a router still
// has to make an explicit decision about them. Each method reports whether
// the handler claimed the message.
//
// Adding a message kind means adding a method here, which breaks every
// router until it decides what to do with the new kind.
type Handler interface {
	HandleAuthenticationRequest(*AuthenticationRequest) bool
	HandleAuthenticationResult(*AuthenticationResult) bool
	HandleAuthenticationResponse(*AuthenticationResponse) bool
	HandleAuthenticationReject(*AuthenticationReject) bool
	HandleRegistrationReject(*RegistrationReject) bool
	HandleRegistrationAccept(*RegistrationAccept) bool
	HandleIdentityRequest(*IdentityRequest) bool
	HandleServiceAccept(*ServiceAccept) bool
	HandleServiceReject(*ServiceReject) bool
	HandleSecurityModeCommand(*SecurityModeCommand) bool
	HandleConfigurationUpdateCommand(*ConfigurationUpdateCommand) bool
	HandleDeregistrationAccept(*DeregistrationAcceptUEOriginating) bool
	HandleDeregistrationRequest(*DeregistrationRequestUETerminated) bool
	HandleDLNASTransport(*DLNASTransport) bool
	HandleUplink(Message) bool
}

func (m *AuthenticationRequest) Accept(h Handler) bool  { return h.HandleAuthenticationRequest(m) }
func (m *AuthenticationResult) Accept(h Handler) bool   { return h.HandleAuthenticationResult(m) }
func (m *AuthenticationResponse) Accept(h Handler) bool { return h.HandleAuthenticationResponse(m) }
func (m *AuthenticationReject) Accept(h Handler) bool   { return h.HandleAuthenticationReject(m) }
func (m *RegistrationReject) Accept(h Handler) bool     { return h.HandleRegistrationReject(m) }
func (m *RegistrationAccept) Accept(h Handler) bool     { return h.HandleRegistrationAccept(m) }
func (m *IdentityRequest) Accept(h Handler) bool        { return h.HandleIdentityRequest(m) }
func (m *ServiceAccept) Accept(h Handler) bool          { return h.HandleServiceAccept(m) }
func (m *ServiceReject) Accept(h Handler) bool          { return h.HandleServiceReject(m) }
func (m *SecurityModeCommand) Accept(h Handler) bool    { return h.HandleSecurityModeCommand(m) }
func (m *ConfigurationUpdateCommand) Accept(h Handler) bool {
	return h.HandleConfigurationUpdateCommand(m)
}
func (m *DeregistrationAcceptUEOriginating) Accept(h Handler) bool {
	return h.HandleDeregistrationAccept(m)
}
func (m *DeregistrationRequestUETerminated) Accept(h Handler) bool {
	return h.HandleDeregistrationRequest(m)
}
func (m *DLNASTransport) Accept(h Handler) bool { return h.HandleDLNASTransport(m) }

func (m *RegistrationRequest) Accept(h Handler) bool                { return h.HandleUplink(m) }
func (m *RegistrationComplete) Accept(h Handler) bool               { return h.HandleUplink(m) }
func (m *DeregistrationRequestUEOriginating) Accept(h Handler) bool { return h.HandleUplink(m) }
func (m *DeregistrationAcceptUETerminated) Accept(h Handler) bool   { return h.HandleUplink(m) }
func (m *ServiceRequest) Accept(h Handler) bool                     { return h.HandleUplink(m) }
func (m *ConfigurationUpdateComplete) Accept(h Handler) bool        { return h.HandleUplink(m) }
func (m *AuthenticationFailure) Accept(h Handler) bool              { return h.HandleUplink(m) }
func (m *IdentityResponse) Accept(h Handler) bool                   { return h.HandleUplink(m) }
func (m *SecurityModeComplete) Accept(h Handler) bool               { return h.HandleUplink(m) }
func (m *SecurityModeReject) Accept(h Handler) bool                 { return h.HandleUplink(m) }
func (m *ULNASTransport) Accept(h Handler) bool                     { return h.HandleUplink(m) }
