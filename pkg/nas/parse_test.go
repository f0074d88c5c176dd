package nas

import (
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	eap := NewEapAkaPrime(EapRequest, 7, AkaChallenge)
	eap.Set(AtRand, make([]byte, 18))
	eap.Set(AtKdf, []byte{0x00, 0x01})

	msgs := []Message{
		&RegistrationRequest{
			RegistrationType: RegistrationType{Value: InitialRegistration, FollowOn: FollowOnRequestPending},
			NgKSI:            NasKeySetIdentifier{Tsc: NativeSecurityContext, Ksi: NoKeyAvailable},
			MobileIdentity:   MobileIdentity{Type: SUCI, Value: "suci-0-001-01-0000-0-0-0000000001"},
			UESecurityCapability: SecurityCapability{EA: 0xe0, IA: 0x70},
		},
		&AuthenticationRequest{ABBA: []byte{0, 0}, EAP: eap},
		&RegistrationAccept{Result: 1, GUTI: &MobileIdentity{Type: GUTI5G, Value: "guti-1"}, T3512: 3240},
		&RegistrationComplete{},
		&DeregistrationAcceptUEOriginating{},
	}

	for _, msg := range msgs {
		b, err := Encode(msg)
		require.NoError(t, err)

		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, msg.MsgType(), got.MsgType())
		if diff := cmp.Diff(msg, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", msg.MsgType(), diff)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode([]byte{0xff, 0x00})
	assert.True(t, errors.Is(err, ErrDecode))

	b, err := encMode.Marshal(&envelope{EPD: EPD5GMM, Type: MsgType(0x01)})
	require.NoError(t, err)
	_, err = Decode(b)
	assert.True(t, errors.Is(err, ErrUnknownMessageType))

	b, err = encMode.Marshal(&envelope{EPD: 0x2e, Type: RegistrationCompleteType})
	require.NoError(t, err)
	_, err = Decode(b)
	assert.True(t, errors.Is(err, ErrDecode))
}

func testMAC(count uint8, plain []byte) ([]byte, error) {
	sum := sha256.Sum256(append([]byte{count}, plain...))
	return sum[:4], nil
}

func TestProtected(t *testing.T) {
	msg := &SecurityModeComplete{NASContainer: []byte{1, 2, 3}}
	b, err := EncodeProtected(msg, IntegrityProtectedWithNewContext, 0, testMAC)
	require.NoError(t, err)

	p, err := DecodeProtected(b)
	require.NoError(t, err)
	assert.Equal(t, IntegrityProtectedWithNewContext, p.Header)
	assert.Equal(t, SecurityModeCompleteType, p.Message.MsgType())
	assert.True(t, p.Verify(testMAC))

	p.MAC[0] ^= 0xff
	assert.False(t, p.Verify(testMAC))

	plain, err := Encode(msg)
	require.NoError(t, err)
	p, err = DecodeProtected(plain)
	require.NoError(t, err)
	assert.False(t, p.Verify(testMAC))
}

type recordingHandler struct {
	called string
}

func (h *recordingHandler) HandleAuthenticationRequest(*AuthenticationRequest) bool {
	h.called = "AuthenticationRequest"
	return true
}
func (h *recordingHandler) HandleAuthenticationResult(*AuthenticationResult) bool     { return false }
func (h *recordingHandler) HandleAuthenticationResponse(*AuthenticationResponse) bool { return false }
func (h *recordingHandler) HandleAuthenticationReject(*AuthenticationReject) bool     { return false }
func (h *recordingHandler) HandleRegistrationReject(*RegistrationReject) bool         { return false }
func (h *recordingHandler) HandleRegistrationAccept(*RegistrationAccept) bool {
	h.called = "RegistrationAccept"
	return true
}
func (h *recordingHandler) HandleIdentityRequest(*IdentityRequest) bool         { return false }
func (h *recordingHandler) HandleServiceAccept(*ServiceAccept) bool             { return false }
func (h *recordingHandler) HandleServiceReject(*ServiceReject) bool             { return false }
func (h *recordingHandler) HandleSecurityModeCommand(*SecurityModeCommand) bool { return false }
func (h *recordingHandler) HandleConfigurationUpdateCommand(*ConfigurationUpdateCommand) bool {
	return false
}
func (h *recordingHandler) HandleDeregistrationAccept(*DeregistrationAcceptUEOriginating) bool {
	return false
}
func (h *recordingHandler) HandleDeregistrationRequest(*DeregistrationRequestUETerminated) bool {
	return false
}
func (h *recordingHandler) HandleDLNASTransport(*DLNASTransport) bool { return false }
func (h *recordingHandler) HandleUplink(m Message) bool {
	h.called = "uplink:" + m.MsgType().String()
	return false
}

func TestAccept(t *testing.T) {
	h := &recordingHandler{}

	assert.True(t, (&AuthenticationRequest{}).Accept(h))
	assert.Equal(t, "AuthenticationRequest", h.called)

	assert.True(t, (&RegistrationAccept{}).Accept(h))
	assert.Equal(t, "RegistrationAccept", h.called)

	assert.False(t, (&RegistrationRequest{}).Accept(h))
	assert.Equal(t, "uplink:RegistrationRequest", h.called)

	assert.False(t, (&ServiceReject{}).Accept(h))
}

func TestEapAttribute(t *testing.T) {
	var e *EapAkaPrime
	_, ok := e.Attribute(AtRes)
	assert.False(t, ok)

	e = &EapAkaPrime{}
	e.Set(AtRes, []byte{1})
	v, ok := e.Attribute(AtRes)
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, v)
	assert.Equal(t, "AT_RES", AtRes.String())
}
