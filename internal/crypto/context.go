package crypto

// SecurityContext is a 5G NAS security context established by a security
// mode command.
type SecurityContext struct {
	NgKSI   uint8
	Kamf    []byte
	KnasInt []byte
	KnasEnc []byte
	IntAlg  uint8
	EncAlg  uint8
	ULCount uint32
	DLCount uint32
}

// NewSecurityContext derives the NAS keys for the selected algorithms.
func NewSecurityContext(ngKSI uint8, kamf []byte, intAlg, encAlg uint8) (*SecurityContext, error) {
	if !Supported(intAlg) {
		return nil, ErrUnsupportedAlg
	}
	if err := checkLen("Kamf", kamf, 32); err != nil {
		return nil, err
	}
	return &SecurityContext{
		NgKSI:   ngKSI,
		Kamf:    kamf,
		KnasInt: AlgorithmKey(kamf, NasIntAlg, intAlg),
		KnasEnc: AlgorithmKey(kamf, NasEncAlg, encAlg),
		IntAlg:  intAlg,
		EncAlg:  encAlg,
	}, nil
}

// UplinkMAC returns a MAC function bound to this context's uplink
// direction. Its signature matches nas.MACFunc.
func (c *SecurityContext) UplinkMAC() func(seq uint8, plain []byte) ([]byte, error) {
	return c.mac(DirectionUplink, c.ULCount)
}

func (c *SecurityContext) DownlinkMAC() func(seq uint8, plain []byte) ([]byte, error) {
	return c.mac(DirectionDownlink, c.DLCount)
}

func (c *SecurityContext) mac(dir uint8, count uint32) func(seq uint8, plain []byte) ([]byte, error) {
	return func(seq uint8, plain []byte) ([]byte, error) {
		// the overflow part comes from the local counter, the sequence
		// number from the message
		full := count&^0xff | uint32(seq)
		return ComputeMAC(c.IntAlg, c.KnasInt, full, Bearer3GPP, dir, plain)
	}
}
