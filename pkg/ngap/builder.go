package ngap

import (
	"errors"
	"fmt"

	"uesim/pkg/nas"
)

var (
	ErrBuilderConsumed = errors.New("ngap builder already built")
	ErrMissingIE       = errors.New("mandatory IE missing")
	ErrNoProcedure     = errors.New("procedure not set")
)

type ProtocolIE struct {
	ID          ProtocolIEID
	Criticality Criticality
	Value       IEValue
}

// PDU is the structured NGAP-PDU handed to the codec.
type PDU struct {
	Description Description
	Procedure   ProcedureCode
	Criticality Criticality
	IEs         []ProtocolIE
}

// Builder accumulates one outbound PDU. It can be built exactly once.
type Builder struct {
	pdu      PDU
	hasProc  bool
	consumed bool
	err      error
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithDescription(d Description) *Builder {
	b.pdu.Description = d
	return b
}

func (b *Builder) WithProcedure(p ProcedureCode, c Criticality) *Builder {
	b.pdu.Procedure = p
	b.pdu.Criticality = c
	b.hasProc = true
	return b
}

func (b *Builder) AddProtocolIE(v IEValue, c Criticality) *Builder {
	b.pdu.IEs = append(b.pdu.IEs, ProtocolIE{ID: v.ProtocolIEID(), Criticality: c, Value: v})
	return b
}

func (b *Builder) AddRanUeNgapID(id uint32, c Criticality) *Builder {
	return b.AddProtocolIE(RanUeNgapID(id), c)
}

func (b *Builder) AddAmfUeNgapID(id uint64, c Criticality) *Builder {
	return b.AddProtocolIE(AmfUeNgapID(id), c)
}

// AddNasPdu encodes msg as a plain NAS PDU. An encoding failure is reported
// by Build.
func (b *Builder) AddNasPdu(msg nas.Message, c Criticality) *Builder {
	pdu, err := nas.Encode(msg)
	if err != nil {
		if b.err == nil {
			b.err = fmt.Errorf("encode %s: %w", msg.MsgType(), err)
		}
		return b
	}
	return b.AddNasPduBytes(pdu, c)
}

func (b *Builder) AddNasPduBytes(pdu []byte, c Criticality) *Builder {
	return b.AddProtocolIE(NasPdu(pdu), c)
}

func (b *Builder) AddUserLocationInformationNR(uli UserLocationInformationNR, c Criticality) *Builder {
	return b.AddProtocolIE(uli, c)
}

// Build realizes the PDU. The builder must not be used afterwards.
func (b *Builder) Build() (*PDU, error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true
	if b.err != nil {
		return nil, b.err
	}
	if !b.hasProc {
		return nil, ErrNoProcedure
	}
	key := procedureKey{b.pdu.Description, b.pdu.Procedure}
	for _, id := range mandatoryIEs[key] {
		if _, ok := b.pdu.Find(id); !ok {
			return nil, fmt.Errorf("%w: %s IE %d", ErrMissingIE, b.pdu.Name(), id)
		}
	}
	pdu := b.pdu
	pdu.IEs = append([]ProtocolIE(nil), b.pdu.IEs...)
	b.pdu = PDU{}
	return &pdu, nil
}

func (p *PDU) Find(id ProtocolIEID) (IEValue, bool) {
	for _, ie := range p.IEs {
		if ie.ID == id {
			return ie.Value, true
		}
	}
	return nil, false
}

func (p *PDU) Is(d Description, proc ProcedureCode) bool {
	return p.Description == d && p.Procedure == proc
}

// Name returns the message name, e.g. "UEContextReleaseComplete".
func (p *PDU) Name() string {
	if name, ok := messageNames[procedureKey{p.Description, p.Procedure}]; ok {
		return name
	}
	return fmt.Sprintf("%s(%d)", p.Description, p.Procedure)
}

func (p *PDU) String() string {
	return p.Name()
}

func (p *PDU) RanUeNgapID() (uint32, bool) {
	v, _ := p.Find(RANUENGAPIDID)
	if id, ok := v.(RanUeNgapID); ok {
		return uint32(id), true
	}
	v, _ = p.Find(UENGAPIDsID)
	if ids, ok := v.(UENGAPIDs); ok && ids.Pair {
		return uint32(ids.RanUeNgapID), true
	}
	return 0, false
}

// AmfUeNgapID also looks into the UE-NGAP-IDs pair carried by release
// commands.
func (p *PDU) AmfUeNgapID() (uint64, bool) {
	v, _ := p.Find(AMFUENGAPIDID)
	if id, ok := v.(AmfUeNgapID); ok {
		return uint64(id), true
	}
	v, _ = p.Find(UENGAPIDsID)
	if ids, ok := v.(UENGAPIDs); ok {
		return uint64(ids.AmfUeNgapID), true
	}
	return 0, false
}

func (p *PDU) NasPdu() ([]byte, bool) {
	v, _ := p.Find(NASPDUID)
	b, ok := v.(NasPdu)
	return []byte(b), ok
}

func (p *PDU) Cause() (Cause, bool) {
	v, _ := p.Find(CauseID)
	c, ok := v.(Cause)
	return c, ok
}
