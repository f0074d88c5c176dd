package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"uesim/internal/config"
	"uesim/internal/crypto"
	"uesim/internal/flow"
	"uesim/internal/io"
	"uesim/pkg/nas"
	"uesim/pkg/ngap"
)

// Options tune the simulated AMF.
type Options struct {
	Name     string
	PLMN     ngap.PLMN
	RegionID uint8
	SetID    uint16
	Pointer  uint8
	Capacity uint8
	// Use5GAKA challenges with 5G AKA instead of EAP-AKA'.
	Use5GAKA bool
	// InitialContextSetup carries the registration accept in an initial
	// context setup request instead of a downlink NAS transport.
	InitialContextSetup bool
	RequestIMEISV       bool
	// T3512 sent in the registration accept, in seconds.
	T3512 uint32
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Name:     cfg.AMF.Name,
		PLMN:     ngap.PLMN{MCC: cfg.UE.MCC, MNC: cfg.UE.MNC},
		RegionID: 1,
		SetID:    1,
		Capacity: 255,
		T3512:    uint32(cfg.Timers.T3512.Seconds()),
	}
}

// SubscriberFromConfig provisions the configured UE in the AMF.
func SubscriberFromConfig(cfg *config.Config) (*flow.Subscriber, error) {
	keys, err := cfg.UE.Keys()
	if err != nil {
		return nil, err
	}
	snn, err := cfg.UE.ServingNetwork()
	if err != nil {
		return nil, err
	}
	return &flow.Subscriber{SUPI: cfg.UE.SUPI, Identity: cfg.UE.SUPI, Keys: keys, ServingNetwork: snn}, nil
}

// Amf answers registrations and deregistrations of provisioned
// subscribers. One Amf serves any number of associations.
type Amf struct {
	opts Options
	subs map[string]*flow.Subscriber
	log  *zap.SugaredLogger

	amfUeNgapIDs atomic.Uint64
	tmsis        atomic.Uint32
}

func New(opts Options, subs []*flow.Subscriber, log *zap.SugaredLogger) *Amf {
	a := &Amf{opts: opts, subs: make(map[string]*flow.Subscriber), log: log}
	for _, s := range subs {
		a.subs[s.SUPI] = s
	}
	return a
}

// AmfUE is the AMF side context of one UE.
type AmfUE struct {
	RanUeNgapID uint32
	AmfUeNgapID uint64
	SecCap      nas.SecurityCapability
	NSSAI       []nas.SNSSAI
	Sub         *flow.Subscriber

	// expected RES for EAP-AKA', RES* for 5G AKA
	xres  []byte
	eapID uint8
	NgKSI uint8
	Kamf  []byte

	Security      *crypto.SecurityContext
	Authenticated bool
	Registered    bool
	GUTI          *nas.MobileIdentity
	IMEISV        string
}

// Association is one NGAP association. It is owned by the goroutine
// serving the connection.
type Association struct {
	conn  net.Conn
	ues   map[uint32]*AmfUE
	Setup bool
	RanID ngap.GlobalRANNodeID
}

func NewAssociation(conn net.Conn) *Association {
	return &Association{conn: conn, ues: make(map[uint32]*AmfUE)}
}

// UE returns the context for a RAN UE NGAP id.
func (as *Association) UE(ranUeNgapID uint32) (*AmfUE, bool) {
	ue, ok := as.ues[ranUeNgapID]
	return ue, ok
}

// Serve handles one association until the peer leaves or ctx is done.
func (a *Amf) Serve(ctx context.Context, conn net.Conn) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	as := NewAssociation(conn)
	a.log.Infof("Serving %s", conn.RemoteAddr())
	for {
		pdu, err := io.RecvPdu(conn)
		if errors.Is(err, ngap.ErrDecode) {
			a.log.Warnw("cannot decode pdu, message ignored", "error", err)
			continue
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := a.HandleNGAP(as, pdu); err != nil {
			a.log.Warnw("cannot handle message", "message", pdu.Name(), "error", err)
		}
	}
}

// ListenAndServe accepts associations on addr until ctx is done.
func (a *Amf) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	a.log.Infof("Listen on %s", l.Addr())
	stop := context.AfterFunc(ctx, func() { l.Close() })
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for {
		c, err := l.Accept()
		if err != nil {
			werr := g.Wait()
			if ctx.Err() != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			if err := a.Serve(gctx, c); err != nil {
				a.log.Warnw("association closed", "remote", c.RemoteAddr().String(), "error", err)
			}
			return nil
		})
	}
}

func (a *Amf) subscriber(id nas.MobileIdentity) (*flow.Subscriber, error) {
	if id.Type != nas.SUCI {
		return nil, fmt.Errorf("%w: %s", errUnknownSub, id.Type)
	}
	supi, err := supiFromSuci(id.Value)
	if err != nil {
		return nil, err
	}
	sub, ok := a.subs[supi]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownSub, supi)
	}
	return sub, nil
}

// supiFromSuci undoes the null protection scheme:
// suci-0-<mcc>-<mnc>-<routing>-0-0-<msin>.
func supiFromSuci(suci string) (string, error) {
	parts := strings.Split(suci, "-")
	if len(parts) != 8 || parts[0] != "suci" || parts[1] != "0" || parts[5] != "0" {
		return "", fmt.Errorf("%w: %q", errBadSuci, suci)
	}
	return "imsi-" + parts[2] + parts[3] + parts[7], nil
}

func (a *Amf) newGUTI() *nas.MobileIdentity {
	return &nas.MobileIdentity{
		Type: nas.GUTI5G,
		Value: fmt.Sprintf("5g-guti-%s%s-%02x%04x%02x-%08x", a.opts.PLMN.MCC, a.opts.PLMN.MNC,
			a.opts.RegionID, a.opts.SetID, a.opts.Pointer, a.tmsis.Add(1)),
	}
}

// integrityAlgorithms in order of preference.
var integrityAlgorithms = []uint8{crypto.NIA2, crypto.NIA1, crypto.IA5, crypto.IA4}

func selectIntegrity(c nas.SecurityCapability) (uint8, error) {
	for _, alg := range integrityAlgorithms {
		if c.SupportsIA(alg) && crypto.Supported(alg) {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: capability 0x%02x", errNoAlgorithm, c.IA)
}
