package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"uesim/internal/crypto"
	"uesim/internal/timer"
)

var (
	errNoSupi     = errors.New("ue.supi is required")
	errBadSupi    = errors.New("ue.supi must be imsi-<mcc><mnc><msin>")
	errBadPlmn    = errors.New("ue.mcc and ue.mnc must be numeric")
	errBadOPType  = errors.New(`ue.opType must be "OP" or "OPC"`)
	errNoAmf      = errors.New("amf.address is required")
	errBadCycle   = errors.New("cycleInterval must be positive")
	errBadTimeout = errors.New("timer intervals must not be negative")
)

type Config struct {
	UE            UE            `yaml:"ue"`
	AMF           AMF           `yaml:"amf"`
	Timers        Timers        `yaml:"timers"`
	Autonomous    bool          `yaml:"autonomous"`
	CycleInterval time.Duration `yaml:"cycleInterval"`
	Control       Control       `yaml:"control"`
	Metrics       Metrics       `yaml:"metrics"`
	Logger        Logger        `yaml:"logger"`
}

type UE struct {
	SUPI        string     `yaml:"supi"`
	MCC         string     `yaml:"mcc"`
	MNC         string     `yaml:"mnc"`
	IMEI        string     `yaml:"imei"`
	RanUeNgapID uint32     `yaml:"ranUeNgapId"`
	NSSAI       []Slice    `yaml:"nssai"`
	Location    Location   `yaml:"location"`
	Key         string     `yaml:"key"`
	OP          string     `yaml:"op"`
	OPType      string     `yaml:"opType"`
	SQN         string     `yaml:"sqn"`
	AMF         string     `yaml:"amf"`
	Capability  Capability `yaml:"capability"`
}

type Slice struct {
	SST uint8  `yaml:"sst"`
	SD  string `yaml:"sd"`
}

type Location struct {
	TAC    uint32 `yaml:"tac"`
	CellID uint64 `yaml:"cellId"`
}

type Capability struct {
	EA uint8 `yaml:"ea"`
	IA uint8 `yaml:"ia"`
}

type AMF struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

type Timers struct {
	T3346 time.Duration `yaml:"t3346"`
	T3502 time.Duration `yaml:"t3502"`
	T3510 time.Duration `yaml:"t3510"`
	T3512 time.Duration `yaml:"t3512"`
	T3521 time.Duration `yaml:"t3521"`
}

type Control struct {
	Address string `yaml:"address"`
	Token   string `yaml:"token"`
}

type Metrics struct {
	Address string `yaml:"address"`
}

type Logger struct {
	Level string `yaml:"level"`
}

// Default is a test subscriber from TS 35.208 set 1 on PLMN 001/01.
func Default() *Config {
	return &Config{
		UE: UE{
			SUPI:        "imsi-001010000000001",
			MCC:         "001",
			MNC:         "01",
			IMEI:        "356938035643803",
			RanUeNgapID: 1,
			NSSAI:       []Slice{{SST: 1}},
			Location:    Location{TAC: 1, CellID: 0x10},
			Key:         "465b5ce8b199b49faa5f0a2ee238a6bc",
			OP:          "cdc202d5123e20f62b6d676ac72cb318",
			OPType:      "OP",
			SQN:         "ff9bb4d0b607",
			AMF:         "b9b9",
			Capability:  Capability{EA: 0x01, IA: 0x06},
		},
		AMF:           AMF{Address: "127.0.0.1:38412", Name: "uesim-amf"},
		Autonomous:    true,
		CycleInterval: 100 * time.Millisecond,
		Control:       Control{Address: ":9930"},
		Metrics:       Metrics{Address: ":9090"},
	}
}

// Load reads a yaml file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.UE.SUPI == "" {
		return errNoSupi
	}
	if !isDigits(cfg.UE.MCC) || !isDigits(cfg.UE.MNC) {
		return errBadPlmn
	}
	if !strings.HasPrefix(cfg.UE.SUPI, "imsi-"+cfg.UE.MCC+cfg.UE.MNC) {
		return errBadSupi
	}
	if t := strings.ToUpper(cfg.UE.OPType); t != "OP" && t != "OPC" {
		return errBadOPType
	}
	if _, err := cfg.UE.Keys(); err != nil {
		return err
	}
	if cfg.AMF.Address == "" {
		return errNoAmf
	}
	if cfg.CycleInterval <= 0 {
		return errBadCycle
	}
	for _, d := range cfg.Timers.Intervals() {
		if d < 0 {
			return errBadTimeout
		}
	}
	return nil
}

func (cfg *Config) Dump() string {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		return err.Error()
	}
	return string(d)
}

// Keys decodes the subscriber key material.
func (u *UE) Keys() (crypto.KeySet, error) {
	var ks crypto.KeySet
	fields := []struct {
		name string
		hex  string
		n    int
		dst  *[]byte
	}{
		{"ue.key", u.Key, crypto.KeyLen, &ks.K},
		{"ue.op", u.OP, crypto.KeyLen, &ks.OP},
		{"ue.sqn", u.SQN, crypto.SqnLen, &ks.SQN},
		{"ue.amf", u.AMF, crypto.AmfLen, &ks.AMF},
	}
	for _, f := range fields {
		b, err := hex.DecodeString(f.hex)
		if err != nil {
			return ks, fmt.Errorf("%s: %w", f.name, err)
		}
		if len(b) != f.n {
			return ks, fmt.Errorf("%s: %w: got %d octets, want %d", f.name, crypto.ErrInvalidLength, len(b), f.n)
		}
		*f.dst = b
	}
	ks.OPIsOPc = strings.EqualFold(u.OPType, "OPC")
	return ks, nil
}

// MSIN is the SUPI without the PLMN prefix.
func (u *UE) MSIN() string {
	return strings.TrimPrefix(u.SUPI, "imsi-"+u.MCC+u.MNC)
}

// SUCI conceals the SUPI with the null protection scheme.
func (u *UE) SUCI() string {
	return fmt.Sprintf("suci-0-%s-%s-0000-0-0-%s", u.MCC, u.MNC, u.MSIN())
}

func (u *UE) ServingNetwork() (string, error) {
	return crypto.ServingNetworkName(u.MCC, u.MNC)
}

// Intervals maps configured timers to their codes; unset timers keep the
// TS 24.501 defaults.
func (t Timers) Intervals() map[int]time.Duration {
	out := make(map[int]time.Duration)
	for code, d := range map[int]time.Duration{
		timer.T3346: t.T3346,
		timer.T3502: t.T3502,
		timer.T3510: t.T3510,
		timer.T3512: t.T3512,
		timer.T3521: t.T3521,
	} {
		if d != 0 {
			out[code] = d
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
