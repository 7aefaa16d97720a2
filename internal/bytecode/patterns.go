package bytecode

import (
	"bytes"
	"embed"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

//go:embed patterns/*.yaml
var embedded embed.FS

// Capability is the flag a pattern contributes to
type Capability string

const (
	CapMint          Capability = "mint"
	CapSelfDestruct  Capability = "self_destruct"
	CapProxy         Capability = "proxy"
	CapFreeze        Capability = "freeze"
	CapAccessControl Capability = "access_control"
	CapFee           Capability = "fee"
	CapAntiBot       Capability = "anti_bot"
)

// Kind says where in the code a pattern is matched
type Kind string

const (
	KindSelector  Kind = "selector"  // 4 bytes inside PUSH4 data
	KindOpcode    Kind = "opcode"    // single opcode outside PUSH data
	KindPush32    Kind = "push32"    // 32-byte constant inside PUSH32 data
	KindASCII     Kind = "ascii"     // case-insensitive string anywhere in the code
	KindAuthority Kind = "authority" // SPL mint COption authority: mint | freeze
	KindExtension Kind = "extension" // Token-2022 TLV extension type id
)

type Pattern struct {
	Name       string     `yaml:"name"`
	Kind       Kind       `yaml:"kind"`
	Value      string     `yaml:"value"`
	Capability Capability `yaml:"capability"`

	raw []byte
	ext uint16
}

// Table is a versioned signature table for one chain family
type Table struct {
	Version  string             `yaml:"version"`
	Family   models.ChainFamily `yaml:"family"`
	Patterns []Pattern          `yaml:"patterns"`
}

// ParseTable decodes and validates a pattern table
func ParseTable(data []byte) (*Table, error) {
	var t Table
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("pattern table decode failed: %w", err)
	}
	if t.Version == "" {
		return nil, fmt.Errorf("pattern table has no version")
	}

	for i := range t.Patterns {
		p := &t.Patterns[i]
		if p.Name == "" {
			return nil, fmt.Errorf("pattern #%d has no name", i)
		}
		switch p.Capability {
		case CapMint, CapSelfDestruct, CapProxy, CapFreeze, CapAccessControl, CapFee, CapAntiBot:
		default:
			return nil, fmt.Errorf("pattern %s: unknown capability %q", p.Name, p.Capability)
		}

		switch p.Kind {
		case KindSelector, KindOpcode, KindPush32:
			want := map[Kind]int{KindSelector: 4, KindOpcode: 1, KindPush32: 32}[p.Kind]
			raw, err := hex.DecodeString(strings.TrimPrefix(p.Value, "0x"))
			if err != nil || len(raw) != want {
				return nil, fmt.Errorf("pattern %s: %s needs %d hex bytes, got %q", p.Name, p.Kind, want, p.Value)
			}
			p.raw = raw
		case KindASCII:
			if p.Value == "" {
				return nil, fmt.Errorf("pattern %s: empty ascii marker", p.Name)
			}
			p.raw = []byte(strings.ToLower(p.Value))
		case KindAuthority:
			if p.Value != "mint" && p.Value != "freeze" {
				return nil, fmt.Errorf("pattern %s: authority must be mint or freeze", p.Name)
			}
		case KindExtension:
			n, err := strconv.ParseUint(p.Value, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("pattern %s: bad extension id %q", p.Name, p.Value)
			}
			p.ext = uint16(n)
		default:
			return nil, fmt.Errorf("pattern %s: unknown kind %q", p.Name, p.Kind)
		}
	}
	return &t, nil
}

// DefaultTables loads the embedded tables keyed by family
func DefaultTables() (map[models.ChainFamily]*Table, error) {
	entries, err := embedded.ReadDir("patterns")
	if err != nil {
		return nil, err
	}
	tables := make(map[models.ChainFamily]*Table, len(entries))
	for _, e := range entries {
		data, err := embedded.ReadFile("patterns/" + e.Name())
		if err != nil {
			return nil, err
		}
		t, err := ParseTable(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		tables[t.Family] = t
	}
	return tables, nil
}
