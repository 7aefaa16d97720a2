// Package bytecode performs static signature matching over deployed contract
// bytecode and account-model mint data.
package bytecode

import (
	"bytes"
	"encoding/binary"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

// SPL mint layout offsets
const (
	splMintSize       = 82
	splFreezeOffset   = 46
	splAccountTypeOff = 165
	splTLVStart       = 166
	splAccountMint    = 1
)

// Analyzer matches pattern tables against raw code. Safe for concurrent use.
type Analyzer struct {
	tables map[models.ChainFamily]*Table
}

// NewAnalyzer builds an analyzer from the embedded pattern tables
func NewAnalyzer() (*Analyzer, error) {
	tables, err := DefaultTables()
	if err != nil {
		return nil, err
	}
	return &Analyzer{tables: tables}, nil
}

// NewAnalyzerWithTables is used when pattern tables are supplied externally
func NewAnalyzerWithTables(tables ...*Table) *Analyzer {
	m := make(map[models.ChainFamily]*Table, len(tables))
	for _, t := range tables {
		m[t.Family] = t
	}
	return &Analyzer{tables: m}
}

// Version returns the pattern table version used for family
func (a *Analyzer) Version(family models.ChainFamily) string {
	if t, ok := a.tables[family]; ok {
		return t.Version
	}
	return ""
}

// Analyze is pure: the same code always yields the same analysis.
func (a *Analyzer) Analyze(code []byte, family models.ChainFamily) models.BytecodeAnalysis {
	out := models.BytecodeAnalysis{AccessControlPatterns: []string{}}
	t, ok := a.tables[family]
	if !ok {
		return out
	}
	out.PatternVersion = t.Version

	seen := make(map[string]bool)
	for _, p := range matches(t, code) {
		switch p.Capability {
		case CapMint:
			out.HasMintFunction = true
		case CapSelfDestruct:
			out.HasSelfDestruct = true
		case CapProxy:
			out.HasProxyPattern = true
		case CapFreeze:
			out.HasFreezeAuthority = true
		case CapAccessControl:
		default:
			// fee and anti-bot markers are reported by the fee simulator
			continue
		}
		if !seen[p.Name] {
			seen[p.Name] = true
			out.AccessControlPatterns = append(out.AccessControlPatterns, p.Name)
		}
	}
	return out
}

// Markers returns the distinct names of matched patterns for one capability,
// in table order.
func (a *Analyzer) Markers(code []byte, family models.ChainFamily, capability Capability) []string {
	t, ok := a.tables[family]
	if !ok {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, p := range matches(t, code) {
		if p.Capability != capability || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		names = append(names, p.Name)
	}
	return names
}

func matches(t *Table, code []byte) []Pattern {
	if len(code) == 0 {
		return nil
	}
	var ok func(Pattern) bool
	switch t.Family {
	case models.FamilyEVM:
		ok = scanEVM(code).has
	case models.FamilySolana:
		ok = scanMint(code).has
	default:
		return nil
	}

	var out []Pattern
	for _, p := range t.Patterns {
		if ok(p) {
			out = append(out, p)
		}
	}
	return out
}

type evmScan struct {
	selectors map[[4]byte]bool
	opcodes   map[byte]bool
	push32    map[[32]byte]bool
	lower     []byte
}

func scanEVM(code []byte) evmScan {
	s := evmScan{
		selectors: make(map[[4]byte]bool),
		opcodes:   make(map[byte]bool),
		push32:    make(map[[32]byte]bool),
		lower:     bytes.ToLower(code),
	}

	pc := 0
	for pc < len(code) {
		op := code[pc]

		// PUSH1 (0x60) .. PUSH32 (0x7F): record data and skip it
		if op >= 0x60 && op <= 0x7F {
			n := int(op - 0x5F)
			if pc+1+n > len(code) {
				break
			}
			data := code[pc+1 : pc+1+n]
			switch op {
			case 0x62: // PUSH3: solc drops a selector's leading zero byte
				var sel [4]byte
				copy(sel[1:], data)
				s.selectors[sel] = true
			case 0x63: // PUSH4
				var sel [4]byte
				copy(sel[:], data)
				s.selectors[sel] = true
			case 0x7F: // PUSH32
				var word [32]byte
				copy(word[:], data)
				s.push32[word] = true
			}
			pc += n + 1
			continue
		}

		s.opcodes[op] = true
		pc++
	}
	return s
}

func (s evmScan) has(p Pattern) bool {
	switch p.Kind {
	case KindSelector:
		var sel [4]byte
		copy(sel[:], p.raw)
		return s.selectors[sel]
	case KindOpcode:
		return s.opcodes[p.raw[0]]
	case KindPush32:
		var word [32]byte
		copy(word[:], p.raw)
		return s.push32[word]
	case KindASCII:
		return bytes.Contains(s.lower, p.raw)
	}
	return false
}

type mintScan struct {
	mintAuthority   bool
	freezeAuthority bool
	extensions      map[uint16]bool
}

func scanMint(data []byte) mintScan {
	s := mintScan{extensions: make(map[uint16]bool)}
	if len(data) < splMintSize {
		return s
	}
	s.mintAuthority = binary.LittleEndian.Uint32(data[0:4]) == 1
	s.freezeAuthority = binary.LittleEndian.Uint32(data[splFreezeOffset:splFreezeOffset+4]) == 1

	// Token-2022: base mint padded to the account size, then account type and TLV entries.
	if len(data) <= splTLVStart || data[splAccountTypeOff] != splAccountMint {
		return s
	}
	for off := splTLVStart; off+4 <= len(data); {
		typ := binary.LittleEndian.Uint16(data[off : off+2])
		length := int(binary.LittleEndian.Uint16(data[off+2 : off+4]))
		if typ == 0 {
			break
		}
		s.extensions[typ] = true
		off += 4 + length
	}
	return s
}

func (s mintScan) has(p Pattern) bool {
	switch p.Kind {
	case KindAuthority:
		if p.Value == "mint" {
			return s.mintAuthority
		}
		return s.freezeAuthority
	case KindExtension:
		return s.extensions[p.ext]
	}
	return false
}
