// Package signing produces and checks signatures over the canonical form of a
// scan result.
package signing

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrNoSigningKey     = errors.New("no signing key configured")
)

// Fields left out of the signed bytes. The signature cannot cover itself and
// persistence is attached after signing.
var unsignedFields = []string{"signature", "persistence"}

type Signer interface {
	// ID names the key, e.g. an address or key label
	ID() string
	Sign(payload []byte) (string, error)
}

type Verifier interface {
	Verify(payload []byte, signature string) error
}

// Canonical serializes r with sorted object keys and the unsigned fields removed
func Canonical(r models.ScanResult) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	for _, f := range unsignedFields {
		delete(doc, f)
	}

	// encoding/json writes map keys in sorted order at every depth
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("canonical: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Sign stamps r with the signer's id and a signature over its canonical bytes
func Sign(r *models.ScanResult, s Signer) error {
	r.SignerID = s.ID()
	r.Signature = ""
	payload, err := Canonical(*r)
	if err != nil {
		return err
	}
	sig, err := s.Sign(payload)
	if err != nil {
		return fmt.Errorf("sign result %s: %w", r.ID, err)
	}
	r.Signature = sig
	return nil
}

// Verify re-derives the canonical bytes of r and checks its signature
func Verify(r models.ScanResult, v Verifier) error {
	if r.Signature == "" {
		return fmt.Errorf("%w: result %s is unsigned", ErrInvalidSignature, r.ID)
	}
	payload, err := Canonical(r)
	if err != nil {
		return err
	}
	return v.Verify(payload, r.Signature)
}

// ECDSASigner signs keccak256(payload) with a secp256k1 key
type ECDSASigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewECDSASigner parses a hex private key, with or without 0x
func NewECDSASigner(hexKey string) (*ECDSASigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &ECDSASigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *ECDSASigner) ID() string { return s.address.Hex() }

func (s *ECDSASigner) Sign(payload []byte) (string, error) {
	sig, err := crypto.Sign(crypto.Keccak256(payload), s.key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

func (s *ECDSASigner) Verify(payload []byte, signature string) error {
	return ECDSAVerifier{Address: s.address}.Verify(payload, signature)
}

// ECDSAVerifier checks signatures against a signer address alone
type ECDSAVerifier struct {
	Address common.Address
}

func (v ECDSAVerifier) Verify(payload []byte, signature string) error {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: malformed", ErrInvalidSignature)
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if crypto.PubkeyToAddress(*pub) != v.Address {
		return fmt.Errorf("%w: signer mismatch", ErrInvalidSignature)
	}
	return nil
}

// HMACSigner is the symmetric alternative for deployments without a keypair
type HMACSigner struct {
	keyID  string
	secret []byte
}

func NewHMACSigner(keyID string, secret []byte) (*HMACSigner, error) {
	if len(secret) == 0 {
		return nil, ErrNoSigningKey
	}
	if keyID == "" {
		keyID = "hmac-sha256"
	}
	return &HMACSigner{keyID: keyID, secret: secret}, nil
}

func (s *HMACSigner) ID() string { return s.keyID }

func (s *HMACSigner) Sign(payload []byte) (string, error) {
	return hex.EncodeToString(s.mac(payload)), nil
}

func (s *HMACSigner) Verify(payload []byte, signature string) error {
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(got, s.mac(payload)) {
		return ErrInvalidSignature
	}
	return nil
}

func (s *HMACSigner) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write(payload)
	return m.Sum(nil)
}
