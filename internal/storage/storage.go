// Package storage persists signed scan results under their content address
// and keeps a queryable index of past scans.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

var ErrNotFound = errors.New("not found")

// Store is a content-addressed blob store. Put returns the address of data.
type Store interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}

// Index records finished scans for lookup by token
type Index interface {
	Record(ctx context.Context, r models.ScanResult) error
	History(ctx context.Context, chain, address string, limit int) ([]IndexEntry, error)
}

// IndexEntry is the summary row kept for one scan
type IndexEntry struct {
	ID               string
	Chain            string
	Address          string
	Status           models.ScanStatus
	RiskScore        *int
	ThreatCategories []string
	CodeHash         string
	StorageHash      string
	SignerID         string
	CompletedAt      time.Time
}

// MemoryStore keeps blobs in process, addressed by their sha256
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	addr := "sha256-" + hex.EncodeToString(sum[:])

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[addr]; !ok {
		m.blobs[addr] = append([]byte(nil), data...)
	}
	return addr, nil
}

func (m *MemoryStore) Get(ctx context.Context, address string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of stored blobs
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
