package db

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-memory Store. It backs development runs without a
// database and the package tests; semantics match the PostgreSQL store,
// including the composite-key deduplication on the ledger.
type Memory struct {
	mu      sync.RWMutex
	users   map[string]User
	tracks  map[string]TrackMetadata
	history map[string][]HistoryEntry
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]User),
		tracks:  make(map[string]TrackMetadata),
		history: make(map[string][]HistoryEntry),
	}
}

// Users returns the credential store.
func (m *Memory) Users() UserStore { return (*memoryUsers)(m) }

// TrackCache returns the track metadata cache.
func (m *Memory) TrackCache() TrackCacheStore { return (*memoryTracks)(m) }

// History returns the listening-history ledger.
func (m *Memory) History() HistoryStore { return (*memoryHistory)(m) }

type memoryUsers Memory

func (m *memoryUsers) Get(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *memoryUsers) Upsert(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.users[user.ID]; ok {
		// Token-only merge for an existing user.
		existing.Credential = user.Credential
		m.users[user.ID] = existing
		return nil
	}
	m.users[user.ID] = *user
	return nil
}

func (m *memoryUsers) UpdateCredential(_ context.Context, id string, cred Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if cred.RefreshToken == "" {
		cred.RefreshToken = user.Credential.RefreshToken
	}
	user.Credential = cred
	m.users[id] = user
	return nil
}

type memoryTracks Memory

func (m *memoryTracks) Get(_ context.Context, spotifyID string) (*TrackMetadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	meta, ok := m.tracks[spotifyID]
	if !ok {
		return nil, ErrNotFound
	}
	return &meta, nil
}

func (m *memoryTracks) Put(_ context.Context, meta *TrackMetadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tracks[meta.SpotifyID] = *meta
	return nil
}

type memoryHistory Memory

func (m *memoryHistory) Exists(_ context.Context, userID, trackID string, playedAtMs int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.history[userID] {
		if e.TrackID == trackID && e.PlayedAtMs == playedAtMs {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryHistory) Append(_ context.Context, entry HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.history[entry.UserID] {
		if e.TrackID == entry.TrackID && e.PlayedAtMs == entry.PlayedAtMs {
			return nil
		}
	}
	m.history[entry.UserID] = append(m.history[entry.UserID], entry)
	return nil
}

func (m *memoryHistory) ListDescending(_ context.Context, userID string, limit int, before *int64) ([]PlayedTrack, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]HistoryEntry, len(m.history[userID]))
	copy(entries, m.history[userID])
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].PlayedAtMs > entries[j].PlayedAtMs
	})

	var plays []PlayedTrack
	for _, e := range entries {
		if before != nil && e.PlayedAtMs >= *before {
			continue
		}
		meta, ok := m.tracks[e.TrackID]
		if !ok {
			// Missing metadata is omitted, not errored.
			continue
		}
		plays = append(plays, PlayedTrack{Track: meta, PlayedAtMs: e.PlayedAtMs})
		if len(plays) == limit {
			break
		}
	}
	return plays, nil
}
