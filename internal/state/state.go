// File: internal/state/state.go
package state

import (
	"sync"
	"time"
)

// RGB is an 8-bit color triple as decoded from the state document.
type RGB struct {
	R, G, B uint8
}

// Token is one influence source: a normalized, render-ready view of a raw
// active_tokens entry. All bounded scalars are clamped on ingestion so the
// rendering code never performs range or presence checks.
type Token struct {
	ID     string
	Symbol string

	Energy   float64 // [0,1]
	Momentum float64 // [-1,1]
	Activity float64 // [0,1]

	Phase     float64 // radians, unbounded
	Frequency float64 // angular speed, > 0
	NoiseSeed float64

	AnchorU float64 // [0,1], fraction of canvas width
	AnchorV float64 // [0,1], fraction of canvas height

	Gradient []RGB // length >= 1 after normalization

	BuyVolume  float64
	SellVolume float64
}

// Scene is the process-wide visualization state, replaced wholesale on each
// successful poll.
type Scene struct {
	LastUpdate  string
	Title       string
	Description string

	GlobalEnergy float64 // [0,1]
	MomentumBias float64 // [-1,1]
	EnergySpread float64 // [0,1]

	Tokens []Token
}

// Store holds the last successfully ingested scene. The poll loop is the
// single writer; the render loop reads whatever scene is current at the start
// of each frame. Replacement, never mutation.
type Store struct {
	mu  sync.RWMutex
	cur *Scene
}

func NewStore() *Store {
	return &Store{cur: bootScene()}
}

// Current never returns nil; before the first successful poll it returns a
// quiet placeholder scene.
func (s *Store) Current() *Scene {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Swap replaces the held scene wholesale.
func (s *Store) Swap(sc *Scene) {
	if sc == nil {
		return
	}
	s.mu.Lock()
	s.cur = sc
	s.mu.Unlock()
}

func bootScene() *Scene {
	return &Scene{
		LastUpdate:   time.Now().UTC().Format(time.RFC3339),
		Title:        defaultTitle,
		Description:  defaultDescription,
		GlobalEnergy: 0.5,
		MomentumBias: 0,
		EnergySpread: 0.1,
	}
}
