// File: internal/state/ingest.go
package state

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	defaultTitle       = "Pigment Sea"
	defaultDescription = "A live pigment sea shaped by token trade pressure. Each token diffuses through a stable noise neighborhood while volatility snaps the surface into horizontal glitches."

	defaultEnergy    = 0.5
	defaultMomentum  = 0.0
	defaultActivity  = 0.5
	defaultPhase     = 0.0
	defaultFrequency = 0.9

	defaultGlobalEnergy = 0.5
	defaultMomentumBias = 0.0
	defaultEnergySpread = 0.1
)

// FallbackColor substitutes any malformed hex color string.
var FallbackColor = RGB{120, 130, 150}

// defaultGradient is used when a token carries neither a usable gradient_map
// nor a palette.
var defaultGradient = []RGB{
	{18, 26, 58},
	{92, 48, 110},
	{214, 120, 80},
}

// Ingest validates and normalizes a raw state document. A document without an
// active_tokens array is rejected; the caller keeps its previous scene. Any
// malformed or missing field inside an otherwise valid document falls back to
// its default instead of failing the whole ingest.
func Ingest(raw []byte) (*Scene, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse state document: %w", err)
	}
	rawTokens, ok := doc["active_tokens"].([]any)
	if !ok {
		return nil, fmt.Errorf("state document has no active_tokens sequence")
	}

	sc := &Scene{
		LastUpdate:   strOr(doc["last_update"], ""),
		Title:        strOr(doc["title"], defaultTitle),
		Description:  strOr(doc["description"], defaultDescription),
		GlobalEnergy: numOr(doc["global_energy"], defaultGlobalEnergy, 0, 1),
		MomentumBias: numOr(doc["momentum_bias"], defaultMomentumBias, -1, 1),
		EnergySpread: numOr(doc["energy_spread"], defaultEnergySpread, 0, 1),
		Tokens:       make([]Token, 0, len(rawTokens)),
	}
	for _, entry := range rawTokens {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		sc.Tokens = append(sc.Tokens, normalizeToken(m))
	}
	return sc, nil
}

func normalizeToken(m map[string]any) Token {
	id := strOr(m["token_id"], "")
	tok := Token{
		ID:         id,
		Symbol:     strings.ToUpper(strOr(m["symbol"], id)),
		Energy:     numOr(m["energy"], defaultEnergy, 0, 1),
		Momentum:   numOr(m["momentum"], defaultMomentum, -1, 1),
		Activity:   numOr(m["activity"], defaultActivity, 0, 1),
		Phase:      numOr(m["phase"], defaultPhase, math.Inf(-1), math.Inf(1)),
		Frequency:  numOr(m["frequency"], defaultFrequency, math.Inf(-1), math.Inf(1)),
		BuyVolume:  numOr(m["buy_volume"], 0, 0, math.Inf(1)),
		SellVolume: numOr(m["sell_volume"], 0, 0, math.Inf(1)),
		AnchorU:    0.5,
		AnchorV:    0.5,
	}
	if tok.Frequency <= 0 {
		tok.Frequency = defaultFrequency
	}
	tok.NoiseSeed = numOr(m["noise_seed"], seedFromID(id), 0, math.Inf(1))
	if anchor, ok := m["noise_anchor"].(map[string]any); ok {
		tok.AnchorU = numOr(anchor["u"], 0.5, 0, 1)
		tok.AnchorV = numOr(anchor["v"], 0.5, 0, 1)
	}
	tok.Gradient = resolveGradient(m)
	return tok
}

// resolveGradient prefers a gradient_map with at least two stops, then a
// palette, then the fixed default. The result always has length >= 1.
func resolveGradient(m map[string]any) []RGB {
	gm, hasMap := m["gradient_map"].([]any)
	if hasMap && len(gm) >= 2 {
		return parseStops(gm)
	}
	if pal, ok := m["palette"].([]any); ok && len(pal) >= 1 {
		return parseStops(pal)
	}
	if hasMap && len(gm) >= 1 {
		return parseStops(gm)
	}
	return append([]RGB(nil), defaultGradient...)
}

func parseStops(raw []any) []RGB {
	out := make([]RGB, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		out = append(out, ParseHex(s))
	}
	if len(out) == 0 {
		return append([]RGB(nil), defaultGradient...)
	}
	return out
}

// ParseHex converts a 6-digit hex color string (leading '#' optional) to an
// RGB triple. Anything else yields the neutral gray fallback.
func ParseHex(s string) RGB {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return FallbackColor
	}
	c, err := colorful.Hex("#" + h)
	if err != nil {
		return FallbackColor
	}
	r, g, b := c.RGB255()
	return RGB{r, g, b}
}

// seedFromID derives a stable noise seed for documents that omit one,
// mirroring how the preprocessor hashes token ids.
func seedFromID(id string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return float64(h.Sum32() % 100000)
}

func strOr(v any, def string) string {
	if s, ok := v.(string); ok {
		if t := strings.TrimSpace(s); t != "" {
			return t
		}
	}
	return def
}

// numOr coerces a loosely-typed JSON value into a clamped float64. Non-numeric
// values, NaN and infinities all take the default.
func numOr(v any, def, lo, hi float64) float64 {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		f = def
	}
	if f < lo {
		f = lo
	}
	if f > hi {
		f = hi
	}
	return f
}
