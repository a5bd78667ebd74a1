// File: internal/state/ingest_test.go
package state

import (
	"testing"
)

func TestParseHex_MalformedFallsBackToGray(t *testing.T) {
	cases := []string{"", "#ZZZZZZ", "#FFF", "FFAA", "#FFAA0", "#FFAA001", "not a color", "#12g45f"}
	for _, in := range cases {
		if got := ParseHex(in); got != FallbackColor {
			t.Errorf("ParseHex(%q) = %v, want fallback %v", in, got, FallbackColor)
		}
	}
}

func TestParseHex_ValidSixDigit(t *testing.T) {
	if got := ParseHex("#FFAA00"); got != (RGB{255, 170, 0}) {
		t.Fatalf("ParseHex(#FFAA00) = %v", got)
	}
	// leading '#' is optional, matching the preprocessor's lstrip behavior
	if got := ParseHex("00ff7f"); got != (RGB{0, 255, 127}) {
		t.Fatalf("ParseHex(00ff7f) = %v", got)
	}
}

func TestIngest_RejectsMissingTokenSequence(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"active_tokens": 7}`,
		`{"active_tokens": "nope"}`,
		`{"active_tokens": {"a": 1}}`,
		`not json at all`,
	} {
		if _, err := Ingest([]byte(raw)); err == nil {
			t.Errorf("Ingest(%q) succeeded, want rejection", raw)
		}
	}
}

func TestIngest_ClampsOutOfRangeScalars(t *testing.T) {
	raw := `{"active_tokens":[{"token_id":"0xabc","energy":1.7,"momentum":-5,"activity":9}]}`
	sc, err := Ingest([]byte(raw))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(sc.Tokens) != 1 {
		t.Fatalf("got %d tokens, want 1", len(sc.Tokens))
	}
	tok := sc.Tokens[0]
	if tok.Energy != 1.0 {
		t.Errorf("energy = %v, want 1.0", tok.Energy)
	}
	if tok.Momentum != -1.0 {
		t.Errorf("momentum = %v, want -1.0", tok.Momentum)
	}
	if tok.Activity != 1.0 {
		t.Errorf("activity = %v, want 1.0", tok.Activity)
	}
}

func TestIngest_MalformedGradientScenario(t *testing.T) {
	raw := `{"active_tokens":[{"energy":2,"momentum":-3,"gradient_map":["#ZZZZZZ"]}]}`
	sc, err := Ingest([]byte(raw))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	tok := sc.Tokens[0]
	if tok.Energy != 1 || tok.Momentum != -1 {
		t.Fatalf("drivers = (%v,%v), want (1,-1)", tok.Energy, tok.Momentum)
	}
	if len(tok.Gradient) != 1 || tok.Gradient[0] != FallbackColor {
		t.Fatalf("gradient = %v, want [%v]", tok.Gradient, FallbackColor)
	}
}

func TestIngest_GradientPreference(t *testing.T) {
	// gradient_map needs >= 2 stops; otherwise palette wins; otherwise default.
	raw := `{"active_tokens":[
		{"token_id":"a","gradient_map":["#000000","#FFFFFF"],"palette":["#FF0000"]},
		{"token_id":"b","gradient_map":["#000000"],"palette":["#FF0000"]},
		{"token_id":"c"}
	]}`
	sc, err := Ingest([]byte(raw))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if got := sc.Tokens[0].Gradient; len(got) != 2 || got[0] != (RGB{0, 0, 0}) || got[1] != (RGB{255, 255, 255}) {
		t.Errorf("token a gradient = %v, want gradient_map stops", got)
	}
	if got := sc.Tokens[1].Gradient; len(got) != 1 || got[0] != (RGB{255, 0, 0}) {
		t.Errorf("token b gradient = %v, want palette stop", got)
	}
	if got := sc.Tokens[2].Gradient; len(got) < 1 {
		t.Errorf("token c gradient empty, want default triple")
	}
}

func TestIngest_DefaultsForMissingFields(t *testing.T) {
	raw := `{"active_tokens":[{"token_id":"0xdead","energy":"loud","frequency":-2}]}`
	sc, err := Ingest([]byte(raw))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	tok := sc.Tokens[0]
	if tok.Energy != defaultEnergy {
		t.Errorf("energy = %v, want default %v", tok.Energy, defaultEnergy)
	}
	if tok.Frequency != defaultFrequency {
		t.Errorf("frequency = %v, want default %v", tok.Frequency, defaultFrequency)
	}
	if tok.AnchorU != 0.5 || tok.AnchorV != 0.5 {
		t.Errorf("anchor = (%v,%v), want (0.5,0.5)", tok.AnchorU, tok.AnchorV)
	}
	if tok.NoiseSeed != seedFromID("0xdead") {
		t.Errorf("seed = %v, want derived from id", tok.NoiseSeed)
	}
	if tok.Symbol != "0XDEAD" {
		t.Errorf("symbol = %q, want upper-cased id", tok.Symbol)
	}
}

func TestStore_SwapReplacesWholesale(t *testing.T) {
	st := NewStore()
	before := st.Current()
	if before == nil {
		t.Fatal("boot scene is nil")
	}
	sc, err := Ingest([]byte(`{"title":"Tide","active_tokens":[]}`))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	st.Swap(sc)
	if got := st.Current(); got != sc {
		t.Fatalf("Current() = %p, want swapped scene %p", got, sc)
	}
	st.Swap(nil) // nil swap is a no-op
	if got := st.Current(); got != sc {
		t.Fatal("nil swap replaced the scene")
	}
}

func TestSimulateBuy_PushesEnergyAndMomentumUp(t *testing.T) {
	sc, err := Ingest([]byte(`{"active_tokens":[
		{"token_id":"x","symbol":"AAA","buy_volume":1,"sell_volume":3,"energy":0.25,"momentum":-0.5,"activity":0.4},
		{"token_id":"y","symbol":"BBB","buy_volume":5,"sell_volume":5,"energy":0.5,"momentum":0,"activity":1}
	]}`))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	res, ok := SimulateBuy(sc, 0, 2)
	if !ok {
		t.Fatal("SimulateBuy rejected a valid call")
	}
	if res.EnergyAfter <= res.EnergyBefore {
		t.Errorf("energy did not rise: %v -> %v", res.EnergyBefore, res.EnergyAfter)
	}
	if res.MomentumAfter <= res.MomentumBefore {
		t.Errorf("momentum did not rise: %v -> %v", res.MomentumBefore, res.MomentumAfter)
	}
	// buy=3 sell=3 => energy 0.5, momentum 0
	if res.EnergyAfter != 0.5 {
		t.Errorf("energy after = %v, want 0.5", res.EnergyAfter)
	}
	if res.MomentumAfter != 0 {
		t.Errorf("momentum after = %v, want 0", res.MomentumAfter)
	}
	if res.FrequencyAfter != 0.18+0.5*1.45 {
		t.Errorf("frequency after = %v", res.FrequencyAfter)
	}
	if _, ok := SimulateBuy(sc, 9, 1); ok {
		t.Error("SimulateBuy accepted an out-of-range index")
	}
}
