// File: main.go
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image/jpeg"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pigmentsea/internal/field"
	"pigmentsea/internal/glitch"
	"pigmentsea/internal/scene"
	"pigmentsea/internal/simlog"
	"pigmentsea/internal/state"
)

/* ====================
   Config & Inputs
   ==================== */

type AppConfig struct {
	ServerPort int `yaml:"server_port"`
	Canvas     struct {
		Width       int `yaml:"width"`
		Height      int `yaml:"height"`
		FPS         int `yaml:"fps"`
		JpegQuality int `yaml:"jpeg_quality"`
	} `yaml:"canvas"`
	State struct {
		Source         string `yaml:"source"` // http(s) URL or local file path
		PollIntervalMs int    `yaml:"poll_interval_ms"`
	} `yaml:"state"`
	NoiseSeed int64 `yaml:"noise_seed"`
}

func loadYAML(path string, out any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.ServerPort == 0 {
		if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
			if v, _ := strconv.Atoi(p); v > 0 {
				cfg.ServerPort = v
			}
		}
		if cfg.ServerPort == 0 {
			cfg.ServerPort = 8091
		}
	}
	if cfg.Canvas.Width <= 0 {
		cfg.Canvas.Width = 960
	}
	if cfg.Canvas.Height <= 0 {
		cfg.Canvas.Height = 540
	}
	if cfg.Canvas.FPS <= 0 {
		cfg.Canvas.FPS = 30
	}
	if cfg.Canvas.JpegQuality <= 0 || cfg.Canvas.JpegQuality > 100 {
		cfg.Canvas.JpegQuality = 82
	}
	if strings.TrimSpace(cfg.State.Source) == "" {
		cfg.State.Source = "art-config.json"
	}
	if s := strings.TrimSpace(os.Getenv("STATE_SOURCE")); s != "" {
		cfg.State.Source = s
	}
	if cfg.State.PollIntervalMs <= 0 {
		cfg.State.PollIntervalMs = 2000
	}
	if cfg.NoiseSeed == 0 {
		cfg.NoiseSeed = 7
	}
}

/* ====================
   UI messages
   ==================== */

type statusMsg struct {
	Type  string `json:"type"` // "status"
	Level string `json:"level"`
	Text  string `json:"text"`
}

type tokenMeta struct {
	Symbol   string  `json:"symbol"`
	Energy   float64 `json:"energy"`
	Momentum float64 `json:"momentum"`
	Activity float64 `json:"activity"`
	AnchorU  float64 `json:"anchor_u"`
	AnchorV  float64 `json:"anchor_v"`
}

type metaMsg struct {
	Type         string      `json:"type"` // "meta"
	LastUpdate   string      `json:"last_update"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	GlobalEnergy float64     `json:"global_energy"`
	MomentumBias float64     `json:"momentum_bias"`
	EnergySpread float64     `json:"energy_spread"`
	Tokens       []tokenMeta `json:"tokens"`
}

type probeEntry struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

type probeMsg struct {
	Type    string       `json:"type"` // "probe"
	X       float64      `json:"x"`
	Y       float64      `json:"y"`
	Sources []probeEntry `json:"sources"`
}

type simMsg struct {
	Type   string          `json:"type"` // "simulation"
	Result state.SimResult `json:"result"`
}

type controlMsg struct {
	Type   string         `json:"type"`   // "control"
	Action string         `json:"action"` // toggle_overlay/toggle_guides/probe/simulate/resize
	Value  map[string]any `json:"value,omitempty"`
}

func sceneMeta(sc *state.Scene) metaMsg {
	m := metaMsg{
		Type:         "meta",
		LastUpdate:   sc.LastUpdate,
		Title:        sc.Title,
		Description:  sc.Description,
		GlobalEnergy: sc.GlobalEnergy,
		MomentumBias: sc.MomentumBias,
		EnergySpread: sc.EnergySpread,
		Tokens:       make([]tokenMeta, 0, len(sc.Tokens)),
	}
	for i := range sc.Tokens {
		t := &sc.Tokens[i]
		m.Tokens = append(m.Tokens, tokenMeta{
			Symbol: t.Symbol, Energy: t.Energy, Momentum: t.Momentum,
			Activity: t.Activity, AnchorU: t.AnchorU, AnchorV: t.AnchorV,
		})
	}
	return m
}

/* ====================
   Websocket hub
   ==================== */

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

type client struct {
	c    *websocket.Conn
	out  chan any
	done chan struct{}
}

type hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast never blocks; a client with a full queue drops the message.
func (h *hub) broadcast(v any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.out <- v:
		default:
		}
	}
}

func (h *hub) serveWS(onControl func(cl *client, ctrl controlMsg), greet func(cl *client)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		cl := &client{c: conn, out: make(chan any, 64), done: make(chan struct{})}
		h.mu.Lock()
		h.clients[cl] = struct{}{}
		h.mu.Unlock()

		// writer: binary payloads are frames, everything else goes as JSON
		go func() {
			ping := time.NewTicker(45 * time.Second)
			defer ping.Stop()
			for {
				select {
				case v := <-cl.out:
					if frame, ok := v.([]byte); ok {
						_ = conn.WriteMessage(websocket.BinaryMessage, frame)
					} else {
						_ = conn.WriteJSON(v)
					}
				case <-ping.C:
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				case <-cl.done:
					return
				}
			}
		}()

		select {
		case cl.out <- statusMsg{Type: "status", Level: "info", Text: "Connected"}:
		default:
		}
		if greet != nil {
			greet(cl)
		}

		// reader
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
			return nil
		})
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if mt == websocket.TextMessage {
				var ctrl controlMsg
				if err := json.Unmarshal(data, &ctrl); err == nil && ctrl.Type == "control" && onControl != nil {
					onControl(cl, ctrl)
				}
			}
		}
		close(cl.done)
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
	}
}

/* ====================
   Poll loop
   ==================== */

var pollClient = &http.Client{Timeout: 8 * time.Second}

// fetchState reads the state document from an http(s) URL (cache-busted,
// caching disabled) or from a local file path.
func fetchState(source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		sep := "?"
		if strings.Contains(source, "?") {
			sep = "&"
		}
		u := fmt.Sprintf("%s%sts=%d", source, sep, time.Now().UnixMilli())
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Cache-Control", "no-cache")
		resp, err := pollClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return nil, fmt.Errorf("state fetch http %d", resp.StatusCode)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return os.ReadFile(source)
}

// runPollLoop refreshes the store on a fixed interval. Fetches are strictly
// sequential, so a slow poll can never be overtaken and overwritten by a
// later one. Failures keep the previous scene; only health transitions are
// logged.
func runPollLoop(source string, interval time.Duration, store *state.Store, h *hub) {
	healthy := false
	poll := func() {
		raw, err := fetchState(source)
		if err == nil {
			var sc *state.Scene
			sc, err = state.Ingest(raw)
			if err == nil {
				store.Swap(sc)
				h.broadcast(sceneMeta(sc))
				if !healthy {
					healthy = true
					log.Printf("[poll] state document ok (%d tokens)", len(sc.Tokens))
				}
				return
			}
		}
		if healthy {
			healthy = false
			log.Printf("[poll] state refresh failing, keeping previous scene: %v", err)
		}
	}
	poll()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		poll()
	}
}

/* ====================
   Render loop
   ==================== */

type renderer struct {
	comp    *scene.Compositor
	store   *state.Store
	h       *hub
	effect  *glitch.Effect
	rng     *rand.Rand
	quality int
	fps     int

	resizeCh   chan [2]int
	canvasSize atomic.Value // [2]int, read by control handlers
}

func newRenderer(cfg AppConfig, comp *scene.Compositor, store *state.Store, h *hub) *renderer {
	r := &renderer{
		comp:     comp,
		store:    store,
		h:        h,
		effect:   glitch.New(cfg.NoiseSeed + 1),
		rng:      rand.New(rand.NewSource(cfg.NoiseSeed + 2)),
		quality:  cfg.Canvas.JpegQuality,
		fps:      cfg.Canvas.FPS,
		resizeCh: make(chan [2]int, 4),
	}
	r.canvasSize.Store([2]int{cfg.Canvas.Width, cfg.Canvas.Height})
	return r
}

func (r *renderer) size() (float64, float64) {
	s := r.canvasSize.Load().([2]int)
	return float64(s[0]), float64(s[1])
}

func (r *renderer) requestResize(w, h int) {
	select {
	case r.resizeCh <- [2]int{w, h}:
	default:
	}
}

// run owns the canvas. One frame per tick; the only other input is the
// resize queue, drained between frames.
func (r *renderer) run() {
	start := time.Now()
	var lastFrame time.Duration
	var buf bytes.Buffer
	ticker := time.NewTicker(time.Second / time.Duration(r.fps))
	defer ticker.Stop()
	for range ticker.C {
		select {
		case sz := <-r.resizeCh:
			r.comp.Resize(sz[0], sz[1])
			w, h := r.comp.Size()
			r.canvasSize.Store([2]int{w, h})
			log.Printf("[render] canvas resized to %dx%d", w, h)
		default:
		}
		if r.h.clientCount() == 0 {
			continue // nobody watching; skip the work, keep the clock running
		}

		frameStart := time.Now()
		sc := r.store.Current()
		img := r.comp.Frame(sc, time.Since(start).Seconds(), lastFrame)
		if r.rng.Float64() < glitch.ChanceAt(sc.GlobalEnergy, sc.EnergySpread) {
			r.effect.Apply(img, sc.GlobalEnergy, sc.EnergySpread)
		}
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			log.Printf("[render] frame encode: %v", err)
			continue
		}
		frame := make([]byte, buf.Len())
		copy(frame, buf.Bytes())
		r.h.broadcast(frame)
		lastFrame = time.Since(frameStart)
	}
}

/* ====================
   Control handling
   ==================== */

func numVal(m map[string]any, k string) float64 {
	if v, ok := m[k].(float64); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v
	}
	return 0
}

// nearestToken returns the index of the source whose anchor is closest to
// canvas point (x,y), or -1 with no sources.
func nearestToken(sc *state.Scene, w, h, x, y float64) int {
	best, bestDist := -1, math.Inf(1)
	for i := range sc.Tokens {
		d := math.Hypot(x-sc.Tokens[i].AnchorU*w, y-sc.Tokens[i].AnchorV*h)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func runSimulation(store *state.Store, r *renderer, h *hub, x, y, amount float64) (state.SimResult, bool) {
	sc := store.Current()
	w, hh := r.size()
	idx := nearestToken(sc, w, hh, x, y)
	if amount <= 0 {
		amount = 1.0
	}
	res, ok := state.SimulateBuy(sc, idx, amount)
	if !ok {
		return state.SimResult{}, false
	}
	h.broadcast(simMsg{Type: "simulation", Result: res})
	if err := simlog.LogToCSV(time.Now(), res); err != nil {
		log.Printf("[sim] csv log: %v", err)
	}
	return res, true
}

/* ====================
   HTTP helpers
   ==================== */

func serveStatic(mux *http.ServeMux, webDir string) {
	abs, _ := filepath.Abs(webDir)
	log.Printf("Serving static from %s", abs)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFile(w, r, filepath.Join(webDir, "index.html"))
	})
}

/* ====================
   main
   ==================== */

func main() {
	portOverride := flag.Int("port", 0, "override server_port")
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load(".env")

	var cfg AppConfig
	if err := loadYAML(*configPath, &cfg); err != nil {
		log.Printf("load %s: %v (using defaults)", *configPath, err)
	}
	applyDefaults(&cfg)
	if *portOverride != 0 {
		cfg.ServerPort = *portOverride
	}

	store := state.NewStore()
	h := newHub()

	comp, err := scene.New(cfg.Canvas.Width, cfg.Canvas.Height,
		field.NewSampler(cfg.NoiseSeed), field.NewMixer(cfg.NoiseSeed))
	if err != nil {
		log.Fatalf("compositor: %v", err)
	}
	rend := newRenderer(cfg, comp, store, h)

	go runPollLoop(cfg.State.Source, time.Duration(cfg.State.PollIntervalMs)*time.Millisecond, store, h)
	go rend.run()

	mux := http.NewServeMux()
	serveStatic(mux, "web")

	mux.HandleFunc("/ws", h.serveWS(func(cl *client, ctrl controlMsg) {
		switch strings.ToLower(ctrl.Action) {
		case "toggle_overlay":
			on := !comp.ShowOverlay.Load()
			comp.ShowOverlay.Store(on)
			h.broadcast(statusMsg{Type: "status", Level: "info",
				Text: fmt.Sprintf("Overlay %s", onOff(on))})
		case "toggle_guides":
			on := !comp.ShowGuides.Load()
			comp.ShowGuides.Store(on)
			h.broadcast(statusMsg{Type: "status", Level: "info",
				Text: fmt.Sprintf("Influence guides %s", onOff(on))})
		case "probe":
			x := numVal(ctrl.Value, "x")
			y := numVal(ctrl.Value, "y")
			sc := store.Current()
			w, hh := rend.size()
			weights := field.Influence(sc.Tokens, w, hh, x, y)
			reply := probeMsg{Type: "probe", X: x, Y: y, Sources: make([]probeEntry, 0, len(weights))}
			for i, wt := range weights {
				reply.Sources = append(reply.Sources, probeEntry{Symbol: sc.Tokens[i].Symbol, Weight: wt})
			}
			select {
			case cl.out <- reply:
			default:
			}
		case "simulate":
			x := numVal(ctrl.Value, "x")
			y := numVal(ctrl.Value, "y")
			amount := numVal(ctrl.Value, "amount")
			if _, ok := runSimulation(store, rend, h, x, y, amount); !ok {
				select {
				case cl.out <- statusMsg{Type: "status", Level: "warn", Text: "No token to simulate against"}:
				default:
				}
			}
		case "resize":
			w := int(numVal(ctrl.Value, "w"))
			hh := int(numVal(ctrl.Value, "h"))
			if w > 0 && hh > 0 {
				rend.requestResize(w, hh)
			}
		}
	}, func(cl *client) {
		// fill the page in before the first poll-triggered broadcast
		select {
		case cl.out <- sceneMeta(store.Current()):
		default:
		}
	}))

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		sc := store.Current()
		cw, ch := rend.size()
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"port":        cfg.ServerPort,
			"clients":     h.clientCount(),
			"canvas":      map[string]any{"width": cw, "height": ch, "fps": cfg.Canvas.FPS},
			"state":       map[string]any{"source": cfg.State.Source, "poll_ms": cfg.State.PollIntervalMs},
			"last_update": sc.LastUpdate,
			"tokens":      len(sc.Tokens),
		})
	})

	mux.HandleFunc("/api/scene", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(sceneMeta(store.Current()))
	})

	// GET variant of the buy simulation for host pages without a socket
	mux.HandleFunc("/api/simulate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		q := r.URL.Query()
		amount, _ := strconv.ParseFloat(strings.TrimSpace(q.Get("amount")), 64)
		sym := strings.ToUpper(strings.TrimSpace(q.Get("symbol")))
		sc := store.Current()
		idx := -1
		for i := range sc.Tokens {
			if sc.Tokens[i].Symbol == sym {
				idx = i
				break
			}
		}
		if idx < 0 {
			http.Error(w, "unknown symbol", http.StatusNotFound)
			return
		}
		if amount <= 0 {
			amount = 1.0
		}
		res, ok := state.SimulateBuy(sc, idx, amount)
		if !ok {
			http.Error(w, "simulation failed", http.StatusBadRequest)
			return
		}
		h.broadcast(simMsg{Type: "simulation", Result: res})
		if err := simlog.LogToCSV(time.Now(), res); err != nil {
			log.Printf("[sim] csv log: %v", err)
		}
		_ = json.NewEncoder(w).Encode(res)
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("UI: http://localhost:%d (state source: %s)", cfg.ServerPort, cfg.State.Source)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("http server: %v", err)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
