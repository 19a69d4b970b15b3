// Package entropy supplies the uniform draws behind every roll in the
// simulation. True randomness comes from random.org when an API key is
// configured; crypto/rand covers everything else.
package entropy

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"hash/fnv"
	"io"
	"log/slog"
	mathrand "math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Source yields uniform draws in [0, 1).
type Source interface {
	Float() float64
}

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Client provides true random numbers from random.org with a local pool.
// It is safe for concurrent use.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu        sync.Mutex
	pool      []float64
	refilling bool
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Float returns a random float64 in [0, 1). Uses the pool, refilling from
// random.org when low. The caller that starts a refill waits for it; other
// callers keep drawing from the pool, or from crypto/rand while it is
// empty. Falls back to crypto/rand on API failure.
func (c *Client) Float() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	if len(c.pool) < 10 && !c.refilling {
		c.refilling = true
		c.mu.Unlock()
		fresh := c.fetch()
		c.mu.Lock()
		c.pool = append(c.pool, fresh...)
		c.refilling = false
	}
	defer c.mu.Unlock()

	if len(c.pool) == 0 {
		return cryptoRandFloat()
	}

	val := c.pool[0]
	c.pool = c.pool[1:]
	return val
}

// fetch requests a batch of draws. It runs without c.mu held.
func (c *Client) fetch() []float64 {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             100,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return nil
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return nil
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return nil
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return nil
	}

	// Decimal fractions may include 1.0 at six places; keep draws half-open.
	var fresh []float64
	for _, v := range result.Result.Random.Data {
		if v >= 0 && v < 1 {
			fresh = append(fresh, v)
		}
	}
	slog.Debug("random.org batch fetched", "count", len(fresh))
	return fresh
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// cryptoRandFloat generates a random float64 using crypto/rand.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := rand.Read(buf[:])
	if err != nil {
		// This should never happen but return 0.5 as a safe default.
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

// Crypto draws from crypto/rand. The zero value is ready to use.
type Crypto struct{}

// Float returns a random float64 in [0, 1).
func (Crypto) Float() float64 {
	return cryptoRandFloat()
}

// Seeded is a deterministic PCG source. It is not safe for concurrent use;
// give each advancement its own.
type Seeded struct {
	r *mathrand.Rand
}

// NewSeeded returns a deterministic source for the seed pair.
func NewSeeded(seed1, seed2 uint64) *Seeded {
	return &Seeded{r: mathrand.New(mathrand.NewPCG(seed1, seed2))}
}

// Float returns a random float64 in [0, 1).
func (s *Seeded) Float() float64 {
	return s.r.Float64()
}

// Factory hands out one source per game-state operation so no mutable
// generator state is shared between game states.
type Factory struct {
	client *Client
	seed   uint64
	calls  atomic.Uint64
}

// NewFactory returns a factory. A non-zero seed makes every source
// deterministic for a given game state and call order; otherwise the
// random.org client is used when configured, then crypto/rand.
func NewFactory(client *Client, seed uint64) *Factory {
	return &Factory{client: client, seed: seed}
}

// For returns a source for one operation on the game state.
func (f *Factory) For(gameStateID string) Source {
	if f == nil {
		return Crypto{}
	}
	if f.seed != 0 {
		h := fnv.New64a()
		h.Write([]byte(gameStateID))
		return NewSeeded(f.seed^h.Sum64(), f.calls.Add(1))
	}
	if f.client.Enabled() {
		return f.client
	}
	return Crypto{}
}
