package ticketing

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// ClientPool hands out one Client per credential set, so the attendee rate
// limit is shared by every run using the same credentials and independent
// across credential sets.
type ClientPool struct {
	baseURL     string
	timeout     time.Duration
	minInterval time.Duration
	httpClient  HTTPDoer

	mu      sync.Mutex
	clients map[string]*Client
}

// NewClientPool creates a pool of clients for baseURL.
func NewClientPool(baseURL string, timeout, minInterval time.Duration) *ClientPool {
	return &ClientPool{
		baseURL:     baseURL,
		timeout:     timeout,
		minInterval: minInterval,
		clients:     make(map[string]*Client),
	}
}

// SetHTTPClient sets the transport of clients created from now on.
func (p *ClientPool) SetHTTPClient(d HTTPDoer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.httpClient = d
}

// Get returns the client for creds, creating it on first use.
func (p *ClientPool) Get(creds Credentials) *Client {
	key := fingerprint(creds)

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c
	}
	c := NewClient(Config{
		BaseURL:     p.baseURL,
		Credentials: creds,
		Timeout:     p.timeout,
		MinInterval: p.minInterval,
	})
	if p.httpClient != nil {
		c.SetHTTPClient(p.httpClient)
	}
	p.clients[key] = c
	return c
}

// fingerprint identifies a credential set without keeping the key in clear
// as a map key.
func fingerprint(c Credentials) string {
	sum := sha256.Sum256([]byte(c.User + "\x00" + c.Key))
	return hex.EncodeToString(sum[:])
}
