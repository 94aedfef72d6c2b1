package deepdub

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gorilla/websocket"
)

const (
	defaultBaseURL      = "https://restapi.deepdub.ai/api/v1"
	defaultWSURL        = "wss://wsapi.deepdub.ai/open"
	defaultStreamingURL = "wss://wss.deepdub.ai/ws"

	euBaseURL      = "https://restapi.eu.deepdub.ai/api/v1"
	euWSURL        = "wss://wsapi.eu.deepdub.ai/open"
	euStreamingURL = "wss://wss.eu.deepdub.ai/ws"

	defaultTimeout = 30 * time.Second
)

// StreamLimits configures process-wide streaming session behavior.
// It is supplied once at client construction; the zero value selects
// the defaults below.
type StreamLimits struct {
	// MaxSessions caps concurrently open streaming sessions (default 8).
	MaxSessions int

	// DialTimeout bounds the websocket handshake (default 15s).
	DialTimeout time.Duration

	// HeartbeatInterval is the keep-alive ping period (default 20s).
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long a pong may be outstanding before the
	// connection is considered dropped (default 45s).
	HeartbeatTimeout time.Duration

	// MaxConnectAttempts caps dial/reconnect attempts per session (default 4).
	MaxConnectAttempts int

	// BackoffBase is the first reconnect delay (default 250ms).
	BackoffBase time.Duration

	// BackoffMax caps the reconnect delay (default 5s).
	BackoffMax time.Duration
}

func (l StreamLimits) withDefaults() StreamLimits {
	if l.MaxSessions <= 0 {
		l.MaxSessions = 8
	}
	if l.DialTimeout <= 0 {
		l.DialTimeout = 15 * time.Second
	}
	if l.HeartbeatInterval <= 0 {
		l.HeartbeatInterval = 20 * time.Second
	}
	if l.HeartbeatTimeout <= 0 {
		l.HeartbeatTimeout = 45 * time.Second
	}
	if l.MaxConnectAttempts <= 0 {
		l.MaxConnectAttempts = 4
	}
	if l.BackoffBase <= 0 {
		l.BackoffBase = 250 * time.Millisecond
	}
	if l.BackoffMax <= 0 {
		l.BackoffMax = 5 * time.Second
	}
	return l
}

// Client represents a Deepdub API client.
type Client struct {
	// TTS provides one-shot and streaming speech synthesis.
	TTS *TTSService

	// Voice provides voice asset management and gender classification.
	Voice *VoiceService

	// Stream provides persistent bidirectional synthesis sessions.
	Stream *StreamService

	config *clientConfig
}

// clientConfig represents client configuration.
type clientConfig struct {
	apiKey       string
	baseURL      string
	wsURL        string
	streamingURL string
	userAgent    string
	httpClient   *http.Client
	dialer       *websocket.Dialer
	timeout      time.Duration
	limits       StreamLimits

	eu    bool
	euSet bool

	sessionSlots chan struct{}
}

// envConfig is the environment fallback, parsed with caarlos0/env.
type envConfig struct {
	APIKey       string `env:"DEEPDUB_API_KEY"`
	BaseURL      string `env:"DEEPDUB_BASE_URL"`
	WSURL        string `env:"DEEPDUB_BASE_WEBSOCKET_URL"`
	StreamingURL string `env:"DEEPDUB_BASE_WEBSOCKET_STREAMING_URL"`
	EU           bool   `env:"DD_EU"`
}

// Option represents a configuration option function.
type Option func(*clientConfig)

// NewClient creates a Deepdub API client.
//
// The API key is required, either via WithAPIKey or the DEEPDUB_API_KEY
// environment variable.
func NewClient(opts ...Option) (*Client, error) {
	config := &clientConfig{
		timeout: defaultTimeout,
	}

	for _, opt := range opts {
		opt(config)
	}

	envCfg, err := env.ParseAs[envConfig]()
	if err != nil {
		return nil, wrapError(err, "parse environment")
	}

	if config.apiKey == "" {
		config.apiKey = envCfg.APIKey
	}
	if config.apiKey == "" {
		return nil, fmt.Errorf("deepdub: no API key provided, use WithAPIKey or set DEEPDUB_API_KEY")
	}

	eu := envCfg.EU
	if config.euSet {
		eu = config.eu
	}

	if config.baseURL == "" {
		config.baseURL = envCfg.BaseURL
	}
	if config.wsURL == "" {
		config.wsURL = envCfg.WSURL
	}
	if config.streamingURL == "" {
		config.streamingURL = envCfg.StreamingURL
	}
	if config.baseURL == "" {
		config.baseURL = defaultBaseURL
		if eu {
			config.baseURL = euBaseURL
		}
	}
	if config.wsURL == "" {
		config.wsURL = defaultWSURL
		if eu {
			config.wsURL = euWSURL
		}
	}
	if config.streamingURL == "" {
		config.streamingURL = defaultStreamingURL
		if eu {
			config.streamingURL = euStreamingURL
		}
	}

	if config.httpClient == nil {
		config.httpClient = &http.Client{Timeout: config.timeout}
	}
	config.limits = config.limits.withDefaults()
	if config.dialer == nil {
		config.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.limits.DialTimeout,
		}
	}
	config.sessionSlots = make(chan struct{}, config.limits.MaxSessions)

	c := &Client{config: config}
	c.TTS = newTTSService(c)
	c.Voice = newVoiceService(c)
	c.Stream = newStreamService(c)

	return c, nil
}

// WithAPIKey sets the API key used for all requests.
//
// Header format: x-api-key: {apiKey}
func WithAPIKey(apiKey string) Option {
	return func(c *clientConfig) {
		c.apiKey = apiKey
	}
}

// WithBaseURL sets the REST API base URL.
//
// Default: https://restapi.deepdub.ai/api/v1
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithWebSocketURL sets the request/response websocket URL.
//
// Default: wss://wsapi.deepdub.ai/open
func WithWebSocketURL(url string) Option {
	return func(c *clientConfig) {
		c.wsURL = url
	}
}

// WithStreamingURL sets the streaming-input websocket URL.
//
// Default: wss://wss.deepdub.ai/ws
func WithStreamingURL(url string) Option {
	return func(c *clientConfig) {
		c.streamingURL = url
	}
}

// WithEU selects the EU-region endpoints for any URL not set explicitly.
func WithEU(eu bool) Option {
	return func(c *clientConfig) {
		c.eu = eu
		c.euSet = true
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithDialer sets a custom websocket dialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *clientConfig) {
		c.dialer = dialer
	}
}

// WithTimeout sets the REST request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithStreamLimits sets process-wide streaming session limits.
func WithStreamLimits(limits StreamLimits) Option {
	return func(c *clientConfig) {
		c.limits = limits
	}
}

// WithUserAgent sets the User-Agent header on REST requests.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// setAuthHeaders sets authentication headers on a REST request.
func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.config.apiKey)
	if c.config.userAgent != "" {
		req.Header.Set("User-Agent", c.config.userAgent)
	}
}

// wsAuthHeaders returns the websocket handshake headers.
func (c *Client) wsAuthHeaders() http.Header {
	headers := http.Header{}
	headers.Set("x-api-key", c.config.apiKey)
	if c.config.userAgent != "" {
		headers.Set("User-Agent", c.config.userAgent)
	}
	return headers
}

// acquireSessionSlot reserves a streaming session slot, respecting the
// MaxSessions limit. It blocks until a slot is free or ctx is done.
func (c *Client) acquireSessionSlot(ctx context.Context) error {
	select {
	case c.config.sessionSlots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) releaseSessionSlot() {
	<-c.config.sessionSlots
}
