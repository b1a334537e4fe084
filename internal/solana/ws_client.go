package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/observability"
)

// ErrClientClosed is returned by calls made after Close.
var ErrClientClosed = errors.New("websocket client closed")

var errNotConnected = errors.New("websocket not connected")

const (
	dialTimeout      = 10 * time.Second
	notifyBufferSize = 10000
)

// WSClientConfig tunes connection upkeep of StreamClient.
type WSClientConfig struct {
	ReconnectDelay    time.Duration // first redial wait, doubled per failure
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	ReadTimeout       time.Duration // extended on every frame and pong
	WriteTimeout      time.Duration
	SubscribeTimeout  time.Duration // zero means 30s
}

// DefaultWSConfig returns the settings used when NewWSClient gets nil.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// StreamClient is a WSClient over gorilla/websocket. A dropped connection is
// redialed with backoff and every program subscription is re-issued on the
// new connection; subscriber channels survive the swap.
type StreamClient struct {
	endpoint string
	config   WSClientConfig
	logger   *log.Logger

	writeMu sync.Mutex
	conn    *websocket.Conn

	nextID atomic.Uint64
	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	streams []*programStream
	routes  map[int64]*programStream // server subscription id
	waiting map[uint64]*pendingSubscribe
}

var _ WSClient = (*StreamClient)(nil)

type programStream struct {
	filter ProgramFilter
	out    chan AccountNotification
}

type pendingSubscribe struct {
	stream *programStream
	reply  chan error
}

// NewWSClient dials endpoint and starts the reader and keepalive loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*StreamClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}

	c := &StreamClient{
		endpoint: endpoint,
		config:   cfg,
		logger:   log.New(log.Writer(), "[ws] ", log.LstdFlags),
		done:     make(chan struct{}),
		routes:   make(map[int64]*programStream),
		waiting:  make(map[uint64]*pendingSubscribe),
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.run(conn)
	go c.keepalive()
	return c, nil
}

// SubscribeProgram issues programSubscribe and returns the channel that
// receives every matching account change until Close.
func (c *StreamClient) SubscribeProgram(ctx context.Context, filter ProgramFilter) (<-chan AccountNotification, error) {
	s := &programStream{
		filter: filter,
		out:    make(chan AccountNotification, notifyBufferSize),
	}
	// Registered first so a reconnect racing the confirmation re-issues it.
	c.mu.Lock()
	c.streams = append(c.streams, s)
	c.mu.Unlock()

	if err := c.subscribe(ctx, s); err != nil {
		c.dropStream(s)
		return nil, err
	}
	return s.out, nil
}

func (c *StreamClient) dropStream(s *programStream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, cur := range c.routes {
		if cur == s {
			delete(c.routes, id)
		}
	}
	for i, cur := range c.streams {
		if cur == s {
			c.streams = append(c.streams[:i], c.streams[i+1:]...)
			return
		}
	}
}

// Close stops all loops, closes the connection and then every subscriber
// channel. It is safe to call more than once.
func (c *StreamClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.writeMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		c.conn.Close()
		c.conn = nil
	}
	c.writeMu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	for _, s := range c.streams {
		close(s.out)
	}
	c.streams = nil
	c.mu.Unlock()
	return nil
}

func (c *StreamClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.endpoint, err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	})

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		conn.Close()
		return nil, ErrClientClosed
	}
	c.conn = conn
	return conn, nil
}

// run owns the read side. Each pass reads one connection until it fails,
// then redials and re-issues the subscriptions.
func (c *StreamClient) run(conn *websocket.Conn) {
	defer c.wg.Done()

	for conn != nil {
		err := c.readFrom(conn)
		if c.closed.Load() {
			return
		}
		c.logger.Printf("connection lost: %v", err)
		c.detach(conn)

		conn = c.redial()
		if conn != nil {
			c.wg.Add(1)
			go c.restore()
		}
	}
}

func (c *StreamClient) readFrom(conn *websocket.Conn) error {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
			return err
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.dispatch(msg)
	}
}

func (c *StreamClient) detach(conn *websocket.Conn) {
	c.writeMu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.writeMu.Unlock()
	conn.Close()
}

// redial retries until a connection is up or the client is closed.
func (c *StreamClient) redial() *websocket.Conn {
	delay := c.config.ReconnectDelay
	for {
		select {
		case <-c.done:
			return nil
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err == nil {
			observability.RecordWSReconnect()
			return conn
		}
		if errors.Is(err, ErrClientClosed) {
			return nil
		}
		c.logger.Printf("redial in %s: %v", delay, err)

		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// restore re-issues every subscription on a fresh connection. Server ids from
// the old connection are void, so the routing table starts empty.
func (c *StreamClient) restore() {
	defer c.wg.Done()

	c.mu.Lock()
	streams := append([]*programStream(nil), c.streams...)
	c.routes = make(map[int64]*programStream)
	c.mu.Unlock()

	for _, s := range streams {
		ctx, cancel := context.WithTimeout(context.Background(), c.config.SubscribeTimeout)
		err := c.subscribe(ctx, s)
		cancel()
		if err != nil && !c.closed.Load() {
			c.logger.Printf("resubscribe %s: %v", s.filter.ProgramID, err)
		}
	}
}

// subscribe sends programSubscribe for s and waits for the server id. The
// route is installed by dispatch before the reply is released.
func (c *StreamClient) subscribe(ctx context.Context, s *programStream) error {
	if c.closed.Load() {
		return ErrClientClosed
	}

	id := c.nextID.Add(1)
	p := &pendingSubscribe{stream: s, reply: make(chan error, 1)}
	c.mu.Lock()
	c.waiting[id] = p
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiting, id)
		c.mu.Unlock()
	}()

	err := c.send(wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "programSubscribe",
		Params:  []interface{}{s.filter.ProgramID.String(), programSubscribeConfig(s.filter.Filters)},
	})
	if err != nil {
		return fmt.Errorf("programSubscribe %s: %w", s.filter.ProgramID, err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	select {
	case err := <-p.reply:
		return err
	case <-timer.C:
		return fmt.Errorf("programSubscribe %s: no confirmation within %s", s.filter.ProgramID, c.config.SubscribeTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClientClosed
	}
}

func (c *StreamClient) send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return errNotConnected
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(v)
}

// wsEnvelope covers every inbound frame: subscribe replies carry an id,
// notifications carry a method.
type wsEnvelope struct {
	ID     uint64                `json:"id"`
	Method string                `json:"method"`
	Result json.RawMessage       `json:"result"`
	Params *wsNotificationParams `json:"params"`
	Error  *rpcError             `json:"error"`
}

func (c *StreamClient) dispatch(msg []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.logger.Printf("undecodable frame: %v", err)
		return
	}

	switch {
	case env.Method == "programNotification" && env.Params != nil:
		observability.RecordWSNotification(env.Method)
		c.deliver(env.Params)
	case env.ID != 0:
		c.confirm(&env)
	case env.Error != nil:
		c.logger.Printf("server error: %v", env.Error)
	}
}

func (c *StreamClient) confirm(env *wsEnvelope) {
	var reply error
	var subID int64
	switch {
	case env.Error != nil:
		reply = env.Error
	default:
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			reply = fmt.Errorf("subscription id: %w", err)
		}
	}

	c.mu.Lock()
	p, ok := c.waiting[env.ID]
	delete(c.waiting, env.ID)
	if ok && reply == nil {
		c.routes[subID] = p.stream
	}
	c.mu.Unlock()

	if ok {
		p.reply <- reply
	}
}

// deliver blocks on a full subscriber channel rather than dropping a change.
func (c *StreamClient) deliver(params *wsNotificationParams) {
	value := params.Result.Value
	key, err := domain.PubkeyFromBase58(value.Pubkey)
	if err != nil {
		c.logger.Printf("notification key %q: %v", value.Pubkey, err)
		return
	}
	info, err := value.Account.decode()
	if err != nil {
		c.logger.Printf("notification account %s: %v", key, err)
		return
	}

	n := AccountNotification{Pubkey: key, Account: info}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
		observability.UpdateHighestSlot(n.Slot)
	}

	c.mu.Lock()
	s := c.routes[params.Subscription]
	c.mu.Unlock()
	if s == nil {
		return
	}

	select {
	case s.out <- n:
	case <-c.done:
	}
}

func (c *StreamClient) keepalive() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}

		c.writeMu.Lock()
		if c.conn != nil {
			// A failed ping surfaces as a read error in run.
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
		}
		c.writeMu.Unlock()
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext     `json:"context"`
	Value   wsProgramValue `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsProgramValue struct {
	Pubkey  string     `json:"pubkey"`
	Account rpcAccount `json:"account"`
}

func programSubscribeConfig(filters []AccountFilter) map[string]interface{} {
	cfg := map[string]interface{}{
		"encoding":   "base64",
		"commitment": DefaultCommitment,
	}
	if len(filters) > 0 {
		cfg["filters"] = encodeFilters(filters)
	}
	return cfg
}
