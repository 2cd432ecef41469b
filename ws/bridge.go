// Package ws connects the pipeline to a remote key-custody service over websocket.
//
// The bridge speaks a small request/response protocol. Each signing request
// carries an id, and the custody side answers on the same connection with
// that id:
//
//	-> {"method":"sign","id":1,"request":{"hashHex":"0x..","publicKey":"0x.."}}
//	<- {"channel":"sign","data":{"id":1,"signatureHex":"0x.."}}
//	<- {"channel":"error","data":{"id":1,"error":"user rejected"}}
//
// Pings keep idle connections open.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dwdwow/mp-go/types"
)

const (
	channelSign  = "sign"
	channelError = "error"
)

type signRequest struct {
	Method  string            `json:"method"`
	ID      int64             `json:"id"`
	Request signRequestParams `json:"request"`
}

type signRequestParams struct {
	HashHex   string `json:"hashHex"`
	PublicKey string `json:"publicKey,omitempty"`
}

// SignResponse is one message from the custody side
type SignResponse struct {
	Channel string           `json:"channel"`
	Data    SignResponseData `json:"data"`
	Err     error            `json:"-"`
}

// SignResponseData is the payload of a SignResponse
type SignResponseData struct {
	ID           int64  `json:"id"`
	SignatureHex string `json:"signatureHex"`
	Error        string `json:"error"`
}

type respWaiter struct {
	id int64
	ch chan *SignResponse
}

// Bridge is a types.Signer backed by a websocket custody service
type Bridge struct {
	url       string
	publicKey string
	conn      *websocket.Conn
	writeMu   sync.Mutex

	id            int64
	respWaiters   map[int64]respWaiter
	respWaitersMu sync.Mutex

	ctx          context.Context
	cancel       context.CancelFunc
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewBridge creates a bridge for url. publicKey is forwarded with every request
// so a custody service holding several keys can pick the right one.
func NewBridge(url, publicKey string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		url:          url,
		publicKey:    publicKey,
		pingInterval: defaultPingInterval,
		respWaiters:  make(map[int64]respWaiter),
		logger:       logger.With("component", "custody_bridge"),
	}
}

const defaultPingInterval = 40 * time.Second

// SetPingInterval changes the keepalive interval. Call before Start.
// Non-positive values are ignored.
func (b *Bridge) SetPingInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	b.pingInterval = d
}

// Start dials the custody service
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(context.Background())

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		b.cancel()
		return fmt.Errorf("failed to connect to custody bridge: %w", err)
	}

	b.conn = conn

	go b.pingRoutine()
	go b.read()

	return nil
}

// Close shuts the connection and fails every pending request
func (b *Bridge) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Sign implements types.Signer
func (b *Bridge) Sign(ctx context.Context, hashHex string) (types.SignatureResponse, error) {
	waiter, err := b.request(hashHex)
	if err != nil {
		return types.SignatureResponse{}, err
	}

	select {
	case resp, ok := <-waiter.ch:
		if !ok || resp == nil {
			return types.SignatureResponse{}, fmt.Errorf("custody bridge closed")
		}
		if resp.Err != nil {
			return types.SignatureResponse{}, resp.Err
		}
		return types.SignatureResponse{SignatureHex: resp.Data.SignatureHex}, nil
	case <-ctx.Done():
		b.dropWaiter(waiter.id)
		return types.SignatureResponse{}, ctx.Err()
	}
}

func (b *Bridge) request(hashHex string) (waiter respWaiter, err error) {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		err = fmt.Errorf("custody bridge not connected")
		return
	}
	b.id++
	waiter = respWaiter{
		id: b.id,
		ch: make(chan *SignResponse, 1),
	}

	// Register before writing so a fast reply finds its waiter
	b.respWaitersMu.Lock()
	b.respWaiters[waiter.id] = waiter
	b.respWaitersMu.Unlock()

	err = b.conn.WriteJSON(signRequest{
		Method: "sign",
		ID:     waiter.id,
		Request: signRequestParams{
			HashHex:   hashHex,
			PublicKey: b.publicKey,
		},
	})
	if err != nil {
		b.dropWaiter(waiter.id)
		err = fmt.Errorf("send sign request: %w", err)
	}
	return
}

func (b *Bridge) dropWaiter(id int64) {
	b.respWaitersMu.Lock()
	delete(b.respWaiters, id)
	b.respWaitersMu.Unlock()
}

// pingRoutine sends periodic pings until the context is canceled, then
// closes the connection and fails all pending requests
func (b *Bridge) pingRoutine() {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	defer func() {
		b.Close()
		b.respWaitersMu.Lock()
		for _, waiter := range b.respWaiters {
			waiter.ch <- &SignResponse{Err: fmt.Errorf("custody bridge closed")}
			close(waiter.ch)
		}
		b.respWaiters = make(map[int64]respWaiter)
		b.respWaitersMu.Unlock()
	}()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := b.conn.WriteJSON(map[string]string{"method": "ping"})
			b.writeMu.Unlock()
			if err != nil {
				b.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (b *Bridge) read() {
	// A broken connection stops the ping routine, which fails pending waiters
	defer b.cancel()

	for {
		if b.ctx.Err() != nil {
			return
		}
		_, rawMsg, readErr := b.conn.ReadMessage()
		if readErr != nil {
			if b.ctx.Err() == nil {
				b.logger.Warn("read failed", "error", readErr)
			}
			return
		}

		if len(rawMsg) > 0 && rawMsg[0] != '{' {
			b.logger.Debug("ignoring non-json message", "message", string(rawMsg))
			continue
		}

		resp := &SignResponse{}
		if err := json.Unmarshal(rawMsg, resp); err != nil {
			b.logger.Warn("malformed message", "error", err)
			continue
		}
		if resp.Channel == "pong" {
			continue
		}

		id := resp.Data.ID

		b.respWaitersMu.Lock()
		waiter, ok := b.respWaiters[id]
		if !ok {
			b.respWaitersMu.Unlock()
			b.logger.Debug("response without waiter", "id", id)
			continue
		}
		delete(b.respWaiters, id)
		b.respWaitersMu.Unlock()

		switch {
		case resp.Channel == channelError || resp.Data.Error != "":
			resp.Err = fmt.Errorf("custody rejected request %d: %s", id, resp.Data.Error)
		case resp.Channel != channelSign:
			resp.Err = fmt.Errorf("unexpected channel %q", resp.Channel)
		}

		waiter.ch <- resp
		close(waiter.ch)
	}
}
