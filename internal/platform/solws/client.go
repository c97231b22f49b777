// Package solws streams transactions touching the watched programs over a
// Solana websocket endpoint. It manages the connection lifecycle,
// re-subscribes after reconnects, and dispatches reduced notifications to
// registered handlers.
package solws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AV1080p/-solana-sniper-bot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// TransactionHandler is called for every transaction notification.
type TransactionHandler func(TxNotification)

// WSClient is a websocket client for a Solana RPC endpoint's transaction
// stream. It manages the connection lifecycle, the program subscription,
// and dispatches notifications to registered handlers.
type WSClient struct {
	wsURL      string
	commitment string
	conn       *websocket.Conn

	mu     sync.RWMutex
	closed bool
	nextID uint64

	// Program filter to restore on reconnect.
	programs []string

	handlers  []TransactionHandler
	handlerMu sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a websocket client for the given endpoint, e.g.
// "wss://mainnet.helius-rpc.com/?api-key=...". An empty commitment
// subscribes at processed.
func NewWSClient(wsURL, commitment string) *WSClient {
	if commitment == "" {
		commitment = "processed"
	}
	return &WSClient{
		wsURL:      wsURL,
		commitment: commitment,
		done:       make(chan struct{}),
	}
}

// Connect establishes the websocket connection.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("solws: %w", domain.ErrFeedClosed)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("solws: connect: %w", err)
	}

	w.conn = conn

	// Set up pong handler for keep-alive.
	w.conn.SetReadDeadline(time.Now().Add(pongWait))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go w.readLoop()
	go w.pingLoop()

	// Restore the subscription after a reconnect.
	if len(w.programs) > 0 {
		if err := w.sendSubscribe(w.programs); err != nil {
			return fmt.Errorf("solws: restore subscription: %w", err)
		}
	}

	return nil
}

// Subscribe narrows the stream to transactions touching the given program
// IDs. Failed transactions are filtered out server-side.
func (w *WSClient) Subscribe(ctx context.Context, programs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("solws: not connected")
	}
	if len(programs) == 0 {
		return fmt.Errorf("solws: no programs to subscribe")
	}

	if err := w.sendSubscribe(programs); err != nil {
		return fmt.Errorf("solws: subscribe: %w", err)
	}

	// Track for reconnection.
	w.programs = programs
	return nil
}

// OnTransaction registers a handler called for every notification.
func (w *WSClient) OnTransaction(handler TransactionHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close shuts down the connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}

	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

// sendSubscribe sends the transactionSubscribe request. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(programs []string) error {
	w.nextID++
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      w.nextID,
		Method:  "transactionSubscribe",
		Params: []any{
			subscribeFilter{Failed: false, AccountInclude: programs},
			subscribeOptions{
				Commitment:                     w.commitment,
				Encoding:                       "base64",
				TransactionDetails:             "full",
				ShowRewards:                    false,
				MaxSupportedTransactionVersion: 0,
			},
		},
	}

	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop continuously reads messages and dispatches notifications. On
// disconnect it hands off to reconnect.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}

			w.reconnect()
			return // readLoop is restarted by reconnect -> Connect
		}

		w.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()

			if conn == nil {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage parses a raw message and routes transaction notifications
// to the handlers.
func (w *WSClient) handleMessage(raw []byte) {
	var envelope wsEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return // Silently drop unparseable messages.
	}

	if envelope.Method != "transactionNotification" {
		return // Subscription acks and unrelated notifications.
	}

	var params txNotificationParams
	if err := json.Unmarshal(envelope.Params, &params); err != nil {
		return
	}

	meta := params.Result.Transaction.Meta
	notification := TxNotification{
		Signature: params.Result.Signature,
		Slot:      params.Result.Slot,
		Logs:      meta.LogMessages,
		Failed:    meta.Err != nil,
	}
	for _, b := range meta.PostTokenBalances {
		notification.PostTokenBalanceMints = append(notification.PostTokenBalanceMints, b.Mint)
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()

	for _, h := range handlers {
		h(notification)
	}
}

// reconnect re-establishes the connection with exponential backoff. It
// blocks until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()

		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
