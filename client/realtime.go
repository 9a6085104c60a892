package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// Listener is the realtime invalidation channel: one websocket per
// console, optionally scoped to a unit. Frames carry no state; any
// inbound message means "re-fetch". Connection loss is not a
// user-visible error, only mutation failures are.
type Listener struct {
	wsURL  string
	scope  string
	tokens TokenSource
	store  *Store

	// onConnect runs after every (re)connect, once the scope is
	// re-established. The dispatcher hangs queue replay off this,
	// since a fresh connection is the connectivity-restored signal.
	onConnect func(ctx context.Context)

	dialer *websocket.Dialer
}

// NewListener builds a listener against the service at serverURL.
func NewListener(serverURL, scope string, tokens TokenSource, store *Store, onConnect func(ctx context.Context)) (*Listener, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/v1/realtime"
	if scope != "" {
		q := u.Query()
		q.Set("unit", scope)
		u.RawQuery = q.Encode()
	}

	return &Listener{
		wsURL:     u.String(),
		scope:     scope,
		tokens:    tokens,
		store:     store,
		onConnect: onConnect,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Run maintains the connection until ctx is done, reconnecting with
// backoff. Every (re)connect fires an immediate refresh, because
// notifications missed during an outage are otherwise invisible.
func (l *Listener) Run(ctx context.Context) {
	backoff := reconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := l.dial(ctx)
		if err != nil {
			zap.S().Debugw("realtime connect failed, retrying",
				"backoff", backoff,
				"error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > reconnectMax {
				backoff = reconnectMax
			}
			continue
		}
		backoff = reconnectMin
		zap.S().Infow("realtime channel connected", "scope", l.scope)

		// Missed notifications are invisible; converge immediately.
		l.store.Invalidate()
		if l.onConnect != nil {
			l.onConnect(ctx)
		}

		l.readLoop(ctx, conn)
		conn.Close()
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := l.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := l.dialer.DialContext(ctx, l.wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, err
}

// readLoop turns every inbound frame, regardless of payload, into one
// coalesced refresh trigger. It returns when the connection drops.
func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if ctx.Err() == nil {
				zap.S().Debugw("realtime channel dropped", "error", err)
			}
			return
		}
		l.store.Invalidate()
	}
}
