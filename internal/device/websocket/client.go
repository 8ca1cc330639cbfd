package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	gorillaWS "github.com/gorilla/websocket"

	"github.com/AlibekovAA/devicehub/internal/common/config"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/observability/metrics"
	"github.com/AlibekovAA/devicehub/internal/presence"
)

// Client is one device websocket. It implements presence.Conn.
type Client struct {
	id        string
	conn      *gorillaWS.Conn
	manager   *SessionManager
	session   *Session
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	cfg       config.WebSocketConfig
	log       *logger.Logger
	ctx       context.Context
}

func NewClient(ctx context.Context, id string, conn *gorillaWS.Conn, manager *SessionManager, cfg config.WebSocketConfig, log *logger.Logger) *Client {
	c := &Client{
		id:      id,
		conn:    conn,
		manager: manager,
		send:    make(chan []byte, cfg.SendBufSize),
		done:    make(chan struct{}),
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
	}
	c.session = manager.Open(c)
	return c
}

func (c *Client) ID() string {
	return c.id
}

// Send queues event for the write pump. It fails fast once the client is
// closed and gives up after the configured send timeout.
func (c *Client) Send(ctx context.Context, event presence.Event) error {
	data, err := marshalEvent(event)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return commonerrors.ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(c.cfg.SendTimeout)
	defer timer.Stop()

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return commonerrors.ErrConnectionClosed
	case <-ctx.Done():
		metrics.WebSocketDroppedMessages.WithLabelValues(event.Type).Inc()
		return ctx.Err()
	case <-timer.C:
		metrics.WebSocketDroppedMessages.WithLabelValues(event.Type).Inc()
		return commonerrors.ErrSendTimeout
	}
}

// Close stops both pumps. Safe to call from any goroutine, any number of
// times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *Client) Start() {
	metrics.WebSocketConnectionsActive.Inc()
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	reason := "client_closed"
	defer func() {
		c.Close()
		c.manager.Disconnect(c.ctx, c.session)
		c.conn.Close()
		metrics.WebSocketConnectionsActive.Dec()
		metrics.WebSocketDisconnections.WithLabelValues(reason).Inc()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				reason = "server_closed"
			default:
				if gorillaWS.IsUnexpectedCloseError(err, gorillaWS.CloseGoingAway, gorillaWS.CloseNormalClosure) {
					reason = "read_error"
					c.log.WithFields(c.ctx, logger.Fields{
						"conn_id": c.id,
						"guid":    c.session.GUID(),
						"action":  "ws_read_error",
					}).Warnf("websocket read error: %v", err)
				}
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.WithFields(c.ctx, logger.Fields{
				"conn_id": c.id,
				"action":  "ws_invalid_frame",
			}).Warnf("websocket invalid frame: %v", err)
			metrics.SessionRejectedEvents.WithLabelValues("invalid_frame", c.session.State().String()).Inc()
			if err := c.Send(c.ctx, ErrorEvent(commonerrors.ErrInvalidPayload)); err != nil {
				c.log.WithFields(c.ctx, logger.Fields{
					"conn_id": c.id,
					"action":  "ws_error_send_failed",
				}).Warnf("failed to send error event: %v", err)
			}
			continue
		}

		// HandleMessage logs and reports its own failures; the session stays open.
		_ = c.manager.HandleMessage(c.ctx, c.session, &msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		// Unblocks ReadMessage in the read pump.
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(gorillaWS.CloseMessage, gorillaWS.FormatCloseMessage(gorillaWS.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.TextMessage, message); err != nil {
				c.log.WithFields(c.ctx, logger.Fields{
					"conn_id": c.id,
					"action":  "ws_write_error",
				}).Warnf("websocket write error: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(gorillaWS.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
