package station

import (
	"cpsys/internal"
	"cpsys/internal/config"
	"cpsys/metrics/counters"
	"cpsys/types"
	"cpsys/utility"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	reconnectBaseDelay = 2 * time.Second
	reconnectMaxDelay  = 60 * time.Second
)

var supportedSubProtocols = []string{types.SubProtocol16}

// Client maintains the ws connection to the central system, delivering
// received frames to the message handler and reporting link state changes.
type Client struct {
	conf         *config.Config
	logger       internal.LogHandler
	url          string
	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	onMessage    func(data []byte)
	onConnect    func()
	onDisconnect func()
	stop         chan struct{}
}

func NewClient(conf *config.Config, logger internal.LogHandler) *Client {
	return &Client{
		conf:   conf,
		logger: logger,
		url:    fmt.Sprintf("%s/%s", conf.CentralSystem.Url, conf.ChargePoint.Id),
		stop:   make(chan struct{}),
	}
}

func (c *Client) SetMessageHandler(handler func(data []byte)) {
	c.onMessage = handler
}

func (c *Client) SetConnectHandler(handler func()) {
	c.onConnect = handler
}

func (c *Client) SetDisconnectHandler(handler func()) {
	c.onDisconnect = handler
}

func (c *Client) Start() {
	go c.connectLoop()
}

func (c *Client) Stop() {
	close(c.stop)
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.mu.Unlock()
}

func (c *Client) connectLoop() {
	delay := reconnectBaseDelay
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		dialer := websocket.Dialer{
			Subprotocols:     supportedSubProtocols,
			HandshakeTimeout: 10 * time.Second,
		}
		conn, _, err := dialer.Dial(c.url, nil)
		if err == nil && !utility.Contains(supportedSubProtocols, conn.Subprotocol()) {
			_ = conn.Close()
			err = utility.Err(fmt.Sprintf("no agreement on subprotocol %s", types.SubProtocol16))
		}
		if err != nil {
			c.logger.Warn(fmt.Sprintf("connecting to %s failed: %s; retrying in %s", c.url, err, delay))
			select {
			case <-c.stop:
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}
		delay = reconnectBaseDelay

		c.mu.Lock()
		c.conn = conn
		c.connected = true
		c.mu.Unlock()
		c.logger.Debug(fmt.Sprintf("connected to central system at %s", c.url))
		counters.ObserveConnected(true)
		if c.onConnect != nil {
			c.onConnect()
		}

		c.readPump(conn)

		c.mu.Lock()
		c.connected = false
		c.conn = nil
		c.mu.Unlock()
		counters.ObserveConnected(false)
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("central system closed the session")
			} else {
				c.logger.Debug(fmt.Sprintf("session closed: %s", err))
			}
			_ = conn.Close()
			return
		}
		if c.onMessage != nil {
			c.onMessage(message)
		}
	}
}

// Send hands a text frame to the link layer; false reports the link down.
func (c *Client) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Error("error sending message", err)
		c.connected = false
		return false
	}
	return true
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
