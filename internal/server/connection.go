package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clubpoker/tablekeeper/internal/engine"
	"github.com/clubpoker/tablekeeper/internal/store"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one WebSocket client: the real-time game engine, a
// player, or a host console.
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	playerID  uint64
	gameCode  string
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closeOnce sync.Once
	engine    *engine.Engine
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, logger *log.Logger, eng *engine.Engine) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Connection{
		id:     id,
		conn:   conn,
		send:   make(chan *Message, 256),
		logger: logger.WithPrefix("conn").With("id", id[:8]),
		ctx:    ctx,
		cancel: cancel,
		engine: eng,
	}
}

// ID returns the server-assigned connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed, expected during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("connection send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// SetPlayer associates this connection with a player
func (c *Connection) SetPlayer(playerID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playerID = playerID
}

// GetPlayer returns the associated player ID
func (c *Connection) GetPlayer() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerID
}

// SetGame associates this connection with a game code
func (c *Connection) SetGame(gameCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gameCode = gameCode
}

// GetGame returns the associated game code
func (c *Connection) GetGame() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gameCode
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			break
		}

		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches one request frame to the engine.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type, "player", c.GetPlayer())

	if msg.Type == MessageTypeAuth {
		var data AuthData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError(msg, "invalid_message", "failed to parse auth data")
			return
		}
		c.handleAuth(msg, data)
		return
	}

	playerID := c.GetPlayer()
	if playerID == 0 {
		c.sendError(msg, "not_authenticated", "must authenticate first")
		return
	}

	switch msg.Type {
	case MessageTypeAdvanceHand:
		var data AdvanceHandData
		if !c.parse(msg, &data) {
			return
		}
		setup, err := c.engine.AdvanceToHand(data.GameCode, data.HandNum)
		c.reply(msg, MessageTypeHandSetup, setup, err)

	case MessageTypeDescribeHand:
		var data DescribeHandData
		if !c.parse(msg, &data) {
			return
		}
		setup, err := c.engine.DescribeHand(data.GameCode)
		c.reply(msg, MessageTypeHandSetup, setup, err)

	case MessageTypeHandFinished:
		var data HandFinishedData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.HandFinished(data.GameCode, data.HandNum, data.Rake))

	case MessageTypePinButton:
		var data PinButtonData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.PinButton(data.GameCode, playerID, data.SeatNo))

	case MessageTypeRequestBuyin:
		var data BuyinData
		if !c.parse(msg, &data) {
			return
		}
		result, err := c.engine.RequestBuyIn(data.GameCode, playerID, data.Amount)
		if err != nil {
			c.sendError(msg, "buyin_failed", err.Error())
			return
		}
		c.reply(msg, MessageTypeBuyinResult, BuyinResultData{
			Approved:        result.Approved,
			Deferred:        result.Deferred,
			Status:          result.Status.String(),
			AvailableCredit: result.AvailableCredit,
		}, nil)

	case MessageTypeRequestReload:
		var data BuyinData
		if !c.parse(msg, &data) {
			return
		}
		result, err := c.engine.RequestReload(data.GameCode, playerID, data.Amount)
		if err != nil {
			c.sendError(msg, "reload_failed", err.Error())
			return
		}
		c.reply(msg, MessageTypeBuyinResult, BuyinResultData{
			Approved:        result.Approved,
			Deferred:        result.Deferred,
			Status:          result.Status.String(),
			AvailableCredit: result.AvailableCredit,
		}, nil)

	case MessageTypePostBlind:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.PostBlind(data.GameCode, playerID))

	case MessageTypeApproveBuyin:
		var data ApproveBuyinData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.ApproveBuyIn(data.GameCode, playerID, data.PlayerID, data.Approve))

	case MessageTypeRequestSeatChange:
		var data SeatChangeData
		if !c.parse(msg, &data) {
			return
		}
		_, err := c.engine.RequestSeatChange(data.GameCode, playerID)
		c.ack(msg, err)

	case MessageTypeCancelSeatChange:
		var data SeatChangeData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.CancelSeatChangeRequest(data.GameCode, playerID))

	case MessageTypeConfirmSeatChange:
		var data SeatChangeData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.ConfirmSeatChange(data.GameCode, playerID, data.SeatNo))

	case MessageTypeDeclineSeatChange:
		var data SeatChangeData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.DeclineSeatChange(data.GameCode, playerID))

	case MessageTypeBeginHostReseat:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.BeginHostReseat(data.GameCode, playerID))

	case MessageTypeSwapSeats:
		var data SwapSeatsData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.SwapSeats(data.GameCode, playerID, data.SeatNo1, data.SeatNo2))

	case MessageTypeCommitHostReseat:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.CommitHostReseat(data.GameCode, playerID))

	case MessageTypeCancelHostReseat:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.CancelHostReseat(data.GameCode, playerID))

	case MessageTypeKickOut:
		var data KickOutData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.KickOutPlayer(data.GameCode, playerID, data.PlayerID))

	case MessageTypeLeaveGame:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.LeaveGame(data.GameCode, playerID))

	case MessageTypeTakeBreak:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.TakeBreak(data.GameCode, playerID))

	case MessageTypePauseGame:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.PauseGame(data.GameCode, playerID))

	case MessageTypeResumeGame:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.ResumeGame(data.GameCode, playerID))

	case MessageTypeEndGame:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.EndGame(data.GameCode, playerID))

	case MessageTypeDealerChoice:
		var data DealerChoiceData
		if !c.parse(msg, &data) {
			return
		}
		variant := store.ParseVariant(data.Variant)
		c.ack(msg, c.engine.SetDealerChoice(data.GameCode, playerID, variant))

	case MessageTypeNextHandBonus:
		var data GameData
		if !c.parse(msg, &data) {
			return
		}
		c.ack(msg, c.engine.SetNextHandBonus(data.GameCode, playerID))

	default:
		c.sendError(msg, "unknown_message_type", "unknown message type: "+string(msg.Type))
	}
}

func (c *Connection) handleAuth(msg *Message, data AuthData) {
	c.logger.Info("auth request", "playerId", data.PlayerID, "game", data.GameCode)

	if data.PlayerID == 0 {
		c.sendError(msg, "invalid_auth", "player id required")
		return
	}
	c.SetPlayer(data.PlayerID)
	c.SetGame(data.GameCode)

	response, _ := NewMessage(MessageTypeAuthResponse, AuthResponseData{
		Success:  true,
		PlayerID: data.PlayerID,
	})
	response.RequestID = msg.RequestID
	_ = c.SendMessage(response)
}

// parse unmarshals the request payload, reporting a protocol error to
// the client on failure.
func (c *Connection) parse(msg *Message, out any) bool {
	if err := json.Unmarshal(msg.Data, out); err != nil {
		c.sendError(msg, "invalid_message", "failed to parse "+string(msg.Type)+" data")
		return false
	}
	return true
}

// ack answers a fire-and-forget operation.
func (c *Connection) ack(msg *Message, err error) {
	if err != nil {
		c.sendError(msg, string(msg.Type)+"_failed", err.Error())
		return
	}
	response, _ := NewMessage(MessageTypeAck, AckData{Op: msg.Type})
	response.RequestID = msg.RequestID
	_ = c.SendMessage(response)
}

// reply answers an operation that returns a payload.
func (c *Connection) reply(msg *Message, messageType MessageType, payload any, err error) {
	if err != nil {
		c.sendError(msg, string(msg.Type)+"_failed", err.Error())
		return
	}
	response, respErr := NewMessage(messageType, payload)
	if respErr != nil {
		c.logger.Error("failed to encode response", "error", respErr)
		return
	}
	response.RequestID = msg.RequestID
	_ = c.SendMessage(response)
}

// sendError sends an error message to the client
func (c *Connection) sendError(msg *Message, code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	if msg != nil {
		errorMsg.RequestID = msg.RequestID
	}
	_ = c.SendMessage(errorMsg)
}
