package server

import (
	"encoding/json"
	"time"
)

// MessageType tags the envelope with the operation or event it carries.
type MessageType string

// Client → server requests.
const (
	MessageTypeAuth MessageType = "auth"

	MessageTypeAdvanceHand  MessageType = "advance_hand"
	MessageTypeDescribeHand MessageType = "describe_hand"
	MessageTypeHandFinished MessageType = "hand_finished"
	MessageTypePinButton    MessageType = "pin_button"

	MessageTypeRequestBuyin  MessageType = "request_buyin"
	MessageTypeRequestReload MessageType = "request_reload"
	MessageTypeApproveBuyin  MessageType = "approve_buyin"
	MessageTypePostBlind     MessageType = "post_blind"

	MessageTypeRequestSeatChange MessageType = "request_seat_change"
	MessageTypeCancelSeatChange  MessageType = "cancel_seat_change"
	MessageTypeConfirmSeatChange MessageType = "confirm_seat_change"
	MessageTypeDeclineSeatChange MessageType = "decline_seat_change"

	MessageTypeBeginHostReseat  MessageType = "begin_host_reseat"
	MessageTypeSwapSeats        MessageType = "swap_seats"
	MessageTypeCommitHostReseat MessageType = "commit_host_reseat"
	MessageTypeCancelHostReseat MessageType = "cancel_host_reseat"

	MessageTypeKickOut   MessageType = "kick_out"
	MessageTypeLeaveGame MessageType = "leave_game"
	MessageTypeTakeBreak MessageType = "take_break"

	MessageTypePauseGame  MessageType = "pause_game"
	MessageTypeResumeGame MessageType = "resume_game"
	MessageTypeEndGame    MessageType = "end_game"

	MessageTypeDealerChoice  MessageType = "dealer_choice"
	MessageTypeNextHandBonus MessageType = "next_hand_bonus"
)

// Server → client responses and events.
const (
	MessageTypeAuthResponse MessageType = "auth_response"
	MessageTypeHandSetup    MessageType = "hand_setup"
	MessageTypeBuyinResult  MessageType = "buyin_result"
	MessageTypeAck          MessageType = "ack"
	MessageTypeError        MessageType = "error"
	MessageTypeEvent        MessageType = "event"
)

// Message is the envelope every frame on the wire uses.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage wraps a payload in an envelope stamped with the current
// time.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → server payloads.

type AuthData struct {
	PlayerID uint64 `json:"playerId"`
	GameCode string `json:"gameCode"`
	Token    string `json:"token,omitempty"`
}

type AdvanceHandData struct {
	GameCode string `json:"gameCode"`
	HandNum  int    `json:"handNum"`
}

type DescribeHandData struct {
	GameCode string `json:"gameCode"`
}

type HandFinishedData struct {
	GameCode string `json:"gameCode"`
	HandNum  int    `json:"handNum"`
	Rake     int64  `json:"rake"`
}

type PinButtonData struct {
	GameCode string `json:"gameCode"`
	SeatNo   int    `json:"seatNo"`
}

type BuyinData struct {
	GameCode string `json:"gameCode"`
	Amount   int64  `json:"amount"`
}

type ApproveBuyinData struct {
	GameCode string `json:"gameCode"`
	PlayerID uint64 `json:"playerId"`
	Approve  bool   `json:"approve"`
}

type SeatChangeData struct {
	GameCode string `json:"gameCode"`
	SeatNo   int    `json:"seatNo,omitempty"`
}

type SwapSeatsData struct {
	GameCode string `json:"gameCode"`
	SeatNo1  int    `json:"seatNo1"`
	SeatNo2  int    `json:"seatNo2"`
}

type GameData struct {
	GameCode string `json:"gameCode"`
}

type KickOutData struct {
	GameCode string `json:"gameCode"`
	PlayerID uint64 `json:"playerId"`
}

type DealerChoiceData struct {
	GameCode string `json:"gameCode"`
	Variant  string `json:"variant"`
}

// Server → client payloads.

type AuthResponseData struct {
	Success  bool   `json:"success"`
	PlayerID uint64 `json:"playerId,omitempty"`
	Error    string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AckData struct {
	Op MessageType `json:"op"`
}

type BuyinResultData struct {
	Approved        bool   `json:"approved"`
	Deferred        bool   `json:"deferred"`
	Status          string `json:"status"`
	AvailableCredit *int64 `json:"availableCredit,omitempty"`
}
