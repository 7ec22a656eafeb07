package engine

// EventType names a fire-and-forget notification published to the
// push/pub-sub collaborator. Delivery is not awaited or retried.
type EventType string

const (
	EventPlayerSeatMove     EventType = "player_seat_move"
	EventSeatChangePrompt   EventType = "seat_change_prompt"
	EventSeatChangeDeclined EventType = "seat_change_declined"
	EventHostReseatStarted  EventType = "host_reseat_started"
	EventHostReseatMove     EventType = "host_reseat_move"
	EventHostReseatEnded    EventType = "host_reseat_ended"
	EventDealerChoicePrompt EventType = "dealer_choice_prompt"
	EventVariantChanged     EventType = "variant_changed"
	EventBuyinApproved      EventType = "buyin_approved"
	EventBuyinDenied        EventType = "buyin_denied"
	EventBuyinPending       EventType = "buyin_pending"
	EventBlindPosted        EventType = "blind_posted"
	EventPlayerKickedOut    EventType = "player_kicked_out"
	EventPlayerLeft         EventType = "player_left"
	EventPlayerBreak        EventType = "player_break"
	EventGamePaused         EventType = "game_paused"
	EventGameResumed        EventType = "game_resumed"
	EventGameEnded          EventType = "game_ended"
	EventPendingDone        EventType = "pending_done"
	EventBonusHandScheduled EventType = "bonus_hand_scheduled"
)

// Event is one notification with its JSON-friendly payload.
type Event struct {
	Type     EventType      `json:"type"`
	GameCode string         `json:"gameCode"`
	Data     map[string]any `json:"data,omitempty"`
}

// Notifier publishes events to whoever listens. Implementations must
// not block the calling goroutine on delivery.
type Notifier interface {
	Publish(event Event)
}

// NopNotifier drops every event. Used when no transport is wired.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(Event) {}

func (e *Engine) publish(eventType EventType, gameCode string, data map[string]any) {
	e.notifier.Publish(Event{Type: eventType, GameCode: gameCode, Data: data})
}
