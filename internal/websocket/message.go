package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	// Client to Server
	MessageTypeSessionJoin    MessageType = "session_join"
	MessageTypeSessionLeave   MessageType = "session_leave"
	MessageTypeCoupleSwipe    MessageType = "couple_swipe"
	MessageTypeCoupleLike     MessageType = "couple_like"
	MessageTypeDecisionAccept MessageType = "decision_accept"

	// Server to Client
	MessageTypeAuthenticated     MessageType = "authenticated"
	MessageTypeSessionJoined     MessageType = "session_joined"
	MessageTypeSessionLeft       MessageType = "session_left"
	MessageTypeSwipeAcknowledged MessageType = "swipe_acknowledged"
	MessageTypePartnerSwiped     MessageType = "partner_swiped"
	MessageTypeMatchFound        MessageType = "match_found"
	MessageTypeLikeAcknowledged  MessageType = "like_acknowledged"
	MessageTypePartnerLiked      MessageType = "partner_liked"
	MessageTypeDecisionConfirmed MessageType = "decision_confirmed"
	MessageTypePartnerAccepted   MessageType = "partner_accepted"
	MessageTypeSessionEnded      MessageType = "session_ended"
	MessageTypeError             MessageType = "error"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type SessionJoinPayload struct {
	SessionID string `json:"sessionId"`
	CoupleID  string `json:"coupleId,omitempty"`
}

type SessionLeavePayload struct {
	SessionID string `json:"sessionId"`
}

type CoupleSwipePayload struct {
	SessionID    string          `json:"sessionId"`
	DishID       string          `json:"dishId"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	Action       string          `json:"action"`
	DishData     json.RawMessage `json:"dishData,omitempty"`
}

type CoupleLikePayload struct {
	DishID       string          `json:"dishId"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	DishData     json.RawMessage `json:"dishData,omitempty"`
	PartnerID    string          `json:"partnerId,omitempty"`
}

type DecisionAcceptPayload struct {
	SessionID string `json:"sessionId"`
	DishID    string `json:"dishId,omitempty"`
}

// Server to Client payloads

type AuthenticatedPayload struct {
	UserID       string `json:"userId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	ConnectionID string `json:"connectionId"`
	Demo         bool   `json:"demo,omitempty"`
	Message      string `json:"message"`
}

type SessionJoinedPayload struct {
	SessionID          string   `json:"sessionId"`
	CoupleID           string   `json:"coupleId,omitempty"`
	RoomCode           string   `json:"roomCode,omitempty"`
	OnlineParticipants []string `json:"onlineParticipants"`
}

type SessionLeftPayload struct {
	SessionID string `json:"sessionId"`
}

type SwipeAcknowledgedPayload struct {
	SessionID         string `json:"sessionId"`
	DishID            string `json:"dishId"`
	RestaurantID      string `json:"restaurantId,omitempty"`
	Action            string `json:"action"`
	IsMatch           bool   `json:"isMatch"`
	WaitingForPartner bool   `json:"waitingForPartner"`
	AlreadyDecided    bool   `json:"alreadyDecided,omitempty"`
}

type PartnerSwipedPayload struct {
	SessionID    string          `json:"sessionId"`
	UserID       string          `json:"userId"`
	DishID       string          `json:"dishId"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	Action       string          `json:"action"`
	DishData     json.RawMessage `json:"dishData,omitempty"`
}

type DecisionInfo struct {
	DishID             string          `json:"dishId"`
	RestaurantID       string          `json:"restaurantId,omitempty"`
	DishData           json.RawMessage `json:"dishData,omitempty"`
	DecidedAt          time.Time       `json:"decidedAt"`
	ParticipantUserIDs []string        `json:"participantUserIds"`
}

type MatchFoundPayload struct {
	SessionID string       `json:"sessionId"`
	CoupleID  string       `json:"coupleId"`
	Decision  DecisionInfo `json:"decision"`
}

type LikeAcknowledgedPayload struct {
	DishID       string `json:"dishId"`
	RestaurantID string `json:"restaurantId,omitempty"`
}

type PartnerLikedPayload struct {
	UserID       string          `json:"userId"`
	DishID       string          `json:"dishId"`
	RestaurantID string          `json:"restaurantId,omitempty"`
	DishData     json.RawMessage `json:"dishData,omitempty"`
}

type DecisionConfirmedPayload struct {
	SessionID string `json:"sessionId"`
	DishID    string `json:"dishId,omitempty"`
}

type PartnerAcceptedPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	DishID    string `json:"dishId,omitempty"`
}

type SessionEndedPayload struct {
	SessionID string `json:"sessionId"`
	EndedBy   string `json:"endedBy"`
	Reason    string `json:"reason"`
}

type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	EventType  string `json:"eventType,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
	Remaining  *int   `json:"remaining,omitempty"`
}
