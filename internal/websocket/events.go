package websocket

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/google/uuid"
)

var ErrUnknownEvent = fmt.Errorf("%w: unknown event type", domain.ErrValidation)

// Event is a decoded, validated inbound message.
type Event interface {
	Type() MessageType
	// Scope names what the sender must be allowed to touch.
	Scope() PermissionScope
}

// SessionResolver maps a session id or room code to the durable session id.
type SessionResolver interface {
	ResolveSession(idOrCode string) (uuid.UUID, bool)
}

type SessionJoinEvent struct {
	SessionID uuid.UUID
	CoupleID  uuid.UUID
}

func (e *SessionJoinEvent) Type() MessageType { return MessageTypeSessionJoin }
func (e *SessionJoinEvent) Scope() PermissionScope {
	return PermissionScope{SessionID: e.SessionID}
}

type SessionLeaveEvent struct {
	SessionID uuid.UUID
}

func (e *SessionLeaveEvent) Type() MessageType { return MessageTypeSessionLeave }
func (e *SessionLeaveEvent) Scope() PermissionScope {
	return PermissionScope{SessionID: e.SessionID}
}

type CoupleSwipeEvent struct {
	SessionID    uuid.UUID
	DishID       string
	RestaurantID string
	Action       domain.SwipeAction
	DishData     json.RawMessage
}

func (e *CoupleSwipeEvent) Type() MessageType { return MessageTypeCoupleSwipe }
func (e *CoupleSwipeEvent) Scope() PermissionScope {
	return PermissionScope{SessionID: e.SessionID}
}

type CoupleLikeEvent struct {
	DishID       string
	RestaurantID string
	DishData     json.RawMessage
	PartnerID    uuid.UUID
}

func (e *CoupleLikeEvent) Type() MessageType { return MessageTypeCoupleLike }
func (e *CoupleLikeEvent) Scope() PermissionScope {
	return PermissionScope{PartnerID: e.PartnerID}
}

type DecisionAcceptEvent struct {
	SessionID uuid.UUID
	DishID    string
}

func (e *DecisionAcceptEvent) Type() MessageType { return MessageTypeDecisionAccept }
func (e *DecisionAcceptEvent) Scope() PermissionScope {
	return PermissionScope{SessionID: e.SessionID}
}

// DecodeEvent turns a raw message into its typed event. Malformed payloads
// fail with domain.ErrValidation; a room code that resolves to nothing fails
// with domain.ErrSessionNotFound.
func DecodeEvent(msg *Message, sessions SessionResolver) (Event, error) {
	switch msg.Type {
	case MessageTypeSessionJoin:
		var p SessionJoinPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		sessionID, err := resolveSessionID(p.SessionID, sessions)
		if err != nil {
			return nil, err
		}
		coupleID, err := optionalUUID("coupleId", p.CoupleID)
		if err != nil {
			return nil, err
		}
		return &SessionJoinEvent{SessionID: sessionID, CoupleID: coupleID}, nil

	case MessageTypeSessionLeave:
		var p SessionLeavePayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		sessionID, err := resolveSessionID(p.SessionID, sessions)
		if err != nil {
			return nil, err
		}
		return &SessionLeaveEvent{SessionID: sessionID}, nil

	case MessageTypeCoupleSwipe:
		var p CoupleSwipePayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		sessionID, err := resolveSessionID(p.SessionID, sessions)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.DishID) == "" {
			return nil, domain.Validationf("dishId is required")
		}
		action := domain.SwipeAction(p.Action)
		if !action.IsValid() {
			return nil, domain.Validationf("invalid action %q", p.Action)
		}
		return &CoupleSwipeEvent{
			SessionID:    sessionID,
			DishID:       p.DishID,
			RestaurantID: p.RestaurantID,
			Action:       action,
			DishData:     p.DishData,
		}, nil

	case MessageTypeCoupleLike:
		var p CoupleLikePayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.DishID) == "" {
			return nil, domain.Validationf("dishId is required")
		}
		partnerID, err := optionalUUID("partnerId", p.PartnerID)
		if err != nil {
			return nil, err
		}
		return &CoupleLikeEvent{
			DishID:       p.DishID,
			RestaurantID: p.RestaurantID,
			DishData:     p.DishData,
			PartnerID:    partnerID,
		}, nil

	case MessageTypeDecisionAccept:
		var p DecisionAcceptPayload
		if err := unmarshalPayload(msg, &p); err != nil {
			return nil, err
		}
		sessionID, err := resolveSessionID(p.SessionID, sessions)
		if err != nil {
			return nil, err
		}
		return &DecisionAcceptEvent{SessionID: sessionID, DishID: p.DishID}, nil
	}

	return nil, ErrUnknownEvent
}

func unmarshalPayload(msg *Message, v interface{}) error {
	if len(msg.Payload) == 0 {
		return domain.Validationf("missing payload for %s", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return domain.Validationf("malformed payload for %s", msg.Type)
	}
	return nil
}

func resolveSessionID(raw string, sessions SessionResolver) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, domain.Validationf("sessionId is required")
	}
	if id, err := uuid.Parse(raw); err == nil {
		return id, nil
	}
	if sessions != nil {
		if id, ok := sessions.ResolveSession(raw); ok {
			return id, nil
		}
	}
	return uuid.Nil, domain.ErrSessionNotFound
}

func optionalUUID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Validationf("%s must be a uuid", field)
	}
	return id, nil
}
