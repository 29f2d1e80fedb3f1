package websocket

import (
	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/google/uuid"
)

// EventEmitter builds outbound messages and routes them through the registry.
type EventEmitter struct {
	registry *Registry
}

func NewEventEmitter(registry *Registry) *EventEmitter {
	return &EventEmitter{registry: registry}
}

// SendTo sends a message to a single connection.
func (e *EventEmitter) SendTo(c Conn, msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return
	}
	c.Send(msg)
}

func (e *EventEmitter) toSession(sessionID uuid.UUID, exclude uuid.UUID, msgType MessageType, payload interface{}) int {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return 0
	}
	return e.registry.EmitToSession(sessionID, msg, exclude)
}

func (e *EventEmitter) toUser(userID uuid.UUID, msgType MessageType, payload interface{}) int {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return 0
	}
	return e.registry.EmitToUser(userID, msg)
}

func (e *EventEmitter) Authenticated(c *Client) {
	id := c.Identity()
	e.SendTo(c, MessageTypeAuthenticated, AuthenticatedPayload{
		UserID:       id.UserID.String(),
		Email:        id.Email,
		DisplayName:  id.DisplayName,
		ConnectionID: c.ID(),
		Demo:         id.Demo,
		Message:      "Connected",
	})
}

// SwipeOutcome tells the partner about the swipe and, on a committed match,
// sends the decision to every live connection of both participants.
func (e *EventEmitter) SwipeOutcome(sessionID, userID uuid.UUID, result *service.SwipeResult) {
	swipe := result.Swipe
	e.toSession(sessionID, userID, MessageTypePartnerSwiped, PartnerSwipedPayload{
		SessionID:    sessionID.String(),
		UserID:       userID.String(),
		DishID:       swipe.DishID,
		RestaurantID: swipe.RestaurantID,
		Action:       string(swipe.Action),
		DishData:     rawJSON(swipe.DishData),
	})

	if !result.IsMatch || result.Decision == nil {
		return
	}

	d := result.Decision
	participants := d.ParticipantUserIDs()
	payload := MatchFoundPayload{
		SessionID: sessionID.String(),
		CoupleID:  d.CoupleID.String(),
		Decision: DecisionInfo{
			DishID:             d.DishID,
			RestaurantID:       d.RestaurantID,
			DishData:           rawJSON(d.DishData),
			DecidedAt:          d.DecidedAt,
			ParticipantUserIDs: []string{participants[0].String(), participants[1].String()},
		},
	}
	for _, p := range participants {
		e.toUser(p, MessageTypeMatchFound, payload)
	}
}

func (e *EventEmitter) SessionEnded(session *domain.Session, endedBy uuid.UUID, reason string) {
	payload := SessionEndedPayload{
		SessionID: session.ID.String(),
		EndedBy:   endedBy.String(),
		Reason:    reason,
	}
	for _, p := range session.Participants() {
		e.toUser(p, MessageTypeSessionEnded, payload)
	}
}

func (e *EventEmitter) PartnerLiked(partnerID, userID uuid.UUID, ev *CoupleLikeEvent) int {
	return e.toUser(partnerID, MessageTypePartnerLiked, PartnerLikedPayload{
		UserID:       userID.String(),
		DishID:       ev.DishID,
		RestaurantID: ev.RestaurantID,
		DishData:     ev.DishData,
	})
}

func (e *EventEmitter) PartnerAccepted(sessionID, userID uuid.UUID, dishID string) int {
	return e.toSession(sessionID, userID, MessageTypePartnerAccepted, PartnerAcceptedPayload{
		SessionID: sessionID.String(),
		UserID:    userID.String(),
		DishID:    dishID,
	})
}

func rawJSON(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
