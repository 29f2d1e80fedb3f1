package websocket

import (
	"context"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/google/uuid"
)

// CommandHandler runs decoded, authorised events against the registry and
// the swipe engine.
type CommandHandler struct {
	hub *Hub
}

func NewCommandHandler(hub *Hub) *CommandHandler {
	return &CommandHandler{hub: hub}
}

func (ch *CommandHandler) Handle(ctx context.Context, c *Client, event Event) error {
	switch ev := event.(type) {
	case *SessionJoinEvent:
		return ch.handleSessionJoin(ctx, c, ev)
	case *SessionLeaveEvent:
		return ch.handleSessionLeave(c, ev)
	case *CoupleSwipeEvent:
		return ch.handleCoupleSwipe(ctx, c, ev)
	case *CoupleLikeEvent:
		return ch.handleCoupleLike(c, ev)
	case *DecisionAcceptEvent:
		return ch.handleDecisionAccept(c, ev)
	}
	return ErrUnknownEvent
}

// handleSessionJoin takes the couple from the stored session. A coupleId sent
// by the client is only cross-checked.
func (ch *CommandHandler) handleSessionJoin(ctx context.Context, c *Client, ev *SessionJoinEvent) error {
	session, err := ch.hub.validator.AccessibleSession(ctx, c.UserID(), ev.SessionID)
	if err != nil {
		return err
	}
	if ev.CoupleID != uuid.Nil && ev.CoupleID != session.CoupleID {
		return domain.Validationf("coupleId does not match the session")
	}

	registry := ch.hub.registry
	code := registry.JoinSession(c, ev.SessionID, session.CoupleID)

	online := registry.OnlineParticipants(ev.SessionID)
	ids := make([]string, 0, len(online))
	for _, id := range online {
		ids = append(ids, id.String())
	}

	ch.hub.emitter.SendTo(c, MessageTypeSessionJoined, SessionJoinedPayload{
		SessionID:          ev.SessionID.String(),
		CoupleID:           session.CoupleID.String(),
		RoomCode:           code,
		OnlineParticipants: ids,
	})

	c.log.Info().Str("session_id", ev.SessionID.String()).Msg("joined session")
	return nil
}

// handleSessionLeave only drops live presence; the durable session stays
// open until it is ended over HTTP or decided.
func (ch *CommandHandler) handleSessionLeave(c *Client, ev *SessionLeaveEvent) error {
	ch.hub.registry.LeaveSession(c, ev.SessionID)
	ch.hub.emitter.SendTo(c, MessageTypeSessionLeft, SessionLeftPayload{
		SessionID: ev.SessionID.String(),
	})
	return nil
}

func (ch *CommandHandler) handleCoupleSwipe(ctx context.Context, c *Client, ev *CoupleSwipeEvent) error {
	result, err := ch.hub.swipes.RecordSwipe(ctx, ev.SessionID, c.UserID(), service.SwipeInput{
		DishID:       ev.DishID,
		RestaurantID: ev.RestaurantID,
		Action:       ev.Action,
		DishData:     ev.DishData,
	})
	if err != nil {
		return err
	}

	ch.hub.emitter.SendTo(c, MessageTypeSwipeAcknowledged, SwipeAcknowledgedPayload{
		SessionID:         ev.SessionID.String(),
		DishID:            ev.DishID,
		RestaurantID:      ev.RestaurantID,
		Action:            string(ev.Action),
		IsMatch:           result.IsMatch,
		WaitingForPartner: result.WaitingForPartner,
		AlreadyDecided:    result.AlreadyDecided,
	})
	ch.hub.BroadcastSwipe(ev.SessionID, c.UserID(), result)
	return nil
}

// handleCoupleLike relays a like outside any session. Without a partnerId
// only the sender is acknowledged.
func (ch *CommandHandler) handleCoupleLike(c *Client, ev *CoupleLikeEvent) error {
	ch.hub.emitter.SendTo(c, MessageTypeLikeAcknowledged, LikeAcknowledgedPayload{
		DishID:       ev.DishID,
		RestaurantID: ev.RestaurantID,
	})
	if ev.PartnerID != uuid.Nil {
		ch.hub.emitter.PartnerLiked(ev.PartnerID, c.UserID(), ev)
	}
	return nil
}

func (ch *CommandHandler) handleDecisionAccept(c *Client, ev *DecisionAcceptEvent) error {
	ch.hub.emitter.SendTo(c, MessageTypeDecisionConfirmed, DecisionConfirmedPayload{
		SessionID: ev.SessionID.String(),
		DishID:    ev.DishID,
	})
	ch.hub.emitter.PartnerAccepted(ev.SessionID, c.UserID(), ev.DishID)
	return nil
}
