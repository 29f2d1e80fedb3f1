package websocket_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/ratelimit"
	"github.com/dom/foodieswipe/internal/testutil"
	"github.com/dom/foodieswipe/internal/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wait = 2 * time.Second

type couplePair struct {
	alice, bob           *domain.User
	aliceToken, bobToken string
	couple               *domain.Couple
}

func setupCouple(t *testing.T, ts *testutil.TestServer) *couplePair {
	t.Helper()
	alice, aliceToken := testutil.NewUserBuilder().WithDisplayName("alice").BuildAndAuthenticate(t, ts)
	bob, bobToken := testutil.NewUserBuilder().WithDisplayName("bob").BuildAndAuthenticate(t, ts)
	couple := testutil.PairUsers(t, ts.DB.DB, alice, bob)
	return &couplePair{alice: alice, bob: bob, aliceToken: aliceToken, bobToken: bobToken, couple: couple}
}

func joinBoth(t *testing.T, sessionID string, clients ...*testutil.WSClient) {
	t.Helper()
	for _, c := range clients {
		c.JoinSession(sessionID)
		c.ExpectMessage(websocket.MessageTypeSessionJoined, wait)
	}
}

func TestHub_AuthenticatedGreeting(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	client := testutil.NewWSClient(t, ts.WebSocketURL(token))

	var payload websocket.AuthenticatedPayload
	client.ExpectPayload(websocket.MessageTypeAuthenticated, wait, &payload)
	assert.Equal(t, user.ID.String(), payload.UserID)
	assert.Equal(t, user.Email, payload.Email)
	assert.NotEmpty(t, payload.ConnectionID)
	assert.False(t, payload.Demo)
}

func TestHub_HandshakeRejections(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		ts := testutil.NewTestServer(t)
		_, resp, err := testutil.DialWSResponse(ts.WebSocketURL(""), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("garbage token", func(t *testing.T) {
		ts := testutil.NewTestServer(t)
		_, resp, err := testutil.DialWSResponse(ts.WebSocketURL("not-a-jwt"), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("handshake rate limit", func(t *testing.T) {
		cfg := testutil.TestConfig()
		cfg.RateLimits["authenticate"] = ratelimit.Policy{Max: 1, Window: time.Minute}
		ts := testutil.NewTestServerWithConfig(t, cfg)
		_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

		testutil.NewAuthenticatedWSClient(t, ts, token)

		_, resp, err := testutil.DialWSResponse(ts.WebSocketURL(token), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})
}

func TestHub_DemoIdentity(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.AllowDemoIdentity = true
	ts := testutil.NewTestServerWithConfig(t, cfg)

	client := testutil.NewWSClient(t, ts.WebSocketURL(""))

	var payload websocket.AuthenticatedPayload
	client.ExpectPayload(websocket.MessageTypeAuthenticated, wait, &payload)
	assert.True(t, payload.Demo)
	assert.Equal(t, websocket.DemoUserID.String(), payload.UserID)
}

func TestHub_JoinSession(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)
	code, err := ts.Hub.SyncExternalSession(session)
	require.NoError(t, err)

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)

	t.Run("by room code", func(t *testing.T) {
		alice.JoinSession(code)

		var joined websocket.SessionJoinedPayload
		alice.ExpectPayload(websocket.MessageTypeSessionJoined, wait, &joined)
		assert.Equal(t, session.ID.String(), joined.SessionID)
		assert.Equal(t, code, joined.RoomCode)
		assert.Equal(t, pair.couple.ID.String(), joined.CoupleID)
		assert.Contains(t, joined.OnlineParticipants, pair.alice.ID.String())
	})

	t.Run("by session id", func(t *testing.T) {
		alice.JoinSession(session.ID.String())

		var joined websocket.SessionJoinedPayload
		alice.ExpectPayload(websocket.MessageTypeSessionJoined, wait, &joined)
		assert.Equal(t, session.ID.String(), joined.SessionID)
	})

	t.Run("matching couple id", func(t *testing.T) {
		alice.Send(websocket.MessageTypeSessionJoin, websocket.SessionJoinPayload{
			SessionID: session.ID.String(),
			CoupleID:  pair.couple.ID.String(),
		})

		var joined websocket.SessionJoinedPayload
		alice.ExpectPayload(websocket.MessageTypeSessionJoined, wait, &joined)
		assert.Equal(t, pair.couple.ID.String(), joined.CoupleID)
	})

	t.Run("foreign couple id", func(t *testing.T) {
		alice.Send(websocket.MessageTypeSessionJoin, websocket.SessionJoinPayload{
			SessionID: code,
			CoupleID:  uuid.NewString(),
		})
		payload := alice.ExpectErrorWithCode(websocket.CodeInvalidPayload, wait)
		assert.Equal(t, string(websocket.MessageTypeSessionJoin), payload.EventType)
	})

	t.Run("unknown room code", func(t *testing.T) {
		alice.JoinSession("ZZZZZZ")
		payload := alice.ExpectErrorWithCode(websocket.CodeSessionNotFound, wait)
		assert.Equal(t, string(websocket.MessageTypeSessionJoin), payload.EventType)
	})
}

func TestHub_NonParticipantIsRejected(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)
	_, carolToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	carol := testutil.NewAuthenticatedWSClient(t, ts, carolToken)

	carol.JoinSession(session.ID.String())
	carol.ExpectErrorWithCode(websocket.CodeUnauthorized, wait)

	carol.Swipe(session.ID.String(), "dish-1", "like")
	carol.ExpectErrorWithCode(websocket.CodeUnauthorized, wait)

	assert.Empty(t, ts.Hub.Registry().OnlineParticipants(session.ID))
}

func TestHub_SwipeFlow(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)
	sessionID := session.ID.String()

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	bob := testutil.NewAuthenticatedWSClient(t, ts, pair.bobToken)
	joinBoth(t, sessionID, alice, bob)

	alice.Swipe(sessionID, "dish-1", "like")

	var ack websocket.SwipeAcknowledgedPayload
	alice.ExpectPayload(websocket.MessageTypeSwipeAcknowledged, wait, &ack)
	assert.False(t, ack.IsMatch)
	assert.True(t, ack.WaitingForPartner)

	var partner websocket.PartnerSwipedPayload
	bob.ExpectPayload(websocket.MessageTypePartnerSwiped, wait, &partner)
	assert.Equal(t, pair.alice.ID.String(), partner.UserID)
	assert.Equal(t, "dish-1", partner.DishID)
	assert.Equal(t, "like", partner.Action)

	bob.Swipe(sessionID, "dish-1", "super_like")

	bob.ExpectPayload(websocket.MessageTypeSwipeAcknowledged, wait, &ack)
	assert.True(t, ack.IsMatch)
	assert.False(t, ack.WaitingForPartner)

	for _, c := range []*testutil.WSClient{alice, bob} {
		var match websocket.MatchFoundPayload
		c.ExpectPayload(websocket.MessageTypeMatchFound, wait, &match)
		assert.Equal(t, sessionID, match.SessionID)
		assert.Equal(t, pair.couple.ID.String(), match.CoupleID)
		assert.Equal(t, "dish-1", match.Decision.DishID)
		assert.ElementsMatch(t,
			[]string{pair.alice.ID.String(), pair.bob.ID.String()},
			match.Decision.ParticipantUserIDs)
	}

	// The decided session accepts no more swipes.
	alice.Swipe(sessionID, "dish-2", "like")
	alice.ExpectErrorWithCode(websocket.CodeSessionNotActive, wait)
	bob.ExpectNoMessage(websocket.MessageTypePartnerSwiped, 200*time.Millisecond)
}

func TestHub_PassDoesNotMatch(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)
	sessionID := session.ID.String()

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	bob := testutil.NewAuthenticatedWSClient(t, ts, pair.bobToken)
	joinBoth(t, sessionID, alice, bob)

	alice.Swipe(sessionID, "dish-1", "like")
	alice.ExpectMessage(websocket.MessageTypeSwipeAcknowledged, wait)

	bob.Swipe(sessionID, "dish-1", "pass")

	var ack websocket.SwipeAcknowledgedPayload
	bob.ExpectPayload(websocket.MessageTypeSwipeAcknowledged, wait, &ack)
	assert.False(t, ack.IsMatch)
	assert.False(t, ack.WaitingForPartner)
	alice.ExpectMessage(websocket.MessageTypePartnerSwiped, wait)
	alice.ExpectNoMessage(websocket.MessageTypeMatchFound, 200*time.Millisecond)
}

func TestHub_MatchReachesPartnerOutsideSession(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).
		WithSwipe(pair.bob.ID, "dish-1", domain.SwipeActionLike).
		Build(t, ts.DB.DB)
	sessionID := session.ID.String()

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	// Bob is online but never joined the session room.
	bob := testutil.NewAuthenticatedWSClient(t, ts, pair.bobToken)
	joinBoth(t, sessionID, alice)

	alice.Swipe(sessionID, "dish-1", "like")

	bob.ExpectMessage(websocket.MessageTypeMatchFound, wait)
	alice.ExpectMessage(websocket.MessageTypeMatchFound, wait)
}

func TestHub_LeaveSessionStopsFanOut(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)
	sessionID := session.ID.String()

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	bob := testutil.NewAuthenticatedWSClient(t, ts, pair.bobToken)
	joinBoth(t, sessionID, alice, bob)

	bob.LeaveSession(sessionID)
	bob.ExpectMessage(websocket.MessageTypeSessionLeft, wait)

	alice.Swipe(sessionID, "dish-1", "like")
	alice.ExpectMessage(websocket.MessageTypeSwipeAcknowledged, wait)
	bob.ExpectNoMessage(websocket.MessageTypePartnerSwiped, 200*time.Millisecond)
}

func TestHub_CoupleLike(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	_, carolToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	bob := testutil.NewAuthenticatedWSClient(t, ts, pair.bobToken)
	carol := testutil.NewAuthenticatedWSClient(t, ts, carolToken)

	t.Run("partner is notified", func(t *testing.T) {
		alice.Send(websocket.MessageTypeCoupleLike, websocket.CoupleLikePayload{
			DishID:    "dish-9",
			PartnerID: pair.bob.ID.String(),
		})
		alice.ExpectMessage(websocket.MessageTypeLikeAcknowledged, wait)

		var liked websocket.PartnerLikedPayload
		bob.ExpectPayload(websocket.MessageTypePartnerLiked, wait, &liked)
		assert.Equal(t, pair.alice.ID.String(), liked.UserID)
		assert.Equal(t, "dish-9", liked.DishID)
	})

	t.Run("non-partner is rejected", func(t *testing.T) {
		carol.Send(websocket.MessageTypeCoupleLike, websocket.CoupleLikePayload{
			DishID:    "dish-9",
			PartnerID: pair.bob.ID.String(),
		})
		carol.ExpectErrorWithCode(websocket.CodeNotPartners, wait)
		bob.ExpectNoMessage(websocket.MessageTypePartnerLiked, 200*time.Millisecond)
	})
}

func TestHub_DecisionAccept(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)
	sessionID := session.ID.String()

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	bob := testutil.NewAuthenticatedWSClient(t, ts, pair.bobToken)
	joinBoth(t, sessionID, alice, bob)

	alice.Send(websocket.MessageTypeDecisionAccept, websocket.DecisionAcceptPayload{
		SessionID: sessionID,
		DishID:    "dish-1",
	})
	alice.ExpectMessage(websocket.MessageTypeDecisionConfirmed, wait)

	var accepted websocket.PartnerAcceptedPayload
	bob.ExpectPayload(websocket.MessageTypePartnerAccepted, wait, &accepted)
	assert.Equal(t, pair.alice.ID.String(), accepted.UserID)
}

func TestHub_RateLimitedEvent(t *testing.T) {
	cfg := testutil.TestConfig()
	cfg.RateLimits["session_join"] = ratelimit.Policy{Max: 2, Window: time.Minute}
	ts := testutil.NewTestServerWithConfig(t, cfg)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	joinBoth(t, session.ID.String(), alice, alice)

	alice.JoinSession(session.ID.String())
	payload := alice.ExpectErrorWithCode(websocket.CodeRateLimited, wait)
	assert.Equal(t, "session_join", payload.EventType)
	assert.Positive(t, payload.RetryAfter)
	require.NotNil(t, payload.Remaining)
	assert.Equal(t, 0, *payload.Remaining)

	// Other event types keep their own budget.
	alice.LeaveSession(session.ID.String())
	alice.ExpectMessage(websocket.MessageTypeSessionLeft, wait)

	status := ts.Hub.RateLimitStatus(pair.alice.ID, "session_join")
	assert.True(t, status.Limited)
	assert.Equal(t, 0, status.Remaining)
}

func TestHub_BadInput(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	client := testutil.NewAuthenticatedWSClient(t, ts, token)

	tests := []struct {
		name string
		send func()
		code string
	}{
		{
			name: "malformed json",
			send: func() { client.SendRaw([]byte(`{not json`)) },
			code: websocket.CodeInvalidPayload,
		},
		{
			name: "unknown event",
			send: func() { client.Send("dance", map[string]string{}) },
			code: websocket.CodeUnknownEvent,
		},
		{
			name: "invalid action",
			send: func() { client.Swipe(uuid.NewString(), "dish-1", "love") },
			code: websocket.CodeInvalidPayload,
		},
		{
			name: "missing session",
			send: func() { client.Send(websocket.MessageTypeSessionJoin, map[string]string{}) },
			code: websocket.CodeInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.send()
			client.ExpectErrorWithCode(tt.code, wait)
		})
	}

	// The connection survives every rejection.
	client.Send(websocket.MessageTypeCoupleLike, websocket.CoupleLikePayload{DishID: "dish-1"})
	client.ExpectMessage(websocket.MessageTypeLikeAcknowledged, wait)
}

func TestHub_DisconnectCleansRegistry(t *testing.T) {
	ts := testutil.NewTestServer(t)
	pair := setupCouple(t, ts)
	session := testutil.NewSessionBuilder(pair.couple).Build(t, ts.DB.DB)

	alice := testutil.NewAuthenticatedWSClient(t, ts, pair.aliceToken)
	joinBoth(t, session.ID.String(), alice)
	require.True(t, ts.Hub.Registry().IsOnline(pair.alice.ID))

	alice.Close()

	assert.Eventually(t, func() bool {
		stats := ts.Hub.Stats().Registry
		return stats.Connections == 0 && stats.OnlineUsers == 0
	}, wait, 20*time.Millisecond)
	assert.Empty(t, ts.Hub.Registry().OnlineParticipants(session.ID))
}

func TestHub_DisconnectUser(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	phone := testutil.NewAuthenticatedWSClient(t, ts, token)
	laptop := testutil.NewAuthenticatedWSClient(t, ts, token)

	require.Less(t, ts.Hub.RateLimitStatus(user.ID, "authenticate").Remaining, 100)

	assert.Equal(t, 2, ts.Hub.DisconnectUser(user.ID))
	phone.ExpectClosed(wait)
	laptop.ExpectClosed(wait)

	assert.Eventually(t, func() bool {
		return !ts.Hub.Registry().IsOnline(user.ID)
	}, wait, 20*time.Millisecond)
	assert.Equal(t, 100, ts.Hub.RateLimitStatus(user.ID, "authenticate").Remaining)
	assert.Equal(t, 0, ts.Hub.DisconnectUser(user.ID))
}
