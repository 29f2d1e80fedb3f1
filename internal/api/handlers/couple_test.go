package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/api/handlers"
	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/service"
	"github.com/dom/foodieswipe/internal/testutil"
	"github.com/dom/foodieswipe/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupleHandler_InviteFlow(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	bob, bobToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/couples/me"), aliceToken, nil)
	testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "NOT_PAIRED")

	resp = testutil.DoJSON(t, http.MethodPost, ts.APIURL("/couples/invites"), aliceToken,
		handlers.SendInviteRequest{PartnerCode: alice.UserCode})
	testutil.AssertErrorResponse(t, resp, http.StatusBadRequest, "SELF_INVITE")

	resp = testutil.DoJSON(t, http.MethodPost, ts.APIURL("/couples/invites"), aliceToken,
		handlers.SendInviteRequest{PartnerCode: bob.UserCode})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)
	var invite domain.CoupleInvite
	testutil.AssertJSONResponse(t, resp, &invite)
	assert.Equal(t, bob.ID, invite.ToUserID)

	resp = testutil.DoJSON(t, http.MethodGet, ts.APIURL("/couples/invites"), bobToken, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var pending []domain.CoupleInvite
	testutil.AssertJSONResponse(t, resp, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, invite.ID, pending[0].ID)

	resp = testutil.DoJSON(t, http.MethodPost, ts.APIURL("/couples/invites/"+invite.ID.String()+"/accept"), bobToken, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	resp = testutil.DoJSON(t, http.MethodGet, ts.APIURL("/couples/me"), aliceToken, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var couple handlers.CoupleResponse
	testutil.AssertJSONResponse(t, resp, &couple)
	assert.Equal(t, bob.ID.String(), couple.PartnerID)
	assert.True(t, couple.IsActive)
	require.NotNil(t, couple.Stats)
	assert.Zero(t, couple.Stats.TotalMatches)

	resp = testutil.DoJSON(t, http.MethodPost, ts.APIURL("/couples/invites/"+invite.ID.String()+"/accept"), bobToken, nil)
	testutil.AssertErrorResponse(t, resp, http.StatusConflict, "INVITE_NOT_PENDING")
}

func TestCoupleHandler_InviteErrors(t *testing.T) {
	ts := testutil.NewTestServer(t)
	_, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "unknown partner code",
			method: http.MethodPost,
			path:   "/couples/invites",
			body:   handlers.SendInviteRequest{PartnerCode: "ZZZZZZ"},
			status: http.StatusNotFound,
			code:   "USER_NOT_FOUND",
		},
		{
			name:   "empty partner code",
			method: http.MethodPost,
			path:   "/couples/invites",
			body:   handlers.SendInviteRequest{},
			status: http.StatusBadRequest,
			code:   "INVALID_PAYLOAD",
		},
		{
			name:   "bad invite id",
			method: http.MethodPost,
			path:   "/couples/invites/not-a-uuid/accept",
			status: http.StatusBadRequest,
			code:   "INVALID_PAYLOAD",
		},
		{
			name:   "unknown invite",
			method: http.MethodPost,
			path:   "/couples/invites/00000000-0000-0000-0000-000000000001/reject",
			status: http.StatusNotFound,
			code:   "INVITE_NOT_FOUND",
		},
		{
			name:   "stats without partner",
			method: http.MethodGet,
			path:   "/couples/me/stats",
			status: http.StatusNotFound,
			code:   "NOT_PAIRED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := testutil.DoJSON(t, tt.method, ts.APIURL(tt.path), token, tt.body)
			testutil.AssertErrorResponse(t, resp, tt.status, tt.code)
		})
	}
}

func TestCoupleHandler_BreakupEndsLiveSession(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	bob, bobToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	couple := testutil.PairUsers(t, ts.DB.DB, alice, bob)
	session := testutil.NewSessionBuilder(couple).Build(t, ts.DB.DB)

	aliceWS := testutil.NewAuthenticatedWSClient(t, ts, aliceToken)
	bobWS := testutil.NewAuthenticatedWSClient(t, ts, bobToken)

	resp := testutil.DoJSON(t, http.MethodDelete, ts.APIURL("/couples/me"), aliceToken, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var ended websocket.SessionEndedPayload
	bobWS.ExpectPayload(websocket.MessageTypeSessionEnded, 2*time.Second, &ended)
	assert.Equal(t, session.ID.String(), ended.SessionID)
	assert.Equal(t, alice.ID.String(), ended.EndedBy)
	assert.Equal(t, "couple_dissolved", ended.Reason)

	// Both partners are dropped once the queued notice is flushed.
	bobWS.ExpectClosed(2 * time.Second)
	aliceWS.ExpectClosed(2 * time.Second)
	assert.Eventually(t, func() bool {
		return ts.Hub.Stats().Registry.Connections == 0
	}, 2*time.Second, 20*time.Millisecond)

	resp = testutil.DoJSON(t, http.MethodGet, ts.APIURL("/couples/me"), bobToken, nil)
	testutil.AssertErrorResponse(t, resp, http.StatusNotFound, "NOT_PAIRED")
}

func TestCoupleHandler_Stats(t *testing.T) {
	ts := testutil.NewTestServer(t)
	alice, aliceToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	bob, _ := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)
	couple := testutil.PairUsers(t, ts.DB.DB, alice, bob)
	require.NoError(t, ts.Repos.Couple.IncrementStats(context.Background(), couple.ID, domain.CoupleStatsDelta{Decisions: 3, Matches: 3}))

	resp := testutil.DoJSON(t, http.MethodGet, ts.APIURL("/couples/me/stats"), aliceToken, nil)
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var stats service.CoupleStats
	testutil.AssertJSONResponse(t, resp, &stats)
	assert.Equal(t, couple.ID, stats.CoupleID)
	assert.Equal(t, int64(3), stats.TotalMatches)
	assert.False(t, stats.Cached)
}
