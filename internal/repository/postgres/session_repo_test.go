package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/dom/foodieswipe/internal/repository/postgres"
	"github.com/dom/foodieswipe/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func seedCouple(t *testing.T, db *gorm.DB) (*domain.User, *domain.User, *domain.Couple) {
	t.Helper()
	alice, _ := testutil.NewUserBuilder().Build(t, db)
	bob, _ := testutil.NewUserBuilder().Build(t, db)
	return alice, bob, testutil.PairUsers(t, db, alice, bob)
}

func decisionFor(session *domain.Session, dishID string) *domain.Decision {
	return &domain.Decision{
		SessionID: session.ID,
		CoupleID:  session.CoupleID,
		DishID:    dishID,
		DishData:  datatypes.JSON(`{"name":"` + dishID + `"}`),
		DecidedAt: time.Now(),
		DecidedBy: session.User1ID,
		PartnerID: session.User2ID,
	}
}

// runSessionRepoSuite exercises behaviour shared by every backing database.
func runSessionRepoSuite(t *testing.T, db *gorm.DB) {
	repo := postgres.NewSessionRepository(db)
	couples := postgres.NewCoupleRepository(db)
	ctx := context.Background()

	t.Run("commit decision once", func(t *testing.T) {
		alice, _, couple := seedCouple(t, db)
		session := testutil.NewSessionBuilder(couple).Build(t, db)

		committed, err := repo.CommitDecisionIfAbsent(ctx, decisionFor(session, "ramen"))
		require.NoError(t, err)
		assert.True(t, committed)

		committed, err = repo.CommitDecisionIfAbsent(ctx, decisionFor(session, "tacos"))
		require.NoError(t, err)
		assert.False(t, committed, "second commit must not overwrite")

		stored, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.True(t, stored.HasDecision)
		assert.False(t, stored.IsActive)
		require.NotNil(t, stored.Decision)
		assert.Equal(t, "ramen", stored.Decision.DishID)
		assert.Equal(t, alice.ID, stored.Decision.DecidedBy)

		c, err := couples.GetByID(ctx, couple.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, c.TotalMatches)
		assert.Equal(t, 1, c.TotalDecisions)

		_, err = repo.GetActiveByCoupleID(ctx, couple.ID)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("concurrent commits", func(t *testing.T) {
		_, _, couple := seedCouple(t, db)
		session := testutil.NewSessionBuilder(couple).Build(t, db)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			committed int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := repo.CommitDecisionIfAbsent(ctx, decisionFor(session, "dish"))
				if !assert.NoError(t, err) {
					return
				}
				if ok {
					mu.Lock()
					committed++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, committed)
	})

	t.Run("swipe log keeps append order", func(t *testing.T) {
		alice, bob, couple := seedCouple(t, db)
		session := testutil.NewSessionBuilder(couple).Build(t, db)

		for i, user := range []uuid.UUID{alice.ID, bob.ID, alice.ID} {
			err := repo.AppendSwipe(ctx, &domain.SwipeRecord{
				SessionID: session.ID,
				UserID:    user,
				DishID:    []string{"a", "b", "c"}[i],
				Action:    domain.SwipeActionLike,
				CreatedAt: time.Now(),
			})
			require.NoError(t, err)
		}

		swipes, err := repo.ListSwipes(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, swipes, 3)
		assert.Equal(t, "a", swipes[0].DishID)
		assert.Equal(t, "c", swipes[2].DishID)
		assert.Equal(t, bob.ID, swipes[1].UserID)
	})

	t.Run("end is conditional", func(t *testing.T) {
		_, _, couple := seedCouple(t, db)
		session := testutil.NewSessionBuilder(couple).Build(t, db)

		ended, err := repo.End(ctx, session.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, ended)

		ended, err = repo.End(ctx, session.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, ended)
	})

	t.Run("dissolve closes the open session", func(t *testing.T) {
		alice, bob, couple := seedCouple(t, db)
		session := testutil.NewSessionBuilder(couple).Build(t, db)

		require.NoError(t, couples.Dissolve(ctx, couple.ID, alice.ID, time.Now()))

		stored, err := repo.GetByID(ctx, session.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)

		c, err := couples.GetByID(ctx, couple.ID)
		require.NoError(t, err)
		assert.False(t, c.IsActive)
		require.NotNil(t, c.EndedBy)
		assert.Equal(t, alice.ID, *c.EndedBy)

		var reloaded domain.User
		require.NoError(t, db.First(&reloaded, "id = ?", bob.ID).Error)
		assert.Nil(t, reloaded.PartnerID)
		assert.Nil(t, reloaded.CoupleID)
	})
}

func TestSessionRepository_SQLite(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	runSessionRepoSuite(t, testDB.DB)
}

func TestSessionRepository_Postgres(t *testing.T) {
	testDB := testutil.NewPostgresDB(t)
	runSessionRepoSuite(t, testDB.DB)
}

func TestCoupleRepository_Pair(t *testing.T) {
	testDB := testutil.NewTestDB(t)
	couples := postgres.NewCoupleRepository(testDB.DB)
	invites := postgres.NewInviteRepository(testDB.DB)
	ctx := context.Background()

	alice, _ := testutil.NewUserBuilder().Build(t, testDB.DB)
	bob, _ := testutil.NewUserBuilder().Build(t, testDB.DB)

	invite := &domain.CoupleInvite{
		ID:         uuid.New(),
		FromUserID: alice.ID,
		ToUserID:   bob.ID,
		Status:     domain.InviteStatusPending,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(domain.InviteTTL),
	}
	require.NoError(t, invites.Create(ctx, invite))

	couple := &domain.Couple{ID: uuid.New(), User1ID: alice.ID, User2ID: bob.ID, IsActive: true, CreatedAt: time.Now()}
	invite.Status = domain.InviteStatusAccepted
	invite.CoupleID = &couple.ID
	require.NoError(t, couples.Pair(ctx, couple, invite))

	active, err := couples.GetActiveByUserID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, couple.ID, active.ID)

	stored, err := invites.GetByID(ctx, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InviteStatusAccepted, stored.Status)

	pending, err := invites.ListPendingForUser(ctx, bob.ID, time.Now())
	require.NoError(t, err)
	assert.Empty(t, pending)
}
