package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SwipeAction string

const (
	SwipeActionLike      SwipeAction = "like"
	SwipeActionPass      SwipeAction = "pass"
	SwipeActionDislike   SwipeAction = "dislike"
	SwipeActionSuperLike SwipeAction = "super_like"
)

func (a SwipeAction) IsValid() bool {
	switch a {
	case SwipeActionLike, SwipeActionPass, SwipeActionDislike, SwipeActionSuperLike:
		return true
	}
	return false
}

// IsPositive reports whether the action counts towards a match.
func (a SwipeAction) IsPositive() bool {
	return a == SwipeActionLike || a == SwipeActionSuperLike
}

// Session is one round of joint swiping between the two members of a couple.
// It is OPEN until a decision is committed or a member ends it, and is never
// reopened.
type Session struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	CoupleID    uuid.UUID  `json:"coupleId" gorm:"type:uuid;not null;index"`
	User1ID     uuid.UUID  `json:"user1Id" gorm:"type:uuid;not null"`
	User2ID     uuid.UUID  `json:"user2Id" gorm:"type:uuid;not null"`
	StartedBy   uuid.UUID  `json:"startedBy" gorm:"type:uuid;not null"`
	IsActive    bool       `json:"isActive" gorm:"not null;default:true"`
	HasDecision bool       `json:"hasDecision" gorm:"not null;default:false"`
	StartedAt   time.Time  `json:"startedAt"`
	EndedAt     *time.Time `json:"endedAt,omitempty"`
	Decision    *Decision  `json:"decision,omitempty" gorm:"foreignKey:SessionID"`
}

func (Session) TableName() string {
	return "decision_sessions"
}

func (s *Session) Participants() []uuid.UUID {
	return []uuid.UUID{s.User1ID, s.User2ID}
}

func (s *Session) HasParticipant(userID uuid.UUID) bool {
	return userID != uuid.Nil && (s.User1ID == userID || s.User2ID == userID)
}

// IsOpen reports whether the session still accepts swipes.
func (s *Session) IsOpen() bool {
	return s.IsActive && !s.HasDecision
}

// SwipeRecord is one entry of a session's append-only swipe log. Log order is
// the autoincrement ID.
type SwipeRecord struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID    uuid.UUID      `json:"sessionId" gorm:"type:uuid;not null;index"`
	UserID       uuid.UUID      `json:"userId" gorm:"type:uuid;not null"`
	DishID       string         `json:"dishId" gorm:"not null"`
	RestaurantID string         `json:"restaurantId"`
	Action       SwipeAction    `json:"action" gorm:"type:varchar(20);not null"`
	DishData     datatypes.JSON `json:"dishData,omitempty"`
	CreatedAt    time.Time      `json:"timestamp"`
}

func (SwipeRecord) TableName() string {
	return "session_swipes"
}

// SameDish reports whether r targets the same (dish, restaurant) pair.
func (r *SwipeRecord) SameDish(dishID, restaurantID string) bool {
	return r.DishID == dishID && r.RestaurantID == restaurantID
}

// Decision is the terminal outcome of a session. SessionID is the primary key
// so a session can hold at most one.
type Decision struct {
	SessionID    uuid.UUID      `json:"sessionId" gorm:"type:uuid;primary_key"`
	CoupleID     uuid.UUID      `json:"coupleId" gorm:"type:uuid;not null;index"`
	DishID       string         `json:"dishId" gorm:"not null"`
	RestaurantID string         `json:"restaurantId"`
	DishData     datatypes.JSON `json:"dishData,omitempty"`
	DecidedAt    time.Time      `json:"decidedAt" gorm:"not null"`
	DecidedBy    uuid.UUID      `json:"decidedBy" gorm:"type:uuid;not null"`
	PartnerID    uuid.UUID      `json:"partnerId" gorm:"type:uuid;not null"`
}

func (Decision) TableName() string {
	return "session_decisions"
}

// ParticipantUserIDs returns the user whose swipe completed the match
// followed by their partner.
func (d *Decision) ParticipantUserIDs() [2]uuid.UUID {
	return [2]uuid.UUID{d.DecidedBy, d.PartnerID}
}
