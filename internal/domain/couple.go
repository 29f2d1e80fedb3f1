package domain

import (
	"time"

	"github.com/google/uuid"
)

type Couple struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	User1ID        uuid.UUID  `json:"user1Id" gorm:"type:uuid;not null;index"`
	User2ID        uuid.UUID  `json:"user2Id" gorm:"type:uuid;not null;index"`
	IsActive       bool       `json:"isActive" gorm:"not null;default:true"`
	TotalDecisions int        `json:"totalDecisions" gorm:"not null;default:0"`
	TotalMatches   int        `json:"totalMatches" gorm:"not null;default:0"`
	CreatedAt      time.Time  `json:"createdAt"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	EndedBy        *uuid.UUID `json:"endedBy,omitempty" gorm:"type:uuid"`
}

func (c *Couple) HasMember(userID uuid.UUID) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// PartnerOf returns the other member of the couple, or uuid.Nil if userID is
// not a member.
func (c *Couple) PartnerOf(userID uuid.UUID) uuid.UUID {
	switch userID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	}
	return uuid.Nil
}

// CoupleStatsDelta is applied atomically to a couple's aggregate counters.
type CoupleStatsDelta struct {
	Decisions int
	Matches   int
}

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRejected InviteStatus = "rejected"
	InviteStatusExpired  InviteStatus = "expired"
)

// InviteTTL is how long a couple invite stays acceptable.
const InviteTTL = 7 * 24 * time.Hour

type CoupleInvite struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	FromUserID  uuid.UUID    `json:"fromUserId" gorm:"type:uuid;not null;index"`
	ToUserID    uuid.UUID    `json:"toUserId" gorm:"type:uuid;not null;index"`
	Status      InviteStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CoupleID    *uuid.UUID   `json:"coupleId,omitempty" gorm:"type:uuid"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt" gorm:"not null"`
	RespondedAt *time.Time   `json:"respondedAt,omitempty"`
}

func (i *CoupleInvite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
