package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"not null"`
	DisplayName  string     `json:"displayName" gorm:"not null"`
	UserCode     string     `json:"userCode" gorm:"uniqueIndex;size:6;not null"`
	PartnerID    *uuid.UUID `json:"partnerId,omitempty" gorm:"type:uuid"`
	CoupleID     *uuid.UUID `json:"coupleId,omitempty" gorm:"type:uuid"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsPartneredWith reports whether the stored partner of u is partnerID.
func (u *User) IsPartneredWith(partnerID uuid.UUID) bool {
	return u.PartnerID != nil && *u.PartnerID == partnerID
}

// GenerateShortCode returns six upper-case hex characters. Users share it
// with a partner to receive a couple invite.
func GenerateShortCode() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return strings.ToUpper(hex.EncodeToString(bytes))
}
