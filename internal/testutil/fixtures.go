package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/foodieswipe/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserBuilder creates test users with a builder pattern
type UserBuilder struct {
	email       string
	displayName string
	password    string
}

// NewUserBuilder creates a new UserBuilder with default values
func NewUserBuilder() *UserBuilder {
	suffix := uuid.New().String()[:8]
	return &UserBuilder{
		email:       fmt.Sprintf("user_%s@example.com", suffix),
		displayName: fmt.Sprintf("testuser_%s", suffix),
		password:    "testpassword123",
	}
}

func (b *UserBuilder) WithEmail(email string) *UserBuilder {
	b.email = email
	return b
}

// WithDisplayName sets the display name
func (b *UserBuilder) WithDisplayName(name string) *UserBuilder {
	b.displayName = name
	return b
}

// WithPassword sets the password
func (b *UserBuilder) WithPassword(password string) *UserBuilder {
	b.password = password
	return b
}

// Build creates the user in the database and returns the user with the raw password
func (b *UserBuilder) Build(t *testing.T, db *gorm.DB) (*domain.User, string) {
	t.Helper()

	// MinCost keeps the suite fast; production hashing uses DefaultCost.
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(b.password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &domain.User{
		ID:           uuid.New(),
		Email:        strings.ToLower(b.email),
		DisplayName:  b.displayName,
		PasswordHash: string(hashedPassword),
		UserCode:     strings.ToUpper(uuid.New().String()[:6]),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user, b.password
}

// AuthResponse matches the API auth response
type AuthResponse struct {
	User struct {
		ID          string  `json:"id"`
		Email       string  `json:"email"`
		DisplayName string  `json:"displayName"`
		UserCode    string  `json:"userCode"`
		PartnerID   *string `json:"partnerId"`
		CoupleID    *string `json:"coupleId"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

// BuildAndAuthenticate registers the user via the API and returns the user
// and access token.
func (b *UserBuilder) BuildAndAuthenticate(t *testing.T, ts *TestServer) (*domain.User, string) {
	t.Helper()

	reqBody := map[string]string{
		"email":       b.email,
		"displayName": b.displayName,
		"password":    b.password,
	}
	body, _ := json.Marshal(reqBody)

	resp, err := http.Post(ts.APIURL("/auth/register"), "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var authResp AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	userID, _ := uuid.Parse(authResp.User.ID)
	user := &domain.User{
		ID:          userID,
		Email:       authResp.User.Email,
		DisplayName: authResp.User.DisplayName,
		UserCode:    authResp.User.UserCode,
	}

	return user, authResp.AccessToken
}

// PairUsers links two existing users as an active couple directly in the
// database.
func PairUsers(t *testing.T, db *gorm.DB, user1, user2 *domain.User) *domain.Couple {
	t.Helper()

	couple := &domain.Couple{
		ID:        uuid.New(),
		User1ID:   user1.ID,
		User2ID:   user2.ID,
		IsActive:  true,
		CreatedAt: time.Now(),
	}
	if err := db.Create(couple).Error; err != nil {
		t.Fatalf("failed to create couple: %v", err)
	}

	for _, link := range []struct{ user, partner *domain.User }{{user1, user2}, {user2, user1}} {
		err := db.Model(&domain.User{}).Where("id = ?", link.user.ID).Updates(map[string]interface{}{
			"partner_id": link.partner.ID,
			"couple_id":  couple.ID,
		}).Error
		if err != nil {
			t.Fatalf("failed to link partner: %v", err)
		}
		partnerID, coupleID := link.partner.ID, couple.ID
		link.user.PartnerID = &partnerID
		link.user.CoupleID = &coupleID
	}

	return couple
}

// SessionBuilder creates decision sessions with a builder pattern
type SessionBuilder struct {
	couple   *domain.Couple
	inactive bool
	swipes   []*domain.SwipeRecord
}

func NewSessionBuilder(couple *domain.Couple) *SessionBuilder {
	return &SessionBuilder{couple: couple}
}

// Inactive creates the session already ended.
func (b *SessionBuilder) Inactive() *SessionBuilder {
	b.inactive = true
	return b
}

// WithSwipe seeds a swipe in the session log.
func (b *SessionBuilder) WithSwipe(userID uuid.UUID, dishID string, action domain.SwipeAction) *SessionBuilder {
	b.swipes = append(b.swipes, &domain.SwipeRecord{
		UserID: userID,
		DishID: dishID,
		Action: action,
	})
	return b
}

// Build creates the session in the database
func (b *SessionBuilder) Build(t *testing.T, db *gorm.DB) *domain.Session {
	t.Helper()

	now := time.Now()
	session := &domain.Session{
		ID:        uuid.New(),
		CoupleID:  b.couple.ID,
		User1ID:   b.couple.User1ID,
		User2ID:   b.couple.User2ID,
		StartedBy: b.couple.User1ID,
		IsActive:  !b.inactive,
		StartedAt: now,
	}
	if b.inactive {
		session.EndedAt = &now
	}

	// IsActive=false would be dropped as a zero value by Create.
	if err := db.Select("*").Omit("Decision").Create(session).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	for _, swipe := range b.swipes {
		swipe.SessionID = session.ID
		swipe.CreatedAt = time.Now()
		swipe.DishData = datatypes.JSON(`{"name":"test dish"}`)
		if err := db.Create(swipe).Error; err != nil {
			t.Fatalf("failed to create swipe: %v", err)
		}
	}

	return session
}
