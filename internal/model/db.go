package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentPurpose string

const (
	PurposeConference   PaymentPurpose = "CONFERENCE"
	PurposeSubscription PaymentPurpose = "SUBSCRIPTION"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentSuccessful PaymentStatus = "SUCCESSFUL"
	PaymentFailed     PaymentStatus = "FAILED"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationPaid      RegistrationStatus = "PAID"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "PENDING"
	SubscriptionActive  SubscriptionStatus = "ACTIVE"
	SubscriptionExpired SubscriptionStatus = "EXPIRED"
)

type User struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName       string     `gorm:"size:100" json:"first_name"`
	LastName        string     `gorm:"size:100" json:"last_name"`
	Role            string     `gorm:"size:16;not null;default:'USER'" json:"role"` // USER, ADMIN
	IsPremium       bool       `gorm:"not null;default:false" json:"is_premium"`
	PassportNo      *string    `gorm:"size:64" json:"passport_no,omitempty"`
	PassportCountry *string    `gorm:"size:64" json:"passport_country,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	PhoneNumber     *string    `gorm:"size:32" json:"phone_number,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type Conference struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Title     string    `gorm:"size:255;uniqueIndex;not null" json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegistrationType struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	ConferenceID string          `gorm:"size:36;index;not null" json:"conference_id"`
	Name         string          `gorm:"size:128;not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Payment struct {
	ID          string          `gorm:"primaryKey;size:36" json:"id"`
	UserID      string          `gorm:"size:36;index;not null" json:"user_id"`
	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	Currency    string          `gorm:"size:8;not null" json:"currency"`
	Purpose     PaymentPurpose  `gorm:"size:16;index;not null" json:"purpose"`
	Status      PaymentStatus   `gorm:"size:16;index;not null" json:"status"`
	GatewayRef  *string         `gorm:"size:128;uniqueIndex" json:"gateway_ref,omitempty"` // set once, by the intent call
	PaymentLink *string         `gorm:"size:512" json:"payment_link,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Registration struct {
	ID                 string             `gorm:"primaryKey;size:36" json:"id"`
	UserID             string             `gorm:"size:36;index;not null" json:"user_id"`
	ConferenceID       string             `gorm:"size:36;index;not null" json:"conference_id"`
	RegistrationTypeID string             `gorm:"size:36;not null" json:"registration_type_id"`
	PaymentID          string             `gorm:"size:36;uniqueIndex;not null" json:"payment_id"`
	Token              string             `gorm:"size:64;uniqueIndex;not null" json:"token"`
	Status             RegistrationStatus `gorm:"size:16;index;not null" json:"status"`
	// PaidSlot is "<user>:<conference>" while PAID and NULL otherwise; the
	// unique index allows one paid registration per user and conference.
	PaidSlot  *string   `gorm:"size:80;uniqueIndex" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Subscription struct {
	ID        string             `gorm:"primaryKey;size:36" json:"id"`
	UserID    string             `gorm:"size:36;index;not null" json:"user_id"`
	PaymentID string             `gorm:"size:36;uniqueIndex;not null" json:"payment_id"`
	Price     decimal.Decimal    `gorm:"type:decimal(14,2);not null" json:"price"`
	Status    SubscriptionStatus `gorm:"size:16;index;not null" json:"status"`
	PaidAt    *time.Time         `json:"paid_at,omitempty"`
	StartDate *time.Time         `json:"start_date,omitempty"`
	EndDate   *time.Time         `gorm:"index" json:"end_date,omitempty"`
	// ActiveUserID mirrors UserID while ACTIVE and is NULL otherwise.
	ActiveUserID *string   `gorm:"size:36;uniqueIndex" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	Reference   string `gorm:"size:128;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// All lists every table owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Conference{},
		&RegistrationType{},
		&Payment{},
		&Registration{},
		&Subscription{},
		&WebhookEvent{},
	}
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func (c *Conference) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (r *RegistrationType) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func (r *Registration) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// PaidSlotKey is the value Registration.PaidSlot takes once the registration is PAID.
func PaidSlotKey(userID, conferenceID string) string {
	return userID + ":" + conferenceID
}
