package models

import "time"

const (
	SubscriptionIntervalMonth   = "month"
	SubscriptionIntervalYear    = "year"
	SubscriptionIntervalUnknown = "unknown"
)

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusRevoked    = "revoked"
)

// Subscription mirrors one payment-provider subscription and is the
// authoritative ledger row that drives plan standing. Rows are never
// deleted; terminal states like "revoked" are recorded in place.
type Subscription struct {
	ID                     uint       `gorm:"primaryKey" json:"id"`
	UserID                 uint       `gorm:"not null;index" json:"user_id"`
	Provider               string     `gorm:"type:varchar(20);not null;index:ux_subscriptions_provider_subid,unique,priority:1" json:"provider"`
	ProviderSubscriptionID string     `gorm:"type:varchar(191);not null;index:ux_subscriptions_provider_subid,unique,priority:2" json:"provider_subscription_id"`
	Status                 string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	PriceID                string     `gorm:"type:varchar(191);default:''" json:"price_id"`
	Currency               string     `gorm:"type:varchar(8);default:''" json:"currency"`
	RecurringInterval      string     `gorm:"type:varchar(16);not null;default:'unknown'" json:"recurring_interval"`
	Amount                 int64      `gorm:"default:0" json:"amount"`
	CurrentPeriodStart     *time.Time `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `gorm:"default:false" json:"cancel_at_period_end"`
	CancellationReason     string     `gorm:"type:varchar(191);default:''" json:"cancellation_reason"`
	CancellationComment    string     `gorm:"type:text" json:"cancellation_comment"`
	StartedAt              *time.Time `gorm:"type:timestamp;default:null;index" json:"started_at,omitempty"`
	EndedAt                *time.Time `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	CanceledAt             *time.Time `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	MetadataJSON           string     `gorm:"type:longtext" json:"metadata_json"`
	CustomFieldDataJSON    string     `gorm:"type:longtext" json:"custom_field_data_json"`
	RawPayloadJSON         string     `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt              time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsEntitling reports whether the subscription status grants paid entitlements.
func (s *Subscription) IsEntitling() bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
