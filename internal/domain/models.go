// Package domain defines the persistence models for the business directory:
// users, categories, businesses, API keys, and ingestion logs. These types
// are mapped with GORM and form the core data layer of the application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// UserRole enumerates the roles a user account can hold.
type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// BusinessStatus enumerates the moderation states of a business listing.
type BusinessStatus string

const (
	StatusPending   BusinessStatus = "PENDING"
	StatusActive    BusinessStatus = "ACTIVE"
	StatusSuspended BusinessStatus = "SUSPENDED"
)

// Plan enumerates the subscription tiers shared by businesses and API keys.
type Plan string

const (
	PlanFree       Plan = "FREE"
	PlanBasic      Plan = "BASIC"
	PlanPro        Plan = "PRO"
	PlanEnterprise Plan = "ENTERPRISE"
)

// IngestionStatus enumerates the lifecycle states of an ingestion log row.
type IngestionStatus string

const (
	IngestionProcessing IngestionStatus = "PROCESSING"
	IngestionSuccess    IngestionStatus = "SUCCESS"
	IngestionFailed     IngestionStatus = "FAILED"
)

// User represents an account that owns businesses and API keys. Credential
// material (password hash, token issuance) is managed by an external auth
// service and intentionally absent here.
type User struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Email     string         `json:"email"      gorm:"type:varchar(255);not null;uniqueIndex"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null"`
	Role      UserRole       `json:"role"       gorm:"type:varchar(16);not null;default:'USER'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Category groups businesses under a browsable heading.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Slug: URL-safe unique identifier used interchangeably with the ID in
//     listing filters.
//   - Icon / Color: presentation hints consumed by the front end.
type Category struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(255);not null"`
	Slug        string         `json:"slug"        gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Icon        string         `json:"icon,omitempty"        gorm:"type:varchar(64)"`
	Color       string         `json:"color,omitempty"       gorm:"type:varchar(16)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Business represents a directory listing owned by a user.
//
// Latitude/Longitude are optional; listings without coordinates are still
// searchable but sort last in distance-ordered results. Distance is a
// computed field populated by the query layer when a geo origin is part of
// the request; it is never persisted.
type Business struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name        string         `json:"name"        gorm:"type:varchar(255);not null;index"`
	Slug        string         `json:"slug"        gorm:"type:varchar(255);not null;uniqueIndex"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Email       string         `json:"email,omitempty"   gorm:"type:varchar(255)"`
	Phone       string         `json:"phone,omitempty"   gorm:"type:varchar(64)"`
	Website     string         `json:"website,omitempty" gorm:"type:varchar(255)"`
	Address     string         `json:"address,omitempty" gorm:"type:varchar(255)"`
	City        string         `json:"city,omitempty"    gorm:"type:varchar(128);index"`
	Region      string         `json:"region,omitempty"  gorm:"type:varchar(128);index"`
	PostalCode  string         `json:"postal_code,omitempty" gorm:"type:varchar(32)"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Logo        string         `json:"logo,omitempty" gorm:"type:varchar(255)"`
	CategoryID  string         `json:"category_id"    gorm:"type:char(36);not null;index"`
	OwnerID     string         `json:"owner_id"       gorm:"type:char(36);not null;index"`
	Status      BusinessStatus `json:"status"         gorm:"type:varchar(16);not null;default:'PENDING';index"`
	Plan        Plan           `json:"plan"           gorm:"type:varchar(16);not null;default:'FREE'"`
	Featured    bool           `json:"featured"       gorm:"not null;default:false;index"`
	ViewCount   int64          `json:"view_count"     gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`

	// Category is the parent heading, preloaded on read paths.
	Category Category `json:"category" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`

	// Distance in km from the query origin. Populated only for geo queries.
	Distance *float64 `json:"distance,omitempty" gorm:"-"`
}

// TableName returns the database table name for Business.
func (Business) TableName() string { return "businesses" }

// DistanceKm exposes the computed distance for geo ranking.
func (b *Business) DistanceKm() *float64 { return b.Distance }

// APIKey is the registry entry for a machine caller. Only the SHA-256 hash
// of the secret is stored; the plaintext is generated once and returned
// exactly once at creation time.
//
// RateLimit is the per-hour request ceiling enforced against the counter
// store; QuotaLimit is the per-month ceiling tracked via UsageCount. Keys
// are revoked by clearing Active (soft revocation, never removed).
type APIKey struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null"`
	KeyHash    string         `json:"-"           gorm:"type:char(64);not null;uniqueIndex"`
	UserID     string         `json:"user_id"     gorm:"type:char(36);not null;index"`
	Plan       Plan           `json:"plan"        gorm:"type:varchar(16);not null;default:'FREE'"`
	Active     bool           `json:"active"      gorm:"not null;default:true"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	RateLimit  int            `json:"rate_limit"  gorm:"not null;default:100"`
	QuotaLimit int64          `json:"quota_limit" gorm:"not null;default:1000"`
	UsageCount int64          `json:"usage_count" gorm:"not null;default:0"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// User is the owning account, preloaded during authentication so the
	// admission layer can hand handlers a resolved caller.
	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for APIKey.
func (APIKey) TableName() string { return "api_keys" }

// Expired reports whether the key has an expiry in the past relative to now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// IngestionLog records one attempt to import a business from an external
// feed (scraper, partner export). RawData keeps the original payload for
// replay and debugging; Errors is a newline-joined list when Status is
// FAILED.
type IngestionLog struct {
	ID         string          `json:"id"        gorm:"type:char(36);primaryKey"`
	Source     string          `json:"source"    gorm:"type:varchar(128);not null;index"`
	RawData    string          `json:"raw_data"  gorm:"type:text"`
	Status     IngestionStatus `json:"status"    gorm:"type:varchar(16);not null;default:'PROCESSING'"`
	BusinessID string          `json:"business_id,omitempty" gorm:"type:char(36);index"`
	Errors     string          `json:"errors,omitempty"      gorm:"type:text"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName returns the database table name for IngestionLog.
func (IngestionLog) TableName() string { return "ingestion_logs" }
