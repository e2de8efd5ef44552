// Package models defines the core data structures for the catalog, favorites,
// sessions and site theme.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry pointing to an external marketplace listing.
type Product struct {
	// ID is the unique identifier for the product.
	ID string `json:"id"`
	// Name is the display name of the product.
	Name string `json:"name"`
	// Price is the current price in currency units.
	Price decimal.Decimal `json:"price"`
	// ImageURL references the primary image.
	ImageURL string `json:"image_url"`
	// Images holds additional image references in display order.
	Images []string `json:"images"`
	// PurchaseURL is the external marketplace link.
	PurchaseURL string `json:"purchase_url"`
	// Description is optional rich-text HTML.
	Description *string `json:"description,omitempty"`
	// Discount is an optional percentage in [0, 100] used for display only.
	Discount *decimal.Decimal `json:"discount,omitempty"`
	// FavoritesCount is the number of users who favorited the product.
	FavoritesCount int64 `json:"favorites_count"`
	// Tags is the unordered set of category labels.
	Tags []string `json:"tags"`
	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

var hundred = decimal.NewFromInt(100)

// OriginalPrice returns the pre-discount price derived from Price and Discount,
// rounded to cents. It returns nil when no usable discount is set.
func (p Product) OriginalPrice() *decimal.Decimal {
	if p.Discount == nil || !p.Discount.IsPositive() || p.Discount.GreaterThanOrEqual(hundred) {
		return nil
	}
	factor := decimal.NewFromInt(1).Sub(p.Discount.Div(hundred))
	original := p.Price.Div(factor).Round(2)
	return &original
}

// HasTag reports whether the product carries the given tag.
func (p Product) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// ProductInput is the admin form payload for creating or updating a product.
type ProductInput struct {
	Name        string           `json:"name"`
	Price       decimal.Decimal  `json:"price"`
	ImageURL    string           `json:"image_url"`
	Images      []string         `json:"images"`
	PurchaseURL string           `json:"purchase_url"`
	Description *string          `json:"description,omitempty"`
	Discount    *decimal.Decimal `json:"discount,omitempty"`
	Tags        []string         `json:"tags"`
}

// ProductRef is the minimal projection used to build site maps.
type ProductRef struct {
	ID   string
	Name string
}

// TagCount pairs a tag with the number of products referencing it.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// PriceRange is a transient price filter selection in currency units.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Favorite is a user bookmark on a product.
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// User represents an account able to sign in.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Email is the login of the user.
	Email string
	// PasswordHash is the bcrypt hash of the password.
	PasswordHash []byte
	// CreatedAt is the registration timestamp.
	CreatedAt time.Time
}

// Session is a server-side sign-in record referenced by a token.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Role is the authorization role stored per user.
type Role string

const (
	// RoleUser is a regular storefront customer.
	RoleUser Role = "user"
	// RoleAdmin can access the back office.
	RoleAdmin Role = "admin"
)

// PrincipalKind classifies the current viewer.
type PrincipalKind int

const (
	// Anonymous is a viewer without a usable session.
	Anonymous PrincipalKind = iota
	// Customer is a signed-in regular user.
	Customer
	// Administrator is a signed-in admin. It never implies Customer.
	Administrator
)

func (k PrincipalKind) String() string {
	switch k {
	case Customer:
		return "user"
	case Administrator:
		return "admin"
	default:
		return "anonymous"
	}
}

// MarshalText encodes the kind by name.
func (k PrincipalKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name. Unknown names decode as Anonymous.
func (k *PrincipalKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "user":
		*k = Customer
	case "admin":
		*k = Administrator
	default:
		*k = Anonymous
	}
	return nil
}

// Principal is the resolved identity of a viewer.
type Principal struct {
	Kind      PrincipalKind `json:"kind"`
	UserID    string        `json:"user_id,omitempty"`
	Email     string        `json:"email,omitempty"`
	SessionID string        `json:"-"`
}

// AnonymousPrincipal is the zero identity.
var AnonymousPrincipal = Principal{Kind: Anonymous}

// IsUser reports whether the principal is a regular signed-in user.
func (p Principal) IsUser() bool { return p.Kind == Customer }

// IsAdmin reports whether the principal is an administrator.
func (p Principal) IsAdmin() bool { return p.Kind == Administrator }

// ThemeSettings is the active site theme record.
type ThemeSettings struct {
	ID                string `json:"id" yaml:"id"`
	SiteTitle         string `json:"site_title" yaml:"site_title"`
	PrimaryColor      string `json:"primary_color" yaml:"primary_color"`
	PrimaryHoverColor string `json:"primary_hover_color" yaml:"primary_hover_color"`
	SecondaryColor    string `json:"secondary_color" yaml:"secondary_color"`
	AccentColor       string `json:"accent_color" yaml:"accent_color"`
	Icon              string `json:"icon" yaml:"icon"`
	FaviconURL        string `json:"favicon_url" yaml:"favicon_url"`
	SiteURL           string `json:"site_url" yaml:"site_url"`
	IsActive          bool   `json:"is_active" yaml:"-"`
}

// NotificationKind is the severity of a user-facing notification.
type NotificationKind string

const (
	// NotifySuccess marks a confirmed action.
	NotifySuccess NotificationKind = "success"
	// NotifyError marks a failed action.
	NotifyError NotificationKind = "error"
)

// Notification is a transient message shown to a user.
type Notification struct {
	Message string           `json:"message"`
	Kind    NotificationKind `json:"type"`
}

// EventKind identifies a storefront interaction tracked for analytics.
type EventKind string

const (
	// EventView is a product detail view.
	EventView EventKind = "view"
	// EventBuyClick is a click-through from the product page.
	EventBuyClick EventKind = "buy_click"
	// EventHomepageBuyClick is a click-through from the catalog grid.
	EventHomepageBuyClick EventKind = "homepage_buy_click"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventView, EventBuyClick, EventHomepageBuyClick:
		return true
	}
	return false
}

// ProductStats aggregates interactions for one product over a period.
type ProductStats struct {
	ProductID         string `json:"id"`
	Name              string `json:"name"`
	Views             int64  `json:"views"`
	Clicks            int64  `json:"clicks"`
	HomepageClicks    int64  `json:"homepage_clicks"`
	TotalInteractions int64  `json:"total_interactions"`
}
