package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownBrand stands in for a missing brand when comparing products.
const UnknownBrand = "Unknown Brand"

// Uncategorized is the label used when no category keyword matches.
const Uncategorized = "Uncategorized"

// ExtractedProduct is one purchased item pulled out of an order email.
type ExtractedProduct struct {
	Name          string `json:"name"`
	Brand         string `json:"brand,omitempty"`
	Price         string `json:"price,omitempty"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	Discount      string `json:"discount,omitempty"`
	Size          string `json:"size,omitempty"`
	Color         string `json:"color,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	ProductLink   string `json:"productLink,omitempty"`
	Quantity      int    `json:"quantity"`
	Category      string `json:"category,omitempty"`
	Retailer      string `json:"retailer"`
	EmailID       string `json:"emailId"`
	OrderID       string `json:"orderId,omitempty"`
	Reference     string `json:"reference,omitempty"`

	// NormalizedImageURL is derived for duplicate diagnostics only and is
	// never stored as the display image.
	NormalizedImageURL string `json:"-"`
}

// BrandOrUnknown returns the brand with the UnknownBrand sentinel applied.
func (p ExtractedProduct) BrandOrUnknown() string {
	if b := strings.TrimSpace(p.Brand); b != "" {
		return b
	}
	return UnknownBrand
}

// EmailContent is the raw message content for one email.
type EmailContent struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	HTMLBody   string    `json:"htmlBody,omitempty"`
	TextBody   string    `json:"textBody,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// HasHTML reports whether a DOM can be built from the email.
func (e *EmailContent) HasHTML() bool {
	return strings.TrimSpace(e.HTMLBody) != ""
}

// HasBody reports whether the email has anything to parse at all.
func (e *EmailContent) HasBody() bool {
	return e.HasHTML() || strings.TrimSpace(e.TextBody) != ""
}

// InventoryItem is a product already imported for a user.
type InventoryItem struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Brand     string    `json:"brand" db:"brand"`
	Category  string    `json:"category" db:"category"`
	ImageURL  string    `json:"image_url" db:"image_url"`
	Retailer  string    `json:"retailer" db:"retailer"`
	EmailID   string    `json:"email_id" db:"email_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BrandOrUnknown returns the brand with the UnknownBrand sentinel applied.
func (i InventoryItem) BrandOrUnknown() string {
	if b := strings.TrimSpace(i.Brand); b != "" {
		return b
	}
	return UnknownBrand
}
