package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	RoleBuyer  = "buyer"
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

const (
	ProductStatusPending   = "pending"
	ProductStatusApproved  = "approved"
	ProductStatusRejected  = "rejected"
	ProductStatusSuspended = "suspended"
)

var ProductUnits = []string{"kg", "g", "piece", "bundle", "liter", "dozen", "bag", "box"}

var ProductCategories = []string{"vegetable", "fruit", "grain", "spice", "dairy", "meat", "poultry", "other"}

var PaymentMethods = []string{"cash_on_delivery", "chapa", "telebirr", "bank_transfer"}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName     string `gorm:"not null"                 json:"full_name"`
	Email        string `gorm:"uniqueIndex;not null"     json:"email"`
	Phone        string `json:"phone"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null"                 json:"role"`

	Address string `json:"address"`
	City    string `json:"city"`

	FarmName     string `json:"farm_name,omitempty"`
	FarmLocation string `json:"farm_location,omitempty"`

	IsVerified          bool       `gorm:"default:false" json:"is_verified"`
	VerificationToken   string     `gorm:"index"         json:"-"`
	VerificationExpires *time.Time `json:"-"`
	ResetToken          string     `gorm:"index"         json:"-"`
	ResetExpires        *time.Time `json:"-"`

	AverageRating float64 `gorm:"default:0" json:"average_rating"`
	TotalReviews  int     `gorm:"default:0" json:"total_reviews"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"                           json:"id"`
	Name        string  `gorm:"not null;uniqueIndex:idx_product_name_farmer"       json:"name"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"                                           json:"price"`
	Unit        string  `gorm:"not null"                                           json:"unit"`
	Category    string  `gorm:"not null;index"                                     json:"category"`
	Stock       int     `gorm:"not null;default:0"                                 json:"stock"`
	Image       string  `json:"image"`

	FarmerID uint  `gorm:"not null;index;uniqueIndex:idx_product_name_farmer" json:"farmer_id"`
	Farmer   *User `gorm:"foreignKey:FarmerID"                                json:"farmer,omitempty"`

	IsActive bool `gorm:"default:true;index" json:"is_active"`

	AdminStatus       string     `gorm:"default:pending" json:"admin_status"`
	StatusReason      string     `json:"status_reason,omitempty"`
	StatusUpdatedAt   *time.Time `json:"status_updated_at,omitempty"`
	StatusUpdatedByID uint       `json:"status_updated_by,omitempty"`

	AverageRating float64 `gorm:"default:0" json:"average_rating"`
	TotalReviews  int     `gorm:"default:0" json:"total_reviews"`

	Views      int `gorm:"default:0" json:"views"`
	SalesCount int `gorm:"default:0" json:"sales_count"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderItem is a snapshot of the product at order time. Product edits or
// deletions never change historical orders.
type OrderItem struct {
	ID        uint `gorm:"primaryKey"     json:"id"`
	OrderID   uint `gorm:"index;not null" json:"order_id"`
	ProductID uint `gorm:"not null"       json:"product_id"`

	Name       string  `gorm:"not null" json:"name"`
	Price      float64 `gorm:"not null" json:"price"`
	Unit       string  `json:"unit"`
	Image      string  `json:"image"`
	FarmerID   uint    `gorm:"index"    json:"farmer_id"`
	FarmerName string  `json:"farmer_name"`
	FarmerCity string  `json:"farmer_city"`

	Quantity int     `gorm:"not null"  json:"quantity"`
	Tax      float64 `gorm:"default:0" json:"tax"`
	Subtotal float64 `gorm:"not null"  json:"subtotal"`
}

type ShippingAddress struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Phone   string `json:"phone"`
}

type Order struct {
	ID      uint  `gorm:"primaryKey;autoIncrement" json:"id"`
	BuyerID uint  `gorm:"index;not null"           json:"buyer_id"`
	Buyer   *User `gorm:"foreignKey:BuyerID"       json:"buyer,omitempty"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	TotalPrice  float64 `gorm:"not null"   json:"total_price"`
	DeliveryFee float64 `gorm:"default:50" json:"delivery_fee"`
	TaxAmount   float64 `gorm:"default:0"  json:"tax_amount"`

	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`

	PaymentMethod string `gorm:"default:cash_on_delivery" json:"payment_method"`
	PaymentStatus string `gorm:"default:pending;index"    json:"payment_status"`
	TransactionID string `gorm:"uniqueIndex"              json:"transaction_id"`

	Status         string `gorm:"default:pending;index" json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`

	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	ShippedAt         *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`

	Notes string `json:"notes,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrderNumber is the customer-facing short identifier, distinct from the
// payment transaction id.
func (o *Order) OrderNumber() string {
	return fmt.Sprintf("ORD-%08s", strings.ToUpper(strconv.FormatUint(uint64(o.ID), 36)))
}

// HasFarmer reports whether any item in the order belongs to the farmer.
func (o *Order) HasFarmer(farmerID uint) bool {
	for i := range o.Items {
		if o.Items[i].FarmerID == farmerID {
			return true
		}
	}
	return false
}

type Review struct {
	ID        uint     `gorm:"primaryKey;autoIncrement"                           json:"id"`
	ProductID uint     `gorm:"not null;uniqueIndex:idx_review_product_user"       json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID"                               json:"product,omitempty"`
	UserID    uint     `gorm:"not null;index;uniqueIndex:idx_review_product_user" json:"user_id"`
	User      *User    `gorm:"foreignKey:UserID"                                  json:"user,omitempty"`
	OrderID   *uint    `json:"order_id,omitempty"`

	Rating  int      `gorm:"not null"        json:"rating"`
	Comment string   `json:"comment"`
	Images  []string `gorm:"serializer:json" json:"images"`

	IsVerifiedPurchase bool `gorm:"default:false" json:"is_verified_purchase"`
	HelpfulCount       int  `gorm:"default:0"     json:"helpful_count"`
	ReportCount        int  `gorm:"default:0"     json:"report_count"`
	IsActive           bool `gorm:"default:true"  json:"is_active"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func ValidPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

func ValidProductStatus(s string) bool {
	switch s {
	case ProductStatusPending, ProductStatusApproved, ProductStatusRejected, ProductStatusSuspended:
		return true
	}
	return false
}

func ValidUnit(u string) bool { return contains(ProductUnits, u) }

func ValidCategory(c string) bool { return contains(ProductCategories, c) }

func ValidPaymentMethod(m string) bool { return contains(PaymentMethods, m) }

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
