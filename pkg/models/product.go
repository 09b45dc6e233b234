package models

import (
	"time"
)

// Product is a sellable unit listed by a farmer.
type Product struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FarmerID    string    `gorm:"type:varchar(36);not null;index" json:"farmer_id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Category    string    `gorm:"type:varchar(50);index" json:"category"`
	Price       float64   `gorm:"type:decimal(10,2)" json:"price"`
	Unit        string    `gorm:"type:varchar(20)" json:"unit"`
	Description string    `gorm:"type:text" json:"description"`
	Stock       int       `gorm:"not null;default:0" json:"stock"`
	Images      []string  `gorm:"serializer:json;type:text" json:"images"`
	Organic     bool      `json:"organic"`
	Featured    bool      `gorm:"index" json:"featured"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// CartItem pairs a product snapshot with the quantity the consumer intends
// to buy. The snapshot is what the consumer saw when adding the item; stock
// checks against it are re-done against live data at checkout.
type CartItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is the line price at the snapshot's unit price.
func (i CartItem) Subtotal() float64 {
	return i.Product.Price * float64(i.Quantity)
}
