package models

import (
	"encoding/json"
	"time"
)

// Order records a checkout event. Everything except Status and UpdatedAt is
// immutable once created: item snapshots and the total are captured at
// creation time so later product edits do not rewrite order history.
type Order struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConsumerID  string      `gorm:"type:varchar(36);not null;index" json:"consumer_id"`
	FarmerID    string      `gorm:"type:varchar(36);not null;index" json:"farmer_id"`
	ItemsJSON   string      `gorm:"column:items;type:text" json:"-"`
	TotalAmount float64     `gorm:"type:decimal(10,2)" json:"total_amount"`
	Status      OrderStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem is the snapshot of one ordered line, captured at checkout.
type OrderItem struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Unit        string  `json:"unit"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// Subtotal is the line total at the snapshot price.
func (i OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}

// Items decodes the stored line snapshots.
func (o *Order) Items() ([]OrderItem, error) {
	if o.ItemsJSON == "" {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal([]byte(o.ItemsJSON), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItems encodes the line snapshots into the stored JSON column.
func (o *Order) SetItems(items []OrderItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	o.ItemsJSON = string(data)
	return nil
}
