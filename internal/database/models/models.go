package models

import "time"

const (
	TableAvailable = "Available"
	TableOccupied  = "Occupied"

	DayOpen   = "Open"
	DayClosed = "Closed"

	OrderOpen   = "Open"
	OrderClosed = "Closed"

	OrderKindTable   = "Table"
	OrderKindPrepaid = "Prepaid"

	PaymentCash     = "Cash"
	PaymentTransfer = "Transfer"
	PaymentCard     = "Card"

	RoleAdmin  = "Admin"
	RoleSeller = "Seller"
	RoleSystem = "System"
)

// Table is one of the fixed physical tables in the venue. Occupied while it
// has an open order.
type Table struct {
	ID    int32  `gorm:"primaryKey;autoIncrement"`
	Name  string `gorm:"type:varchar(64);uniqueIndex;not null"`
	State string `gorm:"type:varchar(16);not null;default:'Available'"`
}

// BusinessDay groups orders into one accounting period. At most one row is
// Open at a time.
type BusinessDay struct {
	ID        int32     `gorm:"primaryKey;autoIncrement"`
	Date      time.Time `gorm:"not null"`
	StartedAt time.Time `gorm:"not null"`
	EndedAt   *time.Time
	OpenedBy  int64 `gorm:"not null"`
	ClosedBy  *int64
	State     string `gorm:"type:varchar(16);not null;index"`
}

type Order struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	TableID       int32     `gorm:"index;not null"`
	BusinessDayID int32     `gorm:"index;not null"`
	UserID        int64     `gorm:"not null"`
	OpenedAt      time.Time `gorm:"not null"`
	ClosedAt      *time.Time
	State         string `gorm:"type:varchar(16);not null;index"`
	PaymentMethod string `gorm:"type:varchar(16);not null;default:''"`
	Kind          string `gorm:"type:varchar(16);not null;default:'Table'"`

	Table   *Table      `gorm:"foreignKey:TableID"`
	Lines   []OrderLine `gorm:"foreignKey:OrderID"`
	Payment *Payment    `gorm:"foreignKey:OrderID"`
}

// OrderLine carries a name/price snapshot taken when the product was first
// added; later catalog price changes do not touch existing lines.
type OrderLine struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	OrderID     int64  `gorm:"index;not null"`
	ProductID   int32  `gorm:"not null"`
	ProductName string `gorm:"type:varchar(128);not null"`
	UnitPrice   string `gorm:"type:varchar(32);not null"`
	Quantity    int32  `gorm:"not null"`
	LineTotal   string `gorm:"type:varchar(32);not null"`
	CreatedAt   time.Time
}

// Payment is created once per order. The unique index on OrderID backs the
// single-payment rule at the storage level.
type Payment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	OrderID     int64     `gorm:"uniqueIndex;not null"`
	BaseAmount  string    `gorm:"type:varchar(32);not null"`
	Method      string    `gorm:"type:varchar(16);not null"`
	Surcharge   string    `gorm:"type:varchar(32);not null"`
	FinalAmount string    `gorm:"type:varchar(32);not null"`
	PaidAt      time.Time `gorm:"not null"`
}

type Product struct {
	ID         int32   `gorm:"primaryKey;autoIncrement"`
	Name       string  `gorm:"type:varchar(128);not null"`
	Price      string  `gorm:"type:varchar(32);not null"`
	Stock      int32   `gorm:"not null"`
	Image      *string `gorm:"type:varchar(256)"`
	CategoryID int32   `gorm:"index;not null"`

	Category *Category `gorm:"foreignKey:CategoryID"`
}

type Category struct {
	ID   int32  `gorm:"primaryKey;autoIncrement"`
	Name string `gorm:"type:varchar(64);uniqueIndex;not null"`
}

type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	Name         string     `gorm:"type:varchar(64);uniqueIndex;not null"`
	Role         string     `gorm:"type:varchar(16);not null"`
	PasswordHash string     `gorm:"not null"`
	CreatedAt    *time.Time `gorm:"autoCreateTime"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime"`
}

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentTransfer, PaymentCard:
		return true
	}
	return false
}

func ValidTableState(state string) bool {
	return state == TableAvailable || state == TableOccupied
}
