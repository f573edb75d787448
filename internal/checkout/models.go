package checkout

import "time"

// CartLine is a frozen snapshot of one product selection. Price and name are
// captured when the user adds the product; Quantity is re-frozen to the
// actually reserved amount at placement time. Once consumed by an order
// (OrderID set, Enabled false) the line is an immutable historical record.
type CartLine struct {
	ID             int64
	UserID         int64
	ProductID      int64
	SellerID       int64
	ProductName    string
	UnitPriceCents int
	Quantity       int
	AvailableQty   int
	SoldQty        int
	Enabled        bool
	OrderID        *int64
}

// LineTotalCents is the frozen amount the line contributes to its order.
func (l CartLine) LineTotalCents() int { return l.UnitPriceCents * l.Quantity }

// ShippingAddress is a per-order snapshot, owned exclusively by the order
// that references it. It is not a reusable address-book entry.
type ShippingAddress struct {
	ID       int64
	UserID   int64
	FullName string
	Street   string
	City     string
	State    string
	Zip      string
	Country  string
	Phone    string
}

type Order struct {
	ID            int64
	Code          string
	UserID        int64
	Status        Status
	TotalCents    int
	PaymentMethod string
	AddressID     int64
	InvoiceNumber string
	SellerIDs     []int64
	Lines         []CartLine
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DistinctSellers returns the seller ids touched by the given lines, in first
// appearance order, without duplicates.
func DistinctSellers(lines []CartLine) []int64 {
	seen := make(map[int64]bool, len(lines))
	out := make([]int64, 0, len(lines))
	for _, l := range lines {
		if !seen[l.SellerID] {
			seen[l.SellerID] = true
			out = append(out, l.SellerID)
		}
	}
	return out
}
