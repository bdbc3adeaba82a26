package entities

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/marketbridge/internal/domain/errors"
	"github.com/Haleralex/marketbridge/internal/domain/valueobjects"
)

// PaymentMethod decides how an order is paid.
type PaymentMethod string

const (
	// PaymentWalletBalance charges the buyer's wallet at order creation.
	PaymentWalletBalance PaymentMethod = "WalletBalance"
	// PaymentBankTransfer is settled later by the SePay payment callback.
	PaymentBankTransfer PaymentMethod = "BankTransfer"
)

// IsValid checks if the payment method is supported.
func (p PaymentMethod) IsValid() bool {
	return p == PaymentWalletBalance || p == PaymentBankTransfer
}

// IsWallet reports whether the method charges the internal wallet.
func (p PaymentMethod) IsWallet() bool {
	return p == PaymentWalletBalance
}

// noteSeparator joins appended note fragments.
const noteSeparator = " | "

// ShippingInfo holds the optional delivery contact fields.
type ShippingInfo struct {
	Address string
	Phone   string
	Email   string
}

// OrderLine is the input for one line item.
// FactoryID is snapshotted from the product so grouping never re-reads it.
type OrderLine struct {
	MatchID   uuid.UUID
	FactoryID uuid.UUID
	Quantity  int
	Price     valueobjects.Money
}

// OrderDetail is a line item. Price is the unit price at order time.
type OrderDetail struct {
	id         uuid.UUID
	orderID    uuid.UUID
	matchID    uuid.UUID
	factoryID  uuid.UUID
	quantity   int
	price      valueobjects.Money
	discount   valueobjects.Money
	totalPrice valueobjects.Money
}

// ReconstructOrderDetail rebuilds a line item from storage.
func ReconstructOrderDetail(
	id, orderID, matchID, factoryID uuid.UUID,
	quantity int,
	price, discount, totalPrice valueobjects.Money,
) OrderDetail {
	return OrderDetail{
		id:         id,
		orderID:    orderID,
		matchID:    matchID,
		factoryID:  factoryID,
		quantity:   quantity,
		price:      price,
		discount:   discount,
		totalPrice: totalPrice,
	}
}

func (d OrderDetail) ID() uuid.UUID                  { return d.id }
func (d OrderDetail) OrderID() uuid.UUID             { return d.orderID }
func (d OrderDetail) MatchID() uuid.UUID             { return d.matchID }
func (d OrderDetail) FactoryID() uuid.UUID           { return d.factoryID }
func (d OrderDetail) Quantity() int                  { return d.quantity }
func (d OrderDetail) Price() valueobjects.Money      { return d.price }
func (d OrderDetail) Discount() valueobjects.Money   { return d.discount }
func (d OrderDetail) TotalPrice() valueobjects.Money { return d.totalPrice }

// Order is the aggregate root for a purchase and its line items.
//
// Invariant: totalPrice equals the sum of the line items' quantity x price at
// creation time. It is never recomputed afterwards.
type Order struct {
	id            uuid.UUID
	customerID    uuid.UUID
	shipping      ShippingInfo
	totalPrice    valueobjects.Money
	paymentMethod PaymentMethod
	status        OrderStatus
	note          string
	details       []OrderDetail
	Audit
}

// NewOrder creates a Pending order from its lines.
func NewOrder(
	customerID uuid.UUID,
	shipping ShippingInfo,
	paymentMethod PaymentMethod,
	note string,
	lines []OrderLine,
) (*Order, error) {
	var verrs errors.ValidationErrors
	if customerID == uuid.Nil {
		verrs.Add("customer_id", "buyer is required")
	}
	if !paymentMethod.IsValid() {
		verrs.Add("payment_method", fmt.Sprintf("unsupported payment method %q", paymentMethod))
	}
	if len(lines) == 0 {
		verrs.Add("items", "order must contain at least one item")
	}
	for i, l := range lines {
		if l.Quantity <= 0 {
			verrs.Add(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		if l.Price.IsNegative() {
			verrs.Add(fmt.Sprintf("items[%d].price", i), "price cannot be negative")
		}
	}
	if verrs.HasErrors() {
		return nil, verrs
	}

	now := time.Now().UTC()
	order := &Order{
		id:            uuid.New(),
		customerID:    customerID,
		shipping:      shipping,
		paymentMethod: paymentMethod,
		status:        OrderStatusPending,
		note:          strings.TrimSpace(note),
		details:       make([]OrderDetail, 0, len(lines)),
		Audit:         newAudit(now),
	}

	total := valueobjects.Zero()
	for _, l := range lines {
		lineTotal := l.Price.MultiplyInt(l.Quantity)
		order.details = append(order.details, OrderDetail{
			id:         uuid.New(),
			orderID:    order.id,
			matchID:    l.MatchID,
			factoryID:  l.FactoryID,
			quantity:   l.Quantity,
			price:      l.Price,
			discount:   valueobjects.Zero(),
			totalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	order.totalPrice = total

	return order, nil
}

// ReconstructOrder rebuilds an Order from storage.
func ReconstructOrder(
	id, customerID uuid.UUID,
	shipping ShippingInfo,
	totalPrice valueobjects.Money,
	paymentMethod PaymentMethod,
	status OrderStatus,
	note string,
	details []OrderDetail,
	audit Audit,
) *Order {
	return &Order{
		id:            id,
		customerID:    customerID,
		shipping:      shipping,
		totalPrice:    totalPrice,
		paymentMethod: paymentMethod,
		status:        status,
		note:          note,
		details:       details,
		Audit:         audit,
	}
}

func (o *Order) ID() uuid.UUID                       { return o.id }
func (o *Order) CustomerID() uuid.UUID               { return o.customerID }
func (o *Order) Shipping() ShippingInfo              { return o.shipping }
func (o *Order) TotalPrice() valueobjects.Money      { return o.totalPrice }
func (o *Order) PaymentMethod() PaymentMethod        { return o.paymentMethod }
func (o *Order) Status() OrderStatus                 { return o.status }
func (o *Order) Note() string                        { return o.note }
func (o *Order) IsPending() bool                     { return o.status == OrderStatusPending }
func (o *Order) BelongsTo(customerID uuid.UUID) bool { return o.customerID == customerID }

// Details returns a copy of the line items.
func (o *Order) Details() []OrderDetail {
	out := make([]OrderDetail, len(o.details))
	copy(out, o.details)
	return out
}

// TotalsBySeller sums line totals per factory.
func (o *Order) TotalsBySeller() map[uuid.UUID]valueobjects.Money {
	totals := make(map[uuid.UUID]valueobjects.Money)
	for _, d := range o.details {
		totals[d.factoryID] = totals[d.factoryID].Add(d.totalPrice)
	}
	return totals
}

// SellerIDs returns the distinct factory ids in a stable order.
func (o *Order) SellerIDs() []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(o.details))
	for _, d := range o.details {
		if !seen[d.factoryID] {
			seen[d.factoryID] = true
			ids = append(ids, d.factoryID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// HasSeller reports whether any line item belongs to factoryID.
func (o *Order) HasSeller(factoryID uuid.UUID) bool {
	for _, d := range o.details {
		if d.factoryID == factoryID {
			return true
		}
	}
	return false
}

// TransitionTo moves the order to status if the transition table allows it.
func (o *Order) TransitionTo(status OrderStatus) error {
	if err := CanTransition(o.status, status); err != nil {
		return err
	}
	if o.status == status {
		return nil
	}
	o.status = status
	o.touch()
	return nil
}

// Cancel moves a cancellable order to Cancelled and appends the reason to the note.
func (o *Order) Cancel(reason string) error {
	if !o.status.IsCancellable() {
		return errors.InvalidState(errors.CodeNotCancellable,
			fmt.Sprintf("order %s in status %s cannot be cancelled", o.id, o.status))
	}
	if err := o.TransitionTo(OrderStatusCancelled); err != nil {
		return err
	}
	o.AppendNote(reason)
	return nil
}

// AppendNote adds a fragment to the note, pipe-delimited.
func (o *Order) AppendNote(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	if o.note == "" {
		o.note = fragment
	} else {
		o.note = o.note + noteSeparator + fragment
	}
	o.touch()
}
