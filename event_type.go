package valuation

import (
	"fmt"
	"strings"
)

// EventType identifies the kind of a portfolio event.
type EventType int

// Event types. The zero value is not a valid type.
const (
	EventTypeUnspecified EventType = iota
	EventTypeBuy
	EventTypeSell
	EventTypeDeliveryInbound
	EventTypeDeliveryOutbound
	EventTypeDividend
	EventTypeInterest
	EventTypeDepositCash
	EventTypeWithdrawCash
	EventTypeAccountFees
	EventTypeTaxRefund
)

var eventTypeNames = [...]string{
	EventTypeUnspecified:      "unspecified",
	EventTypeBuy:              "buy",
	EventTypeSell:             "sell",
	EventTypeDeliveryInbound:  "delivery-inbound",
	EventTypeDeliveryOutbound: "delivery-outbound",
	EventTypeDividend:         "dividend",
	EventTypeInterest:         "interest",
	EventTypeDepositCash:      "deposit-cash",
	EventTypeWithdrawCash:     "withdraw-cash",
	EventTypeAccountFees:      "account-fees",
	EventTypeTaxRefund:        "tax-refund",
}

// EventTypes lists every valid event type.
func EventTypes() []EventType {
	return []EventType{
		EventTypeBuy, EventTypeSell, EventTypeDeliveryInbound, EventTypeDeliveryOutbound,
		EventTypeDividend, EventTypeInterest, EventTypeDepositCash, EventTypeWithdrawCash,
		EventTypeAccountFees, EventTypeTaxRefund,
	}
}

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeNames) {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeNames[t]
}

// Valid reports whether t is one of the ten known event types.
func (t EventType) Valid() bool { return t > EventTypeUnspecified && int(t) < len(eventTypeNames) }

// Security reports whether events of this type must reference a security.
func (t EventType) Security() bool {
	switch t {
	case EventTypeBuy, EventTypeSell, EventTypeDeliveryInbound, EventTypeDeliveryOutbound, EventTypeDividend:
		return true
	}
	return false
}

// ParseEventType parses "buy", "BUY", "delivery_inbound" or
// "PORTFOLIO_EVENT_TYPE_DELIVERY_INBOUND".
func ParseEventType(s string) (EventType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "portfolio_event_type_")
	name = strings.ReplaceAll(name, "_", "-")
	for i, n := range eventTypeNames {
		if n == name && EventType(i).Valid() {
			return EventType(i), nil
		}
	}
	return EventTypeUnspecified, fmt.Errorf("unknown event type: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal %v", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(b []byte) error {
	v, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
