package analytics

import (
	"encoding/json"
	"strings"
	"time"
)

// Product is a catalogue entry as returned by the products collection.
type Product struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Category  *string   `json:"category"`
	CostPrice Number    `json:"costPrice"`
	Price     Number    `json:"price"`
	Quantity  Number    `json:"quantity"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Sale is a single sales line item. GrandTotal already includes the line quantity.
type Sale struct {
	ID          string    `json:"_id"`
	ProductID   string    `json:"productID"`
	ProductName string    `json:"productName"`
	ProductQty  Number    `json:"productQty"`
	GrandTotal  Number    `json:"grandTotal"`
	PaidAmount  Number    `json:"paidAmount"`
	Due         Number    `json:"due"`
	CreatedAt   Timestamp `json:"createdAt"`
}

// PreOrder is a customer reservation that may later be converted into a sale.
type PreOrder struct {
	CustomerName    string    `json:"customerName"`
	ProductName     string    `json:"productName"`
	ProductQTY      Number    `json:"productQTY"`
	TotalAmount     Number    `json:"totalAmount"`
	PaidAmount      Number    `json:"paidAmount"`
	DueAmount       Number    `json:"dueAmount"`
	ConvertedToSale bool      `json:"convertedToSale"`
	CreatedAt       Timestamp `json:"createdAt"`
}

// Dataset bundles the three collections of a single fetch generation.
// Reducers only ever receive collections from one Dataset.
type Dataset struct {
	Generation uint64     `json:"generation"`
	FetchedAt  time.Time  `json:"fetchedAt"`
	Products   []Product  `json:"products"`
	Sales      []Sale     `json:"sales"`
	PreOrders  []PreOrder `json:"preOrders"`
}

const civilLayout = "2006-01-02T15:04:05.999999999"

var timestampLayouts = []struct {
	layout string
	civil  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02T15:04:05.000", true},
	{"2006-01-02 15:04:05", true},
	// Date-only values are UTC midnight, the way browsers read them.
	{"2006-01-02", false},
}

// Timestamp is a tolerant date field. Malformed values decode as invalid
// rather than failing the whole payload. Civil marks a wall-clock value that
// carried no zone; its fields are read in the report location.
type Timestamp struct {
	Time  time.Time
	Valid bool
	Civil bool
}

// At builds a valid Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// ParseTimestamp parses the date formats seen from the upstream API.
func ParseTimestamp(raw string) Timestamp {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Timestamp{}
	}
	for _, l := range timestampLayouts {
		if t, err := time.Parse(l.layout, raw); err == nil {
			return Timestamp{Time: t, Valid: true, Civil: l.civil}
		}
	}
	return Timestamp{}
}

// UnmarshalJSON never fails.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = Timestamp{}
		return nil
	}
	*t = ParseTimestamp(raw)
	return nil
}

// MarshalJSON emits RFC3339, a zone-less datetime for civil values, or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	if t.Civil {
		return json.Marshal(t.Time.Format(civilLayout))
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// In resolves the timestamp in loc. Civil values keep their wall clock.
func (t Timestamp) In(loc *time.Location) time.Time {
	if t.Civil {
		y, m, d := t.Time.Date()
		hh, mm, ss := t.Time.Clock()
		return time.Date(y, m, d, hh, mm, ss, t.Time.Nanosecond(), loc)
	}
	return t.Time.In(loc)
}
