package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MatchStatus is the normalized inventory status a record must carry to be synced.
const MatchStatus = "started"

// OrderRecord is a sales order as returned by inFlow. Payload holds the full
// upstream object and is stored as-is.
type OrderRecord struct {
	OrderNumber     string
	InventoryStatus string
	Payload         json.RawMessage
}

var errRecordNotObject = errors.New("order record is not a JSON object")

func (r *OrderRecord) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errRecordNotObject
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return err
	}

	r.OrderNumber = scalarString(fields["orderNumber"])
	r.InventoryStatus = scalarString(fields["inventoryStatus"])
	r.Payload = append(json.RawMessage(nil), trimmed...)
	return nil
}

func (r OrderRecord) MarshalJSON() ([]byte, error) {
	if len(r.Payload) > 0 {
		return r.Payload, nil
	}
	return json.Marshal(map[string]string{
		"orderNumber":     r.OrderNumber,
		"inventoryStatus": r.InventoryStatus,
	})
}

// scalarString renders a JSON scalar as text. Strings are unquoted, null and
// absent values become "", numbers and booleans keep their literal form.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
		return ""
	}
	if raw[0] == '{' || raw[0] == '[' {
		return ""
	}
	return string(raw)
}

// IsStarted reports whether an upstream inventory status counts as "started".
// The comparison ignores case and surrounding whitespace.
func IsStarted(inventoryStatus string) bool {
	return strings.ToLower(strings.TrimSpace(inventoryStatus)) == MatchStatus
}

func (r OrderRecord) IsStarted() bool {
	return IsStarted(r.InventoryStatus)
}

// LocalOrderRef identifies the local row a record was reconciled into.
type LocalOrderRef struct {
	ID            int64
	InflowOrderID string
	UpdatedAt     time.Time
}

type SyncStatus struct {
	LastSyncAt  *time.Time
	TotalOrders int64
	SyncEnabled bool
}
