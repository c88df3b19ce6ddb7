package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsStarted(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{"started", true},
		{"STARTED", true},
		{"  Started ", true},
		{"\tstarted\n", true},
		{"unfulfilled", false},
		{"", false},
		{"start", false},
		{"started later", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStarted(tt.status))
		})
	}
}

func TestOrderRecord_UnmarshalJSON(t *testing.T) {
	t.Run("reads order number and status", func(t *testing.T) {
		var r OrderRecord
		raw := `{"orderNumber":"SO-1001","inventoryStatus":" Started ","lines":[{"qty":2}]}`
		require.NoError(t, json.Unmarshal([]byte(raw), &r))

		assert.Equal(t, "SO-1001", r.OrderNumber)
		assert.Equal(t, " Started ", r.InventoryStatus)
		assert.JSONEq(t, raw, string(r.Payload))
		assert.True(t, r.IsStarted())
	})

	t.Run("missing status does not match", func(t *testing.T) {
		var r OrderRecord
		require.NoError(t, json.Unmarshal([]byte(`{"orderNumber":"SO-1"}`), &r))

		assert.Empty(t, r.InventoryStatus)
		assert.False(t, r.IsStarted())
	})

	t.Run("null status does not match", func(t *testing.T) {
		var r OrderRecord
		require.NoError(t, json.Unmarshal([]byte(`{"orderNumber":"SO-1","inventoryStatus":null}`), &r))

		assert.False(t, r.IsStarted())
	})

	t.Run("non-string scalars keep literal form", func(t *testing.T) {
		var r OrderRecord
		require.NoError(t, json.Unmarshal([]byte(`{"orderNumber":42,"inventoryStatus":true}`), &r))

		assert.Equal(t, "42", r.OrderNumber)
		assert.Equal(t, "true", r.InventoryStatus)
	})

	t.Run("rejects non-object", func(t *testing.T) {
		var r OrderRecord
		err := json.Unmarshal([]byte(`"SO-1"`), &r)
		require.Error(t, err)
	})
}

func TestOrderRecord_MarshalJSON(t *testing.T) {
	r := OrderRecord{OrderNumber: "SO-1", InventoryStatus: "started"}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderNumber":"SO-1","inventoryStatus":"started"}`, string(data))
}

func TestSyncPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	tests := map[string]SyncPolicy{
		"zero page size":      {MaxPages: 3, PageSize: 0, TargetMatches: 1},
		"negative max pages":  {MaxPages: -1, PageSize: 10, TargetMatches: 1},
		"zero target matches": {MaxPages: 3, PageSize: 10, TargetMatches: 0},
	}
	for name, p := range tests {
		t.Run(name, func(t *testing.T) {
			err := p.Validate()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, CodeInvalidConfig, CodeOf(err))
		})
	}
}

func TestPageQuery_Validate(t *testing.T) {
	assert.NoError(t, NewPageQuery(100, 0).Validate())
	assert.ErrorIs(t, NewPageQuery(0, 0).Validate(), ErrInvalidQuery)
	assert.ErrorIs(t, NewPageQuery(10, -1).Validate(), ErrInvalidQuery)
}

func TestCodeOf(t *testing.T) {
	up := &UpstreamError{Op: "list sales orders", StatusCode: 503, ErrCode: CodeUpstream, Err: errors.New("unavailable")}
	assert.Equal(t, CodeUpstream, CodeOf(up))
	assert.Contains(t, up.Error(), "status 503")

	rec := &ReconciliationError{OrderNumber: "", Err: ErrEmptyOrderNumber}
	assert.Equal(t, CodeInvalidInput, CodeOf(rec))
	assert.ErrorIs(t, rec, ErrEmptyOrderNumber)

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestNewSyncResult(t *testing.T) {
	r := NewSyncResult("run-1", 140, 2, 3, 1, 1, 1, fixedTime, fixedTime)
	assert.Equal(t, "Synced 3 orders", r.Message)
	assert.Equal(t, 3, r.OrdersSynced)
	assert.Zero(t, r.Duration())
}

var fixedTime = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
