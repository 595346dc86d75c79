package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		orderRef := uuid.New()

		beforeCreation := time.Now().UTC()
		p, err := New(orderRef, 10000, "0712345678", "+254798765432", "ws_CO_123")
		afterCreation := time.Now().UTC()

		require.NoError(t, err)
		require.NotNil(t, p)

		assert.NotEqual(t, uuid.Nil, p.ID, "Payment ID should not be nil")
		assert.Equal(t, orderRef, p.OrderRef)
		assert.Equal(t, int64(10000), p.Amount)
		assert.Equal(t, "+254712345678", p.BuyerPhone, "buyer phone should be normalized")
		assert.Equal(t, "+254798765432", p.ArtisanPhone)
		assert.Equal(t, "ws_CO_123", p.OutboundRef)
		assert.Equal(t, StatePending, p.State)
		assert.Nil(t, p.HeldAt)
		assert.Nil(t, p.ReleasedAt)
		assert.Nil(t, p.RefundedAt)
		assert.WithinDuration(t, beforeCreation, p.InitiatedAt, afterCreation.Sub(beforeCreation)+time.Millisecond)
	})

	t.Run("RejectsNonPositiveAmount", func(t *testing.T) {
		_, err := New(uuid.New(), 0, "0712345678", "0798765432", "ws_CO_123")
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, err = New(uuid.New(), -100, "0712345678", "0798765432", "ws_CO_123")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("RejectsEmptyOutboundRef", func(t *testing.T) {
		_, err := New(uuid.New(), 10000, "0712345678", "0798765432", "")
		assert.ErrorIs(t, err, ErrEmptyOutboundRef)
	})

	t.Run("RejectsBadPhone", func(t *testing.T) {
		_, err := New(uuid.New(), 10000, "12345", "0798765432", "ws_CO_123")
		assert.ErrorIs(t, err, ErrInvalidPhone)
	})
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateHeld.Terminal())
	assert.False(t, StateReleasing.Terminal())
	assert.True(t, StateReleased.Terminal())
	assert.True(t, StateRefunded.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestNormalizePhone(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"LocalFormat", "0712345678", "+254712345678", false},
		{"InternationalNoPlus", "254712345678", "+254712345678", false},
		{"InternationalWithPlus", "+254712345678", "+254712345678", false},
		{"SpacesAndDashes", "0712 345-678", "+254712345678", false},
		{"TooShort", "07123", "", true},
		{"Letters", "07123456ab", "", true},
		{"WrongCountryCode", "255712345678", "", true},
		{"Empty", "", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizePhone(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseAmount(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected int64
		wantErr  bool
	}{
		{"WholeUnits", "100", 10000, false},
		{"TwoDecimals", "100.00", 10000, false},
		{"OneDecimal", "100.5", 10050, false},
		{"Cents", "0.75", 75, false},
		{"Zero", "0", 0, true},
		{"ZeroWithDecimals", "0.00", 0, true},
		{"Negative", "-10", 0, true},
		{"TooManyDecimals", "10.001", 0, true},
		{"TrailingDot", "10.", 0, true},
		{"NotANumber", "ten", 0, true},
		{"Empty", "", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmountFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "100.00", FormatAmount(10000))
	assert.Equal(t, "100.50", FormatAmount(10050))
	assert.Equal(t, "0.05", FormatAmount(5))
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, int64(100), MajorUnits(10000))
	assert.Equal(t, int64(100), MajorUnits(10099))
}
