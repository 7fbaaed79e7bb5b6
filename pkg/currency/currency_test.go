// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateTable_IdentityConversion(t *testing.T) {
	table := NewRateTable()

	amount := decimal.NewFromInt(1000)
	got, err := table.Convert(context.Background(), amount, "NGN", "NGN")
	require.NoError(t, err)
	assert.True(t, got.Equal(amount))
}

func TestRateTable_CrossRate(t *testing.T) {
	table := NewRateTable()
	table.Set("USD", decimal.RequireFromString("0.001"))

	got, err := table.Convert(context.Background(), decimal.NewFromInt(250000), "NGN", "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(250)), "got %s", got)

	back, err := table.Convert(context.Background(), got, "USD", "NGN")
	require.NoError(t, err)
	assert.True(t, back.Equal(decimal.NewFromInt(250000)), "got %s", back)
}

func TestRateTable_UnknownCurrency(t *testing.T) {
	table := NewRateTable()

	_, err := table.Convert(context.Background(), decimal.NewFromInt(100), "NGN", "XXX")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "₦", Symbol("NGN"))
	assert.Equal(t, "$", Symbol("usd"))
	assert.Equal(t, "KES", Symbol("kes"))
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"500", "500"},
		{"1250", "1,250"},
		{"1250.49", "1,250"},
		{"1250.5", "1,251"},
		{"1000000", "1,000,000"},
		{"-1250", "-1,250"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(decimal.RequireFromString(tt.in)), "input %s", tt.in)
	}
}

func TestFormatWithSymbol(t *testing.T) {
	assert.Equal(t, "₦1,250", FormatWithSymbol(decimal.NewFromInt(1250), "NGN"))
}

func TestClient_Convert(t *testing.T) {
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/api/v1/convert", r.URL.Path)
		require.Equal("1000", r.URL.Query().Get("amount"))
		require.Equal("NGN", r.URL.Query().Get("from"))
		require.Equal("USD", r.URL.Query().Get("to"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"amount": "0.65", "from": "NGN", "to": "USD"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.Convert(context.Background(), decimal.NewFromInt(1000), "NGN", "USD")
	require.NoError(err)
	require.True(got.Equal(decimal.RequireFromString("0.65")))
}

func TestClient_ConvertIdentityShortCircuits(t *testing.T) {
	// No server: an identity conversion must not hit the network.
	client := NewClient("http://127.0.0.1:1")
	got, err := client.Convert(context.Background(), decimal.NewFromInt(42), "NGN", "NGN")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(42)))
}

func TestClient_ConvertServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unknown currency"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Convert(context.Background(), decimal.NewFromInt(1000), "NGN", "XXX")
	require.Error(t, err)
}
