package payment

import (
	"encoding/json"
	"testing"
)

func TestFlexID_NumberAndString(t *testing.T) {
	var note WebhookNotification
	if err := json.Unmarshal([]byte(`{"payment_id":555}`), &note); err != nil {
		t.Fatalf("unexpected error for numeric id: %v", err)
	}
	if note.PaymentID.String() != "555" {
		t.Fatalf("expected 555, got %q", note.PaymentID)
	}

	if err := json.Unmarshal([]byte(`{"payment_id":"pay_abc"}`), &note); err != nil {
		t.Fatalf("unexpected error for string id: %v", err)
	}
	if note.PaymentID.String() != "pay_abc" {
		t.Fatalf("expected pay_abc, got %q", note.PaymentID)
	}
}

func TestToCents(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{in: 0, want: 0},
		{in: 100.00, want: 10000},
		{in: 0.01, want: 1},
		{in: 19.99, want: 1999},
		// Binary float representation must not drop a cent.
		{in: 29.07, want: 2907},
	}
	for _, tt := range tests {
		if got := ToCents(tt.in); got != tt.want {
			t.Fatalf("ToCents(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(8000); got != "80.00" {
		t.Fatalf("FormatCents(8000) = %q", got)
	}
	if got := FormatCents(1); got != "0.01" {
		t.Fatalf("FormatCents(1) = %q", got)
	}
}
