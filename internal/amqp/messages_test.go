package amqp

import (
	"testing"
	"time"
)

func TestLedgerEventCodec(t *testing.T) {
	ev := NewLedgerEvent(EventTransactionCreated, 7)
	ev.TransactionID = 42

	body, err := ev.ToJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := LedgerEventFromJSON(body)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != EventTransactionCreated || got.UserID != 7 || got.TransactionID != 42 {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Timestamp.IsZero() {
		t.Fatal("expected timestamp to survive the round trip")
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Fatalf("timestamp too old: %v", got.Timestamp)
	}
}

func TestLedgerEventFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventFromJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}
