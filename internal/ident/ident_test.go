package ident

import (
	"encoding/json"
	"testing"
)

func TestNewUnique(t *testing.T) {
	seen := make(map[ID]bool)
	for i := 0; i < 1000; i++ {
		id := New()
		if id.IsZero() {
			t.Fatal("New returned zero id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestParse(t *testing.T) {
	id, err := Parse("abc123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if id.String() != "abc123" {
		t.Errorf("expected abc123, got %s", id)
	}
	if _, err := Parse("short"); err == nil {
		t.Error("expected error for 5-byte id")
	}
}

func TestJSON(t *testing.T) {
	id := New()
	data, err := json.Marshal(struct {
		Me ID `json:"me"`
	}{id})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back struct {
		Me ID `json:"me"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Me != id {
		t.Errorf("expected %s, got %s", id, back.Me)
	}
}
