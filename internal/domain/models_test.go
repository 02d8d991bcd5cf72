package domain

import "testing"

func TestMessageStatusValid(t *testing.T) {
	for _, s := range []MessageStatus{StatusPending, StatusDelivered, StatusFailed} {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	for _, s := range []MessageStatus{"", "PENDING", "sorta", "done"} {
		if s.Valid() {
			t.Fatalf("%q should be invalid", s)
		}
	}
}

func TestTableNames(t *testing.T) {
	if got := (Station{}).TableName(); got != "stations" {
		t.Fatalf("stations table = %q", got)
	}
	if got := (Message{}).TableName(); got != "messages" {
		t.Fatalf("messages table = %q", got)
	}
	if got := (Statistics{}).TableName(); got != "statistics" {
		t.Fatalf("statistics table = %q", got)
	}
	if got := (RelayDedupe{}).TableName(); got != "relay_dedupe" {
		t.Fatalf("dedupe table = %q", got)
	}
}
