package store

import (
	"testing"
	"time"

	"github.com/BTreeMap/TextPipe/internal/models"
)

func TestSQLiteStore_MessageStore(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := []models.MessageEntry{
		{GatewayID: "g1", Sender: "+1", Recipient: "+9", Body: "oldest", Direction: models.DirectionReceived, Timestamp: base},
		{GatewayID: "g2", Sender: "+9", Recipient: "+1", Body: "reply", Direction: models.DirectionSent, Timestamp: base.Add(time.Minute), RawJSON: `{"id":"g2"}`},
		{GatewayID: "g3", Sender: "+2", Recipient: "+9", Body: "other", Direction: models.DirectionReceived, Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		id, err := s.AddMessage(e)
		if err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
		if id == 0 {
			t.Error("AddMessage returned zero id")
		}
	}

	got, err := s.GetMessages("+1", 10)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 messages for +1, got %d", len(got))
	}
	if got[0].Body != "reply" || got[1].Body != "oldest" {
		t.Errorf("Expected newest first, got %q then %q", got[0].Body, got[1].Body)
	}
	if got[0].RawJSON != `{"id":"g2"}` || got[1].RawJSON != "" {
		t.Errorf("raw json not round-tripped: %q / %q", got[0].RawJSON, got[1].RawJSON)
	}
	if !got[1].Timestamp.Equal(base) {
		t.Errorf("timestamp = %v, want %v", got[1].Timestamp, base)
	}

	all, _ := s.GetMessages("", 0)
	if len(all) != 3 || all[0].Body != "other" {
		t.Errorf("Expected all 3 newest first, got %+v", all)
	}

	limited, _ := s.GetMessages("", 1)
	if len(limited) != 1 {
		t.Errorf("Expected limit 1 to be honored, got %d", len(limited))
	}
}

func TestSQLiteStore_AddMessageDefaultsTimestamp(t *testing.T) {
	s := newTestSQLiteStore(t)
	before := time.Now().Add(-time.Second)

	if _, err := s.AddMessage(models.MessageEntry{Sender: "+1", Direction: models.DirectionSent}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	got, _ := s.GetMessages("+1", 1)
	if len(got) != 1 || got[0].Timestamp.Before(before) {
		t.Errorf("Expected timestamp to default to now, got %+v", got)
	}
}

func TestSQLiteStore_OrdersMixedTimezones(t *testing.T) {
	s := newTestSQLiteStore(t)
	plus5 := time.FixedZone("UTC+5", 5*60*60)

	// 10:00 at +05:00 is 05:00 UTC, an hour before the second entry even
	// though its wall clock reads later.
	early := time.Date(2024, 5, 1, 10, 0, 0, 0, plus5)
	late := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	if _, err := s.AddMessage(models.MessageEntry{Sender: "+1", Body: "late", Direction: models.DirectionReceived, Timestamp: late}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}
	if _, err := s.AddMessage(models.MessageEntry{Sender: "+1", Body: "early", Direction: models.DirectionReceived, Timestamp: early}); err != nil {
		t.Fatalf("AddMessage failed: %v", err)
	}

	got, err := s.GetMessages("+1", 10)
	if err != nil {
		t.Fatalf("GetMessages failed: %v", err)
	}
	if len(got) != 2 || got[0].Body != "late" || got[1].Body != "early" {
		t.Fatalf("Expected late before early, got %+v", got)
	}
	if !got[1].Timestamp.Equal(early) {
		t.Errorf("timestamp = %v, want instant %v", got[1].Timestamp, early)
	}
}

func TestSQLiteStore_GetConversation(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, e := range []models.MessageEntry{
		{Sender: "+1", Recipient: "+9", Body: "a-to-me"},
		{Sender: "+9", Recipient: "+1", Body: "me-to-a"},
		{Sender: "+2", Recipient: "+9", Body: "b-to-me"},
		{Sender: "+1", Recipient: "+2", Body: "a-to-b"},
		{Sender: "+1", Recipient: "+9", Body: "a-again"},
	} {
		e.Direction = models.DirectionReceived
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.AddMessage(e); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		a, b  string
		limit int
		want  []string
	}{
		{"both directions newest first", "+9", "+1", 0, []string{"a-again", "me-to-a", "a-to-me"}},
		{"argument order does not matter", "+1", "+9", 0, []string{"a-again", "me-to-a", "a-to-me"}},
		{"limit", "+9", "+1", 1, []string{"a-again"}},
		{"other pair", "+1", "+2", 0, []string{"a-to-b"}},
		{"no messages", "+1", "+3", 0, nil},
		{"empty side", "", "+1", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetConversation(tt.a, tt.b, tt.limit)
			if err != nil {
				t.Fatalf("GetConversation failed: %v", err)
			}
			if got == nil {
				t.Fatal("GetConversation returned nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, body := range tt.want {
				if got[i].Body != body {
					t.Errorf("entry %d = %q, want %q", i, got[i].Body, body)
				}
			}
		})
	}
}

func TestSQLiteStore_GetRecipients(t *testing.T) {
	s := newTestSQLiteStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, e := range []models.MessageEntry{
		{Sender: "+9", Recipient: "+1"},
		{Sender: "+2", Recipient: "+9"},
		{Sender: "+9", Recipient: "+3"},
		{Sender: "+1", Recipient: "+9"},
		{Sender: "", Recipient: "+4"},
		{Sender: "+5", Recipient: "+6"},
	} {
		e.Body = "x"
		e.Direction = models.DirectionReceived
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if _, err := s.AddMessage(e); err != nil {
			t.Fatalf("AddMessage failed: %v", err)
		}
	}

	got, err := s.GetRecipients("+9")
	if err != nil {
		t.Fatalf("GetRecipients failed: %v", err)
	}
	want := []string{"+1", "+3", "+2"}
	if len(got) != len(want) {
		t.Fatalf("GetRecipients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetRecipients[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Entries with an unknown sender have no counterpart to report.
	got, _ = s.GetRecipients("+4")
	if len(got) != 0 {
		t.Errorf("GetRecipients(+4) = %v, want empty", got)
	}
	got, _ = s.GetRecipients("")
	if got == nil || len(got) != 0 {
		t.Errorf("GetRecipients(\"\") = %v, want empty non-nil", got)
	}
}
