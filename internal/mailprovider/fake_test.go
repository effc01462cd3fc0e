package mailprovider

import (
	"context"
	"testing"

	"golang.org/x/oauth2"
)

func TestFakeProviderBatchModifyAndPurgeTrash(t *testing.T) {
	ctx := context.Background()
	token := &oauth2.Token{AccessToken: "fake"}
	p := NewFakeProvider()

	p.Put(Message{ExternalID: "m1", Subject: "hello", Labels: []string{"INBOX"}})
	p.Put(Message{ExternalID: "m2", Subject: "world", Labels: []string{"INBOX"}})

	if err := p.BatchModify(ctx, token, BatchModifyRequest{
		MessageIDs:   []string{"m1", "m2"},
		AddLabels:    []string{trashLabel},
		RemoveLabels: []string{"INBOX"},
	}); err != nil {
		t.Fatalf("BatchModify: %v", err)
	}

	msg, err := p.GetMessage(ctx, token, "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if !containsLabel(msg.Labels, trashLabel) {
		t.Errorf("expected m1 labeled %s, got %v", trashLabel, msg.Labels)
	}
	if containsLabel(msg.Labels, "INBOX") {
		t.Errorf("expected INBOX removed from m1, got %v", msg.Labels)
	}

	purged, err := p.PurgeTrash(ctx, token)
	if err != nil {
		t.Fatalf("PurgeTrash: %v", err)
	}
	if purged != 2 {
		t.Errorf("expected 2 purged, got %d", purged)
	}

	if _, err := p.GetMessage(ctx, token, "m1"); err == nil {
		t.Error("expected m1 to be gone after purge")
	}

	// Purging again is a successful no-op.
	purged, err = p.PurgeTrash(ctx, token)
	if err != nil {
		t.Fatalf("second PurgeTrash: %v", err)
	}
	if purged != 0 {
		t.Errorf("expected 0 purged on empty trash, got %d", purged)
	}
}

func TestFakeProviderListMessagesFiltersByLabel(t *testing.T) {
	ctx := context.Background()
	token := &oauth2.Token{AccessToken: "fake"}
	p := NewFakeProvider()

	p.Put(Message{ExternalID: "m1", Labels: []string{"INBOX", "PROMOTIONS"}})
	p.Put(Message{ExternalID: "m2", Labels: []string{"INBOX"}})

	result, err := p.ListMessages(ctx, token, ListOptions{Labels: []string{"PROMOTIONS"}})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].ExternalID != "m1" {
		t.Errorf("expected only m1, got %+v", result.Messages)
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  Address
	}{
		{"plain", "a@example.com", Address{Email: "a@example.com"}},
		{"named", `"A B" <a@example.com>`, Address{Name: "A B", Email: "a@example.com"}},
		{"unquoted name", "A B <a@example.com>", Address{Name: "A B", Email: "a@example.com"}},
		{"empty", "", Address{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseAddress(tt.value)
			if got != tt.want {
				t.Errorf("parseAddress(%q) = %+v, want %+v", tt.value, got, tt.want)
			}
		})
	}
}

func containsLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
