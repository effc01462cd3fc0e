package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"inboxguard/internal/domain"
)

func sampleMessages() []*domain.MessageIndex {
	return []*domain.MessageIndex{
		{
			MessageID: "m1",
			ThreadID:  "t1",
			Sender:    "alice@example.com",
			Subject:   "Hello",
			Snippet:   "hi there",
			Date:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			SizeBytes: 1234,
			Labels:    []string{"INBOX", "IMPORTANT"},
		},
	}
}

func TestWriteJSONRoundTrips(t *testing.T) {
	w := NewWriter(t.TempDir())
	meta, err := w.Write(context.Background(), "alice", domain.ExportFormatJSON, sampleMessages(), time.Now())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if meta.FileType != "json" {
		t.Fatalf("FileType = %q, want json", meta.FileType)
	}

	data, err := os.ReadFile(meta.FilePath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []*domain.MessageIndex
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].MessageID != "m1" {
		t.Fatalf("unexpected decoded messages: %+v", got)
	}
}

func TestWriteMboxHasFromLinePerMessage(t *testing.T) {
	w := NewWriter(t.TempDir())
	meta, err := w.Write(context.Background(), "alice", domain.ExportFormatMbox, sampleMessages(), time.Now())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(meta.FilePath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "From inboxguard ") {
		t.Fatalf("expected an mbox From-line, got: %q", content)
	}
	if !strings.Contains(content, "Subject: Hello") {
		t.Fatalf("expected the subject header, got: %q", content)
	}
	if !strings.Contains(content, "hi there") {
		t.Fatalf("expected the snippet body, got: %q", content)
	}
}

func TestWriteCSVHasHeaderAndRow(t *testing.T) {
	w := NewWriter(t.TempDir())
	meta, err := w.Write(context.Background(), "alice", domain.ExportFormatCSV, sampleMessages(), time.Now())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(meta.FilePath)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("csv parse: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (header + one message)", len(rows))
	}
	if rows[1][0] != "m1" {
		t.Errorf("row[0] = %q, want m1", rows[1][0])
	}
}

func TestWriteRejectsUnknownFormat(t *testing.T) {
	w := NewWriter(t.TempDir())
	if _, err := w.Write(context.Background(), "alice", domain.ExportFormat("xml"), sampleMessages(), time.Now()); err == nil {
		t.Fatalf("expected an error for an unsupported export format")
	}
}

func TestChecksumIsDeterministicForSameContent(t *testing.T) {
	w := NewWriter(t.TempDir())
	now := time.Now()
	meta1, err := w.Write(context.Background(), "alice", domain.ExportFormatJSON, sampleMessages(), now)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	meta2, err := w.Write(context.Background(), "bob", domain.ExportFormatJSON, sampleMessages(), now)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if meta1.SHA256 != meta2.SHA256 {
		t.Errorf("expected identical content to hash identically regardless of owning user")
	}
}
