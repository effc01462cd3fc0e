// Package export writes cleanup candidates to local files when a
// CleanupPolicy's method is "export", in json, mbox, or csv format. Only
// the metadata this service actually stores
// is written (no full RFC822 bodies are retained anywhere, matching the
// service's no-full-message-bodies boundary) — mbox entries carry a
// synthetic header block plus the stored snippet, not a full original
// message.
package export

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"inboxguard/internal/domain"
)

// Writer writes a batch of messages to one file under root/user_<user_id>
// and returns its metadata. root is the archive root.
type Writer struct {
	root string
}

func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Write serializes messages into one file named by format and now, creating
// root/user_<user_id> if necessary, and returns a FileMetadata row ready to
// persist via storage.FileDAO.
func (w *Writer) Write(ctx context.Context, userID string, format domain.ExportFormat, messages []*domain.MessageIndex, now time.Time) (*domain.FileMetadata, error) {
	dir := filepath.Join(w.root, "user_"+userID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create export root: %w", err)
	}

	var buf bytes.Buffer
	var ext string
	switch format {
	case domain.ExportFormatJSON:
		if err := writeJSON(&buf, messages); err != nil {
			return nil, err
		}
		ext = "json"
	case domain.ExportFormatMbox:
		writeMbox(&buf, messages)
		ext = "mbox"
	case domain.ExportFormatCSV:
		if err := writeCSV(&buf, messages); err != nil {
			return nil, err
		}
		ext = "csv"
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}

	name := fmt.Sprintf("export_%s_%d.%s", userID, now.UnixNano(), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return nil, fmt.Errorf("write export file: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return &domain.FileMetadata{
		FilePath:         path,
		OriginalFilename: name,
		FileType:         ext,
		SizeBytes:        int64(buf.Len()),
		SHA256:           hex.EncodeToString(sum[:]),
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func writeJSON(buf *bytes.Buffer, messages []*domain.MessageIndex) error {
	enc := json.NewEncoder(buf)
	enc.SetIndent("", "  ")
	return enc.Encode(messages)
}

func writeMbox(buf *bytes.Buffer, messages []*domain.MessageIndex) {
	for _, m := range messages {
		fmt.Fprintf(buf, "From inboxguard %s\n", m.Date.Format("Mon Jan 2 15:04:05 2006"))
		fmt.Fprintf(buf, "Message-ID: <%s>\n", m.MessageID)
		fmt.Fprintf(buf, "From: %s\n", m.Sender)
		fmt.Fprintf(buf, "Subject: %s\n", m.Subject)
		fmt.Fprintf(buf, "Date: %s\n", m.Date.Format(time.RFC1123Z))
		fmt.Fprintf(buf, "X-InboxGuard-Thread-Id: %s\n", m.ThreadID)
		fmt.Fprintf(buf, "X-InboxGuard-Labels: %s\n\n", joinLabels(m.Labels))
		buf.WriteString(m.Snippet)
		buf.WriteString("\n\n")
	}
}

func writeCSV(buf *bytes.Buffer, messages []*domain.MessageIndex) error {
	w := csv.NewWriter(buf)
	if err := w.Write([]string{"message_id", "thread_id", "sender", "subject", "date", "size_bytes", "labels"}); err != nil {
		return err
	}
	for _, m := range messages {
		row := []string{
			m.MessageID,
			m.ThreadID,
			m.Sender,
			m.Subject,
			m.Date.Format(time.RFC3339),
			strconv.FormatInt(m.SizeBytes, 10),
			joinLabels(m.Labels),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func joinLabels(labels []string) string {
	var buf bytes.Buffer
	for i, l := range labels {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(l)
	}
	return buf.String()
}
