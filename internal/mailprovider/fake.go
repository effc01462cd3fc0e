package mailprovider

import (
	"context"
	"sync"

	"golang.org/x/oauth2"

	"inboxguard/pkg/apperr"
)

// FakeProvider is an in-memory Provider used across the cleanup/executor
// test suite, standing in for a real Gmail account so tests never make
// network calls. It is intentionally simple: no circuit breaker, no
// pagination, no concurrency — those are concerns of GmailProvider, not of
// the contract Provider exposes to its callers.
type FakeProvider struct {
	mu       sync.Mutex
	messages map[string]*Message
	labels   []Label

	// trashed holds ids moved to trash by BatchModify, consumed by
	// PurgeTrash.
	trashed map[string]bool

	// Calls records every method invocation in order, for tests that assert
	// on call sequencing (e.g. dry-run never reaching a mutating call).
	Calls []string

	// FailBatchModifyTimes, when > 0, makes BatchModify return
	// FailBatchModifyErr instead of mutating state, decrementing by one per
	// call — used to exercise the executor's chunk-level retry loop against
	// a transient error that clears up after N attempts.
	FailBatchModifyTimes int
	FailBatchModifyErr   error
}

// NewFakeProvider builds an empty FakeProvider. Seed with Put before use.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{
		messages: make(map[string]*Message),
		trashed:  make(map[string]bool),
	}
}

// Put seeds or replaces a message by ExternalID.
func (f *FakeProvider) Put(m Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := m
	f.messages[m.ExternalID] = &cp
}

// SetLabels seeds the label list ListLabels returns.
func (f *FakeProvider) SetLabels(labels []Label) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = labels
}

func (f *FakeProvider) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeProvider) GetMessage(_ context.Context, _ *oauth2.Token, externalID string) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetMessage:" + externalID)
	m, ok := f.messages[externalID]
	if !ok {
		return nil, apperr.NotFound("message")
	}
	cp := *m
	return &cp, nil
}

func (f *FakeProvider) ListMessages(_ context.Context, _ *oauth2.Token, opts ListOptions) (*ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListMessages")

	out := make([]Message, 0, len(f.messages))
	for _, m := range f.messages {
		if !matchesLabels(m, opts.Labels) {
			continue
		}
		out = append(out, *m)
	}
	if opts.MaxResults > 0 && len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return &ListResult{Messages: out}, nil
}

func matchesLabels(m *Message, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		found := false
		for _, l := range m.Labels {
			if l == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *FakeProvider) Modify(_ context.Context, _ *oauth2.Token, req ModifyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Modify:" + req.MessageID)
	m, ok := f.messages[req.MessageID]
	if !ok {
		return apperr.NotFound("message")
	}
	m.Labels = applyLabelDelta(m.Labels, req.AddLabels, req.RemoveLabels)
	return nil
}

func (f *FakeProvider) BatchModify(_ context.Context, _ *oauth2.Token, req BatchModifyRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BatchModify")
	if f.FailBatchModifyTimes > 0 {
		f.FailBatchModifyTimes--
		return f.FailBatchModifyErr
	}
	for _, id := range req.MessageIDs {
		m, ok := f.messages[id]
		if !ok {
			continue
		}
		m.Labels = applyLabelDelta(m.Labels, req.AddLabels, req.RemoveLabels)
		for _, l := range req.AddLabels {
			if l == trashLabel {
				f.trashed[id] = true
			}
		}
	}
	return nil
}

func (f *FakeProvider) Delete(_ context.Context, _ *oauth2.Token, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete:" + externalID)
	if _, ok := f.messages[externalID]; !ok {
		return apperr.NotFound("message")
	}
	delete(f.messages, externalID)
	delete(f.trashed, externalID)
	return nil
}

func (f *FakeProvider) PurgeTrash(_ context.Context, _ *oauth2.Token) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PurgeTrash")
	purged := 0
	for id := range f.trashed {
		delete(f.messages, id)
		delete(f.trashed, id)
		purged++
	}
	return purged, nil
}

func (f *FakeProvider) ListLabels(_ context.Context, _ *oauth2.Token) ([]Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListLabels")
	return append([]Label(nil), f.labels...), nil
}

func applyLabelDelta(current []string, add, remove []string) []string {
	set := make(map[string]bool, len(current))
	for _, l := range current {
		set[l] = true
	}
	for _, l := range remove {
		delete(set, l)
	}
	for _, l := range add {
		set[l] = true
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	return out
}

var _ Provider = (*FakeProvider)(nil)
