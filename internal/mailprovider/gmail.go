package mailprovider

import (
	"context"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	gmailoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"inboxguard/config"
	"inboxguard/pkg/apperr"
	"inboxguard/pkg/logger"
)

const trashLabel = "TRASH"

// GmailOAuthConfig builds the oauth2.Config a caller exchanges codes and
// refreshes tokens against. It is exposed as a function rather than held on
// GmailProvider because the OAuth dance (auth URL, code exchange) belongs to
// internal/userplane, not to the message-metadata adapter.
func GmailOAuthConfig(cfg *config.Config, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			gmail.GmailModifyScope,
			gmail.GmailLabelsScope,
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: gmailoauth.Endpoint,
	}
}

// GmailProvider implements Provider against the real Gmail API, wrapped in
// a circuit breaker so a struggling Gmail backend degrades the service
// (fast TRANSIENT errors) instead of letting every caller hang on the same
// failing dependency.
type GmailProvider struct {
	oauthConfig  *oauth2.Config
	callTimeout  time.Duration
	batchTimeout time.Duration
	cb           *gobreaker.CircuitBreaker
}

// NewGmailProvider builds a GmailProvider. oauthConfig is used only to
// construct per-call authenticated HTTP clients from a caller's token; it
// does not perform the OAuth exchange itself.
func NewGmailProvider(cfg *config.Config, oauthConfig *oauth2.Config) *GmailProvider {
	settings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 || (counts.Requests >= 10 && failureRatio >= 0.6)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			_, clientErr := err.(*nonCircuitError)
			return clientErr
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker %s: %s -> %s", name, from.String(), to.String())
		},
	}
	return &GmailProvider{
		oauthConfig:  oauthConfig,
		callTimeout:  cfg.ProviderCallTimeout,
		batchTimeout: cfg.ProviderBatchTimeout,
		cb:           gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *GmailProvider) service(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	client := p.oauthConfig.Client(ctx, token)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeExternalError, "create gmail service")
	}
	return svc, nil
}

// nonCircuitError wraps a client-side error (bad request, auth, not found)
// so executeWithCircuitBreaker can let it escape without counting it as a
// breaker failure; a caller's bad message id should never contribute to
// tripping the breaker for every other caller.
type nonCircuitError struct{ err error }

func (e *nonCircuitError) Error() string { return e.err.Error() }
func (e *nonCircuitError) Unwrap() error { return e.err }

func (p *GmailProvider) executeWithCircuitBreaker(operation string, fn func() error) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	var nce *nonCircuitError
	if e, ok := err.(*nonCircuitError); ok {
		nce = e
	}
	if nce != nil {
		return p.wrapError(operation, nce.err)
	}
	if err != nil {
		return p.wrapError(operation, err)
	}
	return nil
}

// wrapError maps a raw Gmail/gobreaker error onto the application's error
// taxonomy so callers outside this package never branch on *googleapi.Error
// or gobreaker.ErrOpenState directly.
func (p *GmailProvider) wrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperr.Transient("gmail", err).WithDetail("operation", operation)
	}
	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return apperr.TokenExpired()
		case 403:
			return apperr.Forbidden(operation + ": access denied")
		case 404:
			return apperr.NotFound(operation)
		case 429:
			return apperr.Transient("gmail", err).WithDetail("operation", operation)
		case 500, 502, 503:
			return apperr.Transient("gmail", err).WithDetail("operation", operation)
		}
	}
	return apperr.ExternalError("gmail", err).WithDetail("operation", operation)
}

func (p *GmailProvider) GetMessage(ctx context.Context, token *oauth2.Token, externalID string) (*Message, error) {
	svc, err := p.service(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	var msg *gmail.Message
	err = p.executeWithCircuitBreaker("get message", func() error {
		var apiErr error
		msg, apiErr = svc.Users.Messages.Get("me", externalID).Format("metadata").
			MetadataHeaders("Subject", "From", "To").Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, err
	}
	return convertMessage(msg), nil
}

func (p *GmailProvider) ListMessages(ctx context.Context, token *oauth2.Token, opts ListOptions) (*ListResult, error) {
	svc, err := p.service(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.batchTimeout)
	defer cancel()

	req := svc.Users.Messages.List("me")
	q := opts.Query
	for _, l := range opts.Labels {
		req = req.LabelIds(l)
	}
	if q != "" {
		req = req.Q(q)
	}
	if opts.PageToken != "" {
		req = req.PageToken(opts.PageToken)
	}
	if opts.MaxResults > 0 {
		req = req.MaxResults(int64(opts.MaxResults))
	}

	var resp *gmail.ListMessagesResponse
	err = p.executeWithCircuitBreaker("list messages", func() error {
		var apiErr error
		resp, apiErr = req.Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return &ListResult{Messages: []Message{}}, nil
	}

	// Bounded-concurrency parallel fetch: metadata-only fetches are cheap
	// individually but Gmail's List endpoint returns only ids, so filling
	// in subject/from/size/labels costs one Get per message.
	const maxConcurrency = 5
	type fetched struct {
		index int
		msg   *Message
	}
	results := make(chan fetched, len(resp.Messages))
	sem := make(chan struct{}, maxConcurrency)

	for i, m := range resp.Messages {
		go func(idx int, id string) {
			sem <- struct{}{}
			defer func() { <-sem }()
			msg, err := p.GetMessage(ctx, token, id)
			if err != nil {
				results <- fetched{index: idx, msg: nil}
				return
			}
			results <- fetched{index: idx, msg: msg}
		}(i, m.Id)
	}

	ordered := make([]*Message, len(resp.Messages))
	for range resp.Messages {
		select {
		case r := <-results:
			ordered[r.index] = r.msg
		case <-ctx.Done():
			return nil, apperr.Timeout("list messages")
		}
	}

	messages := make([]Message, 0, len(ordered))
	for _, m := range ordered {
		if m != nil {
			messages = append(messages, *m)
		}
	}
	return &ListResult{Messages: messages, NextPageToken: resp.NextPageToken}, nil
}

func (p *GmailProvider) Modify(ctx context.Context, token *oauth2.Token, req ModifyRequest) error {
	svc, err := p.service(ctx, token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	return p.executeWithCircuitBreaker("modify message", func() error {
		_, apiErr := svc.Users.Messages.Modify("me", req.MessageID, &gmail.ModifyMessageRequest{
			AddLabelIds:    req.AddLabels,
			RemoveLabelIds: req.RemoveLabels,
		}).Context(ctx).Do()
		return apiErr
	})
}

func (p *GmailProvider) BatchModify(ctx context.Context, token *oauth2.Token, req BatchModifyRequest) error {
	svc, err := p.service(ctx, token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.batchTimeout)
	defer cancel()

	return p.executeWithCircuitBreaker("batch modify messages", func() error {
		return svc.Users.Messages.BatchModify("me", &gmail.BatchModifyMessagesRequest{
			Ids:            req.MessageIDs,
			AddLabelIds:    req.AddLabels,
			RemoveLabelIds: req.RemoveLabels,
		}).Context(ctx).Do()
	})
}

func (p *GmailProvider) Delete(ctx context.Context, token *oauth2.Token, externalID string) error {
	svc, err := p.service(ctx, token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	return p.executeWithCircuitBreaker("delete message", func() error {
		return svc.Users.Messages.Delete("me", externalID).Context(ctx).Do()
	})
}

// PurgeTrash permanently deletes every message currently labeled TRASH.
// Gmail's API has no single "empty trash" call, so this lists the TRASH
// label and issues one BatchDelete per page; an empty trash is a
// successful no-op rather than an error, matching the idempotency contract
// the archive/delete operation requires of it.
func (p *GmailProvider) PurgeTrash(ctx context.Context, token *oauth2.Token) (int, error) {
	svc, err := p.service(ctx, token)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.batchTimeout)
	defer cancel()

	purged := 0
	pageToken := ""
	for {
		var resp *gmail.ListMessagesResponse
		listErr := p.executeWithCircuitBreaker("list trash", func() error {
			req := svc.Users.Messages.List("me").LabelIds(trashLabel).MaxResults(500)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			var apiErr error
			resp, apiErr = req.Context(ctx).Do()
			return apiErr
		})
		if listErr != nil {
			return purged, listErr
		}
		if len(resp.Messages) == 0 {
			break
		}

		ids := make([]string, len(resp.Messages))
		for i, m := range resp.Messages {
			ids[i] = m.Id
		}
		delErr := p.executeWithCircuitBreaker("batch delete trash", func() error {
			return svc.Users.Messages.BatchDelete("me", &gmail.BatchDeleteMessagesRequest{Ids: ids}).Context(ctx).Do()
		})
		if delErr != nil {
			return purged, delErr
		}
		purged += len(ids)

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return purged, nil
}

func (p *GmailProvider) ListLabels(ctx context.Context, token *oauth2.Token) ([]Label, error) {
	svc, err := p.service(ctx, token)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	var resp *gmail.ListLabelsResponse
	err = p.executeWithCircuitBreaker("list labels", func() error {
		var apiErr error
		resp, apiErr = svc.Users.Labels.List("me").Context(ctx).Do()
		return apiErr
	})
	if err != nil {
		return nil, err
	}

	labels := make([]Label, len(resp.Labels))
	for i, l := range resp.Labels {
		total, unread := int64(0), int64(0)
		if l.MessagesTotal > 0 {
			total = l.MessagesTotal
		}
		if l.MessagesUnread > 0 {
			unread = l.MessagesUnread
		}
		labels[i] = Label{ID: l.Id, Name: l.Name, Type: l.Type, MessagesTotal: total, MessagesUnread: unread}
	}
	return labels, nil
}

// convertMessage flattens a *gmail.Message into the metadata-only Message
// shape the rest of the service works with.
func convertMessage(msg *gmail.Message) *Message {
	m := &Message{
		ExternalID: msg.Id,
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		SizeBytes:  msg.SizeEstimate,
		Labels:     msg.LabelIds,
		Date:       time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				m.Subject = h.Value
			case "From":
				m.From = parseAddress(h.Value)
			case "To":
				m.To = parseAddressList(h.Value)
			}
		}
		m.HasAttachment = hasAttachment(msg.Payload)
	}
	return m
}

func hasAttachment(part *gmail.MessagePart) bool {
	if part == nil {
		return false
	}
	if part.Filename != "" && part.Body != nil && part.Body.AttachmentId != "" {
		return true
	}
	for _, p := range part.Parts {
		if hasAttachment(p) {
			return true
		}
	}
	return false
}

func parseAddressList(value string) []Address {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]Address, 0, len(parts))
	for _, p := range parts {
		out = append(out, parseAddress(p))
	}
	return out
}

// parseAddress splits a "Display Name <addr@host>" header value. Gmail
// headers are not always well-formed RFC 5322, so this is deliberately
// tolerant rather than using net/mail.ParseAddress, which rejects anything
// slightly off-spec.
func parseAddress(value string) Address {
	value = strings.TrimSpace(value)
	if value == "" {
		return Address{}
	}
	if i := strings.LastIndex(value, "<"); i >= 0 && strings.HasSuffix(value, ">") {
		name := strings.Trim(strings.TrimSpace(value[:i]), `"`)
		email := value[i+1 : len(value)-1]
		return Address{Name: name, Email: email}
	}
	return Address{Email: value}
}

var _ Provider = (*GmailProvider)(nil)
