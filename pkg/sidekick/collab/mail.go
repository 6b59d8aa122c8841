package collab

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Email is a message summary as returned by ListEmails.
type Email struct {
	ID      string
	From    string
	Subject string
	Snippet string
}

// Mail is the mail collaborator.
type Mail interface {
	// ListEmails returns the most recent messages, optionally filtered by a
	// Gmail search query.
	ListEmails(ctx context.Context, maxResults int, query string) ([]Email, error)

	// SendEmail sends a plain-text message and returns its ID.
	SendEmail(ctx context.Context, to, subject, body string) (string, error)

	// ReplyEmail sends a threaded reply to the given message.
	ReplyEmail(ctx context.Context, messageID, body string) (string, error)

	// CreateDraft creates a draft and returns the draft ID.
	CreateDraft(ctx context.Context, to, subject, body string) (string, error)
}

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

// gmail talks to the Gmail REST API on behalf of the authenticated user.
type gmail struct {
	tokens  TokenSource
	client  httpDoer
	baseURL string
}

// NewGmail creates a Mail backed by the Gmail API.
func NewGmail(tokens TokenSource) Mail {
	return &gmail{tokens: tokens, client: defaultClient(), baseURL: gmailBaseURL}
}

func (g *gmail) authHeader(ctx context.Context) (map[string]string, error) {
	tok, err := g.tokens.Token(ctx)
	if err != nil {
		return nil, Errf("mail", "credentials unavailable: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}, nil
}

type gmailMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Snippet  string `json:"snippet"`
	Payload  struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
}

func (m *gmailMessage) header(name string) string {
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (g *gmail) ListEmails(ctx context.Context, maxResults int, query string) ([]Email, error) {
	headers, err := g.authHeader(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("maxResults", fmt.Sprintf("%d", maxResults))
	if query != "" {
		q.Set("q", query)
	}

	var list struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	u := g.baseURL + "/messages?" + q.Encode()
	if err := doJSON(ctx, g.client, "mail", http.MethodGet, u, headers, nil, &list); err != nil {
		return nil, err
	}

	emails := make([]Email, 0, len(list.Messages))
	for _, ref := range list.Messages {
		var msg gmailMessage
		mu := g.baseURL + "/messages/" + url.PathEscape(ref.ID) + "?format=metadata"
		if err := doJSON(ctx, g.client, "mail", http.MethodGet, mu, headers, nil, &msg); err != nil {
			continue // skip messages whose metadata fetch fails
		}
		subject := msg.header("Subject")
		if subject == "" {
			subject = "(no subject)"
		}
		from := msg.header("From")
		if from == "" {
			from = "(unknown)"
		}
		emails = append(emails, Email{ID: msg.ID, From: from, Subject: subject, Snippet: msg.Snippet})
	}
	return emails, nil
}

func (g *gmail) SendEmail(ctx context.Context, to, subject, body string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", Errf("mail", "recipient email address is required")
	}
	if !strings.Contains(to, "@") {
		return "", Errf("mail", "invalid email format: %q", to)
	}
	if subject == "" {
		subject = "(No Subject)"
	}

	headers, err := g.authHeader(ctx)
	if err != nil {
		return "", err
	}
	payload := map[string]any{"raw": rawMIME(to, subject, body)}
	var sent gmailMessage
	u := g.baseURL + "/messages/send"
	if err := doJSON(ctx, g.client, "mail", http.MethodPost, u, headers, payload, &sent); err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (g *gmail) ReplyEmail(ctx context.Context, messageID, body string) (string, error) {
	if messageID == "" || body == "" {
		return "", Errf("mail", "missing required fields: message_id or body")
	}

	headers, err := g.authHeader(ctx)
	if err != nil {
		return "", err
	}

	// The reply goes to the original sender, on the original thread.
	var original gmailMessage
	u := g.baseURL + "/messages/" + url.PathEscape(messageID) + "?format=metadata"
	if err := doJSON(ctx, g.client, "mail", http.MethodGet, u, headers, nil, &original); err != nil {
		return "", err
	}

	subject := original.header("Subject")
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	recipient := original.header("From")

	payload := map[string]any{
		"raw":      rawMIME(recipient, subject, body),
		"threadId": original.ThreadID,
	}
	var sent gmailMessage
	su := g.baseURL + "/messages/send"
	if err := doJSON(ctx, g.client, "mail", http.MethodPost, su, headers, payload, &sent); err != nil {
		return "", err
	}
	return sent.ID, nil
}

func (g *gmail) CreateDraft(ctx context.Context, to, subject, body string) (string, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return "", Errf("mail", "recipient email address is required")
	}
	if !strings.Contains(to, "@") {
		return "", Errf("mail", "invalid email format: %q", to)
	}
	if subject == "" {
		subject = "(No Subject)"
	}

	headers, err := g.authHeader(ctx)
	if err != nil {
		return "", err
	}
	payload := map[string]any{
		"message": map[string]any{"raw": rawMIME(to, subject, body)},
	}
	var draft struct {
		ID string `json:"id"`
	}
	u := g.baseURL + "/drafts"
	if err := doJSON(ctx, g.client, "mail", http.MethodPost, u, headers, payload, &draft); err != nil {
		return "", err
	}
	return draft.ID, nil
}

// rawMIME builds a base64url-encoded RFC 2822 plain-text message.
func rawMIME(to, subject, body string) string {
	msg := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	return base64.URLEncoding.EncodeToString([]byte(msg))
}
