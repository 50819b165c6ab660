// Package protocol defines the JSON wire format of the bot dashboard REST API.
// This package is importable by other clients of the same service.
package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Binding is a linked bot as returned by POST /bot and GET /owner/{ref}/bots.
// A binding is immutable once created.
type Binding struct {
	BotID    int64  `json:"botId"`
	BotName  string `json:"botName"`
	PassUUID string `json:"passUuid"` // opaque link secret
	WebURL   string `json:"webUrl"`
}

// LinkRequest is the body of POST /bot.
type LinkRequest struct {
	TelegramToken string `json:"telegram_token"`
	OwnerUUID     string `json:"owner_uuid"`
	Locale        string `json:"locale"`
}

// InviteResponse is returned by POST /bot/{botId}/invite.
type InviteResponse struct {
	PassUUID string `json:"passUuid"`
}

// RefreshResponse is returned by POST /bot/{botId}/refresh.
type RefreshResponse struct {
	WebURL string `json:"webUrl"`
}

// RawUser is one roster entry as the service returns it.
type RawUser struct {
	ID      int64   `json:"id"`
	Name    *string `json:"name"`
	Surname *string `json:"surname"`
	Phone   *string `json:"phone"`
	IsOwner bool    `json:"isOwner"`
	Status  bool    `json:"status"`
}

// FullName joins the non-empty name parts with a single space.
func (u RawUser) FullName() string {
	parts := make([]string, 0, 2)
	for _, p := range []*string{u.Name, u.Surname} {
		if p == nil {
			continue
		}
		if s := strings.TrimSpace(*p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// UsersPage is returned by GET /{botId}/users.
type UsersPage struct {
	Users []RawUser `json:"users"`
	Total int       `json:"total"`
}

// ErrorBody is the error envelope the service uses for 4xx/5xx responses.
// Detail is either a plain string or a structured validation list.
type ErrorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// Message renders Detail as a single line. Plain strings are returned as-is,
// anything else is compacted JSON. Returns "" when no detail was sent.
func (b ErrorBody) Message() string {
	raw := bytes.TrimSpace(b.Detail)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
