package protocol

import (
	"fmt"
	"net/url"
	"strconv"
)

// APIVersion is reported by `botlink doctor`. Bump when the route table changes.
const APIVersion = 1

// Route paths, relative to the API base URL.
const (
	PathLink = "/bot"
)

func OwnerBotsPath(ownerRef string) string {
	return "/owner/" + url.PathEscape(ownerRef) + "/bots"
}

func IsVerifiedPath(botID int64) string {
	return fmt.Sprintf("/%d/isVerified", botID)
}

func InvitePath(botID int64) string {
	return fmt.Sprintf("/bot/%d/invite", botID)
}

func RefreshPath(botID int64) string {
	return fmt.Sprintf("/bot/%d/refresh", botID)
}

func LogoutPath(botID int64) string {
	return fmt.Sprintf("/bot/%d/logout", botID)
}

func UsersPath(botID int64) string {
	return fmt.Sprintf("/%d/users", botID)
}

func UserPath(botID int64, userID string) string {
	return fmt.Sprintf("/bot/%d/user/%s", botID, url.PathEscape(userID))
}

// UsersParams is the query string of GET /{botId}/users.
// Empty Search and nil Status are omitted.
type UsersParams struct {
	Page    int
	PerPage int
	Search  string
	Status  *bool
}

// Encode returns the URL-encoded query string.
func (p UsersParams) Encode() string {
	v := url.Values{}
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("per_page", strconv.Itoa(p.PerPage))
	if p.Search != "" {
		v.Set("search", p.Search)
	}
	if p.Status != nil {
		v.Set("status", strconv.FormatBool(*p.Status))
	}
	return v.Encode()
}

// TelegramDeepLink builds the t.me start link that carries a pass UUID to the bot.
// Opening it sends "/start <passUuid>" to the bot, which starts the
// out-of-band ownership check.
func TelegramDeepLink(botName, passUUID string) string {
	return "https://t.me/" + url.PathEscape(botName) + "?start=" + url.QueryEscape(passUUID)
}
