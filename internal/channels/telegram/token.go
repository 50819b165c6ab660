// Package telegram checks bot tokens locally and against the Bot API before
// they are handed to the link service.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
)

// ErrMalformedToken reports a token that does not look like "<id>:<secret>".
var ErrMalformedToken = errors.New("telegram token is malformed")

// BotInfo is what the Bot API reports about a token's bot.
type BotInfo struct {
	ID       int64
	Username string
	Name     string
}

// ValidateToken checks the token's shape without any network call.
func ValidateToken(token string) error {
	_, err := newBot(token)
	return err
}

// Probe asks the Bot API who the token belongs to. It is advisory: the link
// service performs its own check.
func Probe(ctx context.Context, token string, opts ...telego.BotOption) (BotInfo, error) {
	bot, err := newBot(token, opts...)
	if err != nil {
		return BotInfo{}, err
	}
	me, err := bot.GetMe(ctx)
	if err != nil {
		return BotInfo{}, fmt.Errorf("telegram getMe: %w", err)
	}
	return BotInfo{ID: me.ID, Username: me.Username, Name: me.FirstName}, nil
}

func newBot(token string, opts ...telego.BotOption) (*telego.Bot, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformedToken
	}
	opts = append([]telego.BotOption{telego.WithDiscardLogger()}, opts...)
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return bot, nil
}
