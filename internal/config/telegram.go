package config

import (
	"context"
	"strconv"
)

type TelegramConfig struct {
	Token   string `env:"TUSK_TELEGRAM_TOKEN,required,notEmpty"`
	OwnerID int64  `env:"TUSK_TELEGRAM_OWNER_ID,required"`
}

func NewTelegramConfig(ctx context.Context) *TelegramConfig {
	return mustLoad[TelegramConfig](ctx, "Telegram")
}

// SubjectID is the identity used for the bot owner's conversations.
func (c TelegramConfig) SubjectID() string {
	return "tg:" + strconv.FormatInt(c.OwnerID, 10)
}
