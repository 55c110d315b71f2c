package slack

type Config struct {
	Enabled   bool   `toml:"enabled"`
	BotToken  string `toml:"botToken" validate:"required_if=Enabled true"`
	ChannelID string `toml:"channelID" validate:"required_if=Enabled true"`
}
