package notifier

// Discord formatting constants
const (
	DiscordUsername   = "JS-DeepLens"
	SuccessEmbedColor = 0x5CB85C
	ErrorEmbedColor   = 0xD9534F
	WarningEmbedColor = 0xF0AD4E
	InfoEmbedColor    = 0x5BC0DE
)

// Embed size limits
const (
	MaxFieldValueLength = 1000
	MaxFindingsListed   = 10
)
