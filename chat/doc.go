// Package chat connects the dispatcher to Discord and Twitch.
//
// Each adapter turns platform messages into command.Event values, runs them
// through the dispatcher on a bounded set of goroutines and posts the reply
// back to the channel the message came from, as a reply to that message.
// Lines that do not start with the source's prefix are dropped before a
// goroutine is spent on them.
//
// Discord uses a bot token and the guild and direct message intents (message
// content included); discordgo handles gateway reconnects. Twitch connects to
// IRC as TWITCH_BOT_USERNAME with a chat:read/chat:edit user token. When a
// refresh token and client credentials are configured the token is refreshed
// through the Twitch OAuth endpoint before each reconnect; otherwise the
// static TWITCH_OAUTH_TOKEN is used. Outbound Twitch messages are paced to
// stay under the platform rate limit.
package chat
