// Package telegram adapts the Telegram Bot API for the ticket watcher.
//
// It wraps github.com/go-telegram/bot for sending HTML messages to chats,
// classifies delivery failures (a chat that blocked the bot or no longer
// exists yields ErrBlocked), receives commands through long polling or a
// webhook, and formats the match announcements in Russian.
package telegram
