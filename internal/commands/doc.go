// Package commands answers the chat commands users send to the bot.
//
// Supported commands are /start (subscribe and show the current matches),
// /stop, /status, /matches and /help, plus /stats for the admin chat. The
// same Handler serves both the long-polling and the webhook command source.
package commands
