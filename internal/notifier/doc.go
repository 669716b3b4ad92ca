// Package notifier delivers match changes to subscribers.
//
// A Notifier turns the added and removed matches of one cycle into Telegram
// messages and sends every message to every subscriber. Sends are paced by a
// rate limiter, failures are independent of each other, and a chat that
// blocked the bot is removed from the registry. Optional announcers (Twitter)
// receive newly listed matches once per cycle.
package notifier
