package bot

import (
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
)

// Command lists for Telegram's menu button (the "/" icon in the chat input).
// Admins get their own list via BotCommandScopeChat.

var commandsDefault = []tgbotapi.BotCommand{
	{Command: "help", Description: "Show available commands"},
}

var commandsAdmin = []tgbotapi.BotCommand{
	{Command: "addcode", Description: "Create and publish a gift code"},
	{Command: "removecode", Description: "Delete a gift code"},
	{Command: "purgecodes", Description: "Delete expired and exhausted codes"},
	{Command: "codes", Description: "List active gift codes"},
	{Command: "audit", Description: "Check a code's remaining quantity"},
	{Command: "reload", Description: "Reload the gift code index"},
	{Command: "gameversion", Description: "Set the required game version"},
	{Command: "savedata", Description: "Download a player's save"},
	{Command: "subscription", Description: "Extend a player's subscription"},
	{Command: "copysave", Description: "Copy a save between players"},
	{Command: "help", Description: "Show available commands"},
}

func (t *TgBot) setDefaultCommands() {
	_, err := t.api.SetMyCommands(commandsDefault, &tgbotapi.SetMyCommandsOpts{
		Scope: tgbotapi.BotCommandScopeDefault{},
	})
	if err != nil {
		t.log.Warn("setting default commands", "error", err)
	}
}

// syncAdminMenus sets the admin command menu in each admin's private chat.
func (t *TgBot) syncAdminMenus() {
	for _, chatId := range t.admins {
		_, err := t.api.SetMyCommands(commandsAdmin, &tgbotapi.SetMyCommandsOpts{
			Scope: tgbotapi.BotCommandScopeChat{ChatId: chatId},
		})
		if err != nil {
			t.log.Warn("setting admin commands", "chat_id", chatId, "error", err)
		}
	}
}
