package dispatcher

import (
	"github.com/bwmarrin/discordgo"
)

// defaultArgNames names the positional arguments of every event the event
// router understands.
var defaultArgNames = map[string][]string{
	"ready":                 {"ready"},
	"resumed":               {"resumed"},
	"connect":               {},
	"disconnect":            {},
	"channelCreate":         {"channel"},
	"channelUpdate":         {"channel"},
	"channelDelete":         {"channel"},
	"threadCreate":          {"thread", "newlyCreated"},
	"threadUpdate":          {"oldThread", "newThread"},
	"threadDelete":          {"thread"},
	"guildCreate":           {"guild"},
	"guildUpdate":           {"guild"},
	"guildDelete":           {"guild"},
	"guildBanAdd":           {"user", "guildId"},
	"guildBanRemove":        {"user", "guildId"},
	"guildMemberAdd":        {"member"},
	"guildMemberUpdate":     {"oldMember", "newMember"},
	"guildMemberRemove":     {"member"},
	"guildRoleCreate":       {"role", "guildId"},
	"guildRoleUpdate":       {"role", "guildId"},
	"guildRoleDelete":       {"roleId", "guildId"},
	"messageCreate":         {"message"},
	"messageUpdate":         {"oldMessage", "newMessage"},
	"messageDelete":         {"message"},
	"messageReactionAdd":    {"reaction", "member"},
	"messageReactionRemove": {"reaction"},
	"presenceUpdate":        {"presence", "guildId"},
	"typingStart":           {"typing"},
	"voiceStateUpdate":      {"oldState", "newState"},
	"interactionCreate":     {"interaction"},
}

// EventArgs splits a platform event into its name and positional arguments.
// It reports false for events the router does not map.
func EventArgs(event interface{}) (string, []interface{}, bool) {
	switch e := event.(type) {
	case *discordgo.Ready:
		return "ready", []interface{}{e}, true
	case *discordgo.Resumed:
		return "resumed", []interface{}{e}, true
	case *discordgo.Connect:
		return "connect", nil, true
	case *discordgo.Disconnect:
		return "disconnect", nil, true
	case *discordgo.ChannelCreate:
		return "channelCreate", []interface{}{e.Channel}, true
	case *discordgo.ChannelUpdate:
		return "channelUpdate", []interface{}{e.Channel}, true
	case *discordgo.ChannelDelete:
		return "channelDelete", []interface{}{e.Channel}, true
	case *discordgo.ThreadCreate:
		return "threadCreate", []interface{}{e.Channel, e.NewlyCreated}, true
	case *discordgo.ThreadUpdate:
		return "threadUpdate", []interface{}{e.BeforeUpdate, e.Channel}, true
	case *discordgo.ThreadDelete:
		return "threadDelete", []interface{}{e.Channel}, true
	case *discordgo.GuildCreate:
		return "guildCreate", []interface{}{e.Guild}, true
	case *discordgo.GuildUpdate:
		return "guildUpdate", []interface{}{e.Guild}, true
	case *discordgo.GuildDelete:
		return "guildDelete", []interface{}{e.Guild}, true
	case *discordgo.GuildBanAdd:
		return "guildBanAdd", []interface{}{e.User, e.GuildID}, true
	case *discordgo.GuildBanRemove:
		return "guildBanRemove", []interface{}{e.User, e.GuildID}, true
	case *discordgo.GuildMemberAdd:
		return "guildMemberAdd", []interface{}{e.Member}, true
	case *discordgo.GuildMemberUpdate:
		return "guildMemberUpdate", []interface{}{e.BeforeUpdate, e.Member}, true
	case *discordgo.GuildMemberRemove:
		return "guildMemberRemove", []interface{}{e.Member}, true
	case *discordgo.GuildRoleCreate:
		return "guildRoleCreate", roleArgs(e.GuildRole), true
	case *discordgo.GuildRoleUpdate:
		return "guildRoleUpdate", roleArgs(e.GuildRole), true
	case *discordgo.GuildRoleDelete:
		return "guildRoleDelete", []interface{}{e.RoleID, e.GuildID}, true
	case *discordgo.MessageCreate:
		return "messageCreate", []interface{}{e.Message}, true
	case *discordgo.MessageUpdate:
		return "messageUpdate", []interface{}{e.BeforeUpdate, e.Message}, true
	case *discordgo.MessageDelete:
		return "messageDelete", []interface{}{e.Message}, true
	case *discordgo.MessageReactionAdd:
		return "messageReactionAdd", []interface{}{e.MessageReaction, e.Member}, true
	case *discordgo.MessageReactionRemove:
		return "messageReactionRemove", []interface{}{e.MessageReaction}, true
	case *discordgo.PresenceUpdate:
		return "presenceUpdate", []interface{}{&e.Presence, e.GuildID}, true
	case *discordgo.TypingStart:
		return "typingStart", []interface{}{e}, true
	case *discordgo.VoiceStateUpdate:
		return "voiceStateUpdate", []interface{}{e.BeforeUpdate, e.VoiceState}, true
	case *discordgo.InteractionCreate:
		return "interactionCreate", []interface{}{e.Interaction}, true
	}
	return "", nil, false
}

func roleArgs(gr *discordgo.GuildRole) []interface{} {
	if gr == nil {
		return []interface{}{nil, ""}
	}
	return []interface{}{gr.Role, gr.GuildID}
}

// guildOf returns the guild id or preferred locale carried by an argument.
func guildOf(arg interface{}) (guildID string, tag string) {
	switch v := arg.(type) {
	case *discordgo.Guild:
		if v != nil {
			return v.ID, string(v.PreferredLocale)
		}
	case *discordgo.Message:
		if v != nil {
			return v.GuildID, ""
		}
	case *discordgo.Member:
		if v != nil {
			return v.GuildID, ""
		}
	case *discordgo.Channel:
		if v != nil {
			return v.GuildID, ""
		}
	case *discordgo.MessageReaction:
		if v != nil {
			return v.GuildID, ""
		}
	case *discordgo.VoiceState:
		if v != nil {
			return v.GuildID, ""
		}
	case *discordgo.TypingStart:
		if v != nil {
			return v.GuildID, ""
		}
	case *discordgo.Interaction:
		if v != nil && v.GuildLocale != nil {
			return v.GuildID, string(*v.GuildLocale)
		}
	}
	return "", ""
}
