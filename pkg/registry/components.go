package registry

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/customid"
)

// CustomID encodes the definition name and data with RefTTL.
func (d *Definition) CustomID(data ...interface{}) (string, error) {
	return d.CustomIDWith(customid.EncodeOptions{TTL: d.RefTTL}, data...)
}

// CustomIDWith encodes the definition name and data with opts.
func (d *Definition) CustomIDWith(opts customid.EncodeOptions, data ...interface{}) (string, error) {
	if d.codec == nil {
		return "", fmt.Errorf("%s - %s %q is not registered", logPrefix, d.Kind, d.Name)
	}
	id, _, err := d.codec.Encode(d.Name, data, opts)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Button builds a button component bound to the definition.
func (d *Definition) Button(style discordgo.ButtonStyle, label string, data ...interface{}) (discordgo.Button, error) {
	if d.Kind != KindButton {
		return discordgo.Button{}, fmt.Errorf("%s - %q is a %s, not a button", logPrefix, d.Name, d.Kind)
	}
	id, err := d.CustomID(data...)
	if err != nil {
		return discordgo.Button{}, err
	}
	return discordgo.Button{Style: style, Label: label, CustomID: id}, nil
}

var selectMenuTypes = map[Kind]discordgo.SelectMenuType{
	KindStringSelect:      discordgo.StringSelectMenu,
	KindUserSelect:        discordgo.UserSelectMenu,
	KindRoleSelect:        discordgo.RoleSelectMenu,
	KindChannelSelect:     discordgo.ChannelSelectMenu,
	KindMentionableSelect: discordgo.MentionableSelectMenu,
}

// SelectMenu builds a select menu of the definition's variant. options are
// only meaningful for string selects.
func (d *Definition) SelectMenu(placeholder string, options []discordgo.SelectMenuOption, data ...interface{}) (discordgo.SelectMenu, error) {
	menuType, ok := selectMenuTypes[d.Kind]
	if !ok {
		return discordgo.SelectMenu{}, fmt.Errorf("%s - %q is a %s, not a select menu", logPrefix, d.Name, d.Kind)
	}
	id, err := d.CustomID(data...)
	if err != nil {
		return discordgo.SelectMenu{}, err
	}
	return discordgo.SelectMenu{
		MenuType:    menuType,
		CustomID:    id,
		Placeholder: placeholder,
		Options:     options,
	}, nil
}

// Modal builds the interaction response that opens the definition's modal.
func (d *Definition) Modal(title string, components []discordgo.MessageComponent, data ...interface{}) (*discordgo.InteractionResponse, error) {
	if d.Kind != KindModal {
		return nil, fmt.Errorf("%s - %q is a %s, not a modal", logPrefix, d.Name, d.Kind)
	}
	id, err := d.CustomID(data...)
	if err != nil {
		return nil, err
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID:   id,
			Title:      title,
			Components: components,
		},
	}, nil
}
