// Package publish turns registered command definitions into the platform's
// command tree and bulk-overwrites it for a guild or globally.
package publish

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/registry"
)

const treeLogPrefix = "publish:tree"

// MaxDepth is the deepest command path the platform accepts: root, group, sub.
const MaxDepth = 3

// Build synthesizes the command payload for scope.
func Build(reg *registry.Registry, scope registry.PublishScope) ([]*discordgo.ApplicationCommand, error) {
	translations := reg.Interactions()

	roots := make(map[string]*discordgo.ApplicationCommand)
	var rootOrder []string
	rootDefs := make(map[string]*registry.Definition)
	children := make(map[string][]*registry.Definition)

	for _, def := range reg.List(registry.KindChatInput) {
		if !def.Publish.Includes(scope) {
			continue
		}
		segs := strings.Fields(def.Name)
		if len(segs) > MaxDepth {
			return nil, fmt.Errorf("%s - command %q has %d segments, at most %d allowed", treeLogPrefix, def.Name, len(segs), MaxDepth)
		}
		root := segs[0]
		if _, ok := roots[root]; !ok {
			roots[root] = &discordgo.ApplicationCommand{
				Type:        discordgo.ChatApplicationCommand,
				Name:        root,
				Description: root,
			}
			rootOrder = append(rootOrder, root)
		}
		if len(segs) == 1 {
			rootDefs[root] = def
		} else {
			children[root] = append(children[root], def)
		}
	}
	sort.Strings(rootOrder)

	out := make([]*discordgo.ApplicationCommand, 0, len(rootOrder))
	for _, name := range rootOrder {
		cmd := roots[name]
		if def, ok := rootDefs[name]; ok {
			applyRoot(cmd, def, translations)
			if len(children[name]) > 0 && len(cmd.Options) > 0 {
				slog.Warn(fmt.Sprintf("%s - %q has sub-commands; its own options are not published", treeLogPrefix, name))
			}
		}
		if subs := children[name]; len(subs) > 0 {
			cmd.Options = buildChildren(subs, translations)
		}
		out = append(out, cmd)
	}

	for _, kind := range []registry.Kind{registry.KindUserContextMenu, registry.KindMessageContextMenu} {
		cmdType := discordgo.UserApplicationCommand
		if kind == registry.KindMessageContextMenu {
			cmdType = discordgo.MessageApplicationCommand
		}
		for _, def := range reg.List(kind) {
			if !def.Publish.Includes(scope) {
				continue
			}
			cmd := &discordgo.ApplicationCommand{
				Type:                     cmdType,
				Name:                     def.Name,
				DefaultMemberPermissions: def.DefaultMemberPermissions,
				DMPermission:             def.DMPermission,
			}
			if def.NSFW {
				cmd.NSFW = &def.NSFW
			}
			if names := nameLocalizations(translations, def.Name); len(names) > 0 {
				cmd.NameLocalizations = &names
			}
			out = append(out, cmd)
		}
	}
	return out, nil
}

func applyRoot(cmd *discordgo.ApplicationCommand, def *registry.Definition, translations *locale.InteractionRegistry) {
	if def.Description != "" {
		cmd.Description = def.Description
	}
	cmd.DefaultMemberPermissions = def.DefaultMemberPermissions
	cmd.DMPermission = def.DMPermission
	if def.NSFW {
		nsfw := true
		cmd.NSFW = &nsfw
	}
	cmd.Options = buildOptions(def, translations)
	if names := nameLocalizations(translations, def.Name); len(names) > 0 {
		cmd.NameLocalizations = &names
	}
	if descs := descriptionLocalizations(translations, def.Name); len(descs) > 0 {
		cmd.DescriptionLocalizations = &descs
	}
}

// buildChildren nests two segment definitions as sub-commands and three
// segment definitions as sub-commands inside groups.
func buildChildren(defs []*registry.Definition, translations *locale.InteractionRegistry) []*discordgo.ApplicationCommandOption {
	var out []*discordgo.ApplicationCommandOption
	groups := make(map[string]*discordgo.ApplicationCommandOption)

	sorted := make([]*registry.Definition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	for _, def := range sorted {
		segs := strings.Fields(def.Name)
		sub := &discordgo.ApplicationCommandOption{
			Type:                     discordgo.ApplicationCommandOptionSubCommand,
			Name:                     segs[len(segs)-1],
			Description:              describe(def),
			Options:                  buildOptions(def, translations),
			NameLocalizations:        nameLocalizations(translations, def.Name),
			DescriptionLocalizations: descriptionLocalizations(translations, def.Name),
		}
		if len(segs) == 2 {
			out = append(out, sub)
			continue
		}
		groupName := segs[1]
		group, ok := groups[groupName]
		if !ok {
			groupKey := segs[0] + " " + groupName
			group = &discordgo.ApplicationCommandOption{
				Type:              discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:              groupName,
				Description:       groupName,
				NameLocalizations: nameLocalizations(translations, groupKey),
			}
			if descs := descriptionLocalizations(translations, groupKey); len(descs) > 0 {
				group.DescriptionLocalizations = descs
			}
			groups[groupName] = group
			out = append(out, group)
		}
		group.Options = append(group.Options, sub)
	}
	return out
}

func describe(def *registry.Definition) string {
	if def.Description != "" {
		return def.Description
	}
	segs := strings.Fields(def.Name)
	return segs[len(segs)-1]
}

func buildOptions(def *registry.Definition, translations *locale.InteractionRegistry) []*discordgo.ApplicationCommandOption {
	if len(def.Options) == 0 {
		return nil
	}
	var tr map[string]locale.Translation
	if il, ok := translations.Get(def.Name); ok {
		tr = il.Data
	}

	out := make([]*discordgo.ApplicationCommandOption, 0, len(def.Options))
	for _, o := range def.Options {
		opt := o.ApplicationCommandOption
		if o.OnComplete != nil {
			opt.Autocomplete = true
			opt.Choices = nil
		}
		opt.NameLocalizations = copyLocalizations(opt.NameLocalizations)
		opt.DescriptionLocalizations = copyLocalizations(opt.DescriptionLocalizations)
		for code, t := range tr {
			ot, ok := t.Options[opt.Name]
			if !ok {
				continue
			}
			loc := discordgo.Locale(code)
			if ot.Name != "" {
				opt.NameLocalizations[loc] = ot.Name
			}
			if ot.Description != "" {
				opt.DescriptionLocalizations[loc] = ot.Description
			}
			if len(ot.Choices) > 0 && len(opt.Choices) > 0 {
				opt.Choices = localizeChoices(opt.Choices, loc, ot.Choices)
			}
		}
		if len(opt.NameLocalizations) == 0 {
			opt.NameLocalizations = nil
		}
		if len(opt.DescriptionLocalizations) == 0 {
			opt.DescriptionLocalizations = nil
		}
		out = append(out, &opt)
	}
	return out
}

func localizeChoices(choices []*discordgo.ApplicationCommandOptionChoice, loc discordgo.Locale, names map[string]string) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, len(choices))
	for i, c := range choices {
		cp := *c
		cp.NameLocalizations = copyLocalizations(c.NameLocalizations)
		if n, ok := names[c.Name]; ok {
			cp.NameLocalizations[loc] = n
		}
		out[i] = &cp
	}
	return out
}

func copyLocalizations(m map[discordgo.Locale]string) map[discordgo.Locale]string {
	out := make(map[discordgo.Locale]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func nameLocalizations(translations *locale.InteractionRegistry, name string) map[discordgo.Locale]string {
	il, ok := translations.Get(name)
	if !ok {
		return nil
	}
	out := make(map[discordgo.Locale]string)
	for code, t := range il.Data {
		if t.Name != "" {
			out[discordgo.Locale(code)] = t.Name
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func descriptionLocalizations(translations *locale.InteractionRegistry, name string) map[discordgo.Locale]string {
	il, ok := translations.Get(name)
	if !ok {
		return nil
	}
	out := make(map[discordgo.Locale]string)
	for code, t := range il.Data {
		if t.Description != "" {
			out[discordgo.Locale(code)] = t.Description
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
