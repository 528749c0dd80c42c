package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/morezero/dbi/pkg/locale"
	"github.com/morezero/dbi/pkg/registry"
)

const handlersLogPrefix = "main:handlers"

// text returns the user locale value at path, or def.
func text(lc locale.Context, path, def string, args ...interface{}) string {
	if lc.User != nil {
		if tmpl, ok := lc.User.Get(path); ok {
			return locale.Format(tmpl, args...)
		}
	}
	return locale.Format(def, args...)
}

func pingComponents(again *registry.Definition, count int) ([]discordgo.MessageComponent, error) {
	btn, err := again.Button(discordgo.PrimaryButton, "Again", count)
	if err != nil {
		return nil, err
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{btn}}}, nil
}

// handlers returns the definitions served by the binary.
func handlers() []registry.RegisterFunc {
	return []registry.RegisterFunc{registerPing, registerReady}
}

func registerPing(r *registry.Registrar) error {
	again := &registry.Definition{Name: "ping-again"}
	again.OnExecute = func(_ context.Context, ic *registry.InteractionContext) error {
		count := 1
		if len(ic.Data) > 0 {
			if n, ok := ic.Data[0].(float64); ok {
				count = int(n)
			}
		}
		count++
		components, err := pingComponents(again, count)
		if err != nil {
			return err
		}
		return ic.Respond(&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Content:    text(ic.Locale, "ping.count", "Pong! x{0}", count),
				Components: components,
			},
		})
	}
	if err := r.Button(again); err != nil {
		return err
	}

	return r.ChatInput(&registry.Definition{
		Name:        "ping",
		Description: "Check that the bot is alive",
		OnExecute: func(_ context.Context, ic *registry.InteractionContext) error {
			components, err := pingComponents(again, 1)
			if err != nil {
				return err
			}
			return ic.Respond(&discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content:    text(ic.Locale, "ping.reply", "Pong!"),
					Components: components,
				},
			})
		},
	})
}

func registerReady(r *registry.Registrar) error {
	return r.Event(&registry.EventDefinition{
		Name:    "ready",
		Ordered: true,
		OnExecute: func(_ context.Context, ec *registry.EventContext) error {
			if ready, ok := ec.Arg("ready").(*discordgo.Ready); ok && ready.User != nil {
				slog.Info(fmt.Sprintf("%s - %s logged in as %s", handlersLogPrefix, ec.Client.Name, ready.User.Username))
			}
			return nil
		},
	})
}
