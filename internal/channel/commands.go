package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"lunabot/internal/domain"
	"lunabot/internal/metrics"
	"lunabot/internal/persona"
)

// personaManager is the slice of the persona resolver the commands consume.
type personaManager interface {
	Resolve(ctx context.Context, userID, guildID string) domain.PersonaProfile
	SetUserPersona(ctx context.Context, userID string, rec domain.PersonaRecord) error
	ResetUserPersona(ctx context.Context, userID string) error
	SetServerPersona(ctx context.Context, guildID string, rec domain.PersonaRecord) error
}

// statsStore serves the admin commands.
type statsStore interface {
	TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error)
	TotalUsers(ctx context.Context) (int, error)
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)
}

// circuitReporter reports per-provider breaker state.
type circuitReporter interface {
	Status(ctx context.Context) map[string]string
}

// CommandHandler implements the guild slash commands.
type CommandHandler struct {
	personas personaManager
	stats    statsStore
	circuits circuitReporter
	logger   *slog.Logger
}

func NewCommandHandler(personas personaManager, stats statsStore, circuits circuitReporter, logger *slog.Logger) *CommandHandler {
	return &CommandHandler{
		personas: personas,
		stats:    stats,
		circuits: circuits,
		logger:   logger,
	}
}

var adminOnly = int64(discordgo.PermissionAdministrator)

func (h *CommandHandler) register(s *discordgo.Session, guildID string) {
	presetChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(persona.PresetNames()))
	for _, name := range persona.PresetNames() {
		presetChoices = append(presetChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  persona.Describe(name),
			Value: name,
		})
	}
	// The mirror preset tracks an individual's style; it makes no sense as a
	// server-wide default.
	serverPresetChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(presetChoices))
	for _, c := range presetChoices {
		if c.Value != persona.MirrorPreset {
			serverPresetChoices = append(serverPresetChoices, c)
		}
	}
	quirkChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Light — minimal quirks", Value: "light"},
		{Name: "Medium — balanced", Value: "medium"},
		{Name: "Heavy — very human-like", Value: "heavy"},
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "persona",
			Description: "Set how Luna talks to you",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Choose a personality preset",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "preset",
							Description: "Pick a personality",
							Required:    true,
							Choices:     presetChoices,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "quirks",
							Description: "How human-like",
							Choices:     quirkChoices,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "View your current persona",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "reset",
					Description: "Reset to the server default",
				},
			},
		},
		{
			Name:                     "serverpersona",
			Description:              "Server-wide persona settings (admin only)",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "set",
					Description: "Set the server default preset",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "preset",
							Description: "Server default personality",
							Required:    true,
							Choices:     serverPresetChoices,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "quirks",
							Description: "How human-like",
							Choices:     quirkChoices,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "view",
					Description: "View the server default",
				},
			},
		},
		{
			Name:                     "botstatus",
			Description:              "Bot health and provider status (admin only)",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "botstats",
			Description:              "Usage statistics (admin only)",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "botcleanup",
			Description:              "Delete old conversation data (admin only)",
			DefaultMemberPermissions: &adminOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "days",
					Description: "Delete logs older than this many days",
				},
			},
		},
	}

	for _, cmd := range commands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd); err != nil {
			h.logger.Warn("slash command registration failed", "command", cmd.Name, "error", err)
		}
	}
}

func (h *CommandHandler) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx := context.Background()
	data := i.ApplicationCommandData()

	var response string
	switch data.Name {
	case "persona":
		response = h.handlePersona(ctx, i, data)
	case "serverpersona":
		response = h.handleServerPersona(ctx, i, data)
	case "botstatus":
		response = h.handleStatus(ctx)
	case "botstats":
		response = h.handleStats(ctx)
	case "botcleanup":
		response = h.handleCleanup(ctx, data)
	default:
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: response,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Warn("interaction response failed", "command", data.Name, "error", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func subOptions(data discordgo.ApplicationCommandInteractionData) (string, map[string]string) {
	if len(data.Options) == 0 {
		return "", nil
	}
	sub := data.Options[0]
	opts := make(map[string]string, len(sub.Options))
	for _, o := range sub.Options {
		if o.Type == discordgo.ApplicationCommandOptionString {
			opts[o.Name] = o.StringValue()
		}
	}
	return sub.Name, opts
}

func (h *CommandHandler) handlePersona(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) string {
	userID := interactionUserID(i)
	sub, opts := subOptions(data)

	switch sub {
	case "set":
		preset := opts["preset"]
		if !persona.ValidPreset(preset) {
			return "unknown preset"
		}
		rec := domain.PersonaRecord{Preset: preset, Quirk: opts["quirks"]}
		if err := h.personas.SetUserPersona(ctx, userID, rec); err != nil {
			h.logger.Error("persona set failed", "user", userID, "error", err)
			return "couldn't save that, try again later"
		}
		return fmt.Sprintf("**Persona set: %s**\n%s", preset, persona.Describe(preset))
	case "view":
		p := h.personas.Resolve(ctx, userID, i.GuildID)
		return fmt.Sprintf("**Your persona: %s**\nSource: %s | Quirks: %s", p.Preset, p.Source, p.Quirk)
	case "reset":
		if err := h.personas.ResetUserPersona(ctx, userID); err != nil {
			h.logger.Error("persona reset failed", "user", userID, "error", err)
			return "couldn't reset, try again later"
		}
		return "✓ Reset to server default"
	}
	return "unknown subcommand"
}

func (h *CommandHandler) handleServerPersona(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) string {
	sub, opts := subOptions(data)

	switch sub {
	case "set":
		preset := opts["preset"]
		if !persona.ValidPreset(preset) || preset == persona.MirrorPreset {
			return "unknown preset"
		}
		quirk := opts["quirks"]
		if quirk == "" {
			quirk = domain.DefaultQuirk
		}
		rec := domain.PersonaRecord{Preset: preset, Quirk: quirk}
		if err := h.personas.SetServerPersona(ctx, i.GuildID, rec); err != nil {
			h.logger.Error("server persona set failed", "guild", i.GuildID, "error", err)
			return "couldn't save that, try again later"
		}
		return fmt.Sprintf("**Server default: %s**\nQuirk intensity: %s", preset, quirk)
	case "view":
		p := h.personas.Resolve(ctx, "", i.GuildID)
		return fmt.Sprintf("**Server default: %s**\nQuirks: %s", p.Preset, p.Quirk)
	}
	return "unknown subcommand"
}

func (h *CommandHandler) handleStatus(ctx context.Context) string {
	icon := func(state string) string {
		if strings.HasPrefix(state, "closed") {
			return "🟢"
		}
		return "🔴"
	}

	lines := []string{
		"**MR_Luna Status**",
		"",
		fmt.Sprintf("Uptime: `%s`", metrics.Default.Uptime().Round(time.Second)),
		"",
		"**LLM Providers**",
	}

	status := h.circuits.Status(ctx)
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s %s — circuit: `%s`", icon(status[name]), name, status[name]))
	}

	lines = append(lines, "",
		fmt.Sprintf("Replies sent: `%d`", metrics.RepliesSent().Value()),
		fmt.Sprintf("Lurker interjections: `%d`", metrics.LurkerInterjections().Value()),
	)
	return strings.Join(lines, "\n")
}

func (h *CommandHandler) handleStats(ctx context.Context) string {
	total, err := h.stats.TotalUsers(ctx)
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		return "stats unavailable right now"
	}
	top, err := h.stats.TopUsers(ctx, 5)
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		return "stats unavailable right now"
	}

	lines := []string{
		"**MR_Luna Stats**",
		"",
		fmt.Sprintf("Total users: `%d`", total),
		"",
		"**Top 5 Users**",
	}
	for n, u := range top {
		mood := "😐"
		if u.Sentiment > 0.1 {
			mood = "😊"
		} else if u.Sentiment < -0.1 {
			mood = "😤"
		}
		lines = append(lines, fmt.Sprintf("`%d.` **%s** — %d msgs %s", n+1, u.DisplayName, u.InteractionCount, mood))
	}
	if len(top) == 0 {
		lines = append(lines, "No data yet")
	}
	return strings.Join(lines, "\n")
}

func (h *CommandHandler) handleCleanup(ctx context.Context, data discordgo.ApplicationCommandInteractionData) string {
	days := 7
	for _, o := range data.Options {
		if o.Name == "days" && o.Type == discordgo.ApplicationCommandOptionInteger {
			days = int(o.IntValue())
		}
	}
	if days < 1 {
		days = 1
	}

	removed, err := h.stats.Cleanup(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		h.logger.Error("manual cleanup failed", "error", err)
		return "cleanup failed, check the logs"
	}
	return fmt.Sprintf("✓ Cleanup complete — removed %d rows older than %d days", removed, days)
}
