// Package discord connects the recording pipeline to Discord: prefix
// commands drive sessions, voice packets feed the capture, and finished
// notes come back as messages or attachments.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/voxnote/voxnote/internal/meeting"
	"github.com/voxnote/voxnote/internal/session"
	"github.com/voxnote/voxnote/internal/store"
)

// Config holds the bot parameters.
type Config struct {
	Token         string
	CommandPrefix string
}

// Adapter is the Discord front end. It implements session.Notifier so
// pipeline outcomes are delivered to the channel that started the meeting.
type Adapter struct {
	cfg      Config
	logger   zerolog.Logger
	sessions *session.Manager
	store    store.Store

	dg *discordgo.Session

	mu     sync.Mutex
	guilds map[string]*guildState
}

// guildState tracks the bot's voice presence in one guild.
type guildState struct {
	voice          *discordgo.VoiceConnection
	voiceChannelID string
	// textChannelID is where command replies and finished notes go.
	textChannelID string
	recvDone      chan struct{}
}

// New creates the adapter. Call Run to connect.
func New(cfg Config, logger zerolog.Logger, sessions *session.Manager, st store.Store) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token not configured (set DISCORD_TOKEN)")
	}
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "!"
	}

	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	a := &Adapter{
		cfg:      cfg,
		logger:   logger.With().Str("component", "discord").Logger(),
		sessions: sessions,
		store:    st,
		dg:       dg,
		guilds:   make(map[string]*guildState),
	}
	dg.AddHandler(a.onMessage)
	dg.AddHandler(a.onVoiceStateUpdate)
	return a, nil
}

// Run connects to the gateway and blocks until the context is canceled.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.dg.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	a.logger.Info().Str("prefix", a.cfg.CommandPrefix).Msg("bot connected")

	<-ctx.Done()

	a.mu.Lock()
	for guildID, gs := range a.guilds {
		a.leaveVoiceLocked(guildID, gs)
	}
	a.mu.Unlock()
	return a.dg.Close()
}

func (a *Adapter) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if !strings.HasPrefix(m.Content, a.cfg.CommandPrefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, a.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "join":
		a.cmdJoin(m)
	case "startmeeting":
		a.cmdStart(m, strings.Join(args, " "))
	case "stopmeeting":
		a.cmdStop(m)
	case "getnotes":
		a.cmdGetNotes(m, args)
	case "status":
		a.cmdStatus(m)
	case "retry":
		a.cmdRetry(m)
	case "abandon":
		a.cmdAbandon(m)
	case "help":
		a.reply(m.ChannelID, a.helpText())
	}
}

// cmdJoin joins the caller's voice channel and starts the receive loop.
func (a *Adapter) cmdJoin(m *discordgo.MessageCreate) {
	voiceChannelID := a.userVoiceChannel(m.GuildID, m.Author.ID)
	if voiceChannelID == "" {
		a.reply(m.ChannelID, "You need to be in a voice channel for me to join.")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if gs, ok := a.guilds[m.GuildID]; ok {
		if gs.voiceChannelID == voiceChannelID {
			gs.textChannelID = m.ChannelID
			a.replyAsync(m.ChannelID, "Already in your voice channel.")
			return
		}
		if a.stopOnLeave(gs.voiceChannelID) {
			a.replyAsync(m.ChannelID, "📊 Processing the meeting from the previous channel...")
		}
		a.leaveVoiceLocked(m.GuildID, gs)
	}

	vc, err := a.dg.ChannelVoiceJoin(m.GuildID, voiceChannelID, false, false)
	if err != nil {
		a.logger.Error().Err(err).Str("channel_id", voiceChannelID).Msg("voice join failed")
		a.replyAsync(m.ChannelID, "Could not join the voice channel.")
		return
	}

	gs := &guildState{
		voice:          vc,
		voiceChannelID: voiceChannelID,
		textChannelID:  m.ChannelID,
		recvDone:       make(chan struct{}),
	}
	a.guilds[m.GuildID] = gs
	go a.receiveVoice(vc, voiceChannelID, gs.recvDone)
	a.replyAsync(m.ChannelID, "Joined your voice channel. Use `"+a.cfg.CommandPrefix+"startmeeting [name]` to begin.")
}

func (a *Adapter) cmdStart(m *discordgo.MessageCreate, name string) {
	gs := a.guildState(m.GuildID)
	if gs == nil {
		a.reply(m.ChannelID, "I need to be in a voice channel first. Use `"+a.cfg.CommandPrefix+"join`.")
		return
	}
	gs.textChannelID = m.ChannelID

	st, err := a.sessions.Start(m.GuildID, gs.voiceChannelID, name)
	if errors.Is(err, session.ErrAlreadyActive) {
		a.reply(m.ChannelID, "A meeting is already being recorded in this channel.")
		return
	}
	if err != nil {
		a.reply(m.ChannelID, "Could not start the recording: "+err.Error())
		return
	}
	a.reply(m.ChannelID, fmt.Sprintf("📝 Started recording meeting: **%s**", st.Name))
	a.reply(m.ChannelID, "Use `"+a.cfg.CommandPrefix+"stopmeeting` when you're done, or the recording stops automatically after the duration ceiling.")
}

func (a *Adapter) cmdStop(m *discordgo.MessageCreate) {
	gs := a.guildState(m.GuildID)
	if gs == nil {
		a.reply(m.ChannelID, "No active meeting recording here.")
		return
	}
	gs.textChannelID = m.ChannelID

	_, err := a.sessions.Stop(gs.voiceChannelID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		a.reply(m.ChannelID, "No active meeting recording here.")
	case errors.Is(err, session.ErrEmptyRecording):
		a.reply(m.ChannelID, "The recording was too short to transcribe; nothing was saved.")
	case errors.Is(err, session.ErrNotRecording):
		a.reply(m.ChannelID, "The meeting is already being processed.")
	case err != nil:
		a.reply(m.ChannelID, "Could not stop the recording: "+err.Error())
	default:
		a.reply(m.ChannelID, "📊 Processing meeting recording... This might take a few minutes.")
	}
}

func (a *Adapter) cmdGetNotes(m *discordgo.MessageCreate, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if len(args) == 0 {
		meetings, err := a.store.Recent(ctx, m.GuildID, 5)
		if err != nil {
			a.reply(m.ChannelID, "Could not list meetings: "+err.Error())
			return
		}
		if len(meetings) == 0 {
			a.reply(m.ChannelID, "No recent meetings found.")
			return
		}
		var b strings.Builder
		b.WriteString("Recent meetings:\n")
		for _, mt := range meetings {
			fmt.Fprintf(&b, "- ID: %s | %s | %s\n", mt.ID, mt.Name, mt.StartedAt.Format("2006-01-02 15:04"))
		}
		a.reply(m.ChannelID, b.String())
		return
	}

	mt, err := a.store.Load(ctx, args[0])
	if errors.Is(err, store.ErrNotFound) {
		a.reply(m.ChannelID, fmt.Sprintf("Meeting with ID %s not found.", args[0]))
		return
	}
	if err != nil {
		a.reply(m.ChannelID, "Could not load the meeting: "+err.Error())
		return
	}
	a.sendNotes(m.ChannelID, mt)
}

func (a *Adapter) cmdStatus(m *discordgo.MessageCreate) {
	gs := a.guildState(m.GuildID)
	if gs == nil {
		a.reply(m.ChannelID, "Not in a voice channel.")
		return
	}
	st, err := a.sessions.Status(gs.voiceChannelID)
	if errors.Is(err, session.ErrNoSession) {
		a.reply(m.ChannelID, "No active meeting recording here.")
		return
	}
	if st.Failure != nil {
		a.reply(m.ChannelID, fmt.Sprintf("**%s** is in error (%s): %v\nUse `%sretry` or `%sabandon`.",
			st.Name, st.Failure.Stage, st.Failure.Err, a.cfg.CommandPrefix, a.cfg.CommandPrefix))
		return
	}
	a.reply(m.ChannelID, fmt.Sprintf("**%s**: %s (%s captured)",
		st.Name, st.State, st.Duration.Round(time.Second)))
}

func (a *Adapter) cmdRetry(m *discordgo.MessageCreate) {
	gs := a.guildState(m.GuildID)
	if gs == nil {
		a.reply(m.ChannelID, "No active meeting recording here.")
		return
	}
	gs.textChannelID = m.ChannelID

	st, err := a.sessions.Retry(gs.voiceChannelID)
	switch {
	case errors.Is(err, session.ErrNoSession):
		a.reply(m.ChannelID, "No active meeting recording here.")
	case errors.Is(err, session.ErrNotFailed):
		a.reply(m.ChannelID, "Nothing failed; there is nothing to retry.")
	case errors.Is(err, session.ErrRetryExhausted):
		a.reply(m.ChannelID, "The save retry is spent. Use `"+a.cfg.CommandPrefix+"abandon` to discard the meeting.")
	case err != nil:
		a.reply(m.ChannelID, "Retry failed: "+err.Error())
	default:
		a.reply(m.ChannelID, fmt.Sprintf("Retrying the %s stage...", st.State))
	}
}

func (a *Adapter) cmdAbandon(m *discordgo.MessageCreate) {
	gs := a.guildState(m.GuildID)
	if gs == nil {
		a.reply(m.ChannelID, "No active meeting recording here.")
		return
	}
	err := a.sessions.Abandon(gs.voiceChannelID)
	if errors.Is(err, session.ErrNoSession) {
		a.reply(m.ChannelID, "No active meeting recording here.")
		return
	}
	a.reply(m.ChannelID, "Meeting discarded.")
}

// onVoiceStateUpdate stops the recording when the bot is disconnected from
// the voice channel. Enough captured audio still becomes a meeting.
func (a *Adapter) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}

	a.mu.Lock()
	gs, ok := a.guilds[v.GuildID]
	if ok {
		delete(a.guilds, v.GuildID)
	}
	a.mu.Unlock()
	if !ok {
		return
	}

	a.logger.Warn().Str("guild_id", v.GuildID).Msg("disconnected from voice channel")
	_, err := a.sessions.Stop(gs.voiceChannelID)
	if err != nil && !errors.Is(err, session.ErrNoSession) && !errors.Is(err, session.ErrEmptyRecording) {
		a.logger.Error().Err(err).Msg("stop after voice disconnect failed")
	}
	if errors.Is(err, session.ErrEmptyRecording) {
		a.replyAsync(gs.textChannelID, "I was disconnected; the recording was too short to keep.")
	}
}

// MeetingReady implements session.Notifier.
func (a *Adapter) MeetingReady(m *meeting.Meeting) {
	channelID := a.textChannel(m.GuildID)
	if channelID == "" {
		return
	}
	a.sendNotes(channelID, m)
	a.reply(channelID, fmt.Sprintf("Meeting saved! Use `%sgetnotes %s` to retrieve these notes again.",
		a.cfg.CommandPrefix, m.ID))
}

// SessionFailed implements session.Notifier.
func (a *Adapter) SessionFailed(st session.Status) {
	channelID := a.textChannel(st.GuildID)
	if channelID == "" {
		return
	}
	a.reply(channelID, fmt.Sprintf("❌ The %s stage failed: %v\nUse `%sretry` to try again or `%sabandon` to discard the meeting.",
		st.Failure.Stage, st.Failure.Err, a.cfg.CommandPrefix, a.cfg.CommandPrefix))
}

func (a *Adapter) guildState(guildID string) *guildState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.guilds[guildID]
}

func (a *Adapter) textChannel(guildID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gs, ok := a.guilds[guildID]; ok {
		return gs.textChannelID
	}
	return ""
}

// stopOnLeave finalizes any session on a voice channel the bot is leaving,
// so no recording is left without a frame source. It reports whether a
// meeting is now being processed; a recording below the minimum duration is
// discarded.
func (a *Adapter) stopOnLeave(voiceChannelID string) bool {
	_, err := a.sessions.Stop(voiceChannelID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrEmptyRecording),
		errors.Is(err, session.ErrNotRecording):
	default:
		a.logger.Error().Err(err).Str("channel_id", voiceChannelID).Msg("stop on channel switch failed")
	}
	return false
}

// leaveVoiceLocked disconnects and stops the receive loop. Caller holds mu.
func (a *Adapter) leaveVoiceLocked(guildID string, gs *guildState) {
	if err := gs.voice.Disconnect(); err != nil {
		a.logger.Warn().Err(err).Str("guild_id", guildID).Msg("voice disconnect failed")
	}
	delete(a.guilds, guildID)
}

// userVoiceChannel finds which voice channel the user currently occupies.
func (a *Adapter) userVoiceChannel(guildID, userID string) string {
	g, err := a.dg.State.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}

func (a *Adapter) reply(channelID, content string) {
	if _, err := a.dg.ChannelMessageSend(channelID, content); err != nil {
		a.logger.Warn().Err(err).Str("channel_id", channelID).Msg("message send failed")
	}
}

// replyAsync sends off the handler goroutine, for paths that hold mu.
func (a *Adapter) replyAsync(channelID, content string) {
	go a.reply(channelID, content)
}

func (a *Adapter) helpText() string {
	p := a.cfg.CommandPrefix
	return "**Meeting Notes Bot Commands:**\n" +
		"- `" + p + "join` - Join your current voice channel\n" +
		"- `" + p + "startmeeting [name]` - Start recording a meeting (name is optional)\n" +
		"- `" + p + "stopmeeting` - Stop recording and generate meeting notes\n" +
		"- `" + p + "getnotes [meeting_id]` - Get notes from a recent meeting\n" +
		"- `" + p + "status` - Show the current session state\n" +
		"- `" + p + "retry` - Re-run the failed pipeline stage\n" +
		"- `" + p + "abandon` - Discard a failed session\n" +
		"- `" + p + "help` - Show this help message"
}
