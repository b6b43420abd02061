package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aura-farm-transformer/internal/album"
	"aura-farm-transformer/internal/archive"
	"aura-farm-transformer/internal/openai"
	"aura-farm-transformer/internal/rating"
	"aura-farm-transformer/internal/session"
	"aura-farm-transformer/internal/styles"
	"aura-farm-transformer/internal/telegram"
	"aura-farm-transformer/internal/visitor"
)

type Options struct {
	Telegram *telegram.Client
	OpenAI   *openai.Client
	Packager *archive.Packager
	Sessions *session.Store
	Visitors *visitor.Tracker
	Logger   *slog.Logger

	// ArchiveTimeout bounds the result fetches behind /zip.
	ArchiveTimeout time.Duration
}

type Handler struct {
	tg             *telegram.Client
	ai             *openai.Client
	packager       *archive.Packager
	sessions       *session.Store
	visitors       *visitor.Tracker
	logger         *slog.Logger
	albums         *album.Aggregator
	archiveTimeout time.Duration
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	archiveTimeout := opts.ArchiveTimeout
	if archiveTimeout <= 0 {
		archiveTimeout = 2 * time.Minute
	}

	return &Handler{
		tg:             opts.Telegram,
		ai:             opts.OpenAI,
		packager:       opts.Packager,
		sessions:       opts.Sessions,
		visitors:       opts.Visitors,
		logger:         logger,
		archiveTimeout: archiveTimeout,
	}
}

func (h *Handler) SetAlbumAggregator(a *album.Aggregator) {
	h.albums = a
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(update.CallbackQuery)
	}
	if update.Message == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID
	userID := msg.From.ID

	state := h.sessions.Get(sessionKey(userID))
	h.recordVisit(state.ID)

	if msg.IsCommand() {
		return h.handleCommand(chatID, userID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, userID, msg)
	}

	if msg.Text != "" {
		if style, ok := styles.Parse(msg.Text); ok {
			h.sessions.Update(sessionKey(userID), func(st *session.State) { st.Style = style })
			return h.tg.SendText(chatID, fmt.Sprintf("Style set to %s. Now send me an image to transform. 🌱", style))
		}
		return h.tg.SendText(chatID, "Send an image to transform, or /help for the commands.")
	}

	return nil
}

// HandleBatch transforms each photo of an album once with the session
// style; the variation count is forced to one per source image.
func (h *Handler) HandleBatch(ctx context.Context, batch album.Batch) {
	state := h.sessions.Get(sessionKey(batch.UserID))
	if state.APIKey == "" {
		_ = h.tg.SendText(batch.ChatID, "Please provide your OpenAI API key first: /key <your-key>")
		return
	}

	style := state.Style
	if parsed, ok := styles.Parse(batch.Caption); ok {
		style = parsed
	}

	for _, fileID := range batch.FileIDs {
		if err := h.transformFile(ctx, batch.ChatID, batch.UserID, fileID, style, 1, state.Size, state.APIKey); err != nil {
			h.logger.Error("album item failed", "err", err)
			return
		}
	}
}

func (h *Handler) handleCommand(chatID int64, userID int64, msg *tgbotapi.Message) error {
	key := sessionKey(userID)

	switch msg.Command() {
	case "start":
		// HandleUpdate already recorded this session.
		count := h.visitors.Total()
		return h.tg.SendText(chatID,
			"🌱 Aura Farm Image Transformer\n\n"+
				"Send me an image and I will transform it into magical new styles.\n\n"+
				"Commands:\n"+
				"/styles - pick a transformation style\n"+
				"/key <api-key> - set your OpenAI API key\n"+
				"/count <1-4> - variations per image\n"+
				"/size <1024x1024|512x512|256x256> - output size\n"+
				"/last - show your last transformations\n"+
				"/zip - download them as an archive\n"+
				"/reset - start over\n\n"+
				fmt.Sprintf("👥 Visitors so far: %d", count),
		)
	case "help":
		return h.tg.SendText(chatID,
			"Send a photo (optionally with a style name as caption) and I transform it.\n"+
				"An album transforms every photo once.\n\n"+
				"Styles: "+styleList()+"\n"+
				"Set your key with /key, pick a style with /styles.",
		)
	case "styles":
		return h.sendStylePicker(chatID, userID)
	case "key":
		apiKey := strings.TrimSpace(msg.CommandArguments())
		if apiKey == "" {
			return h.tg.SendText(chatID, "Usage: /key <your OpenAI API key>")
		}
		h.sessions.Update(key, func(st *session.State) { st.APIKey = apiKey })
		return h.tg.SendText(chatID, "🔑 API key saved for this session. It is never stored on disk.")
	case "count":
		n, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
		if err != nil || n < 1 || n > 4 {
			return h.tg.SendText(chatID, "Usage: /count <1-4>")
		}
		h.sessions.Update(key, func(st *session.State) { st.Count = n })
		return h.tg.SendText(chatID, fmt.Sprintf("Will generate %d variation(s) per image.", n))
	case "size":
		size := strings.TrimSpace(msg.CommandArguments())
		if !openai.ValidSize(size) {
			return h.tg.SendText(chatID, "Usage: /size <"+strings.Join(openai.Sizes, "|")+">")
		}
		h.sessions.Update(key, func(st *session.State) { st.Size = size })
		return h.tg.SendText(chatID, "Output size set to "+size+".")
	case "last":
		state := h.sessions.Get(key)
		if len(state.Images) == 0 {
			return h.tg.SendText(chatID, "No transformations yet. Send me an image first!")
		}
		for i, url := range state.Images {
			caption := fmt.Sprintf("%s Transformation %d ✨", state.Style, i+1)
			if err := h.tg.SendPhotoURL(chatID, url, caption); err != nil {
				return err
			}
		}
		return nil
	case "zip":
		return h.sendArchive(chatID, key)
	case "reset":
		h.sessions.Reset(key)
		return h.tg.SendText(chatID, "✅ Session reset. Your key and results are gone.")
	default:
		return h.tg.SendText(chatID, "Unknown command, try /help.")
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, userID int64, msg *tgbotapi.Message) error {
	photo := msg.Photo[len(msg.Photo)-1]

	if msg.MediaGroupID != "" && h.albums != nil {
		h.albums.Add(album.Photo{
			ChatID:  chatID,
			UserID:  userID,
			AlbumID: msg.MediaGroupID,
			Caption: msg.Caption,
			FileID:  photo.FileID,
		})
		return nil
	}

	state := h.sessions.Get(sessionKey(userID))
	if state.APIKey == "" {
		return h.tg.SendText(chatID, "Please provide your OpenAI API key first: /key <your-key>")
	}

	style := state.Style
	if parsed, ok := styles.Parse(msg.Caption); ok {
		style = parsed
	}

	return h.transformFile(ctx, chatID, userID, photo.FileID, style, state.Count, state.Size, state.APIKey)
}

func (h *Handler) transformFile(ctx context.Context, chatID int64, userID int64, fileID string, style styles.Style, count int, size, apiKey string) error {
	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, fmt.Sprintf("🧙 Transforming your image to %s style...", style))

	data, _, err := h.tg.DownloadFile(ctx, fileID)
	if err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not download your image, please resend it.")
	}

	urls, err := h.ai.Transform(ctx, apiKey, data, style, count, size)
	if err != nil {
		h.logger.Error("transformation failed", "style", style, "err", err)
		return h.tg.SendText(chatID, "❌ Error transforming image: "+err.Error())
	}
	if len(urls) == 0 {
		return h.tg.SendText(chatID, "❌ The image service returned no results, please try again.")
	}

	h.sessions.Update(sessionKey(userID), func(st *session.State) {
		st.Style = style
		st.Images = append([]string(nil), urls...)
	})

	for i, url := range urls {
		r := rating.New(nil)
		caption := fmt.Sprintf("%s Transformation %d ✨\nRainbow Rating: %d/10, %s", style, i+1, r.Score, r.Caption)
		if err := h.tg.SendPhotoURL(chatID, url, caption); err != nil {
			return err
		}
	}

	return h.sendArchive(chatID, sessionKey(userID))
}

func (h *Handler) sendArchive(chatID int64, key string) error {
	state := h.sessions.Get(key)
	if len(state.Images) == 0 {
		return h.tg.SendText(chatID, "Nothing to archive yet. Send me an image first!")
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.archiveTimeout)
	defer cancel()

	data, failures, err := h.packager.Package(ctx, state.Images, state.Style)
	if err != nil {
		h.logger.Error("packaging failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not build the archive, please try again.")
	}

	for _, f := range failures {
		_ = h.tg.SendText(chatID, fmt.Sprintf("🚨 Failed to fetch image %d. Error code: %d", f.Index+1, f.Status))
	}

	caption := fmt.Sprintf("🔮 All your %s transformations", state.Style)
	return h.tg.SendDocument(chatID, archive.Filename(state.Style), data, caption)
}

func (h *Handler) recordVisit(sessionID string) {
	if _, err := h.visitors.Record(sessionID); err != nil {
		h.logger.Error("visitor tracking failed", "err", err)
	}
}

func sessionKey(userID int64) string {
	return fmt.Sprintf("tg:%d", userID)
}

func styleList() string {
	names := make([]string, 0, len(styles.All()))
	for _, s := range styles.All() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
