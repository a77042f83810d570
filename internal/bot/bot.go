package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/xaenox/planner-bot/internal/director"
	"github.com/xaenox/planner-bot/internal/kvstore"
	"github.com/xaenox/planner-bot/internal/llm"
	"github.com/xaenox/planner-bot/internal/models"
	"github.com/xaenox/planner-bot/internal/pipeline"
	"github.com/xaenox/planner-bot/internal/storage"
	"github.com/xaenox/planner-bot/internal/worker"
)

type Bot struct {
	api         *tgbotapi.BotAPI
	pipeline    *pipeline.Pipeline
	director    *director.Director
	storage     storage.Storage
	store       kvstore.Store
	worker      *worker.Worker
	transcriber llm.Transcriber
	logger      *zap.Logger
}

func New(token string, p *pipeline.Pipeline, d *director.Director, st storage.Storage, store kvstore.Store, w *worker.Worker, transcriber llm.Transcriber, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		api:         api,
		pipeline:    p,
		director:    d,
		storage:     st,
		store:       store,
		worker:      w,
		transcriber: transcriber,
		logger:      logger,
	}, nil
}

func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			go b.handleCallback(update.CallbackQuery)
		case update.Message != nil:
			go b.handleMessage(update.Message)
		}
	}

	return nil
}

func (b *Bot) handleMessage(message *tgbotapi.Message) {
	ctx := context.Background()

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if message.Voice != nil || message.Audio != nil {
		b.handleVoice(ctx, message)
		return
	}

	text := message.Text
	if message.Caption != "" {
		text = message.Caption
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	b.processText(ctx, message, text, false)
}

// forwardedFrom returns the original sender's name for forwarded messages,
// or "" for ordinary ones.
func forwardedFrom(message *tgbotapi.Message) string {
	if message.ForwardFrom != nil {
		return strings.TrimSpace(message.ForwardFrom.FirstName + " " + message.ForwardFrom.LastName)
	}
	if message.ForwardFromChat != nil {
		return message.ForwardFromChat.Title
	}
	return message.ForwardSenderName
}

func (b *Bot) processText(ctx context.Context, message *tgbotapi.Message, text string, isVoice bool) {
	userID := message.From.ID

	prefs, err := b.storage.GetUserPrefs(userID)
	if err != nil {
		b.logger.Error("Failed to load user prefs",
			zap.Error(err),
			zap.Int64("user_id", userID))
	}

	result, err := b.pipeline.ParseMessage(ctx, pipeline.Request{
		UserID:        userID,
		Text:          text,
		UserTimezone:  prefs.Timezone,
		ForwardedFrom: forwardedFrom(message),
		IsVoice:       isVoice,
	})
	if err != nil {
		b.logger.Error("Failed to parse message",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.sendMessage(message.Chat.ID, "Сервис временно недоступен. Попробуйте еще раз через минуту.")
		return
	}

	switch result.ContentType {
	case models.ContentEvent:
		b.respondEvent(ctx, message, result)
	case models.ContentNote:
		b.respondNote(message, result)
	default:
		clarification := result.ClarificationNeeded
		if clarification == "" {
			clarification = "Не понял сообщение. Уточните, пожалуйста, что нужно сделать."
		}
		b.sendMessage(message.Chat.ID, clarification)
	}
}

func (b *Bot) respondEvent(ctx context.Context, message *tgbotapi.Message, result models.ParsedContent) {
	if result.StartDatetime == nil {
		b.sendMessage(message.Chat.ID, result.ClarificationNeeded)
		return
	}

	conference := b.director.ShouldAddConference(result.Title, result.Participants)

	id, err := b.savePending(ctx, pendingEvent{
		UserID:     message.From.ID,
		ChatID:     message.Chat.ID,
		Content:    result,
		Conference: conference,
	})
	if err != nil {
		b.logger.Error("Failed to save pending event", zap.Error(err))
		b.sendMessage(message.Chat.ID, "Не удалось сохранить событие. Попробуйте еще раз.")
		return
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatEventPreview(result, conference))
	msg.ReplyToMessageID = message.MessageID
	msg.ReplyMarkup = eventKeyboard(id, conference)

	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send event preview", zap.Error(err))
	}
}

func (b *Bot) respondNote(message *tgbotapi.Message, result models.ParsedContent) {
	title := result.Title
	if title == "" {
		title = result.NoteContent
	}
	b.sendMessage(message.Chat.ID, "📝 Записал заметку: "+title)
}

func formatEventPreview(result models.ParsedContent, conference string) string {
	var sb strings.Builder

	sb.WriteString("📅 ")
	sb.WriteString(result.Title)
	sb.WriteString("\n🕐 ")
	sb.WriteString(result.StartDatetime.Format("02.01.2006 15:04"))
	if result.EndDatetime != nil {
		sb.WriteString(" – ")
		sb.WriteString(result.EndDatetime.Format("15:04"))
	}
	if result.Location != "" {
		sb.WriteString("\n📍 ")
		sb.WriteString(result.Location)
	}
	if len(result.Participants) > 0 {
		sb.WriteString("\n👥 ")
		sb.WriteString(strings.Join(result.Participants, ", "))
	}
	if conference != "" {
		sb.WriteString("\n🔗 Добавлю ссылку: ")
		sb.WriteString(conferenceLabel(conference))
	}
	sb.WriteString("\n\nСоздать событие?")

	return sb.String()
}

func conferenceLabel(conference string) string {
	switch conference {
	case "zoom":
		return "Zoom"
	case "google_meet":
		return "Google Meet"
	default:
		return conference
	}
}

func eventKeyboard(id, conference string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("✅ Создать", "confirm:"+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "cancel:"+id),
		},
	}

	if conference == "" {
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("➕ Google Meet", "meet:"+id),
			tgbotapi.NewInlineKeyboardButtonData("➕ Zoom", "zoom:"+id),
		})
	}

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	action, id, found := strings.Cut(query.Data, ":")
	if !found {
		return
	}

	pending, err := b.loadPending(ctx, id)
	if err != nil {
		b.answerCallback(query.ID, "Событие устарело, отправьте сообщение заново.")
		return
	}

	switch action {
	case "confirm":
		b.confirmEvent(ctx, query, id, pending)
	case "cancel":
		b.deletePending(ctx, id)
		b.editMessage(query, "Отменено.")
		b.answerCallback(query.ID, "")
	case "meet", "zoom":
		if action == "meet" {
			pending.Conference = "google_meet"
		} else {
			pending.Conference = "zoom"
		}
		b.confirmEvent(ctx, query, id, pending)
	}
}

func (b *Bot) confirmEvent(ctx context.Context, query *tgbotapi.CallbackQuery, id string, pending pendingEvent) {
	prefs, err := b.storage.GetUserPrefs(pending.UserID)
	if err != nil {
		b.logger.Error("Failed to load user prefs", zap.Error(err))
	}

	chatID := pending.ChatID
	b.worker.EnqueueCreateEvent(worker.CreateEventRequest{
		UserID:     pending.UserID,
		Content:    pending.Content,
		CalendarID: prefs.PrimaryCalendar,
		Conference: pending.Conference,
		OnDone: func(eventID string, err error) {
			if err != nil {
				b.sendMessage(chatID, "Не удалось создать событие. Попробуйте еще раз позже.")
				return
			}
			b.sendMessage(chatID, "✅ Событие создано: "+pending.Content.Title)
		},
	})

	b.deletePending(ctx, id)
	b.editMessage(query, "⏳ Создаю событие...")
	b.answerCallback(query.ID, "")
}

func (b *Bot) handleVoice(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID

	fileID := ""
	duration := 0
	switch {
	case message.Voice != nil:
		fileID = message.Voice.FileID
		duration = message.Voice.Duration
	case message.Audio != nil:
		fileID = message.Audio.FileID
		duration = message.Audio.Duration
	}

	decision := b.director.DecideTranscriptionMode(ctx, userID, duration)
	if decision.Mode == models.ModeQueueForLater {
		delay := time.Duration(decision.DelaySeconds) * time.Second
		b.worker.EnqueueDelayed("transcribe_retry", delay, func(ctx context.Context) error {
			return b.transcribeAndProcess(ctx, message, fileID)
		})
		b.sendMessage(message.Chat.ID,
			"⏳ Лимит распознавания голосовых сообщений исчерпан. Я попробую распознать это сообщение позже автоматически.")
		return
	}

	if err := b.transcribeAndProcess(ctx, message, fileID); err != nil {
		b.logger.Error("Failed to process voice message",
			zap.Error(err),
			zap.Int64("user_id", userID))
		b.sendMessage(message.Chat.ID, "Не удалось распознать голосовое сообщение. Попробуйте еще раз.")
	}
}

func (b *Bot) transcribeAndProcess(ctx context.Context, message *tgbotapi.Message, fileID string) error {
	audio, err := b.downloadFile(fileID)
	if err != nil {
		return fmt.Errorf("failed to download voice file: %w", err)
	}

	text, err := b.transcriber.TranscribeAudio(ctx, audio, "voice.ogg")
	if err != nil {
		return fmt.Errorf("failed to transcribe: %w", err)
	}

	b.director.RecordUsage(ctx, message.From.ID, "whisper")

	if strings.TrimSpace(text) == "" {
		b.sendMessage(message.Chat.ID, "В голосовом сообщении не удалось разобрать слова.")
		return nil
	}

	b.processText(ctx, message, text, true)
	return nil
}

func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}

	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "timezone":
		b.handleTimezone(message)
	default:
		b.sendMessage(message.Chat.ID, "Неизвестная команда. Используйте /help.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := `Привет! Я помогу вести календарь и заметки. 📅

Просто напишите, что запланировать: "завтра в 15:00 созвон с Петровым".
Можно отправлять голосовые сообщения и пересылать письма.

/help - список команд`

	b.sendMessage(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `Доступные команды:
/start - начать работу
/help - эта справка
/timezone <зона> - установить часовой пояс, например /timezone Europe/Moscow

Примеры сообщений:
- завтра в 15:00 созвон с Петровым
- встреча с Иваном в офисе в 10:00
- Идея: добавить геймификацию в приложение`

	b.sendMessage(message.Chat.ID, help)
}

func (b *Bot) handleTimezone(message *tgbotapi.Message) {
	arg := strings.TrimSpace(message.CommandArguments())
	if arg == "" {
		prefs, err := b.storage.GetUserPrefs(message.From.ID)
		if err != nil {
			b.logger.Error("Failed to load user prefs", zap.Error(err))
			return
		}
		b.sendMessage(message.Chat.ID, "Текущий часовой пояс: "+prefs.Timezone)
		return
	}

	if _, err := time.LoadLocation(arg); err != nil {
		b.sendMessage(message.Chat.ID, "Не знаю такой часовой пояс. Пример: Europe/Moscow")
		return
	}

	if err := b.storage.SetTimezone(message.From.ID, arg); err != nil {
		b.logger.Error("Failed to set timezone",
			zap.Error(err),
			zap.Int64("user_id", message.From.ID))
		b.sendMessage(message.Chat.ID, "Не удалось сохранить часовой пояс. Попробуйте еще раз.")
		return
	}

	b.sendMessage(message.Chat.ID, "Часовой пояс сохранен: "+arg)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) editMessage(query *tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, text)
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Error("Failed to edit message", zap.Error(err))
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := b.api.Request(callback); err != nil {
		b.logger.Error("Failed to answer callback", zap.Error(err))
	}
}
