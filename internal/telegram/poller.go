package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/bot"
)

const (
	maxMessageUnits = 4096
	maxCaptionUnits = 1024
	minBackoff      = 2 * time.Second
	maxBackoff      = 15 * time.Second
)

// Handler turns one inbound event into one reply.
type Handler interface {
	Handle(ctx context.Context, ev bot.Event) bot.Response
}

type HandlerFunc func(ctx context.Context, ev bot.Event) bot.Response

func (f HandlerFunc) Handle(ctx context.Context, ev bot.Event) bot.Response {
	return f(ctx, ev)
}

type PollerOptions struct {
	Client         *Client
	Handler        Handler
	OffsetFile     string
	PollTimeoutSec int
	Logger         *zap.Logger
}

// Poller runs the getUpdates loop. Updates are handled one at a time in
// arrival order, so a user's events never race each other.
type Poller struct {
	client     *Client
	handler    Handler
	offsetFile string
	timeoutSec int
	logger     *zap.Logger
	sleep      func(context.Context, time.Duration) error
}

func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Client == nil || opts.Client.token == "" {
		return nil, errors.New("telegram token is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("telegram handler is required")
	}
	timeoutSec := opts.PollTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 30
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		client:     opts.Client,
		handler:    opts.Handler,
		offsetFile: strings.TrimSpace(opts.OffsetFile),
		timeoutSec: timeoutSec,
		logger:     logger,
		sleep:      sleepOrCancel,
	}, nil
}

// Run polls until ctx is cancelled. It returns nil on cancellation.
func (p *Poller) Run(ctx context.Context) error {
	offset, err := loadOffset(p.offsetFile)
	if err != nil {
		return err
	}
	p.logger.Info("telegram poller started", zap.Int("poll_timeout_sec", p.timeoutSec), zap.Int64("offset", offset))

	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			p.logger.Info("telegram poller stopping")
			return nil
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.timeoutSec)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("getUpdates failed", zap.Error(err), zap.Duration("backoff", backoff))
			if sleepErr := p.sleep(ctx, backoff); sleepErr != nil {
				return nil
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = minBackoff

		next := offset
		for _, upd := range updates {
			p.process(ctx, upd)
			if upd.UpdateID >= next {
				next = upd.UpdateID + 1
			}
		}
		if next > offset {
			offset = next
			if err := saveOffset(p.offsetFile, offset); err != nil {
				p.logger.Warn("save offset failed", zap.Error(err))
			}
		}
	}
}

func (p *Poller) process(ctx context.Context, upd Update) {
	if upd.CallbackQuery != nil && upd.CallbackQuery.ID != "" {
		if err := p.client.AnswerCallbackQuery(ctx, upd.CallbackQuery.ID); err != nil {
			p.logger.Warn("answerCallbackQuery failed", zap.Error(err))
		}
	}
	chatID, ev, ok := toEvent(upd)
	if !ok {
		return
	}
	resp := p.handler.Handle(ctx, ev)
	if err := p.send(ctx, chatID, resp); err != nil {
		p.logger.Warn("send reply failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", ev.ActorID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
}

// toEvent maps an update to a bot event and the chat to reply to.
func toEvent(upd Update) (int64, bot.Event, bool) {
	if cb := upd.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.Message.Chat.ID == 0 || cb.From.ID == 0 {
			return 0, bot.Event{}, false
		}
		return cb.Message.Chat.ID, bot.Event{
			ActorID:  cb.From.ID,
			Username: cb.From.Username,
			Kind:     bot.EventCallback,
			Action:   bot.ParseAction(cb.Data),
		}, true
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.From.ID == 0 || msg.Chat.ID == 0 {
		return 0, bot.Event{}, false
	}
	actor, username := msg.From.ID, msg.From.Username
	if len(msg.Photo) > 0 {
		return msg.Chat.ID, bot.Event{
			ActorID:  actor,
			Username: username,
			Kind:     bot.EventPhoto,
			Photo:    largestPhoto(msg.Photo),
		}, true
	}
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		return msg.Chat.ID, bot.CommandEvent(actor, username, text), true
	}
	return msg.Chat.ID, bot.Event{ActorID: actor, Username: username, Kind: bot.EventText, Text: msg.Text}, true
}

func largestPhoto(sizes []PhotoSize) string {
	best := sizes[len(sizes)-1]
	for _, size := range sizes {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best.FileID
}

func (p *Poller) send(ctx context.Context, chatID int64, resp bot.Response) error {
	markup := keyboard(resp.Buttons)
	text := strings.TrimSpace(resp.Text)

	if resp.PhotoRef != "" {
		if utf16Len(text) <= maxCaptionUnits {
			err := p.client.SendPhoto(ctx, chatID, resp.PhotoRef, text, markup)
			if err == nil {
				return nil
			}
			p.logger.Warn("sendPhoto failed; falling back to text", zap.Error(err))
		} else if err := p.client.SendPhoto(ctx, chatID, resp.PhotoRef, "", nil); err != nil {
			p.logger.Warn("sendPhoto failed", zap.Error(err))
		}
	}
	if text == "" {
		return nil
	}

	chunks := splitMessage(text, maxMessageUnits)
	for i, chunk := range chunks {
		var chunkMarkup *InlineKeyboardMarkup
		if i == len(chunks)-1 {
			chunkMarkup = markup
		}
		if err := p.client.SendMessage(ctx, chatID, chunk, chunkMarkup); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

func keyboard(rows [][]bot.Button) *InlineKeyboardMarkup {
	var out [][]InlineKeyboardButton
	for _, row := range rows {
		var buttons []InlineKeyboardButton
		for _, b := range row {
			btn := InlineKeyboardButton{Text: b.Label}
			if b.URL != "" {
				btn.URL = b.URL
			} else {
				btn.CallbackData = b.Action.Encode()
			}
			buttons = append(buttons, btn)
		}
		if len(buttons) > 0 {
			out = append(out, buttons)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &InlineKeyboardMarkup{InlineKeyboard: out}
}

// splitMessage cuts text into chunks of at most limit UTF-16 code units,
// the unit Telegram measures message length in. A cut prefers a blank
// line, then a newline, then a space, and never lands inside a rune.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = maxMessageUnits
	}

	var out []string
	for text != "" {
		if utf16Len(text) <= limit {
			out = append(out, text)
			break
		}
		head := prefixWithin(text, limit)
		cut := len(head)
		for _, sep := range []string{"\n\n", "\n", " "} {
			if i := strings.LastIndex(head, sep); i > len(head)/2 {
				cut = i
				break
			}
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(text)
		}
		out = append(out, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	return out
}

func utf16Len(s string) int {
	units := 0
	for _, r := range s {
		units += runeUnits(r)
	}
	return units
}

// prefixWithin returns the longest prefix of s that fits in limit units.
func prefixWithin(s string, limit int) string {
	units := 0
	for i, r := range s {
		n := runeUnits(r)
		if units+n > limit {
			return s[:i]
		}
		units += n
	}
	return s
}

func runeUnits(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

func loadOffset(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read telegram offset file: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	offset, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse telegram offset: %w", err)
	}
	if offset < 0 {
		return 0, nil
	}
	return offset, nil
}

func saveOffset(path string, offset int64) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create telegram offset dir: %w", err)
	}
	return os.WriteFile(path, []byte(strconv.FormatInt(offset, 10)+"\n"), 0o644)
}

func sleepOrCancel(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
