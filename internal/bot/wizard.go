package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/session"
	"github.com/mrcrazy10100/movie-bot/internal/store"
)

type textStep struct {
	label  string
	prompt string
	set    func(d *session.Draft, value string)
	next   session.Step
}

var textSteps = map[session.Step]textStep{
	session.StepTitle: {
		label:  "Title",
		prompt: "🎬 Step 1/6: Send the movie title.",
		set:    func(d *session.Draft, v string) { d.Title = v },
		next:   session.StepYear,
	},
	session.StepYear: {
		label:  "Year",
		prompt: "📅 Step 2/6: Send the release year.",
		set:    func(d *session.Draft, v string) { d.Year = v },
		next:   session.StepQuality,
	},
	session.StepQuality: {
		label:  "Quality",
		prompt: "🎞️ Step 3/6: Send the quality (e.g. 720p, 1080p).",
		set:    func(d *session.Draft, v string) { d.Quality = v },
		next:   session.StepLanguage,
	},
	session.StepLanguage: {
		label:  "Language",
		prompt: "🗣️ Step 4/6: Send the language.",
		set:    func(d *session.Draft, v string) { d.Language = v },
		next:   session.StepSize,
	},
	session.StepSize: {
		label:  "Size",
		prompt: "💾 Step 5/6: Send the file size (e.g. 1.2GB).",
		set:    func(d *session.Draft, v string) { d.Size = v },
		next:   session.StepLink,
	},
	session.StepLink: {
		label:  "Link",
		prompt: "🔗 Step 6/6: Send the download link (must start with http:// or https://).",
		set:    func(d *session.Draft, v string) { d.Link = v },
		next:   session.StepMediaChoice,
	},
}

const (
	mediaChoicePrompt = "🖼️ Send a poster photo now, or continue without one."
	mediaWaitPrompt   = "🖼️ Send the poster photo now."
	invalidLinkNotice = "❌ Invalid link. It must start with http:// or https://."
	photoNotExpected  = "❌ This is not the time to send a photo!"
	nothingToConfirm  = "❓ There is no upload waiting for confirmation."
	uploadCancelled   = "❌ Upload cancelled!"
)

// Wizard drives the multi-step catalog submission.
type Wizard struct {
	sessions session.Store
	catalog  Catalog
	search   Searcher
	media    MediaArchiver
	logger   *zap.Logger
}

func NewWizard(sessions session.Store, catalog Catalog, search Searcher, media MediaArchiver, logger *zap.Logger) *Wizard {
	if search == nil {
		search = catalogSearch{catalog: catalog}
	}
	if media == nil {
		media = noopArchiver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{sessions: sessions, catalog: catalog, search: search, media: media, logger: logger}
}

func (w *Wizard) load(ctx context.Context, userID int64) (session.Session, bool, error) {
	sess, ok, err := w.sessions.Get(ctx, userID)
	if err != nil {
		return session.Session{}, false, storageError("load session", err)
	}
	return sess, ok, nil
}

func (w *Wizard) save(ctx context.Context, userID int64, sess session.Session) error {
	if err := w.sessions.Set(ctx, userID, sess); err != nil {
		return storageError("save session", err)
	}
	return nil
}

// Start discards any draft in progress and asks for the title.
func (w *Wizard) Start(ctx context.Context, userID int64) (Response, error) {
	if err := w.save(ctx, userID, session.Session{UserID: userID, Step: session.StepTitle}); err != nil {
		return Response{}, err
	}
	return Response{
		Text:    "📤 New upload\n\n" + textSteps[session.StepTitle].prompt,
		Buttons: [][]Button{cancelRow()},
	}, nil
}

// Text records input for the current step.
func (w *Wizard) Text(ctx context.Context, sess session.Session, text string) (Response, error) {
	value := strings.TrimSpace(text)

	step, ok := textSteps[sess.Step]
	if !ok {
		return w.reprompt(sess), nil
	}
	if value == "" {
		return Response{Text: step.prompt, Buttons: [][]Button{cancelRow()}}, nil
	}
	if sess.Step == session.StepLink && !validLink(value) {
		return Response{
			Text:    invalidLinkNotice + "\n\n" + step.prompt,
			Buttons: [][]Button{cancelRow()},
		}, nil
	}

	step.set(&sess.Draft, value)
	sess.Step = step.next
	if err := w.save(ctx, sess.UserID, sess); err != nil {
		return Response{}, err
	}

	confirmation := fmt.Sprintf("✅ %s saved: %s\n\n", step.label, value)
	if next, ok := textSteps[sess.Step]; ok {
		return Response{Text: confirmation + next.prompt, Buttons: [][]Button{cancelRow()}}, nil
	}
	return Response{Text: confirmation + mediaChoicePrompt, Buttons: mediaChoiceButtons()}, nil
}

// reprompt answers text sent while the wizard waits for a photo or a button.
func (w *Wizard) reprompt(sess session.Session) Response {
	switch sess.Step {
	case session.StepMediaChoice:
		return Response{Text: mediaChoicePrompt, Buttons: mediaChoiceButtons()}
	case session.StepMediaWait:
		return Response{Text: mediaWaitPrompt, Buttons: mediaChoiceButtons()}
	default:
		return summaryResponse(sess)
	}
}

func validLink(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// Photo attaches a media reference and shows the summary.
func (w *Wizard) Photo(ctx context.Context, sess session.Session, ref string) (Response, error) {
	if !sess.AwaitingMedia() {
		return Response{Text: photoNotExpected}, nil
	}
	sess.MediaRef = ref
	sess.Step = session.StepSummary
	if err := w.save(ctx, sess.UserID, sess); err != nil {
		return Response{}, err
	}
	resp := summaryResponse(sess)
	resp.Text = "✅ Poster received!\n\n" + resp.Text
	return resp, nil
}

// AddMedia asks for a photo from the media choice or the summary.
func (w *Wizard) AddMedia(ctx context.Context, userID int64) (Response, error) {
	sess, ok, err := w.load(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if !ok || (sess.Step != session.StepMediaChoice && sess.Step != session.StepSummary) {
		return Response{Text: photoNotExpected}, nil
	}
	sess.Step = session.StepMediaWait
	if err := w.save(ctx, userID, sess); err != nil {
		return Response{}, err
	}
	return Response{Text: mediaWaitPrompt, Buttons: mediaChoiceButtons()}, nil
}

// SkipMedia moves to the summary without a photo.
func (w *Wizard) SkipMedia(ctx context.Context, userID int64) (Response, error) {
	sess, ok, err := w.load(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if !ok || !sess.AwaitingMedia() {
		return Response{Text: photoNotExpected}, nil
	}
	sess.Step = session.StepSummary
	if err := w.save(ctx, userID, sess); err != nil {
		return Response{}, err
	}
	return summaryResponse(sess), nil
}

// Confirm persists the draft. On storage failure the session is kept so the
// user can retry without re-entering anything.
func (w *Wizard) Confirm(ctx context.Context, userID int64) (Response, error) {
	sess, ok, err := w.load(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if !ok || sess.Step != session.StepSummary {
		return Response{Text: nothingToConfirm, Buttons: [][]Button{homeRow()}}, nil
	}

	item, err := w.catalog.InsertMovie(ctx, store.Movie{
		Title:      sess.Draft.Title,
		Year:       sess.Draft.Year,
		Quality:    sess.Draft.Quality,
		Language:   sess.Draft.Language,
		Size:       sess.Draft.Size,
		Link:       sess.Draft.Link,
		MediaRef:   sess.MediaRef,
		UploaderID: userID,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Response{}, storageError("save movie", err)
	}

	if err := w.finish(ctx, userID); err != nil {
		w.logger.Error("close session after confirm", zap.Int64("user_id", userID), zap.Int64("movie_id", item.ID), zap.Error(err))
	}
	w.search.IndexMovie(item)
	w.media.ArchiveAsync(item.ID, item.MediaRef)
	w.logger.Info("movie uploaded", zap.Int64("movie_id", item.ID), zap.Int64("uploader_id", userID))

	return Response{
		Text:    fmt.Sprintf("✅ Movie uploaded!\n\n🎬 %s\n🆔 ID: %d", item.Title, item.ID),
		Buttons: [][]Button{{{Label: "🎬 View", Action: DoWithID(ActionMovie, item.ID)}}, homeRow()},
	}, nil
}

// finish ends the wizard once the entry is saved. If Clear fails the
// session is parked at idle, so a repeated confirm has nothing to insert.
func (w *Wizard) finish(ctx context.Context, userID int64) error {
	clearErr := w.sessions.Clear(ctx, userID)
	if clearErr == nil {
		return nil
	}
	if err := w.sessions.Set(ctx, userID, session.Session{UserID: userID, Step: session.StepIdle}); err != nil {
		return errors.Join(clearErr, err)
	}
	return nil
}

// Cancel discards the draft. It is safe to call with no session.
func (w *Wizard) Cancel(ctx context.Context, userID int64) (Response, error) {
	if err := w.sessions.Clear(ctx, userID); err != nil {
		return Response{}, storageError("clear session", err)
	}
	return Response{Text: uploadCancelled, Buttons: [][]Button{homeRow()}}, nil
}

func summaryResponse(sess session.Session) Response {
	poster := "none"
	if sess.MediaRef != "" {
		poster = "attached"
	}
	var b strings.Builder
	b.WriteString("📋 Upload summary\n\n")
	fmt.Fprintf(&b, "🎬 Title: %s\n", sess.Draft.Title)
	fmt.Fprintf(&b, "📅 Year: %s\n", sess.Draft.Year)
	fmt.Fprintf(&b, "🎞️ Quality: %s\n", sess.Draft.Quality)
	fmt.Fprintf(&b, "🗣️ Language: %s\n", sess.Draft.Language)
	fmt.Fprintf(&b, "💾 Size: %s\n", sess.Draft.Size)
	fmt.Fprintf(&b, "🔗 Link: %s\n", sess.Draft.Link)
	fmt.Fprintf(&b, "🖼️ Poster: %s\n\n", poster)
	b.WriteString("Confirm to publish or cancel to discard.")

	buttons := [][]Button{{{Label: "✅ Confirm upload", Action: Do(ActionConfirm)}}}
	if sess.MediaRef == "" {
		buttons = append(buttons, []Button{{Label: "🖼️ Add poster", Action: Do(ActionAddMedia)}})
	}
	buttons = append(buttons, cancelRow())
	return Response{Text: b.String(), Buttons: buttons, PhotoRef: sess.MediaRef}
}

func mediaChoiceButtons() [][]Button {
	return [][]Button{
		{{Label: "⏭️ Continue without poster", Action: Do(ActionSkipMedia)}},
		cancelRow(),
	}
}
