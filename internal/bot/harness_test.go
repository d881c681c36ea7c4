package bot

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/session"
	"github.com/mrcrazy10100/movie-bot/internal/store"
)

const testAdminID = 1

type fakeCatalog struct {
	*store.MemoryStore
	ensureUserFn  func(ctx context.Context, userID int64, username, defaultRole string) (store.User, error)
	insertMovieFn func(ctx context.Context, item store.Movie) (store.Movie, error)
}

func (f *fakeCatalog) EnsureUser(ctx context.Context, userID int64, username, defaultRole string) (store.User, error) {
	if f.ensureUserFn != nil {
		return f.ensureUserFn(ctx, userID, username, defaultRole)
	}
	return f.MemoryStore.EnsureUser(ctx, userID, username, defaultRole)
}

func (f *fakeCatalog) InsertMovie(ctx context.Context, item store.Movie) (store.Movie, error) {
	if f.insertMovieFn != nil {
		return f.insertMovieFn(ctx, item)
	}
	return f.MemoryStore.InsertMovie(ctx, item)
}

// flakySessions fails selected operations on top of a working store.
type flakySessions struct {
	*session.MemoryStore
	getErr   error
	clearErr error
}

func (f *flakySessions) Get(ctx context.Context, userID int64) (session.Session, bool, error) {
	if f.getErr != nil {
		return session.Session{}, false, f.getErr
	}
	return f.MemoryStore.Get(ctx, userID)
}

func (f *flakySessions) Clear(ctx context.Context, userID int64) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	return f.MemoryStore.Clear(ctx, userID)
}

type harness struct {
	t        *testing.T
	catalog  *fakeCatalog
	sessions session.Store
	router   *Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithSessions(t, session.NewMemoryStore(time.Hour))
}

func newHarnessWithSessions(t *testing.T, sessions session.Store) *harness {
	t.Helper()
	catalog := &fakeCatalog{MemoryStore: store.NewMemoryStore()}
	router := NewRouter(Options{
		Catalog:          catalog,
		Sessions:         sessions,
		BootstrapAdminID: testAdminID,
		SearchLimit:      5,
		LatestLimit:      10,
		Logger:           zap.NewNop(),
	})
	return &harness{t: t, catalog: catalog, sessions: sessions, router: router}
}

func (h *harness) text(actor int64, text string) Response {
	return h.router.Handle(context.Background(), Event{ActorID: actor, Kind: EventText, Text: text})
}

func (h *harness) cmd(actor int64, line string) Response {
	return h.router.Handle(context.Background(), CommandEvent(actor, "", line))
}

func (h *harness) press(actor int64, action Action) Response {
	return h.router.Handle(context.Background(), Event{ActorID: actor, Kind: EventCallback, Action: action})
}

func (h *harness) pressRaw(actor int64, data string) Response {
	return h.press(actor, ParseAction(data))
}

func (h *harness) photo(actor int64, ref string) Response {
	return h.router.Handle(context.Background(), Event{ActorID: actor, Kind: EventPhoto, Photo: ref})
}

func (h *harness) session(actor int64) (session.Session, bool) {
	h.t.Helper()
	sess, ok, err := h.sessions.Get(context.Background(), actor)
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	return sess, ok
}

func (h *harness) movies() []store.Movie {
	h.t.Helper()
	items, err := h.catalog.ListMovies(context.Background(), 0)
	if err != nil {
		h.t.Fatalf("list movies: %v", err)
	}
	return items
}

func (h *harness) pendingRequests() int {
	h.t.Helper()
	total, err := h.catalog.CountPendingRequests(context.Background())
	if err != nil {
		h.t.Fatalf("count requests: %v", err)
	}
	return total
}

func (h *harness) makeAgent(id int64) {
	h.t.Helper()
	if err := h.catalog.GrantAgent(context.Background(), id, testAdminID); err != nil {
		h.t.Fatalf("grant agent %d: %v", id, err)
	}
}

func (h *harness) seedMovie(title string) store.Movie {
	h.t.Helper()
	item, err := h.catalog.MemoryStore.InsertMovie(context.Background(), store.Movie{Title: title, Year: "2020", Link: "https://x.example/" + title, UploaderID: testAdminID})
	if err != nil {
		h.t.Fatalf("seed movie: %v", err)
	}
	return item
}

// fillDraft drives the wizard from upload through the link step.
func (h *harness) fillDraft(actor int64, inputs []string) {
	h.t.Helper()
	h.press(actor, Do(ActionUpload))
	for _, input := range inputs {
		h.text(actor, input)
	}
}

func hasAction(resp Response, kind ActionKind) bool {
	for _, row := range resp.Buttons {
		for _, b := range row {
			if b.Action.Kind == kind {
				return true
			}
		}
	}
	return false
}

var novaInputs = []string{"Nova", "2024", "1080p", "English", "1.2GB", "https://x.example/nova"}
