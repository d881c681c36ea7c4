package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type catalog interface {
	EnsureUser(ctx context.Context, userID int64, username, defaultRole string) (User, error)
	GetRole(ctx context.Context, userID int64) (string, error)
	SetRole(ctx context.Context, userID int64, role string) error
	InsertMovie(ctx context.Context, item Movie) (Movie, error)
	ListMovies(ctx context.Context, limit int) ([]Movie, error)
	SearchMoviesByTitle(ctx context.Context, substring string, limit int) ([]Movie, error)
	GetMovie(ctx context.Context, movieID int64) (Movie, error)
	DeleteMovie(ctx context.Context, movieID int64) error
	GrantAgent(ctx context.Context, agentID, grantedBy int64) error
	RevokeAgent(ctx context.Context, agentID int64) (bool, error)
	ListAgents(ctx context.Context) ([]Agent, error)
	GetAgent(ctx context.Context, agentID int64) (Agent, error)
	InsertRequest(ctx context.Context, item Request) (Request, error)
	ListRequestsByUser(ctx context.Context, userID int64) ([]Request, error)
	CountUsers(ctx context.Context) (int, error)
	CountMovies(ctx context.Context) (int, error)
	CountAgents(ctx context.Context) (int, error)
	CountPendingRequests(ctx context.Context) (int, error)
}

var (
	_ catalog = (*SQLStore)(nil)
	_ catalog = (*MemoryStore)(nil)
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&_pragma=foreign_keys(1)", t.Name())
	db, err := Open(ctx, DialectSQLite, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyMigrations(ctx, db, DialectSQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewSQLStore(db, DialectSQLite)
}

func forEachStore(t *testing.T, fn func(t *testing.T, s catalog)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestEnsureUserKeepsRoleAndRefreshesUsername(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		ctx := context.Background()
		user, err := s.EnsureUser(ctx, 42, "nova", "user")
		if err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		if user.Role != "user" || user.Username != "nova" {
			t.Fatalf("unexpected user: %+v", user)
		}
		if err := s.SetRole(ctx, 42, "agent"); err != nil {
			t.Fatalf("SetRole: %v", err)
		}

		user, err = s.EnsureUser(ctx, 42, "nova_x", "user")
		if err != nil {
			t.Fatalf("EnsureUser again: %v", err)
		}
		if user.Role != "agent" {
			t.Fatalf("role = %q, want agent", user.Role)
		}
		if user.Username != "nova_x" {
			t.Fatalf("username = %q, want nova_x", user.Username)
		}

		user, err = s.EnsureUser(ctx, 42, "", "user")
		if err != nil {
			t.Fatalf("EnsureUser blank: %v", err)
		}
		if user.Username != "nova_x" {
			t.Fatalf("blank username overwrote stored one: %q", user.Username)
		}
	})
}

func TestGetRoleUnknownUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		if _, err := s.GetRole(context.Background(), 999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetRole err = %v, want ErrNotFound", err)
		}
	})
}

func TestSearchMoviesByTitleFoldsNonASCII(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		ctx := context.Background()
		for _, title := range []string{"Амели", "Crème Brûlée", "Ödipus"} {
			if _, err := s.InsertMovie(ctx, Movie{Title: title, Link: "https://x.example/m", UploaderID: 1}); err != nil {
				t.Fatalf("InsertMovie %q: %v", title, err)
			}
		}

		cases := map[string]string{
			"Амели":  "Амели",
			"амели":  "Амели",
			"АМ":     "Амели",
			"CRÈME":  "Crème Brûlée",
			"brûlée": "Crème Brûlée",
			"ödi":    "Ödipus",
		}
		for query, want := range cases {
			hits, err := s.SearchMoviesByTitle(ctx, query, 5)
			if err != nil {
				t.Fatalf("SearchMoviesByTitle %q: %v", query, err)
			}
			if len(hits) != 1 || hits[0].Title != want {
				t.Fatalf("query %q: got=%+v want %q", query, hits, want)
			}
		}
	})
}

func TestSearchMoviesByTitle(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		ctx := context.Background()
		for _, title := range []string{"Nova", "Supernova Rising", "Dune", "100% Pure", "snake_case"} {
			if _, err := s.InsertMovie(ctx, Movie{Title: title, Link: "https://x.example/" + title, UploaderID: 1}); err != nil {
				t.Fatalf("InsertMovie %q: %v", title, err)
			}
		}

		hits, err := s.SearchMoviesByTitle(ctx, "NOV", 5)
		if err != nil {
			t.Fatalf("SearchMoviesByTitle: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("got=%d want=2 hits", len(hits))
		}
		if hits[0].Title != "Supernova Rising" || hits[1].Title != "Nova" {
			t.Fatalf("hits not newest first: %q, %q", hits[0].Title, hits[1].Title)
		}

		hits, err = s.SearchMoviesByTitle(ctx, "%", 5)
		if err != nil {
			t.Fatalf("SearchMoviesByTitle %%: %v", err)
		}
		if len(hits) != 1 || hits[0].Title != "100% Pure" {
			t.Fatalf("wildcard not escaped: %+v", hits)
		}

		hits, err = s.SearchMoviesByTitle(ctx, "_", 5)
		if err != nil {
			t.Fatalf("SearchMoviesByTitle _: %v", err)
		}
		if len(hits) != 1 || hits[0].Title != "snake_case" {
			t.Fatalf("underscore not escaped: %+v", hits)
		}

		hits, err = s.SearchMoviesByTitle(ctx, "a", 1)
		if err != nil {
			t.Fatalf("SearchMoviesByTitle limit: %v", err)
		}
		if len(hits) != 1 {
			t.Fatalf("limit ignored: got=%d want=1", len(hits))
		}
	})
}

func TestListAndDeleteMovies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		ctx := context.Background()
		var last Movie
		for i := 0; i < 3; i++ {
			item, err := s.InsertMovie(ctx, Movie{Title: fmt.Sprintf("Movie %d", i), Link: "https://x.example", MediaRef: "file-1", UploaderID: 7})
			if err != nil {
				t.Fatalf("InsertMovie: %v", err)
			}
			last = item
		}

		items, err := s.ListMovies(ctx, 2)
		if err != nil {
			t.Fatalf("ListMovies: %v", err)
		}
		if len(items) != 2 || items[0].ID != last.ID {
			t.Fatalf("ListMovies = %+v", items)
		}

		got, err := s.GetMovie(ctx, last.ID)
		if err != nil {
			t.Fatalf("GetMovie: %v", err)
		}
		if got.Title != "Movie 2" || got.MediaRef != "file-1" || got.UploaderID != 7 {
			t.Fatalf("GetMovie = %+v", got)
		}

		if err := s.DeleteMovie(ctx, last.ID); err != nil {
			t.Fatalf("DeleteMovie: %v", err)
		}
		if err := s.DeleteMovie(ctx, last.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("second DeleteMovie err = %v, want ErrNotFound", err)
		}
		if _, err := s.GetMovie(ctx, last.ID); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetMovie after delete err = %v", err)
		}

		all, err := s.ListMovies(ctx, 0)
		if err != nil {
			t.Fatalf("ListMovies all: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("got=%d want=2 remaining", len(all))
		}
	})
}

func TestGrantAndRevokeAgent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		ctx := context.Background()
		if _, err := s.EnsureUser(ctx, 1, "boss", "user"); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		if err := s.SetRole(ctx, 1, "admin"); err != nil {
			t.Fatalf("SetRole: %v", err)
		}
		if _, err := s.EnsureUser(ctx, 42, "nova", "user"); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}

		if err := s.GrantAgent(ctx, 42, 1); err != nil {
			t.Fatalf("GrantAgent: %v", err)
		}
		// Unknown users get a record on grant.
		if err := s.GrantAgent(ctx, 77, 1); err != nil {
			t.Fatalf("GrantAgent unknown: %v", err)
		}
		if role, _ := s.GetRole(ctx, 77); role != "agent" {
			t.Fatalf("role of 77 = %q, want agent", role)
		}

		if err := s.GrantAgent(ctx, 1, 1); !errors.Is(err, ErrAdminRole) {
			t.Fatalf("GrantAgent admin err = %v, want ErrAdminRole", err)
		}

		agent, err := s.GetAgent(ctx, 42)
		if err != nil {
			t.Fatalf("GetAgent: %v", err)
		}
		if agent.Username != "nova" || agent.GrantedBy != 1 {
			t.Fatalf("GetAgent = %+v", agent)
		}

		agents, err := s.ListAgents(ctx)
		if err != nil {
			t.Fatalf("ListAgents: %v", err)
		}
		if len(agents) != 2 {
			t.Fatalf("got=%d want=2 agents", len(agents))
		}

		changed, err := s.RevokeAgent(ctx, 42)
		if err != nil || !changed {
			t.Fatalf("RevokeAgent = %v, %v", changed, err)
		}
		if role, _ := s.GetRole(ctx, 42); role != "user" {
			t.Fatalf("role after revoke = %q, want user", role)
		}
		if _, err := s.GetAgent(ctx, 42); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetAgent after revoke err = %v", err)
		}

		changed, err = s.RevokeAgent(ctx, 42)
		if err != nil || changed {
			t.Fatalf("second RevokeAgent = %v, %v, want no-op", changed, err)
		}
		changed, err = s.RevokeAgent(ctx, 1)
		if err != nil || changed {
			t.Fatalf("RevokeAgent admin = %v, %v, want no-op", changed, err)
		}
		if role, _ := s.GetRole(ctx, 1); role != "admin" {
			t.Fatalf("admin demoted to %q", role)
		}

		total, err := s.CountAgents(ctx)
		if err != nil || total != 1 {
			t.Fatalf("CountAgents = %d, %v", total, err)
		}
	})
}

func TestRequestsAndCounts(t *testing.T) {
	forEachStore(t, func(t *testing.T, s catalog) {
		ctx := context.Background()
		if _, err := s.EnsureUser(ctx, 42, "nova", "user"); err != nil {
			t.Fatalf("EnsureUser: %v", err)
		}
		first, err := s.InsertRequest(ctx, Request{RequesterID: 42, Query: "nov"})
		if err != nil {
			t.Fatalf("InsertRequest: %v", err)
		}
		if first.Status != RequestPending || first.ID == 0 {
			t.Fatalf("InsertRequest = %+v", first)
		}
		if _, err := s.InsertRequest(ctx, Request{RequesterID: 42, Query: "dune"}); err != nil {
			t.Fatalf("InsertRequest: %v", err)
		}
		if _, err := s.InsertRequest(ctx, Request{RequesterID: 9, Query: "alien"}); err != nil {
			t.Fatalf("InsertRequest: %v", err)
		}

		mine, err := s.ListRequestsByUser(ctx, 42)
		if err != nil {
			t.Fatalf("ListRequestsByUser: %v", err)
		}
		if len(mine) != 2 || mine[0].Query != "dune" || mine[1].Query != "nov" {
			t.Fatalf("ListRequestsByUser = %+v", mine)
		}

		pending, err := s.CountPendingRequests(ctx)
		if err != nil || pending != 3 {
			t.Fatalf("CountPendingRequests = %d, %v", pending, err)
		}
		users, err := s.CountUsers(ctx)
		if err != nil || users != 1 {
			t.Fatalf("CountUsers = %d, %v", users, err)
		}
		movies, err := s.CountMovies(ctx)
		if err != nil || movies != 0 {
			t.Fatalf("CountMovies = %d, %v", movies, err)
		}
	})
}
