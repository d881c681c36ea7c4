package bot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/rbac"
	"github.com/mrcrazy10100/movie-bot/internal/store"
)

func (r *Router) latest(ctx context.Context) (Response, error) {
	items, err := r.catalog.ListMovies(ctx, r.latestLimit)
	if err != nil {
		return Response{}, storageError("list movies", err)
	}
	return latestResponse(items), nil
}

func (r *Router) movie(ctx context.Context, id int64, role rbac.Role) (Response, error) {
	item, err := r.catalog.GetMovie(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Response{}, notFoundError(movieNotFound)
	}
	if err != nil {
		return Response{}, storageError("get movie", err)
	}
	return movieDetails(item, role), nil
}

func (r *Router) myRequests(ctx context.Context, userID int64) (Response, error) {
	items, err := r.catalog.ListRequestsByUser(ctx, userID)
	if err != nil {
		return Response{}, storageError("list requests", err)
	}
	return requestsResponse(items), nil
}

func (r *Router) deleteMovie(ctx context.Context, id int64) (Response, error) {
	item, err := r.catalog.GetMovie(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Response{}, notFoundError(movieNotFound)
	}
	if err != nil {
		return Response{}, storageError("get movie", err)
	}

	if err := r.catalog.DeleteMovie(ctx, id); errors.Is(err, store.ErrNotFound) {
		return Response{}, notFoundError(movieNotFound)
	} else if err != nil {
		return Response{}, storageError("delete movie", err)
	}

	r.search.DeleteMovie(id)
	if err := r.media.Remove(ctx, id, item.MediaRef); err != nil {
		r.logger.Warn("remove archived media", zap.Int64("movie_id", id), zap.Error(err))
	}
	r.logger.Info("movie deleted", zap.Int64("movie_id", id))
	return Response{Text: fmt.Sprintf("✅ Movie %d deleted!", id), Buttons: [][]Button{homeRow()}}, nil
}

func (r *Router) stats(ctx context.Context) (Response, error) {
	var s stats
	var err error
	if s.users, err = r.catalog.CountUsers(ctx); err != nil {
		return Response{}, storageError("count users", err)
	}
	if s.movies, err = r.catalog.CountMovies(ctx); err != nil {
		return Response{}, storageError("count movies", err)
	}
	if s.agents, err = r.catalog.CountAgents(ctx); err != nil {
		return Response{}, storageError("count agents", err)
	}
	if s.pending, err = r.catalog.CountPendingRequests(ctx); err != nil {
		return Response{}, storageError("count requests", err)
	}
	return statsResponse(s), nil
}

func (r *Router) agentsMenu(ctx context.Context) (Response, error) {
	agents, err := r.catalog.ListAgents(ctx)
	if err != nil {
		return Response{}, storageError("list agents", err)
	}
	return agentsMenu(agents), nil
}

func (r *Router) agentList(ctx context.Context) (Response, error) {
	agents, err := r.catalog.ListAgents(ctx)
	if err != nil {
		return Response{}, storageError("list agents", err)
	}
	return agentListResponse(agents), nil
}

func (r *Router) agentRemoveMenu(ctx context.Context) (Response, error) {
	agents, err := r.catalog.ListAgents(ctx)
	if err != nil {
		return Response{}, storageError("list agents", err)
	}
	return agentRemoveMenu(agents), nil
}

func (r *Router) agentRemoveConfirm(ctx context.Context, id int64) (Response, error) {
	agent, err := r.catalog.GetAgent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Response{}, notFoundError(agentNotFound)
	}
	if err != nil {
		return Response{}, storageError("get agent", err)
	}
	return agentRemoveConfirm(agent), nil
}

// grantAgent is idempotent: re-granting re-affirms the existing grant.
func (r *Router) grantAgent(ctx context.Context, adminID, agentID int64) (Response, error) {
	err := r.catalog.GrantAgent(ctx, agentID, adminID)
	if errors.Is(err, store.ErrAdminRole) {
		return Response{}, validationError(fmt.Sprintf("❌ %d is an admin and can't be made an agent.", agentID))
	}
	if err != nil {
		return Response{}, storageError("grant agent", err)
	}
	r.logger.Info("agent granted", zap.Int64("agent_id", agentID), zap.Int64("granted_by", adminID))
	return Response{Text: fmt.Sprintf("✅ Agent %d added!", agentID), Buttons: [][]Button{agentsBackRow()}}, nil
}

// revokeAgent treats a non-agent as already revoked.
func (r *Router) revokeAgent(ctx context.Context, agentID int64) (Response, error) {
	changed, err := r.catalog.RevokeAgent(ctx, agentID)
	if err != nil {
		return Response{}, storageError("revoke agent", err)
	}
	if changed {
		r.logger.Info("agent revoked", zap.Int64("agent_id", agentID))
	}
	return Response{Text: fmt.Sprintf("✅ %d is no longer an agent.", agentID), Buttons: [][]Button{agentsBackRow()}}, nil
}
