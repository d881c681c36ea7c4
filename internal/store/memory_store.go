package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps the catalog in-process. Used by tests and the memory driver.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[int64]User
	movies    map[int64]Movie
	movieIDs  []int64
	agents    map[int64]Agent
	requests  []Request
	nextMovie int64
	nextReq   int64
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]User),
		movies: make(map[int64]Movie),
		agents: make(map[int64]Agent),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) EnsureUser(_ context.Context, userID int64, username, defaultRole string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		user = User{ID: userID, Username: username, Role: defaultRole, JoinedAt: m.now()}
	} else if username != "" {
		user.Username = username
	}
	m.users[userID] = user
	return user, nil
}

func (m *MemoryStore) GetUser(_ context.Context, userID int64) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) GetRole(ctx context.Context, userID int64) (string, error) {
	user, err := m.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (m *MemoryStore) SetRole(_ context.Context, userID int64, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setRoleLocked(userID, role)
	return nil
}

func (m *MemoryStore) setRoleLocked(userID int64, role string) {
	user, ok := m.users[userID]
	if !ok {
		user = User{ID: userID, JoinedAt: m.now()}
	}
	user.Role = role
	m.users[userID] = user
}

func (m *MemoryStore) InsertMovie(_ context.Context, item Movie) (Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMovie++
	item.ID = m.nextMovie
	if item.CreatedAt.IsZero() {
		item.CreatedAt = m.now()
	}
	m.movies[item.ID] = item
	m.movieIDs = append(m.movieIDs, item.ID)
	return item, nil
}

// ListMovies returns the newest entries first; limit <= 0 returns all of them.
func (m *MemoryStore) ListMovies(_ context.Context, limit int) ([]Movie, error) {
	return m.collectMovies(limit, func(Movie) bool { return true }), nil
}

func (m *MemoryStore) SearchMoviesByTitle(_ context.Context, substring string, limit int) ([]Movie, error) {
	needle := strings.ToLower(substring)
	return m.collectMovies(limit, func(item Movie) bool {
		return strings.Contains(strings.ToLower(item.Title), needle)
	}), nil
}

func (m *MemoryStore) collectMovies(limit int, keep func(Movie) bool) []Movie {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Movie, 0)
	for i := len(m.movieIDs) - 1; i >= 0; i-- {
		item, ok := m.movies[m.movieIDs[i]]
		if !ok || !keep(item) {
			continue
		}
		res = append(res, item)
		if limit > 0 && len(res) == limit {
			break
		}
	}
	return res
}

func (m *MemoryStore) GetMovie(_ context.Context, movieID int64) (Movie, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.movies[movieID]
	if !ok {
		return Movie{}, ErrNotFound
	}
	return item, nil
}

func (m *MemoryStore) DeleteMovie(_ context.Context, movieID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movies[movieID]; !ok {
		return ErrNotFound
	}
	delete(m.movies, movieID)
	for i, id := range m.movieIDs {
		if id == movieID {
			m.movieIDs = append(m.movieIDs[:i], m.movieIDs[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStore) GrantAgent(_ context.Context, agentID, grantedBy int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[agentID]; ok && user.Role == "admin" {
		return ErrAdminRole
	}
	m.setRoleLocked(agentID, "agent")
	grant, ok := m.agents[agentID]
	if !ok {
		grant = Agent{AgentID: agentID, GrantedAt: m.now()}
	}
	grant.GrantedBy = grantedBy
	m.agents[agentID] = grant
	return nil
}

func (m *MemoryStore) RevokeAgent(_ context.Context, agentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := false
	if user, ok := m.users[agentID]; ok && user.Role == "agent" {
		user.Role = "user"
		m.users[agentID] = user
		changed = true
	}
	if _, ok := m.agents[agentID]; ok {
		delete(m.agents, agentID)
		changed = true
	}
	return changed, nil
}

func (m *MemoryStore) ListAgents(_ context.Context) ([]Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Agent, 0, len(m.agents))
	for _, grant := range m.agents {
		grant.Username = m.users[grant.AgentID].Username
		res = append(res, grant)
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].GrantedAt.Equal(res[j].GrantedAt) {
			return res[i].GrantedAt.After(res[j].GrantedAt)
		}
		return res[i].AgentID < res[j].AgentID
	})
	return res, nil
}

func (m *MemoryStore) GetAgent(_ context.Context, agentID int64) (Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	grant, ok := m.agents[agentID]
	if !ok {
		return Agent{}, ErrNotFound
	}
	grant.Username = m.users[agentID].Username
	return grant, nil
}

func (m *MemoryStore) InsertRequest(_ context.Context, item Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextReq++
	item.ID = m.nextReq
	if item.Status == "" {
		item.Status = RequestPending
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = m.now()
	}
	m.requests = append(m.requests, item)
	return item, nil
}

func (m *MemoryStore) ListRequestsByUser(_ context.Context, userID int64) ([]Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]Request, 0)
	for i := len(m.requests) - 1; i >= 0; i-- {
		if m.requests[i].RequesterID == userID {
			res = append(res, m.requests[i])
		}
	}
	return res, nil
}

func (m *MemoryStore) CountUsers(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

func (m *MemoryStore) CountMovies(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.movies), nil
}

func (m *MemoryStore) CountAgents(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agents), nil
}

func (m *MemoryStore) CountPendingRequests(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0
	for _, item := range m.requests {
		if item.Status == RequestPending {
			total++
		}
	}
	return total, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
