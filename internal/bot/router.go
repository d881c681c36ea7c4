// Package bot is the conversation core: it classifies every inbound event,
// applies role gates, and drives the submission wizard and title search.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mrcrazy10100/movie-bot/internal/rbac"
	"github.com/mrcrazy10100/movie-bot/internal/session"
)

type actionSpec struct {
	required rbac.Action
	withID   bool
}

// actionTable is the only place button roles are decided. Anything missing
// here, or gated above the caller's role, gets the same generic answer.
var actionTable = map[ActionKind]actionSpec{
	ActionHome:          {required: rbac.ActionBrowse},
	ActionSearchPrompt:  {required: rbac.ActionBrowse},
	ActionRequestPrompt: {required: rbac.ActionBrowse},
	ActionLatest:        {required: rbac.ActionBrowse},
	ActionMovie:         {required: rbac.ActionBrowse, withID: true},
	ActionMyRequests:    {required: rbac.ActionBrowse},
	ActionCancel:        {required: rbac.ActionBrowse},

	ActionUpload:    {required: rbac.ActionUpload},
	ActionAddMedia:  {required: rbac.ActionUpload},
	ActionSkipMedia: {required: rbac.ActionUpload},
	ActionConfirm:   {required: rbac.ActionUpload},

	ActionDeleteMovie:        {required: rbac.ActionAdmin, withID: true},
	ActionStats:              {required: rbac.ActionAdmin},
	ActionAgents:             {required: rbac.ActionAdmin},
	ActionAgentAddPrompt:     {required: rbac.ActionAdmin},
	ActionAgentList:          {required: rbac.ActionAdmin},
	ActionAgentRemoveMenu:    {required: rbac.ActionAdmin},
	ActionAgentRemoveConfirm: {required: rbac.ActionAdmin, withID: true},
	ActionAgentRemoveNow:     {required: rbac.ActionAdmin, withID: true},
	ActionAgentRemoveAbort:   {required: rbac.ActionAdmin},
}

var adminCommands = map[string]bool{
	"addagent":    true,
	"removeagent": true,
	"stats":       true,
	"agents":      true,
	"admin":       true,
	"delete":      true,
}

type Options struct {
	Catalog          Catalog
	Sessions         session.Store
	Search           Searcher
	Media            MediaArchiver
	BootstrapAdminID int64
	SearchLimit      int
	LatestLimit      int
	Logger           *zap.Logger
}

// Router dispatches events. It does not serialize events for one user;
// the transport must deliver them one at a time per user.
type Router struct {
	catalog     Catalog
	sessions    session.Store
	search      Searcher
	media       MediaArchiver
	roles       *RoleResolver
	wizard      *Wizard
	resolver    *Resolver
	latestLimit int
	logger      *zap.Logger
}

func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	search := opts.Search
	if search == nil {
		search = catalogSearch{catalog: opts.Catalog}
	}
	media := opts.Media
	if media == nil {
		media = noopArchiver{}
	}
	latest := opts.LatestLimit
	if latest <= 0 {
		latest = 10
	}
	return &Router{
		catalog:     opts.Catalog,
		sessions:    opts.Sessions,
		search:      search,
		media:       media,
		roles:       NewRoleResolver(opts.Catalog, opts.BootstrapAdminID, logger),
		wizard:      NewWizard(opts.Sessions, opts.Catalog, search, media, logger),
		resolver:    NewResolver(opts.Catalog, search, opts.SearchLimit),
		latestLimit: latest,
		logger:      logger,
	}
}

// Roles exposes the role resolver for bootstrap seeding.
func (r *Router) Roles() *RoleResolver {
	return r.roles
}

// Handle never fails: every error becomes a user-visible message.
func (r *Router) Handle(ctx context.Context, ev Event) Response {
	resp, err := r.dispatch(ctx, ev)
	if err != nil {
		return r.errorResponse(ev, err)
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, ev Event) (Response, error) {
	role := ev.Role
	if role == "" {
		resolved, err := r.roles.Resolve(ctx, ev.ActorID, ev.Username)
		if err != nil {
			return Response{}, err
		}
		role = resolved
	}
	r.logger.Debug("handle event",
		zap.Int64("actor_id", ev.ActorID),
		zap.String("role", string(role)),
		zap.String("kind", string(ev.Kind)),
		zap.String("command", ev.Command),
		zap.String("action", string(ev.Action.Kind)),
	)

	// /cancel never reads the session, so an unreadable one can still be reset.
	if ev.Kind == EventCommand && ev.Command == "cancel" {
		if err := r.sessions.Clear(ctx, ev.ActorID); err != nil {
			return Response{}, storageError("clear session", err)
		}
		return Response{Text: sessionsCleared, Buttons: [][]Button{homeRow()}}, nil
	}

	sess, hasSession, err := r.sessions.Get(ctx, ev.ActorID)
	if err != nil {
		return Response{}, storageError("load session", err)
	}
	sess.UserID = ev.ActorID

	switch {
	case ev.Kind == EventPhoto && hasSession && sess.AwaitingMedia():
		return r.wizard.Photo(ctx, sess, ev.Photo)
	case ev.Kind == EventText && hasSession && sess.WizardActive():
		return r.wizard.Text(ctx, sess, ev.Text)
	}

	switch ev.Kind {
	case EventCallback:
		return r.handleAction(ctx, ev, role)
	case EventCommand:
		return r.handleCommand(ctx, ev, role)
	case EventText:
		return r.handleText(ctx, ev, role)
	case EventPhoto:
		return Response{Text: photoNotExpected}, nil
	default:
		return Response{Text: messageReceived}, nil
	}
}

func (r *Router) handleAction(ctx context.Context, ev Event, role rbac.Role) (Response, error) {
	spec, ok := actionTable[ev.Action.Kind]
	if !ok || !rbac.Can(role, spec.required) {
		return Response{Text: chooseFromMenu, Buttons: [][]Button{homeRow()}}, nil
	}

	switch ev.Action.Kind {
	case ActionHome:
		return mainMenu(role, ev.Username), nil
	case ActionSearchPrompt:
		return Response{Text: searchPrompt, Buttons: [][]Button{homeRow()}}, nil
	case ActionRequestPrompt:
		return Response{Text: requestPrompt, Buttons: [][]Button{homeRow()}}, nil
	case ActionLatest:
		return r.latest(ctx)
	case ActionMovie:
		return r.movie(ctx, ev.Action.ID, role)
	case ActionMyRequests:
		return r.myRequests(ctx, ev.ActorID)

	case ActionUpload:
		return r.wizard.Start(ctx, ev.ActorID)
	case ActionAddMedia:
		return r.wizard.AddMedia(ctx, ev.ActorID)
	case ActionSkipMedia:
		return r.wizard.SkipMedia(ctx, ev.ActorID)
	case ActionConfirm:
		return r.wizard.Confirm(ctx, ev.ActorID)
	case ActionCancel:
		return r.wizard.Cancel(ctx, ev.ActorID)

	case ActionDeleteMovie:
		return r.deleteMovie(ctx, ev.Action.ID)
	case ActionStats:
		return r.stats(ctx)
	case ActionAgents:
		return r.agentsMenu(ctx)
	case ActionAgentAddPrompt:
		return Response{Text: agentAddPrompt, Buttons: [][]Button{agentsBackRow()}}, nil
	case ActionAgentList:
		return r.agentList(ctx)
	case ActionAgentRemoveMenu:
		return r.agentRemoveMenu(ctx)
	case ActionAgentRemoveConfirm:
		return r.agentRemoveConfirm(ctx, ev.Action.ID)
	case ActionAgentRemoveNow:
		return r.revokeAgent(ctx, ev.Action.ID)
	case ActionAgentRemoveAbort:
		return Response{Text: "👍 Agent kept.", Buttons: [][]Button{agentsBackRow()}}, nil
	default:
		return Response{Text: chooseFromMenu, Buttons: [][]Button{homeRow()}}, nil
	}
}

func (r *Router) handleCommand(ctx context.Context, ev Event, role rbac.Role) (Response, error) {
	if adminCommands[ev.Command] {
		if !rbac.Can(role, rbac.ActionAdmin) {
			return Response{}, permissionError(adminOnly)
		}
		return r.adminCommand(ctx, ev)
	}

	switch ev.Command {
	case "start", "help":
		return mainMenu(role, ev.Username), nil
	default:
		return Response{Text: messageReceived}, nil
	}
}

func (r *Router) adminCommand(ctx context.Context, ev Event) (Response, error) {
	switch ev.Command {
	case "admin":
		return adminHelp(), nil
	case "stats":
		return r.stats(ctx)
	case "agents":
		agents, err := r.catalog.ListAgents(ctx)
		if err != nil {
			return Response{}, storageError("list agents", err)
		}
		return Response{Text: agentListText(agents)}, nil
	case "addagent":
		id, err := commandID(ev)
		if err != nil {
			return Response{}, err
		}
		return r.grantAgent(ctx, ev.ActorID, id)
	case "removeagent":
		id, err := commandID(ev)
		if err != nil {
			return Response{}, err
		}
		return r.revokeAgent(ctx, id)
	case "delete":
		id, err := commandID(ev)
		if err != nil {
			return Response{}, err
		}
		return r.deleteMovie(ctx, id)
	default:
		return Response{Text: messageReceived}, nil
	}
}

// commandID reads the single numeric argument of an admin verb.
func commandID(ev Event) (int64, error) {
	usage := map[string]string{
		"addagent":    "Usage: /addagent <telegram_id>",
		"removeagent": "Usage: /removeagent <telegram_id>",
		"delete":      "Usage: /delete <movie_id>",
	}[ev.Command]
	fields := strings.Fields(ev.Args)
	if len(fields) == 0 {
		return 0, validationError(usage)
	}
	id, err := parseID(fields[0])
	if err != nil {
		return 0, validationError(invalidID)
	}
	return id, nil
}

func (r *Router) handleText(ctx context.Context, ev Event, role rbac.Role) (Response, error) {
	text := strings.TrimSpace(ev.Text)
	if isDigits(text) && rbac.Can(role, rbac.ActionAdmin) {
		id, err := parseID(text)
		if err != nil {
			return Response{}, validationError(invalidID)
		}
		return r.grantAgent(ctx, ev.ActorID, id)
	}
	if utf8.RuneCountInString(text) > 1 {
		res, err := r.resolver.Resolve(ctx, ev.ActorID, text)
		if err != nil {
			return Response{}, err
		}
		return resolutionResponse(text, res), nil
	}
	return Response{Text: messageReceived}, nil
}

func (r *Router) errorResponse(ev Event, err error) Response {
	var botErr *Error
	if errors.As(err, &botErr) && botErr.Kind != KindStorage {
		r.logger.Debug("request rejected", zap.Int64("actor_id", ev.ActorID), zap.String("kind", string(botErr.Kind)))
		return Response{Text: botErr.Message}
	}

	r.logger.Error("operation failed", zap.Int64("actor_id", ev.ActorID), zap.String("kind", string(ev.Kind)), zap.Error(err))
	text := "❌ Operation failed: " + err.Error()
	if botErr != nil {
		text = fmt.Sprintf("❌ Operation failed (%s): %v", botErr.Message, botErr.Err)
	}
	resp := Response{Text: text, Buttons: [][]Button{homeRow()}}
	if ev.Kind == EventCallback && ev.Action.Kind == ActionConfirm {
		resp.Text += "\n\nYour draft is kept. Tap confirm to try again."
		resp.Buttons = [][]Button{{{Label: "🔁 Retry confirm", Action: Do(ActionConfirm)}}, cancelRow()}
	}
	return resp
}
