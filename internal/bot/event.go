package bot

import (
	"strconv"
	"strings"

	"github.com/mrcrazy10100/movie-bot/internal/rbac"
)

type EventKind string

const (
	EventCommand  EventKind = "command"
	EventCallback EventKind = "callback"
	EventText     EventKind = "text"
	EventPhoto    EventKind = "photo"
)

// Event is one inbound chat event. Exactly one payload field is meaningful
// for a given Kind. An empty Role is resolved on demand.
type Event struct {
	ActorID  int64
	Username string
	Role     rbac.Role
	Kind     EventKind

	Command string // lowercased, without the leading slash
	Args    string
	Action  Action
	Text    string
	Photo   string
}

// CommandEvent builds a command event from a raw "/verb args" line.
func CommandEvent(actorID int64, username, line string) Event {
	cmd, args := ParseCommand(line)
	return Event{ActorID: actorID, Username: username, Kind: EventCommand, Command: cmd, Args: args}
}

// ParseCommand splits "/Verb@bot a b" into ("verb", "a b").
func ParseCommand(raw string) (string, string) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return "", ""
	}
	cmd := strings.ToLower(fields[0])
	cmd = strings.TrimPrefix(cmd, "/")
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args := strings.TrimSpace(strings.Join(fields[1:], " "))
	return cmd, args
}

// ActionKind enumerates every button action the bot emits.
type ActionKind string

const (
	ActionUnknown ActionKind = ""

	ActionHome          ActionKind = "home"
	ActionSearchPrompt  ActionKind = "search"
	ActionRequestPrompt ActionKind = "request"
	ActionLatest        ActionKind = "latest"
	ActionMovie         ActionKind = "movie"
	ActionMyRequests    ActionKind = "myRequests"

	ActionUpload    ActionKind = "upload"
	ActionAddMedia  ActionKind = "addMedia"
	ActionSkipMedia ActionKind = "skipMedia"
	ActionConfirm   ActionKind = "confirm"
	ActionCancel    ActionKind = "cancel"

	ActionDeleteMovie        ActionKind = "deleteMovie"
	ActionStats              ActionKind = "stats"
	ActionAgents             ActionKind = "agents"
	ActionAgentAddPrompt     ActionKind = "agentAddPrompt"
	ActionAgentList          ActionKind = "agentList"
	ActionAgentRemoveMenu    ActionKind = "agentRemoveMenu"
	ActionAgentRemoveConfirm ActionKind = "agentRemoveConfirm"
	ActionAgentRemoveNow     ActionKind = "agentRemoveNow"
	ActionAgentRemoveAbort   ActionKind = "agentRemoveAbort"
)

// Action is a parsed button payload. ID is set only for kinds that take one.
type Action struct {
	Kind ActionKind
	ID   int64
}

func Do(kind ActionKind) Action {
	return Action{Kind: kind}
}

func DoWithID(kind ActionKind, id int64) Action {
	return Action{Kind: kind, ID: id}
}

// Encode renders the action as callback data: "kind" or "kind:id".
func (a Action) Encode() string {
	if spec, ok := actionTable[a.Kind]; ok && spec.withID {
		return string(a.Kind) + ":" + strconv.FormatInt(a.ID, 10)
	}
	return string(a.Kind)
}

// ParseAction decodes callback data. Anything not in the action table,
// or with a missing or malformed id, yields ActionUnknown.
func ParseAction(data string) Action {
	kindPart, idPart, hasID := strings.Cut(strings.TrimSpace(data), ":")
	kind := ActionKind(kindPart)
	spec, ok := actionTable[kind]
	if !ok || spec.withID != hasID {
		return Action{}
	}
	if !spec.withID {
		return Action{Kind: kind}
	}
	id, err := parseID(idPart)
	if err != nil {
		return Action{}
	}
	return Action{Kind: kind, ID: id}
}

// Button is an inline button. URL buttons open a link instead of
// sending an action back.
type Button struct {
	Label  string
	Action Action
	URL    string
}

// Response is the outbound message. PhotoRef, when set, is sent as a
// photo with Text as its caption.
type Response struct {
	Text     string
	Buttons  [][]Button
	PhotoRef string
}

func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if !isDigits(raw) {
		return 0, strconv.ErrSyntax
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
