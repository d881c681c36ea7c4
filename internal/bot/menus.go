package bot

import (
	"fmt"
	"strings"

	"github.com/mrcrazy10100/movie-bot/internal/rbac"
	"github.com/mrcrazy10100/movie-bot/internal/store"
)

const (
	chooseFromMenu  = "❓ Please choose from the main menu."
	adminOnly       = "❌ You don't have admin access!"
	messageReceived = "✉️ Message received!"
	sessionsCleared = "✅ All operations cleared!"
	movieNotFound   = "❌ Movie not found!"
	agentNotFound   = "❌ Agent not found!"
	invalidID       = "❌ Please send a valid numeric ID!"

	searchPrompt   = "🔍 Type the movie name to search."
	requestPrompt  = "📝 Type the name of the movie you want. If we don't have it, we'll log a request."
	agentAddPrompt = "➕ Send the Telegram ID of the new agent (digits only)."

	dateLayout = "2006-01-02"

	agentMenuLimit   = 10
	requestListLimit = 10
)

func homeRow() []Button {
	return []Button{{Label: "🏠 Home", Action: Do(ActionHome)}}
}

func cancelRow() []Button {
	return []Button{{Label: "❌ Cancel", Action: Do(ActionCancel)}}
}

func agentsBackRow() []Button {
	return []Button{{Label: "🔙 Agent management", Action: Do(ActionAgents)}}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func displayName(username string, id int64) string {
	if username != "" {
		return "@" + username
	}
	return fmt.Sprintf("%d", id)
}

func mainMenu(role rbac.Role, username string) Response {
	var b strings.Builder
	b.WriteString("🎬 Welcome to the movie bot")
	if username != "" {
		fmt.Fprintf(&b, ", @%s", username)
	}
	b.WriteString("!\n\n")
	fmt.Fprintf(&b, "Your role: %s\n\n", role)
	b.WriteString("Use the buttons below.")

	buttons := [][]Button{
		{{Label: "🔍 Search movies", Action: Do(ActionSearchPrompt)}},
		{{Label: "📥 Latest movies", Action: Do(ActionLatest)}},
		{{Label: "📝 Request a movie", Action: Do(ActionRequestPrompt)}},
		{{Label: "📋 My requests", Action: Do(ActionMyRequests)}},
	}
	if rbac.Can(role, rbac.ActionUpload) {
		buttons = append(buttons, []Button{{Label: "📤 Upload movie", Action: Do(ActionUpload)}})
	}
	if rbac.Can(role, rbac.ActionAdmin) {
		buttons = append(buttons, []Button{
			{Label: "👥 Manage agents", Action: Do(ActionAgents)},
			{Label: "📊 Stats", Action: Do(ActionStats)},
		})
	}
	return Response{Text: b.String(), Buttons: buttons}
}

func movieLabel(m store.Movie, max int) string {
	label := m.Title
	if m.Year != "" {
		label = fmt.Sprintf("%s (%s)", m.Title, m.Year)
	}
	return "🎬 " + truncate(label, max)
}

func movieButtons(items []store.Movie) [][]Button {
	rows := make([][]Button, 0, len(items)+1)
	for _, item := range items {
		rows = append(rows, []Button{{Label: movieLabel(item, 30), Action: DoWithID(ActionMovie, item.ID)}})
	}
	return rows
}

func latestResponse(items []store.Movie) Response {
	if len(items) == 0 {
		return Response{Text: "📭 No movies uploaded yet!", Buttons: [][]Button{homeRow()}}
	}
	rows := append(movieButtons(items), homeRow())
	return Response{Text: fmt.Sprintf("📥 Latest %d movies:", len(items)), Buttons: rows}
}

func movieDetails(m store.Movie, role rbac.Role) Response {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 %s\n\n", m.Title)
	fmt.Fprintf(&b, "📅 Year: %s\n", m.Year)
	fmt.Fprintf(&b, "🎞️ Quality: %s\n", m.Quality)
	fmt.Fprintf(&b, "🗣️ Language: %s\n", m.Language)
	fmt.Fprintf(&b, "💾 Size: %s\n", m.Size)
	fmt.Fprintf(&b, "🆔 ID: %d\n", m.ID)
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "🕒 Added: %s\n", m.CreatedAt.Format(dateLayout))
	}

	buttons := [][]Button{
		{{Label: "⬇️ Download link", URL: m.Link}},
		{{Label: "🔙 Latest movies", Action: Do(ActionLatest)}},
	}
	if rbac.Can(role, rbac.ActionAdmin) {
		buttons = append(buttons, []Button{{Label: "🗑️ Delete movie", Action: DoWithID(ActionDeleteMovie, m.ID)}})
	}
	return Response{Text: strings.TrimRight(b.String(), "\n"), Buttons: buttons, PhotoRef: m.MediaRef}
}

func resolutionResponse(query string, res Resolution) Response {
	if len(res.Matches) > 0 {
		rows := append(movieButtons(res.Matches), homeRow())
		return Response{
			Text:    fmt.Sprintf("🔍 Found %d result(s) for \"%s\":", len(res.Matches), truncate(query, 50)),
			Buttons: rows,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 No movie found for \"%s\".\n", truncate(query, 50))
	if res.Request != nil {
		fmt.Fprintf(&b, "Your request #%d has been saved. We'll try to upload it soon!", res.Request.ID)
	}
	rows := [][]Button{}
	if len(res.Similar) > 0 {
		b.WriteString("\n\nSimilar titles:")
		rows = append(rows, movieButtons(res.Similar)...)
	}
	rows = append(rows, homeRow())
	return Response{Text: b.String(), Buttons: rows}
}

func requestStatusIcon(status string) string {
	switch status {
	case store.RequestCompleted:
		return "✅"
	case store.RequestRejected:
		return "❌"
	default:
		return "⏳"
	}
}

func requestsResponse(items []store.Request) Response {
	if len(items) == 0 {
		return Response{Text: "📭 You haven't requested any movies yet!", Buttons: [][]Button{homeRow()}}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Your requests (total %d):\n", len(items))
	shown := items
	if len(shown) > requestListLimit {
		shown = shown[:requestListLimit]
	}
	for i, item := range shown {
		fmt.Fprintf(&b, "\n%d. %s %s (%s)", i+1, requestStatusIcon(item.Status), truncate(item.Query, 30), item.CreatedAt.Format(dateLayout))
	}
	return Response{Text: b.String(), Buttons: [][]Button{homeRow()}}
}

type stats struct {
	users, movies, agents, pending int
}

func statsResponse(s stats) Response {
	text := fmt.Sprintf("📊 Statistics\n\n👥 Users: %d\n🎬 Movies: %d\n🕵️ Agents: %d\n📝 Pending requests: %d",
		s.users, s.movies, s.agents, s.pending)
	return Response{Text: text, Buttons: [][]Button{homeRow()}}
}

func agentsMenu(agents []store.Agent) Response {
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Agent management\n\nTotal agents: %d", len(agents))
	for i, agent := range agents {
		if i == agentMenuLimit {
			fmt.Fprintf(&b, "\n... and %d more", len(agents)-agentMenuLimit)
			break
		}
		fmt.Fprintf(&b, "\n• %s", displayName(agent.Username, agent.AgentID))
	}
	return Response{
		Text: b.String(),
		Buttons: [][]Button{
			{{Label: "➕ Add agent", Action: Do(ActionAgentAddPrompt)}},
			{{Label: "➖ Remove agent", Action: Do(ActionAgentRemoveMenu)}},
			{{Label: "📋 Agent list", Action: Do(ActionAgentList)}},
			homeRow(),
		},
	}
}

func agentListText(agents []store.Agent) string {
	if len(agents) == 0 {
		return "📭 No agents yet!"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Agents (%d):\n", len(agents))
	for i, agent := range agents {
		fmt.Fprintf(&b, "\n%d. 🆔 %d", i+1, agent.AgentID)
		if agent.Username != "" {
			fmt.Fprintf(&b, " (@%s)", agent.Username)
		}
		fmt.Fprintf(&b, "\n   Added: %s by %d", agent.GrantedAt.Format(dateLayout), agent.GrantedBy)
	}
	return b.String()
}

func agentListResponse(agents []store.Agent) Response {
	rows := [][]Button{}
	if len(agents) > 0 {
		rows = append(rows, []Button{{Label: "➖ Remove agent", Action: Do(ActionAgentRemoveMenu)}})
	}
	rows = append(rows, agentsBackRow())
	return Response{Text: agentListText(agents), Buttons: rows}
}

func agentRemoveMenu(agents []store.Agent) Response {
	if len(agents) == 0 {
		return Response{Text: "📭 No agents to remove!", Buttons: [][]Button{agentsBackRow()}}
	}
	shown := agents
	if len(shown) > agentMenuLimit {
		shown = shown[:agentMenuLimit]
	}
	rows := make([][]Button, 0, len(shown)+1)
	for _, agent := range shown {
		label := "❌ " + truncate(displayName(agent.Username, agent.AgentID), 25)
		rows = append(rows, []Button{{Label: label, Action: DoWithID(ActionAgentRemoveConfirm, agent.AgentID)}})
	}
	rows = append(rows, agentsBackRow())
	return Response{Text: "➖ Choose the agent to remove:", Buttons: rows}
}

func agentRemoveConfirm(agent store.Agent) Response {
	text := fmt.Sprintf("⚠️ Remove agent %s?\n\n🆔 %d\n🕒 Added: %s",
		displayName(agent.Username, agent.AgentID), agent.AgentID, agent.GrantedAt.Format(dateLayout))
	return Response{
		Text: text,
		Buttons: [][]Button{
			{{Label: "✅ Yes, remove", Action: DoWithID(ActionAgentRemoveNow, agent.AgentID)}},
			{{Label: "❌ No, keep", Action: Do(ActionAgentRemoveAbort)}},
		},
	}
}

func adminHelp() Response {
	lines := []string{
		"🛠️ Admin panel",
		"",
		"/stats - catalog statistics",
		"/agents - list agents",
		"/addagent <telegram_id> - grant agent role",
		"/removeagent <telegram_id> - revoke agent role",
		"/delete <movie_id> - delete a movie",
		"/cancel - clear the current operation",
		"",
		"Tip: sending a bare numeric ID also adds an agent.",
	}
	return Response{Text: strings.Join(lines, "\n"), Buttons: [][]Button{{
		{Label: "👥 Manage agents", Action: Do(ActionAgents)},
		{Label: "📊 Stats", Action: Do(ActionStats)},
	}}}
}
