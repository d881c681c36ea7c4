package bot

import "testing"

func TestParseAction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data string
		want Action
	}{
		{data: "home", want: Do(ActionHome)},
		{data: " latest ", want: Do(ActionLatest)},
		{data: "movie:42", want: DoWithID(ActionMovie, 42)},
		{data: "deleteMovie:7", want: DoWithID(ActionDeleteMovie, 7)},
		{data: "agentRemoveNow:5347353883", want: DoWithID(ActionAgentRemoveNow, 5347353883)},
		{data: "movie", want: Action{}},
		{data: "movie:", want: Action{}},
		{data: "movie:abc", want: Action{}},
		{data: "movie:-3", want: Action{}},
		{data: "movie:0", want: Action{}},
		{data: "home:1", want: Action{}},
		{data: "delete_movie_1", want: Action{}},
		{data: "", want: Action{}},
	}
	for _, tc := range cases {
		if got := ParseAction(tc.data); got != tc.want {
			t.Errorf("ParseAction(%q) = %+v, want %+v", tc.data, got, tc.want)
		}
	}
}

func TestActionEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	for kind, spec := range actionTable {
		action := Do(kind)
		if spec.withID {
			action = DoWithID(kind, 99)
		}
		encoded := action.Encode()
		if len(encoded) > 64 {
			t.Errorf("callback data for %s exceeds 64 bytes", kind)
		}
		if got := ParseAction(encoded); got != action {
			t.Errorf("round trip %s: got=%+v want=%+v", encoded, got, action)
		}
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw, cmd, args string
	}{
		{raw: "/start", cmd: "start"},
		{raw: "/AddAgent@movie_bot  123 ", cmd: "addagent", args: "123"},
		{raw: "/delete 4 5", cmd: "delete", args: "4 5"},
		{raw: "   ", cmd: ""},
	}
	for _, tc := range cases {
		cmd, args := ParseCommand(tc.raw)
		if cmd != tc.cmd || args != tc.args {
			t.Errorf("ParseCommand(%q) = (%q, %q), want (%q, %q)", tc.raw, cmd, args, tc.cmd, tc.args)
		}
	}
}
