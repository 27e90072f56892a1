package console

import (
	"reflect"
	"testing"
)

func TestSplitTokens(t *testing.T) {
	cases := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{`send hello`, []string{"send", "hello"}, false},
		{`send "Break time!" --to 1,2`, []string{"send", "Break time!", "--to", "1,2"}, false},
		{`respond 1 'Starting Break'`, []string{"respond", "1", "Starting Break"}, false},
		{`template save k --name "End of Shift"`, []string{"template", "save", "k", "--name", "End of Shift"}, false},
		{`send ""`, []string{"send", ""}, false},
		{`send "unterminated`, nil, true},
		{`   `, nil, false},
		{"a\tb", []string{"a", "b"}, false},
	}
	for _, tc := range cases {
		got, err := splitTokens(tc.in)
		if tc.wantErr != (err != nil) {
			t.Errorf("splitTokens(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitTokens(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseArgs(t *testing.T) {
	req := parseArgs([]string{"Break time!", "--to", "1,2", "--repeat=daily", "--verbose", "tail"})
	if !reflect.DeepEqual(req.Args, []string{"Break time!", "tail"}) {
		t.Fatalf("args = %q", req.Args)
	}
	if v, ok := req.Flag("to"); !ok || v != "1,2" {
		t.Fatalf("flag to = %q, %v", v, ok)
	}
	if v, ok := req.Flag("repeat"); !ok || v != "daily" {
		t.Fatalf("flag repeat = %q, %v", v, ok)
	}
	if _, ok := req.Flag("missing"); ok {
		t.Fatalf("missing flag reported present")
	}
}

func TestParseArgsBareFlag(t *testing.T) {
	// A flag followed by another flag keeps an empty value rather than
	// swallowing the next token.
	req := parseArgs([]string{"--date", "--time", "09:00"})
	if v, ok := req.Flag("date"); !ok || v != "" {
		t.Fatalf("date = %q, %v", v, ok)
	}
	if v, _ := req.Flag("time"); v != "09:00" {
		t.Fatalf("time = %q", v)
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("one two three four five", 9)
	want := []string{"one two", "three", "four five"}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("wrap = %q, want %q", lines, want)
	}
	if got := wrap("", 10); len(got) != 1 || got[0] != "" {
		t.Fatalf("wrap empty = %q", got)
	}
}

func TestSummarize(t *testing.T) {
	if got := summarize("short", 10); got != "short" {
		t.Fatalf("summarize short = %q", got)
	}
	if got := summarize("0123456789abcdef", 10); got != "0123456..." {
		t.Fatalf("summarize long = %q", got)
	}
}
