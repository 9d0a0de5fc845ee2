package shell

import (
	"errors"
	"reflect"
	"testing"
)

func expandAll(t *testing.T, line string, env map[string]string) [][]string {
	t.Helper()
	stmts, err := parse(line)
	if err != nil {
		t.Fatalf("parse(%q): %v", line, err)
	}
	lookup := func(name string) string { return env[name] }
	var out [][]string
	for _, st := range stmts {
		args := []string{}
		for _, w := range st.words {
			s := w.expand(lookup)
			if s == "" && !w.quoted {
				continue
			}
			args = append(args, s)
		}
		out = append(out, args)
	}
	return out
}

func TestParseWords(t *testing.T) {
	env := map[string]string{"HOME": "/p", "EMPTY": ""}
	tests := []struct {
		line string
		want [][]string
	}{
		{"echo hello world", [][]string{{"echo", "hello", "world"}}},
		{`echo 'a b' "c d"`, [][]string{{"echo", "a b", "c d"}}},
		{`echo "x$HOME/y"`, [][]string{{"echo", "x/p/y"}}},
		{`echo '$HOME'`, [][]string{{"echo", "$HOME"}}},
		{`echo a\ b`, [][]string{{"echo", "a b"}}},
		{`echo $UNSET end`, [][]string{{"echo", "end"}}},
		{`echo "$EMPTY"`, [][]string{{"echo", ""}}},
		{`echo ${HOME}x`, [][]string{{"echo", "/px"}}},
		{`echo $ 5`, [][]string{{"echo", "$", "5"}}},
		{`echo "a\"b" "c\d"`, [][]string{{"echo", `a"b`, `c\d`}}},
		{"echo # trailing comment", [][]string{{"echo"}}},
		{"echo a#b", [][]string{{"echo", "a#b"}}},
		{"  ", nil},
		{"ls;", [][]string{{"ls"}}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got := expandAll(t, tt.line, env)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseConnectorsAndRedirects(t *testing.T) {
	stmts, err := parse("a; b && c || d > out >> log")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}
	want := []connector{connSeq, connAnd, connOr, connEnd}
	for i, st := range stmts {
		if st.next != want[i] {
			t.Fatalf("statement %d connector = %d, want %d", i, st.next, want[i])
		}
	}
	r := stmts[3].redirect
	if r == nil || !r.append || r.target.expand(func(string) string { return "" }) != "log" {
		t.Fatalf("redirect = %+v, want append to log", r)
	}
}

func TestParseErrors(t *testing.T) {
	for _, line := range []string{
		`echo 'unterminated`,
		`echo "unterminated`,
		"ls | wc",
		"&& ls",
		"ls &&",
		"ls &",
		"cat < f",
		"echo >",
		"> f",
		"echo ${",
		"echo ${1x}",
		"a;; b",
		`echo \`,
	} {
		if _, err := parse(line); !errors.Is(err, ErrSyntax) {
			t.Errorf("parse(%q) err = %v, want ErrSyntax", line, err)
		}
	}
}
