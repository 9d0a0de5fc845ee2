package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax marks a command line that could not be parsed.
var ErrSyntax = errors.New("syntax error")

func syntaxErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokSeq            // ;
	tokAnd            // &&
	tokOr             // ||
	tokPipe           // |
	tokRedirect       // >
	tokAppend         // >>
)

func (k tokenKind) String() string {
	switch k {
	case tokSeq:
		return ";"
	case tokAnd:
		return "&&"
	case tokOr:
		return "||"
	case tokPipe:
		return "|"
	case tokRedirect:
		return ">"
	case tokAppend:
		return ">>"
	}
	return "word"
}

// wordPart is literal text, or the name of a variable to expand when
// variable is set.
type wordPart struct {
	text     string
	variable bool
}

// word keeps variable references unexpanded so that each statement sees
// the environment left by the ones before it.
type word struct {
	parts  []wordPart
	quoted bool
}

func (w word) expand(lookup func(string) string) string {
	var b strings.Builder
	for _, p := range w.parts {
		if p.variable {
			b.WriteString(lookup(p.text))
			continue
		}
		b.WriteString(p.text)
	}
	return b.String()
}

type token struct {
	kind tokenKind
	word word
}

type lexState int

const (
	stateBlank lexState = iota
	stateWord
	stateSingle
	stateDouble
)

type lexer struct {
	src   []rune
	pos   int
	state lexState

	toks []token
	cur  word
	lit  strings.Builder
}

// lex splits a command line into words and operators. Quoting and
// backslash escapes follow POSIX sh; "$NAME", "${NAME}" and "$?" are
// recorded for later expansion outside single quotes.
func lex(line string) ([]token, error) {
	l := &lexer{src: []rune(line)}
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		var err error
		switch l.state {
		case stateSingle:
			err = l.single(c)
		case stateDouble:
			err = l.double(c)
		default:
			err = l.plain(c)
		}
		if err != nil {
			return nil, err
		}
		l.pos++
	}
	switch l.state {
	case stateSingle:
		return nil, syntaxErrorf("unterminated single quote")
	case stateDouble:
		return nil, syntaxErrorf("unterminated double quote")
	}
	l.endWord()
	return l.toks, nil
}

func (l *lexer) peek(off int) rune {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) flushLit() {
	if l.lit.Len() > 0 {
		l.cur.parts = append(l.cur.parts, wordPart{text: l.lit.String()})
		l.lit.Reset()
	}
}

func (l *lexer) endWord() {
	if l.state != stateWord {
		return
	}
	l.flushLit()
	l.toks = append(l.toks, token{kind: tokWord, word: l.cur})
	l.cur = word{}
	l.state = stateBlank
}

func (l *lexer) operator(kind tokenKind, width int) {
	l.endWord()
	l.toks = append(l.toks, token{kind: kind})
	l.pos += width - 1
}

func (l *lexer) plain(c rune) error {
	switch c {
	case ' ', '\t', '\n', '\r':
		l.endWord()
		return nil
	case '#':
		if l.state == stateBlank {
			l.pos = len(l.src)
			return nil
		}
	case ';':
		l.operator(tokSeq, 1)
		return nil
	case '&':
		if l.peek(1) != '&' {
			return syntaxErrorf("background jobs are not supported")
		}
		l.operator(tokAnd, 2)
		return nil
	case '|':
		if l.peek(1) == '|' {
			l.operator(tokOr, 2)
		} else {
			l.operator(tokPipe, 1)
		}
		return nil
	case '>':
		if l.peek(1) == '>' {
			l.operator(tokAppend, 2)
		} else {
			l.operator(tokRedirect, 1)
		}
		return nil
	case '<':
		return syntaxErrorf("input redirection is not supported")
	}

	l.state = stateWord
	switch c {
	case '\\':
		if l.pos+1 >= len(l.src) {
			return syntaxErrorf("unexpected end of line after backslash")
		}
		l.pos++
		l.lit.WriteRune(l.src[l.pos])
	case '\'':
		l.cur.quoted = true
		l.state = stateSingle
	case '"':
		l.cur.quoted = true
		l.state = stateDouble
	case '$':
		return l.variable()
	default:
		l.lit.WriteRune(c)
	}
	return nil
}

func (l *lexer) single(c rune) error {
	if c == '\'' {
		l.state = stateWord
		return nil
	}
	l.lit.WriteRune(c)
	return nil
}

func (l *lexer) double(c rune) error {
	switch c {
	case '"':
		l.state = stateWord
	case '\\':
		next := l.peek(1)
		switch next {
		case '"', '\\', '$', '`':
			l.lit.WriteRune(next)
			l.pos++
		default:
			l.lit.WriteRune(c)
		}
	case '$':
		if err := l.variable(); err != nil {
			return err
		}
		// variable() leaves the state as stateWord.
		l.state = stateDouble
	default:
		l.lit.WriteRune(c)
	}
	return nil
}

// variable consumes a reference starting at the '$' under the cursor. A
// '$' not followed by a name is literal.
func (l *lexer) variable() error {
	next := l.peek(1)
	var name string
	switch {
	case next == '{':
		end := -1
		for i := l.pos + 2; i < len(l.src); i++ {
			if l.src[i] == '}' {
				end = i
				break
			}
		}
		if end < 0 {
			return syntaxErrorf("unterminated ${")
		}
		name = string(l.src[l.pos+2 : end])
		if !validName(name) && name != "?" {
			return syntaxErrorf("bad substitution ${%s}", name)
		}
		l.pos = end
	case next == '?':
		name = "?"
		l.pos++
	case isNameStart(next):
		end := l.pos + 1
		for end < len(l.src) && isNameChar(l.src[end]) {
			end++
		}
		name = string(l.src[l.pos+1 : end])
		l.pos = end - 1
	default:
		l.lit.WriteRune('$')
		return nil
	}
	l.flushLit()
	l.cur.parts = append(l.cur.parts, wordPart{text: name, variable: true})
	l.state = stateWord
	return nil
}

func isNameStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c rune) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

// validName reports whether s is usable as an environment variable name.
func validName(s string) bool {
	if s == "" || !isNameStart(rune(s[0])) {
		return false
	}
	for _, c := range s {
		if !isNameChar(c) {
			return false
		}
	}
	return true
}

type connector int

const (
	connEnd connector = iota
	connSeq
	connAnd
	connOr
)

type redirect struct {
	target word
	append bool
}

// statement is one simple command and how it chains to the next.
type statement struct {
	words    []word
	redirect *redirect
	next     connector
}

// parse groups tokens into statements joined by ";", "&&" and "||".
func parse(line string) ([]statement, error) {
	toks, err := lex(line)
	if err != nil {
		return nil, err
	}
	var (
		out []statement
		cur statement
	)
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.kind {
		case tokWord:
			cur.words = append(cur.words, t.word)
		case tokRedirect, tokAppend:
			if i+1 >= len(toks) || toks[i+1].kind != tokWord {
				return nil, syntaxErrorf("missing file name after %s", t.kind)
			}
			i++
			cur.redirect = &redirect{target: toks[i].word, append: t.kind == tokAppend}
		case tokPipe:
			return nil, syntaxErrorf("pipes are not supported")
		case tokSeq, tokAnd, tokOr:
			if len(cur.words) == 0 {
				return nil, syntaxErrorf("near unexpected token %s", strconv.Quote(t.kind.String()))
			}
			cur.next = map[tokenKind]connector{tokSeq: connSeq, tokAnd: connAnd, tokOr: connOr}[t.kind]
			out = append(out, cur)
			cur = statement{}
		}
	}
	if len(cur.words) > 0 {
		out = append(out, cur)
	} else if cur.redirect != nil {
		return nil, syntaxErrorf("redirection without a command")
	} else if n := len(out); n > 0 && out[n-1].next != connSeq {
		return nil, syntaxErrorf("unexpected end of line")
	}
	return out, nil
}
