package dsl

import "strings"

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix marks keyword literals rewritten by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites catalog source into something zygomys reads.
// Keywords (:origin) become "__kw_origin" string literals so builtins can
// tell them apart from positional strings. Kebab-case identifiers become
// snake_case because zygomys reads a hyphen as subtraction. Semicolon
// comments become // comments. String literals are copied untouched.
func preprocessSource(source string) string {
	r := rewriter{src: source}
	r.out.Grow(len(source) + len(source)/4)
	for !r.done() {
		r.step()
	}
	return r.out.String()
}

type rewriter struct {
	src string
	pos int
	out strings.Builder
}

func (r *rewriter) done() bool { return r.pos >= len(r.src) }

// peek returns the byte n past the cursor, or 0 past the end.
func (r *rewriter) peek(n int) byte {
	if i := r.pos + n; i >= 0 && i < len(r.src) {
		return r.src[i]
	}
	return 0
}

// emit copies src[pos:end] to the output and advances past it.
func (r *rewriter) emit(end int) {
	r.out.WriteString(r.src[r.pos:end])
	r.pos = end
}

func (r *rewriter) step() {
	c := r.peek(0)
	switch {
	case c == '"' || c == '`':
		r.emit(r.stringEnd())
	case c == ';':
		r.comment()
	case c == ':' && r.peek(1) == '=':
		r.emit(r.pos + 2)
	case c == ':' && isLetter(r.peek(1)):
		r.keyword()
	case c == '-' && isIdentChar(r.peek(-1)) && isLetter(r.peek(1)):
		r.out.WriteByte('_')
		r.pos++
	default:
		r.emit(r.pos + 1)
	}
}

// stringEnd returns the index just past the literal opening at pos.
// Double-quoted strings honour backslash escapes; backtick strings do not.
func (r *rewriter) stringEnd() int {
	q := r.src[r.pos]
	i := r.pos + 1
	for i < len(r.src) && r.src[i] != q {
		if q == '"' && r.src[i] == '\\' {
			i++
		}
		i++
	}
	return min(i+1, len(r.src))
}

// comment turns a run of semicolons into // and copies the rest of the line.
func (r *rewriter) comment() {
	for r.peek(0) == ';' {
		r.pos++
	}
	r.out.WriteString("//")
	end := strings.IndexByte(r.src[r.pos:], '\n')
	if end < 0 {
		end = len(r.src) - r.pos
	}
	r.emit(r.pos + end)
}

func (r *rewriter) keyword() {
	end := r.pos + 1
	for end < len(r.src) && isKWChar(r.src[end]) {
		end++
	}
	r.out.WriteByte('"')
	r.out.WriteString(kwPrefix)
	r.out.WriteString(r.src[r.pos+1 : end])
	r.out.WriteByte('"')
	r.pos = end
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isKWChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}
