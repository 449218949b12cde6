package engine

// kwPrefix marks keyword arguments after preprocessing.
const kwPrefix = "__kw_"

// preprocessSource rewrites scene source into something zygomys accepts:
//
//   - :keyword becomes the string literal "__kw_keyword", so builtins can
//     tell keyword arguments apart without registering global symbols.
//   - kebab-case identifiers become snake_case, since zygomys reads a
//     hyphen as subtraction.
//   - ; line comments become // comments.
//
// String literals (double-quoted and backtick) pass through untouched.
func preprocessSource(source string) string {
	p := &preprocessor{src: []byte(source)}
	p.out = make([]byte, 0, len(source)+len(source)/4)
	for p.i < len(p.src) {
		switch c := p.src[p.i]; {
		case c == '"':
			p.quoted('"', true)
		case c == '`':
			p.quoted('`', false)
		case c == ';':
			p.comment()
		case c == ':' && p.i+1 < len(p.src) && p.src[p.i+1] == '=':
			p.out = append(p.out, ':', '=')
			p.i += 2
		case c == ':' && p.i+1 < len(p.src) && isLetter(p.src[p.i+1]):
			p.keyword()
		case c == '-' && p.i > 0 && p.i+1 < len(p.src) &&
			isIdentChar(p.src[p.i-1]) && isLetter(p.src[p.i+1]):
			p.out = append(p.out, '_')
			p.i++
		default:
			p.out = append(p.out, c)
			p.i++
		}
	}
	return string(p.out)
}

type preprocessor struct {
	src []byte
	out []byte
	i   int
}

// quoted copies a literal delimited by q, honouring backslash escapes when
// escapes is set.
func (p *preprocessor) quoted(q byte, escapes bool) {
	p.out = append(p.out, q)
	p.i++
	for p.i < len(p.src) && p.src[p.i] != q {
		if escapes && p.src[p.i] == '\\' && p.i+1 < len(p.src) {
			p.out = append(p.out, p.src[p.i], p.src[p.i+1])
			p.i += 2
			continue
		}
		p.out = append(p.out, p.src[p.i])
		p.i++
	}
	if p.i < len(p.src) {
		p.out = append(p.out, q)
		p.i++
	}
}

func (p *preprocessor) comment() {
	p.out = append(p.out, '/', '/')
	for p.i < len(p.src) && p.src[p.i] == ';' {
		p.i++
	}
	for p.i < len(p.src) && p.src[p.i] != '\n' {
		p.out = append(p.out, p.src[p.i])
		p.i++
	}
}

func (p *preprocessor) keyword() {
	j := p.i + 1
	for j < len(p.src) && isKWChar(p.src[j]) {
		j++
	}
	p.out = append(p.out, '"')
	p.out = append(p.out, kwPrefix...)
	p.out = append(p.out, p.src[p.i+1:j]...)
	p.out = append(p.out, '"')
	p.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isKWChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}
