package cypher

import (
	"strings"
	"unicode"
)

// lexer turns query text into tokens, tracking line and column so syntax
// errors point at the offending position.
type lexer struct {
	input  []rune
	pos    int
	line   int
	column int
}

func newLexer(input string) *lexer {
	return &lexer{input: []rune(input), line: 1, column: 1}
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *lexer) peekAt(offset int) rune {
	if l.pos+offset >= len(l.input) {
		return 0
	}
	return l.input[l.pos+offset]
}

func (l *lexer) advance() rune {
	r := l.input[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return r
}

func (l *lexer) skipWhitespaceAndComments() *SyntaxError {
	for l.pos < len(l.input) {
		r := l.peek()
		switch {
		case unicode.IsSpace(r):
			l.advance()
		case r == '/' && l.peekAt(1) == '/':
			for l.pos < len(l.input) && l.peek() != '\n' {
				l.advance()
			}
		case r == '/' && l.peekAt(1) == '*':
			line, col := l.line, l.column
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.input) {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return &SyntaxError{Line: line, Column: col, Expected: "closing */", Found: "end of input"}
			}
		default:
			return nil
		}
	}
	return nil
}

// tokenize scans the whole input. Returns all tokens followed by one EOF
// token, or a SyntaxError for an unterminated string / unknown rune.
func (l *lexer) tokenize() ([]token, *SyntaxError) {
	var tokens []token
	for {
		if err := l.skipWhitespaceAndComments(); err != nil {
			return nil, err
		}
		line, col := l.line, l.column
		if l.pos >= len(l.input) {
			tokens = append(tokens, token{typ: tokenEOF, line: line, column: col})
			return tokens, nil
		}

		r := l.peek()
		switch {
		case r == '\'' || r == '"':
			lit, err := l.scanString(r)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{typ: tokenString, literal: lit, line: line, column: col})

		case unicode.IsDigit(r):
			lit, isFloat := l.scanNumber()
			typ := tokenInteger
			if isFloat {
				typ = tokenFloat
			}
			tokens = append(tokens, token{typ: typ, literal: lit, line: line, column: col})

		case r == '$':
			l.advance()
			name := l.scanIdent()
			if name == "" {
				return nil, &SyntaxError{Line: line, Column: col, Expected: "parameter name after $", Found: string(l.peek())}
			}
			tokens = append(tokens, token{typ: tokenParameter, literal: name, line: line, column: col})

		case unicode.IsLetter(r) || r == '_':
			ident := l.scanIdent()
			typ := tokenIdent
			if isKeyword(ident) {
				typ = tokenKeyword
			}
			tokens = append(tokens, token{typ: typ, literal: ident, line: line, column: col})

		case r == '`':
			// backtick-quoted identifier
			l.advance()
			var sb strings.Builder
			for l.pos < len(l.input) && l.peek() != '`' {
				sb.WriteRune(l.advance())
			}
			if l.pos >= len(l.input) {
				return nil, &SyntaxError{Line: line, Column: col, Expected: "closing `", Found: "end of input"}
			}
			l.advance()
			tokens = append(tokens, token{typ: tokenIdent, literal: sb.String(), line: line, column: col})

		default:
			tok, err := l.scanSymbol(line, col)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		}
	}
}

func (l *lexer) scanString(quote rune) (string, *SyntaxError) {
	line, col := l.line, l.column
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		r := l.advance()
		if r == quote {
			return sb.String(), nil
		}
		if r == '\\' && l.pos < len(l.input) {
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\', '\'', '"':
				sb.WriteRune(esc)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(r)
	}
	return "", &SyntaxError{Line: line, Column: col, Expected: "closing quote", Found: "end of input"}
}

func (l *lexer) scanNumber() (string, bool) {
	var sb strings.Builder
	isFloat := false
	for l.pos < len(l.input) && unicode.IsDigit(l.peek()) {
		sb.WriteRune(l.advance())
	}
	// A dot starts a fraction only when followed by a digit; "1..3" in a
	// variable-length pattern must stay three tokens.
	if l.peek() == '.' && unicode.IsDigit(l.peekAt(1)) {
		isFloat = true
		sb.WriteRune(l.advance())
		for l.pos < len(l.input) && unicode.IsDigit(l.peek()) {
			sb.WriteRune(l.advance())
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		next := l.peekAt(1)
		if unicode.IsDigit(next) || ((next == '+' || next == '-') && unicode.IsDigit(l.peekAt(2))) {
			isFloat = true
			sb.WriteRune(l.advance())
			if l.peek() == '+' || l.peek() == '-' {
				sb.WriteRune(l.advance())
			}
			for l.pos < len(l.input) && unicode.IsDigit(l.peek()) {
				sb.WriteRune(l.advance())
			}
		}
	}
	return sb.String(), isFloat
}

func (l *lexer) scanIdent() string {
	var sb strings.Builder
	for l.pos < len(l.input) {
		r := l.peek()
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			sb.WriteRune(l.advance())
			continue
		}
		break
	}
	return sb.String()
}

func (l *lexer) scanSymbol(line, col int) (token, *SyntaxError) {
	mk := func(typ tokenType, lit string) token {
		return token{typ: typ, literal: lit, line: line, column: col}
	}
	r := l.advance()
	switch r {
	case '=':
		return mk(tokenEq, "="), nil
	case '<':
		switch l.peek() {
		case '=':
			l.advance()
			return mk(tokenLte, "<="), nil
		case '>':
			l.advance()
			return mk(tokenNeq, "<>"), nil
		case '-':
			l.advance()
			return mk(tokenArrowInL, "<-"), nil
		}
		return mk(tokenLt, "<"), nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return mk(tokenGte, ">="), nil
		}
		return mk(tokenGt, ">"), nil
	case '+':
		return mk(tokenPlus, "+"), nil
	case '-':
		if l.peek() == '>' {
			l.advance()
			return mk(tokenArrowR, "->"), nil
		}
		return mk(tokenDash, "-"), nil
	case '*':
		return mk(tokenStar, "*"), nil
	case '/':
		return mk(tokenSlash, "/"), nil
	case '%':
		return mk(tokenPercent, "%"), nil
	case '(':
		return mk(tokenLParen, "("), nil
	case ')':
		return mk(tokenRParen, ")"), nil
	case '[':
		return mk(tokenLBracket, "["), nil
	case ']':
		return mk(tokenRBracket, "]"), nil
	case '{':
		return mk(tokenLBrace, "{"), nil
	case '}':
		return mk(tokenRBrace, "}"), nil
	case ':':
		return mk(tokenColon, ":"), nil
	case ',':
		return mk(tokenComma, ","), nil
	case '.':
		if l.peek() == '.' {
			l.advance()
			return mk(tokenDotDot, ".."), nil
		}
		return mk(tokenDot, "."), nil
	case '|':
		return mk(tokenPipe, "|"), nil
	}
	return token{}, &SyntaxError{Line: line, Column: col, Expected: "a valid token", Found: string(r)}
}
