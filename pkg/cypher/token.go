package cypher

import "strings"

// tokenType classifies one lexed token.
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenKeyword
	tokenString
	tokenInteger
	tokenFloat
	tokenParameter // $name

	// operators
	tokenEq      // =
	tokenNeq     // <>
	tokenLt      // <
	tokenLte     // <=
	tokenGt      // >
	tokenGte     // >=
	tokenPlus    // +
	tokenStar    // *
	tokenSlash   // /
	tokenPercent // %

	// punctuation
	tokenLParen   // (
	tokenRParen   // )
	tokenLBracket // [
	tokenRBracket // ]
	tokenLBrace   // {
	tokenRBrace   // }
	tokenColon    // :
	tokenComma    // ,
	tokenDot      // .
	tokenDotDot   // ..
	tokenPipe     // |
	tokenArrowR   // ->
	tokenDash     // - (pattern dash; also minus, disambiguated in the parser)
	tokenArrowInL // <- (start of an incoming pattern)
)

// token is one lexical unit with its source position.
type token struct {
	typ     tokenType
	literal string
	line    int
	column  int
}

// keywords the lexer recognizes case-insensitively. Cypher keywords are
// reserved only in clause position; the parser treats them contextually.
var keywords = map[string]struct{}{
	"MATCH": {}, "OPTIONAL": {}, "WHERE": {}, "RETURN": {}, "DISTINCT": {},
	"CREATE": {}, "DELETE": {}, "DETACH": {}, "SET": {},
	"ORDER": {}, "BY": {}, "ASC": {}, "ASCENDING": {}, "DESC": {}, "DESCENDING": {},
	"LIMIT": {}, "SKIP": {}, "UNION": {}, "ALL": {},
	"AND": {}, "OR": {}, "NOT": {}, "XOR": {},
	"IN": {}, "CONTAINS": {}, "STARTS": {}, "ENDS": {}, "WITH": {},
	"IS": {}, "NULL": {}, "TRUE": {}, "FALSE": {},
	"CASE": {}, "WHEN": {}, "THEN": {}, "ELSE": {}, "END": {},
	"AS": {},
}

func isKeyword(ident string) bool {
	_, ok := keywords[strings.ToUpper(ident)]
	return ok
}

// upper returns the canonical (upper-case) form of a keyword token.
func (t token) upper() string {
	return strings.ToUpper(t.literal)
}

// isKw reports whether the token is the given keyword.
func (t token) isKw(kw string) bool {
	return t.typ == tokenKeyword && t.upper() == kw
}
