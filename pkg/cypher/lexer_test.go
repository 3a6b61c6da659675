package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTokenize(t *testing.T, input string) []token {
	t.Helper()
	tokens, err := newLexer(input).tokenize()
	require.Nil(t, err)
	return tokens
}

func TestLexerBasics(t *testing.T) {
	t.Run("keywords_and_identifiers", func(t *testing.T) {
		tokens := mustTokenize(t, "MATCH (n:Person) RETURN n")
		assert.Equal(t, tokenKeyword, tokens[0].typ)
		assert.Equal(t, "MATCH", tokens[0].literal)
		assert.Equal(t, tokenLParen, tokens[1].typ)
		assert.Equal(t, tokenIdent, tokens[2].typ)
		assert.Equal(t, "n", tokens[2].literal)
		assert.Equal(t, tokenColon, tokens[3].typ)
		assert.Equal(t, "Person", tokens[4].literal)
		assert.Equal(t, tokenEOF, tokens[len(tokens)-1].typ)
	})

	t.Run("keywords_case_insensitive", func(t *testing.T) {
		tokens := mustTokenize(t, "match RETURN Where")
		for _, tok := range tokens[:3] {
			assert.Equal(t, tokenKeyword, tok.typ)
		}
	})

	t.Run("string_literals_and_escapes", func(t *testing.T) {
		tokens := mustTokenize(t, `'it''s' "a\nb" 'q\'s'`)
		assert.Equal(t, "it", tokens[0].literal)
		assert.Equal(t, "s", tokens[1].literal)
		assert.Equal(t, "a\nb", tokens[2].literal)
		assert.Equal(t, "q's", tokens[3].literal)
	})

	t.Run("numbers", func(t *testing.T) {
		tokens := mustTokenize(t, "42 3.14 1e3 2.5e-1")
		assert.Equal(t, tokenInteger, tokens[0].typ)
		assert.Equal(t, tokenFloat, tokens[1].typ)
		assert.Equal(t, tokenFloat, tokens[2].typ)
		assert.Equal(t, tokenFloat, tokens[3].typ)
	})

	t.Run("hop_range_is_not_a_float", func(t *testing.T) {
		tokens := mustTokenize(t, "*1..3")
		require.Len(t, tokens, 5) // * 1 .. 3 EOF
		assert.Equal(t, tokenStar, tokens[0].typ)
		assert.Equal(t, tokenInteger, tokens[1].typ)
		assert.Equal(t, "1", tokens[1].literal)
		assert.Equal(t, tokenDotDot, tokens[2].typ)
		assert.Equal(t, tokenInteger, tokens[3].typ)
	})

	t.Run("arrows_and_dashes", func(t *testing.T) {
		tokens := mustTokenize(t, "-[]-> <-[]- ->")
		assert.Equal(t, tokenDash, tokens[0].typ)
		assert.Equal(t, tokenArrowR, tokens[3].typ)
		assert.Equal(t, tokenArrowInL, tokens[4].typ)
		assert.Equal(t, tokenDash, tokens[7].typ)
		assert.Equal(t, tokenArrowR, tokens[8].typ)
	})

	t.Run("parameters", func(t *testing.T) {
		tokens := mustTokenize(t, "$name $min_age")
		assert.Equal(t, tokenParameter, tokens[0].typ)
		assert.Equal(t, "name", tokens[0].literal)
		assert.Equal(t, "min_age", tokens[1].literal)
	})

	t.Run("backtick_identifier", func(t *testing.T) {
		tokens := mustTokenize(t, "`weird name`")
		assert.Equal(t, tokenIdent, tokens[0].typ)
		assert.Equal(t, "weird name", tokens[0].literal)
	})

	t.Run("comments_skipped", func(t *testing.T) {
		tokens := mustTokenize(t, "MATCH // trailing\n/* block\ncomment */ RETURN")
		require.Len(t, tokens, 3)
		assert.Equal(t, "MATCH", tokens[0].literal)
		assert.Equal(t, "RETURN", tokens[1].literal)
	})
}

func TestLexerPositions(t *testing.T) {
	t.Run("line_and_column_tracking", func(t *testing.T) {
		tokens := mustTokenize(t, "MATCH\n  (n)")
		assert.Equal(t, 1, tokens[0].line)
		assert.Equal(t, 1, tokens[0].column)
		assert.Equal(t, 2, tokens[1].line)
		assert.Equal(t, 3, tokens[1].column)
	})
}

func TestLexerErrors(t *testing.T) {
	t.Run("unterminated_string", func(t *testing.T) {
		_, err := newLexer("RETURN 'oops").tokenize()
		require.NotNil(t, err)
		assert.Equal(t, 1, err.Line)
		assert.Equal(t, 8, err.Column)
	})

	t.Run("unterminated_block_comment", func(t *testing.T) {
		_, err := newLexer("RETURN 1 /* never closed").tokenize()
		require.NotNil(t, err)
	})

	t.Run("unknown_rune", func(t *testing.T) {
		_, err := newLexer("RETURN ^").tokenize()
		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "line 1")
	})
}
