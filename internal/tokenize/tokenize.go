// Package tokenize splits option text (environment variables, options files,
// settings files, resource blobs) into individual option tokens.
package tokenize

import (
	"fmt"
	"strings"
)

// Options controls tokenizer behavior.
type Options struct {
	// Comments enables '#' line comments. A '#' only starts a comment while
	// the scanner is between tokens; inside a token it is literal.
	Comments bool
}

// UnterminatedQuoteError reports a quote that was opened but never closed.
type UnterminatedQuoteError struct {
	Source string // Name of the buffer being scanned (e.g., "env_var='JAVA_TOOL_OPTIONS'")
	Quote  byte
	Offset int // Byte offset of the opening quote
}

func (e *UnterminatedQuoteError) Error() string {
	return fmt.Sprintf("Unmatched quote in %s", e.Source)
}

type state int

const (
	skippingWhitespace state = iota
	inComment
	inToken
	inQuote
)

// Split scans buf and returns its tokens in order.
// Whitespace separates tokens. A single or double quote embeds everything up
// to the matching quote character (including whitespace and the other quote
// character) into the current token; the quotes themselves are dropped.
// Quoted and unquoted runs that touch are part of the same token.
func Split(source, buf string, opts Options) ([]string, error) {
	var (
		tokens     []string
		cur        strings.Builder
		st         = skippingWhitespace
		quote      byte
		quoteStart int
	)

	for i := 0; i < len(buf); i++ {
		c := buf[i]
		switch st {
		case skippingWhitespace:
			switch {
			case isSpace(c):
			case c == '#' && opts.Comments:
				st = inComment
			case c == '\'' || c == '"':
				quote, quoteStart = c, i
				st = inQuote
			default:
				cur.WriteByte(c)
				st = inToken
			}
		case inComment:
			if c == '\n' {
				st = skippingWhitespace
			}
		case inToken:
			switch {
			case isSpace(c):
				tokens = append(tokens, cur.String())
				cur.Reset()
				st = skippingWhitespace
			case c == '\'' || c == '"':
				quote, quoteStart = c, i
				st = inQuote
			default:
				cur.WriteByte(c)
			}
		case inQuote:
			if c == quote {
				st = inToken
				continue
			}
			cur.WriteByte(c)
		}
	}

	switch st {
	case inQuote:
		return nil, &UnterminatedQuoteError{Source: source, Quote: quote, Offset: quoteStart}
	case inToken:
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
