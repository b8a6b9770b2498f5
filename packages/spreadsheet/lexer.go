package spreadsheet

import (
	"fmt"
	"strings"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNumber
	TokenString
	TokenBoolean
	TokenCell
	TokenFunction
	TokenIdentifier // bare word, resolved later as a named range
	TokenSheet      // sheet qualifier, the name before '!'
	TokenOperator
	TokenLeftParen
	TokenRightParen
	TokenComma
	TokenColon
)

var tokenTypeNames = map[TokenType]string{
	TokenEOF:        "end of formula",
	TokenNumber:     "number",
	TokenString:     "string",
	TokenBoolean:    "boolean",
	TokenCell:       "cell reference",
	TokenFunction:   "function",
	TokenIdentifier: "identifier",
	TokenSheet:      "sheet reference",
	TokenOperator:   "operator",
	TokenLeftParen:  "'('",
	TokenRightParen: "')'",
	TokenComma:      "','",
	TokenColon:      "':'",
}

func (t TokenType) String() string {
	if name, ok := tokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// character classification constants. slightly easier to read.
const (
	charNull       = 0
	charTab        = '\t'
	charNewline    = '\n'
	charReturn     = '\r'
	charSpace      = ' '
	charQuote      = '"'
	charApostrophe = '\''
	charAmpersand  = '&'
	charLParen     = '('
	charRParen     = ')'
	charAsterisk   = '*'
	charPlus       = '+'
	charComma      = ','
	charMinus      = '-'
	charPeriod     = '.'
	charSlash      = '/'
	charColon      = ':'
	charLess       = '<'
	charEqual      = '='
	charGreater    = '>'
	charCaret      = '^'
	charUnderscore = '_'
	charExclaim    = '!'
)

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return t.Type.String()
	}
	return fmt.Sprintf("%s %q", t.Type, t.Value)
}

// Lexer tokenizes formula text. the leading '=' must already be stripped.
type Lexer struct {
	runes  []rune // UTF-8 aware representation
	pos    int
	tokens []Token
}

// NewLexer creates a lexer for the given formula body
func NewLexer(input string) *Lexer {
	return &Lexer{
		runes:  []rune(input),
		pos:    0,
		tokens: []Token{},
	}
}

// Tokenize is a convenience wrapper around NewLexer(input).Tokenize()
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize scans the entire input. the returned slice always ends with a
// TokenEOF. the only failure is an unrecognized character, reported as a
// syntax *FormulaError.
func (l *Lexer) Tokenize() ([]Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.runes) {
			break
		}
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		l.tokens = append(l.tokens, tok)
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() (Token, error) {
	startPos := l.pos
	ch := l.current()

	if ch == charQuote {
		return l.scanString(), nil
	}

	if ch == charApostrophe {
		return l.scanQuotedSheet()
	}

	if isASCIIDigit(ch) || (ch == charPeriod && isASCIIDigit(l.peek(1))) {
		return l.scanNumber(), nil
	}

	if isASCIILetter(ch) {
		return l.scanWord(), nil
	}

	switch ch {
	case charLParen:
		l.pos++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}, nil
	case charRParen:
		l.pos++
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}, nil
	case charComma:
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: startPos}, nil
	case charColon:
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: startPos}, nil
	case charLess, charGreater:
		return l.scanComparisonOp(), nil
	case charPlus, charMinus, charAsterisk, charSlash, charCaret, charEqual, charAmpersand:
		l.pos++
		return Token{Type: TokenOperator, Value: string(ch), Pos: startPos}, nil
	}

	return Token{}, NewFormulaError(ErrorCodeSyntax,
		fmt.Sprintf("unexpected character %q at position %d", ch, startPos))
}

// helper methods for character navigation

func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		switch l.current() {
		case charSpace, charTab, charNewline, charReturn:
			l.pos++
		default:
			return
		}
	}
}

// scanNumber scans a maximal run of digits with at most one '.'.
// no exponents and no thousands separators.
func (l *Lexer) scanNumber() Token {
	startPos := l.pos
	seenPeriod := false

	for l.pos < len(l.runes) {
		ch := l.current()
		if isASCIIDigit(ch) {
			l.pos++
			continue
		}
		if ch == charPeriod && !seenPeriod {
			seenPeriod = true
			l.pos++
			continue
		}
		break
	}

	return Token{Type: TokenNumber, Value: l.substring(startPos, l.pos), Pos: startPos}
}

// scanString scans a double-quoted literal. "" inside the quotes is a
// literal quote. a missing closing quote runs to the end of input.
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charQuote {
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2
				continue
			}
			l.pos++ // consume closing quote
			return Token{Type: TokenString, Value: string(result), Pos: startPos}
		}
		result = append(result, ch)
		l.pos++
	}

	return Token{Type: TokenString, Value: string(result), Pos: startPos}
}

// scanWord scans functions, cells, booleans, sheet qualifiers and bare
// identifiers
func (l *Lexer) scanWord() Token {
	startPos := l.pos
	for l.pos < len(l.runes) && (isASCIILetter(l.current()) || isASCIIDigit(l.current()) || l.current() == charUnderscore) {
		l.pos++
	}

	word := l.substring(startPos, l.pos)
	upper := strings.ToUpper(word)

	switch {
	case l.current() == charExclaim:
		l.pos++ // consume '!'
		return Token{Type: TokenSheet, Value: word, Pos: startPos}
	case l.current() == charLParen:
		return Token{Type: TokenFunction, Value: upper, Pos: startPos}
	case isCellName(word):
		return Token{Type: TokenCell, Value: upper, Pos: startPos}
	case upper == "TRUE" || upper == "FALSE":
		return Token{Type: TokenBoolean, Value: upper, Pos: startPos}
	}

	return Token{Type: TokenIdentifier, Value: word, Pos: startPos}
}

// scanQuotedSheet scans a sheet qualifier like 'My Sheet'!. '' inside the
// quotes is a literal apostrophe.
func (l *Lexer) scanQuotedSheet() (Token, error) {
	startPos := l.pos
	l.pos++ // consume opening apostrophe

	var name []rune
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charApostrophe {
			if l.peek(1) == charApostrophe {
				name = append(name, charApostrophe)
				l.pos += 2
				continue
			}
			break
		}
		name = append(name, ch)
		l.pos++
	}

	if l.current() != charApostrophe || l.peek(1) != charExclaim {
		return Token{}, NewFormulaError(ErrorCodeSyntax,
			fmt.Sprintf("unexpected character %q at position %d", charApostrophe, startPos))
	}
	l.pos += 2 // consume closing apostrophe and '!'

	return Token{Type: TokenSheet, Value: string(name), Pos: startPos}, nil
}

// scanComparisonOp scans < and >, preferring the two-character forms
func (l *Lexer) scanComparisonOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	next := l.current()
	op := string(ch)
	switch {
	case next == charEqual:
		op += "="
		l.pos++
	case ch == charLess && next == charGreater:
		op = "<>"
		l.pos++
	}

	return Token{Type: TokenOperator, Value: op, Pos: startPos}
}
