package lexer

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/dhmunro/dudley/core/types"
)

// ASCII character lookup tables for fast classification
var (
	isWhitespace [128]bool
	isDigit      [128]bool
	isHexDigit   [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
	singleChar   [128]TokenType
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isWhitespace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v'
		isDigit[i] = '0' <= ch && ch <= '9'
		isHexDigit[i] = isDigit[i] || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
		isIdentStart[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isIdentPart[i] = isIdentStart[i] || isDigit[i]
		singleChar[i] = ILLEGAL
	}

	singleChar['='] = EQUALS
	singleChar[':'] = COLON
	singleChar['/'] = SLASH
	singleChar['['] = LSQUARE
	singleChar[']'] = RSQUARE
	singleChar['{'] = LBRACE
	singleChar['}'] = RBRACE
	singleChar['('] = LPAREN
	singleChar[')'] = RPAREN
	singleChar[','] = COMMA
	singleChar['@'] = AT
	singleChar['%'] = PERCENT
	singleChar['?'] = QUESTION
}

// LexerOpt represents a lexer configuration option
type LexerOpt func(*LexerConfig)

// TelemetryMode controls telemetry collection (production-safe)
type TelemetryMode int

const (
	TelemetryOff    TelemetryMode = iota // Zero overhead (default)
	TelemetryBasic                       // Token counts only
	TelemetryTiming                      // Token counts + time spent lexing
)

// LexerConfig holds lexer configuration
type LexerConfig struct {
	telemetry TelemetryMode
	logger    *slog.Logger
}

// WithTelemetryBasic enables token counting
func WithTelemetryBasic() LexerOpt {
	return func(c *LexerConfig) {
		c.telemetry = TelemetryBasic
	}
}

// WithTelemetryTiming enables token counting and timing
func WithTelemetryTiming() LexerOpt {
	return func(c *LexerConfig) {
		c.telemetry = TelemetryTiming
	}
}

// WithLogger replaces the environment-configured debug logger
func WithLogger(logger *slog.Logger) LexerOpt {
	return func(c *LexerConfig) {
		c.logger = logger
	}
}

// Telemetry holds lexer metrics (production-safe)
type Telemetry struct {
	Counts    map[TokenType]int
	TotalTime time.Duration
}

// Lexer turns layout text into tokens. It is restartable only by creating a
// new Lexer over the same text.
type Lexer struct {
	input    []byte
	position int
	line     int
	column   int

	// previous significant token, for suffix runs that must touch a name
	prev    TokenType
	prevEnd int

	telemetryMode TelemetryMode
	telemetry     *Telemetry
	logger        *slog.Logger
}

// NewLexer creates a new lexer over input
func NewLexer(input []byte, opts ...LexerOpt) *Lexer {
	config := &LexerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	l := &Lexer{
		input:         input,
		line:          1,
		column:        1,
		prev:          EOF,
		prevEnd:       -1,
		telemetryMode: config.telemetry,
		logger:        config.logger,
	}
	if l.logger == nil {
		l.logger = newDebugLogger()
	}
	if config.telemetry > TelemetryOff {
		l.telemetry = &Telemetry{Counts: make(map[TokenType]int)}
	}
	return l
}

// newDebugLogger builds a stderr logger that only speaks when
// DUDLEY_DEBUG_LEXER is set.
func newDebugLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DUDLEY_DEBUG_LEXER") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// Telemetry returns collected metrics, or nil when telemetry is off.
func (l *Lexer) Telemetry() *Telemetry {
	return l.telemetry
}

// NextToken returns the next token. After EOF it keeps returning EOF.
func (l *Lexer) NextToken() Token {
	var start time.Time
	if l.telemetryMode >= TelemetryTiming {
		start = time.Now()
	}

	tok := l.lexToken(false)
	if tok.Type != DOC_COMMENT && tok.Type != ATTR_COMMENT {
		l.prev = tok.Type
		l.prevEnd = l.position
	}

	if l.telemetry != nil {
		l.telemetry.Counts[tok.Type]++
		if l.telemetryMode >= TelemetryTiming {
			l.telemetry.TotalTime += time.Since(start)
		}
	}
	l.logger.Debug("token", "type", tok.Type, "text", string(tok.Text), "pos", tok.Position.String())
	return tok
}

// GetTokens lexes the remaining input, EOF included.
func (l *Lexer) GetTokens() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

func (l *Lexer) here() types.Position {
	return types.Position{Line: l.line, Column: l.column, Offset: l.position}
}

func (l *Lexer) lexToken(hadSpace bool) Token {
	if l.skipWhitespace() {
		hadSpace = true
	}
	start := l.here()
	if l.position >= len(l.input) {
		return Token{Type: EOF, Position: start, HasSpaceBefore: hadSpace}
	}

	ch := l.input[l.position]
	switch {
	case ch == 0:
		l.advanceChar()
		return l.illegal(start, []byte{0}, "embedded NUL character")
	case ch == '#':
		if tok, ok := l.lexComment(start, hadSpace); ok {
			return tok
		}
		return l.lexToken(true)
	case ch < 128 && isIdentStart[ch]:
		return l.lexIdentifier(start, hadSpace)
	case ch < 128 && isDigit[ch]:
		return l.lexNumber(start, hadSpace)
	case ch == '"' || ch == '\'':
		return l.lexQuoted(start, ch, hadSpace)
	case ch == '.':
		if l.peekChar(1) == '.' {
			l.advanceChar()
			l.advanceChar()
			return Token{Type: DOTDOT, Text: []byte(".."), Position: start, HasSpaceBefore: hadSpace}
		}
		if c := l.peekChar(1); c < 128 && isDigit[c] {
			return l.lexNumber(start, hadSpace)
		}
		l.advanceChar()
		return l.illegal(start, []byte{'.'}, "unexpected '.'")
	case ch == '<':
		if l.peekChar(1) == '-' {
			l.advanceChar()
			l.advanceChar()
			return Token{Type: LARROW, Text: []byte("<-"), Position: start, HasSpaceBefore: hadSpace}
		}
		return l.lexOrderMark(start, LT, hadSpace)
	case ch == '>':
		return l.lexOrderMark(start, GT, hadSpace)
	case ch == '|':
		return l.lexOrderMark(start, PIPE, hadSpace)
	case ch == '-':
		if l.peekChar(1) == '>' {
			l.advanceChar()
			l.advanceChar()
			return Token{Type: RARROW, Text: []byte("->"), Position: start, HasSpaceBefore: hadSpace}
		}
		return l.lexSign(start, hadSpace)
	case ch == '+':
		return l.lexSign(start, hadSpace)
	case ch < 128 && singleChar[ch] != ILLEGAL:
		l.advanceChar()
		return Token{Type: singleChar[ch], Text: []byte{ch}, Position: start, HasSpaceBefore: hadSpace}
	}

	text := l.input[l.position : l.position+1]
	if ch >= 128 {
		_, size := utf8.DecodeRune(l.input[l.position:])
		text = l.input[l.position : l.position+size]
	}
	l.advanceChar()
	return l.illegal(start, text, fmt.Sprintf("unexpected character %q", string(text)))
}

func (l *Lexer) illegal(start types.Position, text []byte, reason string) Token {
	return Token{Type: ILLEGAL, Text: text, Position: start, Reason: reason}
}

// skipWhitespace skips whitespace, reporting whether any was skipped
func (l *Lexer) skipWhitespace() bool {
	start := l.position
	for l.position < len(l.input) {
		ch := l.input[l.position]
		if ch >= 128 || !isWhitespace[ch] {
			break
		}
		l.advanceChar()
	}
	return l.position > start
}

// lexComment handles '#'. Plain comments are skipped and report false;
// "##" and "#:" comments become tokens carrying the rest of the line.
func (l *Lexer) lexComment(start types.Position, hadSpace bool) (Token, bool) {
	kind := ILLEGAL
	switch l.peekChar(1) {
	case '#':
		kind = DOC_COMMENT
	case ':':
		kind = ATTR_COMMENT
	}
	if kind != ILLEGAL {
		l.advanceChar()
		l.advanceChar()
	}
	bodyStart := l.position
	for l.position < len(l.input) && l.input[l.position] != '\n' {
		l.advanceChar()
	}
	if kind == ILLEGAL {
		return Token{}, false
	}
	body := l.input[bodyStart:l.position]
	for len(body) > 0 && (body[len(body)-1] == ' ' || body[len(body)-1] == '\t' || body[len(body)-1] == '\r') {
		body = body[:len(body)-1]
	}
	return Token{Type: kind, Text: body, Position: start, HasSpaceBefore: hadSpace}, true
}

// lexIdentifier reads a symbol, classifying primitive type names
func (l *Lexer) lexIdentifier(start types.Position, hadSpace bool) Token {
	startPos := l.position
	l.readIdent()
	text := l.input[startPos:l.position]
	tokType := NAME
	if types.IsPrimitiveName(string(text)) {
		tokType = PRIMTYPE
	}
	return Token{Type: tokType, Text: text, Position: start, HasSpaceBefore: hadSpace}
}

func (l *Lexer) readIdent() {
	for l.position < len(l.input) {
		ch := l.input[l.position]
		if ch >= 128 || !isIdentPart[ch] {
			return
		}
		l.advanceChar()
	}
}

// lexOrderMark reads '<', '>' or '|', absorbing a directly following
// primitive type name into a single PRIMTYPE token.
func (l *Lexer) lexOrderMark(start types.Position, alone TokenType, hadSpace bool) Token {
	startPos := l.position
	end := startPos + 1
	for end < len(l.input) && l.input[end] < 128 && isIdentPart[l.input[end]] {
		end++
	}
	if end > startPos+1 && types.IsPrimitiveName(string(l.input[startPos+1:end])) {
		for l.position < end {
			l.advanceChar()
		}
		return Token{Type: PRIMTYPE, Text: l.input[startPos:end], Position: start, HasSpaceBefore: hadSpace}
	}
	l.advanceChar()
	return Token{Type: alone, Text: l.input[startPos : startPos+1], Position: start, HasSpaceBefore: hadSpace}
}

// lexSign handles '+' and '-' that are not part of "->". Directly after a
// dimension name or '?', a run of one sign is a suffix; before a digit it is
// the sign of a number.
func (l *Lexer) lexSign(start types.Position, hadSpace bool) Token {
	ch := l.input[l.position]
	attached := !hadSpace && l.prevEnd == l.position &&
		(l.prev == NAME || l.prev == QUOTED || l.prev == PRIMTYPE || l.prev == QUESTION)
	if attached {
		startPos := l.position
		for l.position < len(l.input) && l.input[l.position] == ch {
			l.advanceChar()
		}
		tokType := PLUSSES
		if ch == '-' {
			tokType = MINUSES
		}
		return Token{Type: tokType, Text: l.input[startPos:l.position], Position: start}
	}
	if c := l.peekChar(1); (c < 128 && isDigit[c]) || (c == '.' && l.peekChar(2) < 128 && isDigit[l.peekChar(2)]) {
		return l.lexNumber(start, hadSpace)
	}
	l.advanceChar()
	return l.illegal(start, []byte{ch}, fmt.Sprintf("'%c' must follow a dimension name or start a number", ch))
}

// lexNumber tokenizes an optionally signed decimal or 0x integer, or a float
func (l *Lexer) lexNumber(start types.Position, hadSpace bool) Token {
	startPos := l.position
	if ch := l.input[l.position]; ch == '+' || ch == '-' {
		l.advanceChar()
	}

	if l.currentChar() == '0' && (l.peekChar(1) == 'x' || l.peekChar(1) == 'X') {
		l.advanceChar()
		l.advanceChar()
		digits := l.position
		for l.position < len(l.input) && l.input[l.position] < 128 && isHexDigit[l.input[l.position]] {
			l.advanceChar()
		}
		if l.position == digits {
			return l.illegal(start, l.input[startPos:l.position], "hex integer needs digits after 0x")
		}
		return l.finishNumber(start, startPos, INTEGER, hadSpace)
	}

	tokType := INTEGER
	l.readDigits()
	if l.currentChar() == '.' && l.peekChar(1) != '.' {
		tokType = FLOAT
		l.advanceChar()
		l.readDigits()
	}
	if c := l.currentChar(); c == 'e' || c == 'E' {
		save, line, col := l.position, l.line, l.column
		l.advanceChar()
		if c := l.currentChar(); c == '+' || c == '-' {
			l.advanceChar()
		}
		if l.readDigits() {
			tokType = FLOAT
		} else {
			l.position, l.line, l.column = save, line, col
		}
	}
	return l.finishNumber(start, startPos, tokType, hadSpace)
}

// finishNumber rejects numbers running straight into a name, such as "3f".
func (l *Lexer) finishNumber(start types.Position, startPos int, tokType TokenType, hadSpace bool) Token {
	if c := l.currentChar(); c < 128 && isIdentPart[c] && c != 0 {
		l.readIdent()
		return l.illegal(start, l.input[startPos:l.position], "malformed number")
	}
	return Token{Type: tokType, Text: l.input[startPos:l.position], Position: start, HasSpaceBefore: hadSpace}
}

func (l *Lexer) readDigits() bool {
	start := l.position
	for l.position < len(l.input) && l.input[l.position] < 128 && isDigit[l.input[l.position]] {
		l.advanceChar()
	}
	return l.position > start
}

// lexQuoted reads a quoted name. Only \\, \" and \' are escapes.
func (l *Lexer) lexQuoted(start types.Position, quote byte, hadSpace bool) Token {
	startPos := l.position
	l.advanceChar()
	var name []byte
	for {
		if l.position >= len(l.input) || l.input[l.position] == '\n' {
			return l.illegal(start, l.input[startPos:l.position], "unterminated quoted name")
		}
		ch := l.input[l.position]
		switch ch {
		case 0:
			l.advanceChar()
			return l.illegal(start, l.input[startPos:l.position], "embedded NUL in quoted name")
		case quote:
			l.advanceChar()
			return Token{Type: QUOTED, Text: name, Position: start, HasSpaceBefore: hadSpace}
		case '\\':
			next := l.peekChar(1)
			if next != '\\' && next != '"' && next != '\'' {
				l.advanceChar()
				return l.illegal(start, l.input[startPos:l.position],
					fmt.Sprintf("invalid escape \\%c in quoted name", next))
			}
			l.advanceChar()
			l.advanceChar()
			name = append(name, next)
		default:
			l.advanceChar()
			name = append(name, l.input[l.position-1])
		}
	}
}

func (l *Lexer) currentChar() byte {
	if l.position >= len(l.input) {
		return 0
	}
	return l.input[l.position]
}

func (l *Lexer) peekChar(n int) byte {
	if l.position+n >= len(l.input) {
		return 0
	}
	return l.input[l.position+n]
}

// advanceChar moves one byte forward, counting a multi-byte rune as one column
func (l *Lexer) advanceChar() {
	if l.position >= len(l.input) {
		return
	}
	ch := l.input[l.position]
	if ch < 128 {
		if ch == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.position++
		return
	}
	_, size := utf8.DecodeRune(l.input[l.position:])
	if size <= 0 {
		size = 1
	}
	l.position += size
	l.column++
}

// IntValue converts an INTEGER token to its value.
func IntValue(tok Token) (int64, error) {
	text := string(tok.Text)
	neg := false
	if len(text) > 0 && (text[0] == '+' || text[0] == '-') {
		neg = text[0] == '-'
		text = text[1:]
	}
	base := 10
	if len(text) > 2 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X') {
		base = 16
		text = text[2:]
	}
	u, err := strconv.ParseUint(text, base, 63)
	if err != nil {
		return 0, fmt.Errorf("integer %s out of range", tok.Text)
	}
	v := int64(u)
	if neg {
		v = -v
	}
	return v, nil
}

// FloatValue converts a FLOAT or INTEGER token to a float.
func FloatValue(tok Token) (float64, error) {
	if tok.Type == INTEGER {
		v, err := IntValue(tok)
		return float64(v), err
	}
	return strconv.ParseFloat(string(tok.Text), 64)
}
