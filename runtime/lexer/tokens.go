package lexer

import "github.com/dhmunro/dudley/core/types"

// TokenType represents lexical tokens of the layout language
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Names and literals
	NAME     // bare symbol: x, _tmp2
	QUOTED   // quoted name; Text holds the unescaped name
	PRIMTYPE // f8, <i4, >c16, |u2
	INTEGER  // 12, -3, 0x1f
	FLOAT    // 1.5, .5, 2e-3

	// Declarations
	EQUALS // =
	COLON  // :

	// Navigation
	SLASH  // /
	DOTDOT // ..

	// Brackets
	LSQUARE // [
	RSQUARE // ]
	LBRACE  // {
	RBRACE  // }
	LPAREN  // (
	RPAREN  // )
	COMMA   // ,

	// Placement
	AT      // @
	PERCENT // %

	// Filters
	RARROW // -> compression filter
	LARROW // <- reference filter

	// Dimension suffixes
	QUESTION // ?
	PLUSSES  // run of + attached to a dimension name
	MINUSES  // run of - attached to a dimension name

	// Byte order marks in the preamble
	LT   // <
	GT   // >
	PIPE // |

	// Side-channel comments
	DOC_COMMENT  // ## text
	ATTR_COMMENT // #: name=value, ...
)

// Token represents a lexical token
type Token struct {
	Type           TokenType
	Text           []byte // source bytes; unescaped name for QUOTED, payload for comments
	Position       types.Position
	HasSpaceBefore bool   // True if whitespace or a comment preceded this token
	Reason         string // why an ILLEGAL token was rejected
}

// String returns the token text as a string (for testing and debugging)
func (t Token) String() string {
	return string(t.Text)
}

// Display returns the text to show in a diagnostic, falling back to the type.
func (t Token) Display() string {
	if len(t.Text) > 0 && t.Type != DOC_COMMENT && t.Type != ATTR_COMMENT {
		return string(t.Text)
	}
	if s, ok := punctuation[t.Type]; ok {
		return s
	}
	return t.Type.String()
}

var punctuation = map[TokenType]string{
	EQUALS: "=", COLON: ":", SLASH: "/", DOTDOT: "..",
	LSQUARE: "[", RSQUARE: "]", LBRACE: "{", RBRACE: "}",
	LPAREN: "(", RPAREN: ")", COMMA: ",", AT: "@", PERCENT: "%",
	RARROW: "->", LARROW: "<-", QUESTION: "?", LT: "<", GT: ">", PIPE: "|",
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	switch t {
	case EOF:
		return "EOF"
	case ILLEGAL:
		return "ILLEGAL"
	case NAME:
		return "NAME"
	case QUOTED:
		return "QUOTED"
	case PRIMTYPE:
		return "PRIMTYPE"
	case INTEGER:
		return "INTEGER"
	case FLOAT:
		return "FLOAT"
	case EQUALS:
		return "EQUALS"
	case COLON:
		return "COLON"
	case SLASH:
		return "SLASH"
	case DOTDOT:
		return "DOTDOT"
	case LSQUARE:
		return "LSQUARE"
	case RSQUARE:
		return "RSQUARE"
	case LBRACE:
		return "LBRACE"
	case RBRACE:
		return "RBRACE"
	case LPAREN:
		return "LPAREN"
	case RPAREN:
		return "RPAREN"
	case COMMA:
		return "COMMA"
	case AT:
		return "AT"
	case PERCENT:
		return "PERCENT"
	case RARROW:
		return "RARROW"
	case LARROW:
		return "LARROW"
	case QUESTION:
		return "QUESTION"
	case PLUSSES:
		return "PLUSSES"
	case MINUSES:
		return "MINUSES"
	case LT:
		return "LT"
	case GT:
		return "GT"
	case PIPE:
		return "PIPE"
	case DOC_COMMENT:
		return "DOC_COMMENT"
	case ATTR_COMMENT:
		return "ATTR_COMMENT"
	default:
		return "UNKNOWN"
	}
}
