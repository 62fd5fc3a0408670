package parser

import (
	"github.com/dhmunro/dudley/core/annot"
	"github.com/dhmunro/dudley/core/types"
	"github.com/dhmunro/dudley/runtime/lexer"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// parseAttributes reads the payload of a "#:" comment:
//
//	units="cm", scale=0.5, dims=[1, 2, 3], flag
//
// A bare name is the boolean true.
func parseAttributes(payload []byte, at types.Position) ([]annot.Attribute, error) {
	ap := &attrParser{tokens: lexer.NewLexer(payload).GetTokens(), at: at}
	return ap.parse()
}

type attrParser struct {
	tokens []lexer.Token
	pos    int
	at     types.Position
}

func (a *attrParser) cur() lexer.Token { return a.tokens[a.pos] }

func (a *attrParser) advance() lexer.Token {
	tok := a.tokens[a.pos]
	if tok.Type != lexer.EOF {
		a.pos++
	}
	return tok
}

// errorf reports at the position of tok within the source line.
func (a *attrParser) errorf(tok lexer.Token, format string, args ...interface{}) error {
	pos := a.at
	if tok.Position.Line == 1 {
		pos.Column += 2 + tok.Position.Column - 1
		pos.Offset += 2 + tok.Position.Offset
	}
	e := derrors.New(derrors.Lexical, pos, "attribute comment: "+format, args...)
	if tok.Type != lexer.EOF {
		e.WithToken(tok.Display())
	}
	return e
}

func (a *attrParser) parse() ([]annot.Attribute, error) {
	var attrs []annot.Attribute
	if a.cur().Type == lexer.EOF {
		return nil, nil
	}
	for {
		tok := a.cur()
		if tok.Type == lexer.ILLEGAL {
			return nil, a.errorf(tok, "%s", tok.Reason)
		}
		if tok.Type != lexer.NAME && tok.Type != lexer.QUOTED && tok.Type != lexer.PRIMTYPE {
			return nil, a.errorf(tok, "expected an attribute name")
		}
		a.advance()
		attr := annot.Attribute{Name: string(tok.Text), Value: true}
		if a.cur().Type == lexer.EQUALS {
			a.advance()
			v, err := a.value()
			if err != nil {
				return nil, err
			}
			attr.Value = v
		}
		attrs = append(attrs, attr)

		switch next := a.cur(); next.Type {
		case lexer.EOF:
			return attrs, nil
		case lexer.COMMA:
			a.advance()
		default:
			return nil, a.errorf(next, "expected ',' between attributes")
		}
	}
}

func (a *attrParser) value() (interface{}, error) {
	tok := a.cur()
	if tok.Type == lexer.LSQUARE {
		return a.array()
	}
	return a.scalar()
}

func (a *attrParser) scalar() (interface{}, error) {
	tok := a.advance()
	switch tok.Type {
	case lexer.INTEGER:
		v, err := lexer.IntValue(tok)
		if err != nil {
			return nil, a.errorf(tok, "%v", err)
		}
		return v, nil
	case lexer.FLOAT:
		v, err := lexer.FloatValue(tok)
		if err != nil {
			return nil, a.errorf(tok, "bad float")
		}
		return v, nil
	case lexer.QUOTED:
		return string(tok.Text), nil
	case lexer.NAME:
		switch string(tok.Text) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case lexer.ILLEGAL:
		return nil, a.errorf(tok, "%s", tok.Reason)
	}
	return nil, a.errorf(tok, "expected a number, a quoted string, true or false")
}

// array parses "[v, v, ...]". Integers mixed with floats become floats;
// any other mixture is an error.
func (a *attrParser) array() (interface{}, error) {
	open := a.advance()
	var ints []int64
	var floats []float64
	var strs []string
	sawFloat := false
	n := 0
	for a.cur().Type != lexer.RSQUARE {
		if a.cur().Type == lexer.EOF {
			return nil, a.errorf(open, "unclosed '['")
		}
		at := a.cur()
		v, err := a.scalar()
		if err != nil {
			return nil, err
		}
		switch x := v.(type) {
		case int64:
			ints = append(ints, x)
			floats = append(floats, float64(x))
		case float64:
			sawFloat = true
			floats = append(floats, x)
		case string:
			strs = append(strs, x)
		default:
			return nil, a.errorf(at, "arrays hold numbers or strings")
		}
		n++
		if strs != nil && len(strs) != n {
			return nil, a.errorf(at, "array mixes strings and numbers")
		}
		if a.cur().Type == lexer.COMMA {
			a.advance()
		} else if a.cur().Type != lexer.RSQUARE {
			return nil, a.errorf(a.cur(), "expected ',' or ']' in array")
		}
	}
	a.advance()

	switch {
	case n == 0:
		return nil, a.errorf(open, "empty array")
	case strs != nil:
		return strs, nil
	case sawFloat:
		return floats, nil
	default:
		return ints, nil
	}
}
