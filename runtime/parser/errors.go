package parser

import (
	"fmt"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/runtime/lexer"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// bailout unwinds the parser to Parse on the first error.
type bailout struct {
	err error
}

// fail aborts the parse with err, filling in the current container path and
// the source text for the snippet.
func (p *parser) fail(err *derrors.Error) {
	if err.Path == "" && len(p.frames) > 0 {
		err.WithPath(layout.Path(p.top().c))
	}
	panic(bailout{err: err.WithInput(p.src)})
}

// check aborts on an error returned by a layout operation.
func (p *parser) check(err error) {
	if err == nil {
		return
	}
	if e, ok := derrors.As(err); ok {
		p.fail(e)
	}
	panic(bailout{err: err})
}

// structural aborts with a StructuralError at tok.
func (p *parser) structural(tok lexer.Token, format string, args ...interface{}) {
	p.fail(derrors.New(derrors.Structural, tok.Position, format, args...).WithToken(tokenText(tok)))
}

// unexpected aborts with "expected X, got Y".
func (p *parser) unexpected(tok lexer.Token, expected string) {
	p.structural(tok, "expected %s, got %s", expected, describe(tok))
}

// unclosed aborts for a delimiter still open at end of input.
func (p *parser) unclosed(open lexer.Token) {
	p.fail(derrors.New(derrors.Structural, open.Position, "unclosed '%s' opened at %s",
		open.Display(), open.Position).WithToken(open.Display()))
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.NAME, lexer.QUOTED:
		return fmt.Sprintf("name %q", string(tok.Text))
	default:
		return fmt.Sprintf("'%s'", tok.Display())
	}
}

func tokenText(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return ""
	}
	return tok.Display()
}
