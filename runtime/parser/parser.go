// Package parser builds the layout item tree from source text.
//
// The builder is a hand-written recursive descent over the lexer's tokens.
// Container navigation ("name/", "name[", "/", "..", and the "," and "]" that
// end list elements) moves a cursor over a stack of open containers instead
// of re-parsing. The first error aborts the whole parse.
package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/dhmunro/dudley/core/layout"
	"github.com/dhmunro/dudley/core/types"
	"github.com/dhmunro/dudley/runtime/lexer"

	derrors "github.com/dhmunro/dudley/core/errors"
)

// Tree is the result of a successful parse.
type Tree struct {
	Layout      *layout.Layout
	Encoding    lexer.Encoding  // encoding detected in the source bytes
	Telemetry   *ParseTelemetry // Performance metrics (nil if disabled)
	DebugEvents []DebugEvent    // Debug events (nil if disabled)
}

// Parse builds the item tree of a layout. Comments are forwarded to the
// annotation sink, if one is configured, as they are reached.
func Parse(source []byte, opts ...ParserOpt) (tree *Tree, err error) {
	config := &ParserConfig{}
	for _, opt := range opts {
		opt(config)
	}

	var telemetry *ParseTelemetry
	var startTotal time.Time
	if config.telemetry >= TelemetryBasic {
		telemetry = &ParseTelemetry{}
		if config.telemetry >= TelemetryTiming {
			startTotal = time.Now()
		}
	}

	text, enc, err := lexer.Decode(source)
	if err != nil {
		return nil, derrors.Wrap(derrors.Lexical, types.Position{}, err, "cannot decode layout text")
	}

	var startLex time.Time
	if config.telemetry >= TelemetryTiming {
		startLex = time.Now()
	}
	tokens, comments := split(lexer.NewLexer(text).GetTokens())
	if telemetry != nil {
		telemetry.TokenCount = len(tokens)
		telemetry.CommentCount = len(comments)
		if config.telemetry >= TelemetryTiming {
			telemetry.LexTime = time.Since(startLex)
		}
	}

	p := &parser{
		tokens:   tokens,
		comments: comments,
		src:      string(text),
		l:        layout.New(),
		config:   config,
	}
	if config.debug > DebugOff {
		p.debugEvents = make([]DebugEvent, 0, 64)
	}
	p.l.Source = p.src
	p.l.Template = config.template
	p.frames = []*frame{{c: p.l.Root}}
	p.last = p.l.Root

	var startParse time.Time
	if config.telemetry >= TelemetryTiming {
		startParse = time.Now()
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			tree, err = nil, b.err
		}
	}()
	p.file()

	if telemetry != nil {
		telemetry.ItemCount = len(p.l.Items)
		if config.telemetry >= TelemetryTiming {
			telemetry.ParseTime = time.Since(startParse)
			telemetry.TotalTime = time.Since(startTotal)
		}
	}

	return &Tree{
		Layout:      p.l,
		Encoding:    enc,
		Telemetry:   telemetry,
		DebugEvents: p.debugEvents,
	}, nil
}

// ParseString is a convenience wrapper for tests
func ParseString(input string, opts ...ParserOpt) (*layout.Layout, error) {
	tree, err := Parse([]byte(input), opts...)
	if err != nil {
		return nil, err
	}
	return tree.Layout, nil
}

// comment is a doc or attribute comment waiting to be attached. before is
// the index of the first significant token after it.
type comment struct {
	tok    lexer.Token
	before int
}

// split separates comment tokens from the significant token stream.
func split(all []lexer.Token) ([]lexer.Token, []comment) {
	tokens := make([]lexer.Token, 0, len(all))
	var comments []comment
	for _, tok := range all {
		if tok.Type == lexer.DOC_COMMENT || tok.Type == lexer.ATTR_COMMENT {
			comments = append(comments, comment{tok: tok, before: len(tokens)})
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, comments
}

// frame is one open container on the cursor stack.
type frame struct {
	c          layout.Container
	open       lexer.Token // the '[' that opened a list
	needSep    bool        // a list element was just completed
	afterComma bool
}

func (f *frame) list() (*layout.List, bool) {
	lst, ok := f.c.(*layout.List)
	return lst, ok
}

// parser is the internal parser state
type parser struct {
	tokens      []lexer.Token
	pos         int
	comments    []comment
	nextComment int
	src         string

	l      *layout.Layout
	frames []*frame
	last   layout.Item // most recently declared item, target of comments

	config      *ParserConfig
	debugEvents []DebugEvent
}

// recordDebugEvent records debug events when debug tracing is enabled
func (p *parser) recordDebugEvent(event, context string) {
	if p.config.debug == DebugOff || p.debugEvents == nil {
		return
	}

	p.debugEvents = append(p.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		TokenPos:  p.pos,
		Context:   context,
	})
}

// cur returns the current token. Reaching an ILLEGAL token is where a
// lexical error surfaces.
func (p *parser) cur() lexer.Token {
	tok := p.tokens[p.pos]
	if tok.Type == lexer.ILLEGAL {
		p.fail(derrors.New(derrors.Lexical, tok.Position, "%s", tok.Reason).WithToken(string(tok.Text)))
	}
	return tok
}

func (p *parser) advance() lexer.Token {
	tok := p.cur()
	if tok.Type != lexer.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(tt lexer.TokenType, what string) lexer.Token {
	tok := p.cur()
	if tok.Type != tt {
		p.unexpected(tok, what)
	}
	return p.advance()
}

func (p *parser) top() *frame {
	return p.frames[len(p.frames)-1]
}

func (p *parser) push(f *frame) {
	p.frames = append(p.frames, f)
	if p.config.debug >= DebugDetailed {
		p.recordDebugEvent("push", layout.Path(f.c))
	}
}

func (p *parser) pop() {
	p.frames = p.frames[:len(p.frames)-1]
	if p.config.debug >= DebugDetailed {
		p.recordDebugEvent("pop", layout.Path(p.top().c))
	}
}

// file parses the preamble and then dict, list and struct items until EOF.
func (p *parser) file() {
	p.preamble()
	for {
		p.flushComments()
		if p.cur().Type == lexer.EOF {
			break
		}
		p.step()
	}
	for i := len(p.frames) - 1; i >= 0; i-- {
		if _, ok := p.frames[i].list(); ok {
			p.unclosed(p.frames[i].open)
		}
	}
}

// preamble reads the optional default byte order and template parameters.
func (p *parser) preamble() {
	tok := p.cur()
	switch tok.Type {
	case lexer.LT, lexer.GT, lexer.PIPE:
		p.advance()
		order, _ := types.ParseByteOrder(tok.Text[0])
		p.l.Order = order
	}
	if p.cur().Type != lexer.LBRACE {
		return
	}

	open := p.advance()
	p.l.Template = true
	for {
		p.flushComments()
		tok := p.cur()
		switch tok.Type {
		case lexer.RBRACE:
			p.advance()
			return
		case lexer.EOF:
			p.unclosed(open)
		}
		name := p.name(tok, "a template parameter name")
		p.advance()
		p.expect(lexer.COLON, "':' after template parameter")
		ref := p.intPrimType()
		prm := layout.NewStreamParam(name, ref, layout.Placement{}, tok.Position)
		p.check(p.l.DeclareParam(p.l.Root, prm))
		p.l.TemplateParams = append(p.l.TemplateParams, prm)
		p.last = prm
	}
}

func (p *parser) step() {
	f := p.top()
	if _, ok := f.list(); ok {
		p.listStep(f)
		return
	}
	p.dictStep(f.c.(*layout.Dict))
}

// dictStep handles one statement while a dict is the current container.
func (p *parser) dictStep(d *layout.Dict) {
	tok := p.cur()
	switch tok.Type {
	case lexer.SLASH:
		p.advance()
		for {
			if top, ok := p.top().c.(*layout.Dict); ok && top.IsSubRoot() {
				break
			}
			p.pop()
		}
		return
	case lexer.DOTDOT:
		p.advance()
		if !d.IsSubRoot() {
			p.pop()
		}
		return
	case lexer.COMMA, lexer.RSQUARE:
		for i := len(p.frames) - 1; i >= 0; i-- {
			if _, ok := p.frames[i].list(); ok {
				p.frames = p.frames[:i+1]
				return
			}
		}
		p.structural(tok, "'%s' outside a list", tok.Display())
	}

	name := p.name(tok, "a name, '/' or '..'")
	p.advance()
	if p.config.debug > DebugOff {
		p.recordDebugEvent("dict_item", name)
	}

	next := p.cur()
	switch next.Type {
	case lexer.EQUALS:
		p.advance()
		data := p.dataItem(d, name, tok.Position)
		p.check(p.l.DeclareData(d, data))
		p.last = data
	case lexer.COLON:
		p.advance()
		prm := p.paramDecl(name, tok.Position)
		p.check(p.l.DeclareParam(d, prm))
		p.last = prm
	case lexer.SLASH:
		p.advance()
		sub, err := p.l.OpenDict(d, name, tok.Position)
		p.check(err)
		p.push(&frame{c: sub})
		p.last = sub
	case lexer.LSQUARE:
		lst, err := p.l.OpenList(d, name, tok.Position)
		p.check(err)
		p.advance()
		p.push(&frame{c: lst, open: next})
		p.last = lst
	case lexer.LBRACE:
		t, err := p.l.DeclareType(d, name, tok.Position)
		p.check(err)
		p.last = t
		p.structBody(t)
	case lexer.AT, lexer.PERCENT:
		it, _ := d.Lookup(name)
		lst, ok := it.(*layout.List)
		if !ok {
			p.structural(tok, "%q is not a list, only a list can be extended by placement", name)
		}
		for t := p.cur().Type; t == lexer.AT || t == lexer.PERCENT; t = p.cur().Type {
			at := p.cur()
			ext, err := p.l.ExtendList(lst, p.placement(), at.Position)
			p.check(err)
			p.last = ext
		}
	default:
		p.unexpected(next, fmt.Sprintf("'=', ':', '/', '[', '{' or a placement after %q", name))
	}
}

// listStep handles one element, separator or close while a list is current.
func (p *parser) listStep(f *frame) {
	lst, _ := f.list()
	tok := p.cur()
	if f.needSep {
		switch tok.Type {
		case lexer.COMMA:
			p.advance()
			f.needSep = false
			f.afterComma = true
		case lexer.RSQUARE:
			p.advance()
			p.pop()
		case lexer.EOF:
			p.unclosed(f.open)
		default:
			p.unexpected(tok, "',' or ']' after list item")
		}
		return
	}

	if p.config.debug > DebugOff {
		p.recordDebugEvent("list_item", layout.Path(lst))
	}
	switch tok.Type {
	case lexer.RSQUARE:
		if f.afterComma {
			p.structural(tok, "expected a list item after ','")
		}
		p.advance()
		p.pop()
		return
	case lexer.EOF:
		p.unclosed(f.open)
	case lexer.SLASH:
		p.advance()
		d := p.l.AppendDict(lst, tok.Position)
		p.last = d
		f.needSep, f.afterComma = true, false
		p.push(&frame{c: d})
	case lexer.LSQUARE:
		p.advance()
		sub := p.l.AppendList(lst, tok.Position)
		p.last = sub
		f.needSep, f.afterComma = true, false
		p.push(&frame{c: sub, open: tok})
	default:
		data := p.dataItem(lst, "", tok.Position)
		p.check(p.l.DeclareData(lst, data))
		p.last = data
		f.needSep, f.afterComma = true, false
	}
}

// structBody parses "{ [%n] member* }" into t. Struct bodies hold only data
// and parameter members; containers cannot be declared inside them.
func (p *parser) structBody(t *layout.Type) {
	open := p.advance()
	if p.cur().Type == lexer.PERCENT {
		pl := p.placement()
		t.Align, t.HasAlign = pl.Value, true
	}
	for {
		p.flushComments()
		tok := p.cur()
		switch tok.Type {
		case lexer.RBRACE:
			p.advance()
			return
		case lexer.EOF:
			p.unclosed(open)
		case lexer.EQUALS:
			p.advance()
			data := p.dataItem(t, "", tok.Position)
			p.check(p.l.DeclareData(t, data))
			p.last = data
			continue
		}

		name := p.name(tok, "a member name, '=' or '}'")
		p.advance()
		switch next := p.cur(); next.Type {
		case lexer.EQUALS:
			p.advance()
			data := p.dataItem(t, name, tok.Position)
			p.check(p.l.DeclareData(t, data))
			p.last = data
		case lexer.COLON:
			p.advance()
			prm := p.paramDecl(name, tok.Position)
			p.check(p.l.DeclareParam(t, prm))
			p.last = prm
		default:
			p.unexpected(next, fmt.Sprintf("'=' or ':' after member %q", name))
		}
	}
}

// dataItem parses "type [shape] [filter] [placement]".
func (p *parser) dataItem(owner layout.Item, name string, pos types.Position) *layout.Data {
	ref := p.typeRef(owner)
	var shape []layout.Dimension
	if p.cur().Type == lexer.LSQUARE {
		shape = p.shape()
	}
	data := layout.NewData(name, ref, shape, pos)
	if t := p.cur().Type; t == lexer.RARROW || t == lexer.LARROW {
		data.Filter = p.filter()
	}
	if t := p.cur().Type; t == lexer.AT || t == lexer.PERCENT {
		data.Place = p.placement()
	}
	return data
}

// typeRef parses a primitive, a type name or an inline struct body.
// Unprefixed primitive names are left for the resolver to bind.
func (p *parser) typeRef(owner layout.Item) layout.TypeRef {
	tok := p.cur()
	switch tok.Type {
	case lexer.PRIMTYPE:
		p.advance()
		prim, order, _ := types.ParsePrimType(string(tok.Text))
		ref := layout.TypeRef{Name: prim.Name, Order: order, Pos: tok.Position}
		if prefixed(tok) {
			ref.Prim = prim
		}
		return ref
	case lexer.NAME, lexer.QUOTED:
		p.advance()
		return layout.TypeRef{Name: string(tok.Text), Order: types.OrderIndeterminate, Pos: tok.Position}
	case lexer.LBRACE:
		t := p.l.InlineType(owner, tok.Position)
		p.last = t
		p.structBody(t)
		return layout.TypeRef{Named: t, Order: types.OrderIndeterminate, Pos: tok.Position}
	}
	p.unexpected(tok, "a datatype")
	return layout.TypeRef{}
}

// intPrimType parses the integer primitive of a stream-resident parameter.
func (p *parser) intPrimType() layout.TypeRef {
	tok := p.cur()
	if tok.Type != lexer.PRIMTYPE {
		p.unexpected(tok, "an integer type")
	}
	prim, order, _ := types.ParsePrimType(string(tok.Text))
	if !prim.IsInteger() {
		p.structural(tok, "parameter type must be an integer primitive, not %s", prim.Name)
	}
	p.advance()
	ref := layout.TypeRef{Name: prim.Name, Order: order, Pos: tok.Position}
	if prefixed(tok) {
		ref.Prim = prim
	}
	return ref
}

// paramDecl parses the right side of "name :".
func (p *parser) paramDecl(name string, pos types.Position) *layout.Param {
	tok := p.cur()
	switch tok.Type {
	case lexer.INTEGER:
		v := p.intValue(tok)
		p.advance()
		return layout.NewFixedParam(name, v, pos)
	case lexer.PRIMTYPE:
		ref := p.intPrimType()
		var place layout.Placement
		if t := p.cur().Type; t == lexer.AT || t == lexer.PERCENT {
			place = p.placement()
		}
		return layout.NewStreamParam(name, ref, place, pos)
	}
	p.unexpected(tok, "an integer value or integer type")
	return nil
}

// shape parses "[dim, dim, ...]".
func (p *parser) shape() []layout.Dimension {
	open := p.advance()
	var dims []layout.Dimension
	for {
		tok := p.cur()
		var dim layout.Dimension
		switch tok.Type {
		case lexer.INTEGER:
			v := p.intValue(tok)
			if v < 0 {
				p.fail(derrors.New(derrors.Shape, tok.Position, "dimension %d is negative", v).
					WithToken(tokenText(tok)))
			}
			p.advance()
			dim = layout.Dimension{Literal: v, Pos: tok.Position}
		case lexer.EOF:
			p.unclosed(open)
		default:
			name := p.name(tok, "a dimension")
			p.advance()
			dim = layout.Dimension{Name: name, Pos: tok.Position}
			if p.cur().Type == lexer.QUESTION {
				p.advance()
				dim.Optional = true
			}
			if run := p.cur(); run.Type == lexer.PLUSSES || run.Type == lexer.MINUSES {
				if len(run.Text) > maxAdjust {
					p.fail(derrors.New(derrors.Shape, run.Position,
						"suffix run of %d exceeds %d", len(run.Text), maxAdjust).WithToken(tokenText(run)))
				}
				dim.Adjust = len(run.Text)
				if run.Type == lexer.MINUSES {
					dim.Adjust = -dim.Adjust
				}
				p.advance()
			}
		}
		dims = append(dims, dim)

		switch next := p.cur(); next.Type {
		case lexer.COMMA:
			p.advance()
		case lexer.RSQUARE:
			p.advance()
			return dims
		case lexer.EOF:
			p.unclosed(open)
		default:
			p.unexpected(next, "',' or ']' in shape")
		}
	}
}

// maxAdjust is the longest +/- run a dimension may carry.
const maxAdjust = 31

// filter parses "-> name(args)" or "<- name(args)".
func (p *parser) filter() *layout.Filter {
	arrow := p.advance()
	f := &layout.Filter{Kind: layout.FilterCompress, Pos: arrow.Position}
	if arrow.Type == lexer.LARROW {
		f.Kind = layout.FilterReference
	}
	f.Name = p.name(p.cur(), "a filter name")
	p.advance()
	if p.cur().Type != lexer.LPAREN {
		return f
	}

	open := p.advance()
	for p.cur().Type != lexer.RPAREN {
		arg := p.cur()
		switch arg.Type {
		case lexer.INTEGER:
			f.Args = append(f.Args, p.intValue(arg))
		case lexer.FLOAT:
			v, err := lexer.FloatValue(arg)
			if err != nil {
				p.fail(derrors.Wrap(derrors.Lexical, arg.Position, err, "bad float").WithToken(tokenText(arg)))
			}
			f.Args = append(f.Args, v)
		case lexer.EOF:
			p.unclosed(open)
		default:
			p.unexpected(arg, "a number in filter arguments")
		}
		p.advance()
		switch next := p.cur(); next.Type {
		case lexer.COMMA:
			p.advance()
			if p.cur().Type == lexer.RPAREN {
				p.unexpected(p.cur(), "a number after ','")
			}
		case lexer.RPAREN:
		case lexer.EOF:
			p.unclosed(open)
		default:
			p.unexpected(next, "',' or ')' in filter arguments")
		}
	}
	p.advance()
	return f
}

// placement parses "@n" or "%n".
func (p *parser) placement() layout.Placement {
	mark := p.advance()
	tok := p.cur()
	if tok.Type != lexer.INTEGER {
		p.unexpected(tok, fmt.Sprintf("an integer after '%s'", mark.Display()))
	}
	v := p.intValue(tok)
	p.advance()
	if v < 0 {
		p.fail(derrors.New(derrors.Address, tok.Position, "'%s' value %d is negative", mark.Display(), v).
			WithToken(tokenText(tok)))
	}
	if mark.Type == lexer.AT {
		return layout.Placement{Kind: layout.PlaceAddress, Value: v}
	}
	return layout.Placement{Kind: layout.PlaceAlign, Value: v}
}

// name returns the name carried by tok, aborting when tok is not a name.
// Unprefixed primitive names are valid names in name position.
func (p *parser) name(tok lexer.Token, expected string) string {
	switch tok.Type {
	case lexer.NAME:
		return string(tok.Text)
	case lexer.QUOTED:
		if len(tok.Text) == 0 {
			p.structural(tok, "empty quoted name")
		}
		return string(tok.Text)
	case lexer.PRIMTYPE:
		if !prefixed(tok) {
			return string(tok.Text)
		}
	}
	p.unexpected(tok, expected)
	return ""
}

func (p *parser) intValue(tok lexer.Token) int64 {
	v, err := lexer.IntValue(tok)
	if err != nil {
		p.fail(derrors.Wrap(derrors.Lexical, tok.Position, err, "bad integer").WithToken(tokenText(tok)))
	}
	return v
}

// prefixed reports whether a PRIMTYPE token carries a byte order mark.
func prefixed(tok lexer.Token) bool {
	return len(tok.Text) > 0 && strings.IndexByte("<>|", tok.Text[0]) >= 0
}

// flushComments attaches every comment ahead of the current token to the
// most recently declared item.
func (p *parser) flushComments() {
	for p.nextComment < len(p.comments) && p.comments[p.nextComment].before <= p.pos {
		c := p.comments[p.nextComment]
		p.nextComment++
		target := p.last.ID()

		if c.tok.Type == lexer.DOC_COMMENT {
			if p.config.sink != nil {
				line := strings.TrimPrefix(string(c.tok.Text), " ")
				p.check(p.config.sink.AddDoc(target, []string{line}))
			}
			continue
		}
		attrs, err := parseAttributes(c.tok.Text, c.tok.Position)
		p.check(err)
		if p.config.sink != nil && len(attrs) > 0 {
			p.check(p.config.sink.AddAttrs(target, attrs))
		}
	}
}
