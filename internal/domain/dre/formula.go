package dre

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrDivisionByZero is returned by Formula.Evaluate together with a zero value.
// The generator recovers it into a warning on the affected item.
var ErrDivisionByZero = errors.New("division by zero")

// FormulaSyntaxError reports where a formula failed to lex or parse
type FormulaSyntaxError struct {
	Formula string
	Pos     int
	Msg     string
}

// Error implements the error interface
func (e *FormulaSyntaxError) Error() string {
	return fmt.Sprintf("formula %q: %s at position %d", e.Formula, e.Msg, e.Pos)
}

// =============================================================================
// Lexer
// =============================================================================

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokRef
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of formula"
	case tokNumber:
		return "number"
	case tokRef:
		return "reference"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	}
	return "unknown token"
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

type lexer struct {
	src string
	pos int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return &FormulaSyntaxError{Formula: l.src, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) tokens() ([]token, error) {
	var out []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	switch c {
	case '+':
		l.pos++
		return token{kind: tokPlus, text: "+", pos: start}, nil
	case '-':
		l.pos++
		return token{kind: tokMinus, text: "-", pos: start}, nil
	case '*':
		l.pos++
		return token{kind: tokStar, text: "*", pos: start}, nil
	case '/':
		l.pos++
		return token{kind: tokSlash, text: "/", pos: start}, nil
	case '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start}, nil
	case ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start}, nil
	case '[':
		return l.reference()
	case ']':
		return token{}, l.errorf(start, "unexpected ']'")
	}
	if isDigit(c) {
		return l.number()
	}
	return token{}, l.errorf(start, "unexpected character %q", c)
}

func (l *lexer) reference() (token, error) {
	start := l.pos
	l.pos++ // '['
	for l.pos < len(l.src) && l.src[l.pos] != ']' {
		c := l.src[l.pos]
		if c == '[' {
			return token{}, l.errorf(l.pos, "nested '[' in reference")
		}
		if isSpace(c) {
			return token{}, l.errorf(l.pos, "whitespace in reference")
		}
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{}, l.errorf(start, "unterminated reference")
	}
	code := l.src[start+1 : l.pos]
	l.pos++ // ']'
	if code == "" {
		return token{}, l.errorf(start, "empty reference")
	}
	return token{kind: tokRef, text: code, pos: start}, nil
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		fracStart := l.pos
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		if l.pos == fracStart {
			return token{}, l.errorf(start, "number has no digits after '.'")
		}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}, nil
}

// =============================================================================
// AST
// =============================================================================

type node interface {
	eval(values map[string]decimal.Decimal) (decimal.Decimal, error)
	refs(acc []string) []string
}

type numberNode struct {
	value decimal.Decimal
}

func (n numberNode) eval(map[string]decimal.Decimal) (decimal.Decimal, error) {
	return n.value, nil
}

func (n numberNode) refs(acc []string) []string { return acc }

type refNode struct {
	code string
}

func (n refNode) eval(values map[string]decimal.Decimal) (decimal.Decimal, error) {
	v, ok := values[n.code]
	if !ok {
		return decimal.Zero, &EvalError{Kind: EvalErrUnresolvedReference, Code: n.code}
	}
	return v, nil
}

func (n refNode) refs(acc []string) []string { return append(acc, n.code) }

type negNode struct {
	operand node
}

func (n negNode) eval(values map[string]decimal.Decimal) (decimal.Decimal, error) {
	v, err := n.operand.eval(values)
	if err != nil {
		return decimal.Zero, err
	}
	return v.Neg(), nil
}

func (n negNode) refs(acc []string) []string { return n.operand.refs(acc) }

type binaryNode struct {
	op          tokenKind
	left, right node
}

func (n binaryNode) eval(values map[string]decimal.Decimal) (decimal.Decimal, error) {
	l, err := n.left.eval(values)
	if err != nil {
		return decimal.Zero, err
	}
	r, err := n.right.eval(values)
	if err != nil {
		return decimal.Zero, err
	}
	switch n.op {
	case tokPlus:
		return l.Add(r), nil
	case tokMinus:
		return l.Sub(r), nil
	case tokStar:
		return l.Mul(r), nil
	case tokSlash:
		if r.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return l.Div(r), nil
	}
	return decimal.Zero, fmt.Errorf("unknown operator %s", n.op)
}

func (n binaryNode) refs(acc []string) []string {
	return n.right.refs(n.left.refs(acc))
}

// =============================================================================
// Parser
// =============================================================================

type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &FormulaSyntaxError{Formula: p.src, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

// expr := term (('+' | '-') term)*
func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for k := p.peek().kind; k == tokPlus || k == tokMinus; k = p.peek().kind {
		p.advance()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: k, left: left, right: right}
	}
	return left, nil
}

// term := factor (('*' | '/') factor)*
func (p *parser) term() (node, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for k := p.peek().kind; k == tokStar || k == tokSlash; k = p.peek().kind {
		p.advance()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: k, left: left, right: right}
	}
	return left, nil
}

// factor := number | '[' code ']' | '(' expr ')' | '-' factor
func (p *parser) factor() (node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNumber:
		v, err := decimal.NewFromString(tok.text)
		if err != nil {
			return nil, p.errorf(tok, "invalid number %q", tok.text)
		}
		return numberNode{value: v}, nil
	case tokRef:
		return refNode{code: tok.text}, nil
	case tokLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "expected ')' but found %s", closing.kind)
		}
		return inner, nil
	case tokMinus:
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}
	return nil, p.errorf(tok, "unexpected %s", tok.kind)
}

// =============================================================================
// Formula
// =============================================================================

// Formula is a parsed arithmetic expression over line item codes
type Formula struct {
	source string
	root   node
	refs   []string
}

// ParseFormula lexes and parses a formula. Errors are *FormulaSyntaxError.
func ParseFormula(src string) (*Formula, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &FormulaSyntaxError{Formula: src, Pos: 0, Msg: "empty formula"}
	}
	lx := &lexer{src: src}
	toks, err := lx.tokens()
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, tokens: toks}
	root, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s after expression", tok.kind)
	}

	var refs []string
	seen := make(map[string]bool)
	for _, code := range root.refs(nil) {
		if !seen[code] {
			seen[code] = true
			refs = append(refs, code)
		}
	}
	return &Formula{source: src, root: root, refs: refs}, nil
}

// MustParseFormula is like ParseFormula but panics on error. Intended for tests and fixtures.
func MustParseFormula(src string) *Formula {
	f, err := ParseFormula(src)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the formula source
func (f *Formula) String() string {
	return f.source
}

// References returns the distinct codes referenced, in order of first appearance
func (f *Formula) References() []string {
	out := make([]string, len(f.refs))
	copy(out, f.refs)
	return out
}

// Evaluate computes the formula against already computed values.
// A zero divisor yields (0, ErrDivisionByZero); a missing code yields *EvalError.
func (f *Formula) Evaluate(values map[string]decimal.Decimal) (decimal.Decimal, error) {
	return f.root.eval(values)
}
