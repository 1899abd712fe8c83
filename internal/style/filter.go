package style

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type CompareOp string

const (
	OpEqual        CompareOp = "="
	OpNotEqual     CompareOp = "<>"
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	// pattern uses % for any run, _ for one character and \ as escape
	OpLike    CompareOp = "LIKE"
	OpBetween CompareOp = "BETWEEN"
	OpIsNull  CompareOp = "IS NULL"
)

type LogicOp string

const (
	LogicAnd LogicOp = "AND"
	LogicOr  LogicOp = "OR"
	LogicNot LogicOp = "NOT"
)

// Operand is a property reference when Property is set, a literal otherwise.
type Operand struct {
	Property string
	Literal  string
}

func Prop(name string) Operand { return Operand{Property: name} }
func Lit(v string) Operand     { return Operand{Literal: v} }

func (o Operand) IsProperty() bool { return o.Property != "" }

// Filter is a predicate tree. Logical nodes set Logic and Children;
// comparison leaves set Op and their operands. BETWEEN reads Right as the
// lower and Upper as the upper bound, IS NULL only reads Left.
type Filter struct {
	Logic    LogicOp
	Children []*Filter

	Op    CompareOp
	Left  Operand
	Right Operand
	Upper Operand
}

// Compare builds the common "property op literal" leaf.
func Compare(property string, op CompareOp, literal string) *Filter {
	return &Filter{Op: op, Left: Prop(property), Right: Lit(literal)}
}

func Between(property, lower, upper string) *Filter {
	return &Filter{Op: OpBetween, Left: Prop(property), Right: Lit(lower), Upper: Lit(upper)}
}

func IsNull(property string) *Filter {
	return &Filter{Op: OpIsNull, Left: Prop(property)}
}

func And(children ...*Filter) *Filter { return &Filter{Logic: LogicAnd, Children: children} }
func Or(children ...*Filter) *Filter  { return &Filter{Logic: LogicOr, Children: children} }
func Not(child *Filter) *Filter       { return &Filter{Logic: LogicNot, Children: []*Filter{child}} }

var ErrBadFilter = errors.New("invalid filter expression")

func (f *Filter) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: empty node", ErrBadFilter)
	}
	switch f.Logic {
	case LogicAnd, LogicOr:
		if len(f.Children) < 2 {
			return fmt.Errorf("%w: %s needs two or more operands", ErrBadFilter, f.Logic)
		}
	case LogicNot:
		if len(f.Children) != 1 {
			return fmt.Errorf("%w: NOT takes one operand", ErrBadFilter)
		}
	case "":
		return f.validateLeaf()
	default:
		return fmt.Errorf("%w: unknown logical operator %q", ErrBadFilter, f.Logic)
	}
	if f.Op != "" {
		return fmt.Errorf("%w: %s node carries operator %s", ErrBadFilter, f.Logic, f.Op)
	}
	for _, c := range f.Children {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filter) validateLeaf() error {
	if len(f.Children) > 0 {
		return fmt.Errorf("%w: comparison with children", ErrBadFilter)
	}
	switch f.Op {
	case OpIsNull:
		if !f.Left.IsProperty() {
			return fmt.Errorf("%w: IS NULL needs a property", ErrBadFilter)
		}
		return nil
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpLike, OpBetween:
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrBadFilter, f.Op)
	}
	if !f.Left.IsProperty() && !f.Right.IsProperty() && !f.Upper.IsProperty() {
		return fmt.Errorf("%w: missing property", ErrBadFilter)
	}
	return nil
}

// ParseExpression reads a CQL-style predicate, optionally wrapped in
// "${...}". Bare words are properties, numbers and single-quoted strings
// are literals. "!=" is accepted as a synonym of "<>". NOT binds tighter
// than AND, which binds tighter than OR.
func ParseExpression(src string) (*Filter, error) {
	s := strings.TrimSpace(src)
	if strings.HasPrefix(s, "${") {
		if !strings.HasSuffix(s, "}") {
			return nil, fmt.Errorf("%w: unterminated %q", ErrBadFilter, src)
		}
		s = s[2 : len(s)-1]
	}
	toks, err := lex(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrBadFilter, err, src)
	}
	p := &parser{toks: toks}
	f, err := p.or()
	if err == nil && !p.done() {
		err = fmt.Errorf("unexpected %q", p.peek().text)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v in %q", ErrBadFilter, err, src)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

type tokKind int

const (
	tokWord tokKind = iota
	tokNumber
	tokString
	tokOp
	tokOpen
	tokClose
)

type token struct {
	kind tokKind
	text string
}

func lex(s string) ([]token, error) {
	var out []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			out = append(out, token{tokOpen, "("})
			i++
		case c == ')':
			out = append(out, token{tokClose, ")"})
			i++
		case c == '\'':
			var b strings.Builder
			j := i + 1
			for {
				if j >= len(s) {
					return nil, errors.New("unterminated string")
				}
				if s[j] == '\'' {
					if j+1 < len(s) && s[j+1] == '\'' {
						b.WriteByte('\'')
						j += 2
						continue
					}
					break
				}
				b.WriteByte(s[j])
				j++
			}
			out = append(out, token{tokString, b.String()})
			i = j + 1
		case c == '"':
			j := strings.IndexByte(s[i+1:], '"')
			if j < 0 {
				return nil, errors.New("unterminated quoted name")
			}
			out = append(out, token{tokWord, s[i+1 : i+1+j]})
			i += j + 2
		case strings.IndexByte("<>=!", c) >= 0:
			op := s[i : i+1]
			if i+1 < len(s) {
				switch two := s[i : i+2]; two {
				case "<=", ">=", "<>", "!=":
					op = two
				}
			}
			i += len(op)
			switch op {
			case "!":
				return nil, errors.New("stray '!'")
			case "!=":
				op = string(OpNotEqual)
			}
			out = append(out, token{tokOp, op})
		case c == '-' || c == '.' || (c >= '0' && c <= '9'):
			j := i + 1
			for j < len(s) && (s[j] == '.' || s[j] == 'e' || s[j] == 'E' || (s[j] >= '0' && s[j] <= '9') ||
				((s[j] == '-' || s[j] == '+') && (s[j-1] == 'e' || s[j-1] == 'E'))) {
				j++
			}
			if !isNumber(s[i:j]) {
				return nil, fmt.Errorf("bad number %q", s[i:j])
			}
			out = append(out, token{tokNumber, s[i:j]})
			i = j
		case isWordByte(c):
			j := i
			for j < len(s) && isWordByte(s[j]) {
				j++
			}
			out = append(out, token{tokWord, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q", c)
		}
	}
	return out, nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == ':' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: -1}
	}
	return p.toks[p.pos]
}

// keyword consumes the next token when it is the word kw, in any case.
func (p *parser) keyword(kw string) bool {
	t := p.peek()
	if t.kind == tokWord && strings.EqualFold(t.text, kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) or() (*Filter, error) {
	f, err := p.and()
	if err != nil {
		return nil, err
	}
	children := []*Filter{f}
	for p.keyword("OR") {
		g, err := p.and()
		if err != nil {
			return nil, err
		}
		children = append(children, g)
	}
	if len(children) == 1 {
		return f, nil
	}
	return Or(children...), nil
}

func (p *parser) and() (*Filter, error) {
	f, err := p.not()
	if err != nil {
		return nil, err
	}
	children := []*Filter{f}
	for p.keyword("AND") {
		g, err := p.not()
		if err != nil {
			return nil, err
		}
		children = append(children, g)
	}
	if len(children) == 1 {
		return f, nil
	}
	return And(children...), nil
}

func (p *parser) not() (*Filter, error) {
	if p.keyword("NOT") {
		f, err := p.not()
		if err != nil {
			return nil, err
		}
		return Not(f), nil
	}
	if p.peek().kind == tokOpen {
		p.pos++
		f, err := p.or()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokClose {
			return nil, errors.New("missing ')'")
		}
		p.pos++
		return f, nil
	}
	return p.predicate()
}

func (p *parser) predicate() (*Filter, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	negate := false
	if p.keyword("NOT") {
		negate = true
	}
	var f *Filter
	switch {
	case p.keyword("LIKE"):
		t := p.peek()
		if t.kind != tokString {
			return nil, errors.New("LIKE needs a quoted pattern")
		}
		p.pos++
		f = &Filter{Op: OpLike, Left: left, Right: Lit(t.text)}
	case p.keyword("BETWEEN"):
		lo, err := p.operand()
		if err != nil {
			return nil, err
		}
		if !p.keyword("AND") {
			return nil, errors.New("BETWEEN needs AND")
		}
		hi, err := p.operand()
		if err != nil {
			return nil, err
		}
		f = &Filter{Op: OpBetween, Left: left, Right: lo, Upper: hi}
	case !negate && p.keyword("IS"):
		if p.keyword("NOT") {
			negate = true
		}
		if !p.keyword("NULL") {
			return nil, errors.New("IS needs NULL")
		}
		f = &Filter{Op: OpIsNull, Left: left}
	case !negate && p.peek().kind == tokOp:
		op := CompareOp(p.peek().text)
		p.pos++
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		f = &Filter{Op: op, Left: left, Right: right}
	default:
		return nil, errors.New("no operator")
	}
	if negate {
		return Not(f), nil
	}
	return f, nil
}

var reserved = map[string]bool{"AND": true, "OR": true, "NOT": true, "LIKE": true, "BETWEEN": true, "IS": true, "NULL": true}

func (p *parser) operand() (Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokString, tokNumber:
		p.pos++
		return Lit(t.text), nil
	case tokWord:
		if reserved[strings.ToUpper(t.text)] {
			return Operand{}, fmt.Errorf("unexpected %s", t.text)
		}
		p.pos++
		return Prop(t.text), nil
	}
	if p.done() {
		return Operand{}, errors.New("missing operand")
	}
	return Operand{}, fmt.Errorf("unexpected %q", t.text)
}

// Expression renders the filter as "${...}" in the syntax ParseExpression
// reads.
func (f *Filter) Expression() string {
	return "${" + f.render() + "}"
}

func (f *Filter) render() string {
	switch f.Logic {
	case LogicNot:
		return "NOT (" + f.Children[0].render() + ")"
	case LogicAnd, LogicOr:
		parts := make([]string, len(f.Children))
		for i, c := range f.Children {
			parts[i] = c.render()
			if c.Logic == LogicAnd || c.Logic == LogicOr {
				parts[i] = "(" + parts[i] + ")"
			}
		}
		return strings.Join(parts, " "+string(f.Logic)+" ")
	}
	switch f.Op {
	case OpIsNull:
		return f.Left.render() + " IS NULL"
	case OpBetween:
		return f.Left.render() + " BETWEEN " + f.Right.render() + " AND " + f.Upper.render()
	case OpLike:
		return f.Left.render() + " LIKE " + quote(f.Right.valueText())
	}
	return f.Left.render() + " " + string(f.Op) + " " + f.Right.render()
}

func (o Operand) valueText() string {
	if o.IsProperty() {
		return o.Property
	}
	return o.Literal
}

// render quotes non-numeric literals and property names that are not
// plain words.
func (o Operand) render() string {
	if o.IsProperty() {
		if plainWord(o.Property) {
			return o.Property
		}
		return `"` + o.Property + `"`
	}
	if isNumber(o.Literal) {
		return o.Literal
	}
	return quote(o.Literal)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func plainWord(s string) bool {
	if reserved[strings.ToUpper(s)] {
		return false
	}
	c := s[0]
	if c == '-' || c == '.' || (c >= '0' && c <= '9') {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return true
}

// isNumber accepts decimal numbers in the form the lexer reads back.
func isNumber(s string) bool {
	if s == "" || strings.Trim(s, "0123456789.eE+-") != "" {
		return false
	}
	if c := s[0]; c != '-' && c != '.' && (c < '0' || c > '9') {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
