package calc

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidFormula wraps every tokenizer and parser failure.
var ErrInvalidFormula = errors.New("invalid formula")

// Limits keep parsing and evaluation of hostile input off the stack limit.
const (
	maxDepth  = 256
	maxTokens = 4096
)

type parser struct {
	tokens []token
	pos    int
	cond   bool
	depth  int
}

// ParseFormula parses an arithmetic formula such as
// "(field_wet_density / (1 + field_moisture/100))".
func ParseFormula(formula string) (*Node, error) {
	return parse(formula, false)
}

// ParseCondition parses a boolean pass condition such as
// "degree_compaction >= min_compaction && field_moisture <= 15".
func ParseCondition(condition string) (*Node, error) {
	node, err := parse(condition, true)
	if err != nil {
		return nil, err
	}
	if !node.IsBool() {
		return nil, fmt.Errorf("%w: condition %q is not a comparison", ErrInvalidFormula, condition)
	}
	return node, nil
}

func parse(expr string, cond bool) (*Node, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormula, err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidFormula)
	}
	if len(tokens) > maxTokens {
		return nil, fmt.Errorf("%w: more than %d tokens", ErrInvalidFormula, maxTokens)
	}
	p := &parser{tokens: tokens, cond: cond}
	var node *Node
	if cond {
		node, err = p.parseOr()
	} else {
		node, err = p.parseAdditive()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormula, err)
	}
	if p.pos < len(p.tokens) {
		t := p.tokens[p.pos]
		return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidFormula, t.text, t.pos)
	}
	return node, nil
}

// enter counts one nesting level (parenthesis, call or unary operator); every
// call must be paired with leave.
func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return fmt.Errorf("nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) peekOp(ops ...string) (string, bool) {
	t, ok := p.peek()
	if !ok || t.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if t.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.peekOp(OpOr); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		if !left.IsBool() || !right.IsBool() {
			return nil, errors.New("'||' needs boolean operands")
		}
		left = &Node{Op: OpOr, Left: left, Right: right}
	}
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.peekOp(OpAnd); !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if !left.IsBool() || !right.IsBool() {
			return nil, errors.New("'&&' needs boolean operands")
		}
		left = &Node{Op: OpAnd, Left: left, Right: right}
	}
}

func (p *parser) parseNot() (*Node, error) {
	if _, ok := p.peekOp(OpNot); ok {
		p.pos++
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		if !operand.IsBool() {
			return nil, errors.New("'!' needs a boolean operand")
		}
		return &Node{Op: OpNot, Left: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (*Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := p.peekOp("<", "<=", ">", ">=", "==", "!=")
	if !ok {
		return left, nil
	}
	p.pos++
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if left.IsBool() || right.IsBool() {
		return nil, fmt.Errorf("'%s' needs numeric operands", op)
	}
	return &Node{Op: op, Left: left, Right: right}, nil
}

func (p *parser) parseAdditive() (*Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("+", "-")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if left.IsBool() || right.IsBool() {
			return nil, fmt.Errorf("'%s' needs numeric operands", op)
		}
		left = &Node{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseTerm() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp("*", "/")
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if left.IsBool() || right.IsBool() {
			return nil, fmt.Errorf("'%s' needs numeric operands", op)
		}
		left = &Node{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (*Node, error) {
	if op, ok := p.peekOp("-", "+"); ok {
		p.pos++
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if operand.IsBool() {
			return nil, fmt.Errorf("unary '%s' needs a numeric operand", op)
		}
		if op == "+" {
			return operand, nil
		}
		return &Node{Op: OpNeg, Left: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, errors.New("unexpected end of formula")
	}
	switch t.kind {
	case tokNumber:
		p.pos++
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return &Node{Op: OpNumber, Value: v}, nil
	case tokIdent:
		p.pos++
		if next, ok := p.peek(); ok && next.kind == tokLParen {
			if err := p.enter(); err != nil {
				return nil, err
			}
			defer p.leave()
			return p.parseCall(t)
		}
		return &Node{Op: OpVar, Name: t.text}, nil
	case tokLParen:
		p.pos++
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		var inner *Node
		var err error
		if p.cond {
			inner, err = p.parseOr()
		} else {
			inner, err = p.parseAdditive()
		}
		if err != nil {
			return nil, err
		}
		if closing, ok := p.peek(); !ok || closing.kind != tokRParen {
			return nil, errors.New("missing )")
		}
		p.pos++
		return inner, nil
	}
	return nil, fmt.Errorf("unexpected %q at %d", t.text, t.pos)
}

func (p *parser) parseCall(name token) (*Node, error) {
	fn, ok := functions[name.text]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name.text)
	}
	p.pos++ // (
	node := &Node{Op: OpCall, Name: name.text}
	if t, ok := p.peek(); ok && t.kind == tokRParen {
		p.pos++
	} else {
		for {
			arg, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			node.Args = append(node.Args, arg)
			t, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("missing ) after %s arguments", name.text)
			}
			if t.kind == tokComma {
				p.pos++
				continue
			}
			if t.kind == tokRParen {
				p.pos++
				break
			}
			return nil, fmt.Errorf("unexpected %q in %s arguments", t.text, name.text)
		}
	}
	if len(node.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(node.Args) > fn.maxArgs) {
		return nil, fmt.Errorf("%s: wrong number of arguments (%d)", name.text, len(node.Args))
	}
	return node, nil
}
