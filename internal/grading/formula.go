package grading

import (
	"fmt"
	"strconv"
)

// Evaluate parses and evaluates a minimal arithmetic expression: decimal
// numbers, the four basic operators, unary sign and parentheses. Whitespace
// between tokens is ignored. There are no variables, functions or
// exponentiation.
//
// Division by zero is not guarded: it propagates as Inf or NaN, which the
// caller must reject before using the value. Every other malformed input
// (empty string, illegal character, unbalanced parentheses, trailing
// garbage) returns an error.
func Evaluate(expr string) (float64, error) {
	p := &exprParser{input: expr}
	p.skipSpace()
	if p.done() {
		return 0, fmt.Errorf("empty expression")
	}
	v, err := p.parseExpression()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if !p.done() {
		return 0, fmt.Errorf("unexpected %q at position %d", p.peek(), p.pos)
	}
	return v, nil
}

// exprParser is a single-pass recursive-descent parser over the grammar
//
//	expression := term (('+'|'-') term)*
//	term       := factor (('*'|'/') factor)*
//	factor     := ('+'|'-') factor | '(' expression ')' | number
//	number     := digits ('.' digits)?
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) done() bool {
	return p.pos >= len(p.input)
}

func (p *exprParser) peek() byte {
	return p.input[p.pos]
}

func (p *exprParser) skipSpace() {
	for !p.done() {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *exprParser) parseExpression() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.done() {
			return v, nil
		}
		switch p.peek() {
		case '+':
			p.pos++
			t, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v += t
		case '-':
			p.pos++
			t, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			v -= t
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.done() {
			return v, nil
		}
		switch p.peek() {
		case '*':
			p.pos++
			f, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			v *= f
		case '/':
			p.pos++
			f, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			// division by zero propagates as Inf/NaN
			v /= f
		default:
			return v, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.done() {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch c := p.peek(); {
	case c == '+':
		p.pos++
		return p.parseFactor()
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case c == '(':
		p.pos++
		v, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.done() || p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9':
		return p.parseNumber()
	default:
		return 0, fmt.Errorf("unexpected %q at position %d", c, p.pos)
	}
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
		p.pos++
	}
	if !p.done() && p.peek() == '.' {
		p.pos++
		fractionDigits := 0
		for !p.done() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
			fractionDigits++
		}
		if fractionDigits == 0 {
			return 0, fmt.Errorf("malformed number at position %d", start)
		}
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q", p.input[start:p.pos])
	}
	return v, nil
}
