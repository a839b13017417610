package calc

import "fmt"

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// tokenize splits a formula into tokens. Anything outside digits, identifiers,
// arithmetic/comparison/logical operators, parentheses and commas is rejected.
func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		if len(tokens) > maxTokens {
			return nil, fmt.Errorf("more than %d tokens", maxTokens)
		}
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: i})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '<' || c == '>' || c == '=' || c == '!':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{kind: tokOp, text: expr[i : i+2], pos: i})
				i += 2
				continue
			}
			if c == '=' {
				return nil, fmt.Errorf("unexpected '=' at %d (use '==')", i)
			}
			tokens = append(tokens, token{kind: tokOp, text: string(c), pos: i})
			i++
		case c == '&' || c == '|':
			if i+1 >= len(expr) || expr[i+1] != c {
				return nil, fmt.Errorf("unexpected %q at %d", c, i)
			}
			tokens = append(tokens, token{kind: tokOp, text: expr[i : i+2], pos: i})
			i += 2
		case isDigit(c) || c == '.':
			start := i
			dots := 0
			for i < len(expr) && (isDigit(expr[i]) || expr[i] == '.') {
				if expr[i] == '.' {
					dots++
				}
				i++
			}
			if dots > 1 || expr[start:i] == "." {
				return nil, fmt.Errorf("malformed number %q at %d", expr[start:i], start)
			}
			if i < len(expr) && isIdentStart(expr[i]) {
				return nil, fmt.Errorf("malformed number %q at %d", expr[start:i+1], start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: expr[start:i], pos: start})
		case isIdentStart(c):
			start := i
			for i < len(expr) && (isIdentStart(expr[i]) || isDigit(expr[i])) {
				i++
			}
			word := expr[start:i]
			switch word {
			case "and":
				tokens = append(tokens, token{kind: tokOp, text: "&&", pos: start})
			case "or":
				tokens = append(tokens, token{kind: tokOp, text: "||", pos: start})
			case "not":
				tokens = append(tokens, token{kind: tokOp, text: "!", pos: start})
			default:
				tokens = append(tokens, token{kind: tokIdent, text: word, pos: start})
			}
		default:
			return nil, fmt.Errorf("invalid character %q at %d", c, i)
		}
	}
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
