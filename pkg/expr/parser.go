package expr

import (
	"errors"
	"fmt"
	"strconv"
)

// Grammar, loosest binding first:
//
//	expr       := or
//	or         := and ("||" and)*
//	and        := unary ("&&" unary)*
//	unary      := "!" unary | comparison
//	comparison := term (("==" | "!=" | "<" | "<=" | ">" | ">=") term)?
//	term       := literal | call | path | "(" expr ")"
//	call       := identifier "(" (expr ("," expr)*)? ")"
//
// Comparisons do not chain; paths are dotted identifiers with optional
// numeric sequence indices.
func parseExpression(tokens []token) (node, error) {
	stream := &tokenStream{tokens: tokens}
	root, err := parseOr(stream)
	if err != nil {
		return nil, err
	}
	if stream.pos < len(stream.tokens) {
		return nil, fmt.Errorf("formengine/expr: unexpected token %q", stream.tokens[stream.pos].raw)
	}
	return root, nil
}

func parseOr(stream *tokenStream) (node, error) {
	left, err := parseAnd(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenOr) {
		right, err := parseAnd(stream)
		if err != nil {
			return nil, err
		}
		left = orNode{left: left, right: right}
	}
	return left, nil
}

func parseAnd(stream *tokenStream) (node, error) {
	left, err := parseUnary(stream)
	if err != nil {
		return nil, err
	}
	for stream.match(tokenAnd) {
		right, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		left = andNode{left: left, right: right}
	}
	return left, nil
}

func parseUnary(stream *tokenStream) (node, error) {
	if stream.match(tokenNot) {
		inner, err := parseUnary(stream)
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	}
	return parseComparison(stream)
}

func parseComparison(stream *tokenStream) (node, error) {
	left, err := parseTerm(stream)
	if err != nil {
		return nil, err
	}
	op, ok := stream.matchAny(tokenEq, tokenNeq, tokenLT, tokenLTE, tokenGT, tokenGTE)
	if !ok {
		return left, nil
	}
	right, err := parseTerm(stream)
	if err != nil {
		return nil, err
	}
	return cmpNode{op: op.kind, left: left, right: right}, nil
}

func parseTerm(stream *tokenStream) (node, error) {
	if stream.match(tokenLParen) {
		inner, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		if !stream.match(tokenRParen) {
			return nil, errors.New("formengine/expr: missing closing ')'")
		}
		return inner, nil
	}

	if stream.pos >= len(stream.tokens) {
		return nil, errors.New("formengine/expr: unexpected end of expression")
	}

	tok := stream.tokens[stream.pos]
	switch tok.kind {
	case tokenString:
		stream.pos++
		return litNode{value: tok.raw}, nil
	case tokenNumber:
		stream.pos++
		value, err := strconv.ParseFloat(tok.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("formengine/expr: invalid number literal %q", tok.raw)
		}
		return litNode{value: value}, nil
	case tokenBool:
		stream.pos++
		return litNode{value: tok.raw == "true"}, nil
	case tokenNull:
		stream.pos++
		return litNode{value: nil}, nil
	case tokenIdentifier:
		stream.pos++
		if stream.match(tokenLParen) {
			return parseCallArgs(stream, tok.raw)
		}
		return pathNode{path: tok.raw}, nil
	default:
		return nil, fmt.Errorf("formengine/expr: unexpected token %q", tok.raw)
	}
}

func parseCallArgs(stream *tokenStream, name string) (node, error) {
	call := callNode{name: name}
	if stream.match(tokenRParen) {
		return call, nil
	}
	for {
		arg, err := parseOr(stream)
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		if stream.match(tokenComma) {
			continue
		}
		if stream.match(tokenRParen) {
			return call, nil
		}
		return nil, fmt.Errorf("formengine/expr: expected ',' or ')' in call to %q", name)
	}
}

type tokenStream struct {
	tokens []token
	pos    int
}

func (s *tokenStream) match(kind tokenKind) bool {
	if s.pos >= len(s.tokens) {
		return false
	}
	if s.tokens[s.pos].kind != kind {
		return false
	}
	s.pos++
	return true
}

func (s *tokenStream) matchAny(kinds ...tokenKind) (token, bool) {
	if s.pos >= len(s.tokens) {
		return token{}, false
	}
	for _, kind := range kinds {
		if s.tokens[s.pos].kind == kind {
			out := s.tokens[s.pos]
			s.pos++
			return out, true
		}
	}
	return token{}, false
}
