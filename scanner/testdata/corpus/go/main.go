// Package main is a call-graph corpus: a small evaluator with one
// recursive pair and one orphaned function.
package main

import (
	"fmt"
	"strings"
)

func main() {
	tokens := tokenize("1 2 + 3 *")
	fmt.Println(evaluate(tokens, newStack()))
}

func tokenize(src string) []string {
	return strings.Fields(src)
}

// evaluate and apply recurse into each other, one token at a time.
func evaluate(tokens []string, s *stack) int {
	if len(tokens) == 0 {
		return s.pop()
	}
	return apply(tokens[0], tokens[1:], s)
}

func apply(tok string, rest []string, s *stack) int {
	switch tok {
	case "+", "*":
		b, a := s.pop(), s.pop()
		s.push(combine(tok, a, b))
	default:
		s.push(parseInt(tok))
	}
	return evaluate(rest, s)
}

func combine(op string, a, b int) int {
	if op == "+" {
		return a + b
	}
	return a * b
}

func parseInt(tok string) int {
	n := 0
	each(tok, func(r rune) {
		n = n*10 + digit(r)
	})
	return n
}

func each(s string, fn func(rune)) {
	for _, r := range s {
		fn(r)
	}
}

func digit(r rune) int {
	return int(r - '0')
}

func legacyFormat(n int) string {
	return fmt.Sprintf("%08d", n)
}
