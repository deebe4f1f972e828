package main

type stack struct {
	items []int
}

func newStack() *stack {
	return &stack{}
}

func (s *stack) push(v int) {
	s.items = append(s.items, v)
}

func (s *stack) pop() int {
	v := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return v
}

// countdown calls itself directly.
func countdown(n int) int {
	if n <= 0 {
		return 0
	}
	return countdown(n - 1)
}
