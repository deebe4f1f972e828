// Package main is a small integer program whose call graph is the fixture
// for the cgdemo analyzers: a dispatcher over two kernels, a mutually
// recursive pair and one function nothing calls.
//
// All arithmetic is int32. Overflow wraps (two's complement) and is not
// reported.
package main

import (
	"fmt"
	"io"
	"os"
)

func add(a, b int32) int32 {
	return a + b
}

func multiply(a, b int32) int32 {
	return a * b
}

func square(x int32) int32 {
	return multiply(x, x)
}

// computeSeries returns the sum of i*i for i in [0, n).
// The sum is accumulated step by step so intermediate wraparound matches a
// left-to-right loop.
func computeSeries(n int32) int32 {
	var sum int32
	for i := int32(0); i < n; i++ {
		sum = add(sum, square(i))
	}
	return sum
}

// computeProduct returns n! (1 for n <= 0).
func computeProduct(n int32) int32 {
	var prod int32 = 1
	for i := int32(1); i <= n; i++ {
		prod = multiply(prod, i)
	}
	return prod
}

func helperA(x int32) int32 {
	return add(x, 10)
}

func helperB(x int32) int32 {
	return helperA(x) + square(x)
}

// process dispatches on mode. Modes other than 0 and 1 all take the
// helperB branch.
func process(mode, value int32) int32 {
	switch mode {
	case 0:
		return computeSeries(value)
	case 1:
		return computeProduct(value)
	default:
		return helperB(value)
	}
}

// cycle1 and cycle2 count down in steps of one, alternating, until the value
// is no longer positive. They exist to form a call-graph cycle.
func cycle1(x int32) int32 {
	if x <= 0 {
		return x
	}
	return cycle2(x - 1)
}

func cycle2(x int32) int32 {
	return cycle1(x - 1)
}

func unusedFunction(x int32) int32 {
	return x * 42
}

func run(w io.Writer) error {
	result1 := process(0, 1000)
	result2 := process(1, 10)
	result3 := process(2, 5)

	cycle1(5)

	_, err := fmt.Fprintf(w, "%d %d %d\n", result1, result2, result3)
	return err
}

func main() {
	if err := run(os.Stdout); err != nil {
		os.Exit(1)
	}
}
