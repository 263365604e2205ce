package main

import "os"

func sq(x int) int {
	return x * x
}

func outer(x int) int {
	return sq(x+1) + 1
}

//go:noinline
func work(x int) int {
	return outer(x) * 3
}

func main() {
	os.Exit(work(len(os.Args)) & 1)
}
