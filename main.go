// Public domain.

package main

import "github.com/soniakeys/gwagn/internal/gwprog"

func main() {
	gwprog.Main()
}
