package main

import (
	"fmt"
	"os"

	"faturas/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "faturactl:", err)
		os.Exit(1)
	}
}
