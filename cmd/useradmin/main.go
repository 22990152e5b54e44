package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/webshelf/internal/useradmin"
)

func main() {
	if err := useradmin.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
