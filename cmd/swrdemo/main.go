// Command swrdemo drives the cache pipeline the way a list screen would:
// cached page loads, debounced search typing and next-page prefetch. Without
// --base-url it talks to an in-process fake events service.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(realMain(context.Background(), os.Args, os.Stdout))
}

func realMain(ctx context.Context, args []string, out io.Writer) int {
	app := newApp(out)
	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
