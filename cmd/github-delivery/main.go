// Command github-delivery answers questions about pull request activity.
package main

import (
	"os"

	"github.com/gkabbz/github-delivery-visibility/internal/adapters/driving/cli"
)

func main() {
	os.Exit(cli.Execute())
}
