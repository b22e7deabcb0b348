// Command datahub serves data queries over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jonwraymond/datahub/cli"
)

func main() {
	if err := cli.New().Execute(context.Background()); err != nil {
		var exit *cli.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
