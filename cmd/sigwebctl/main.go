package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if !errors.Is(err, errActionFailed) {
			fmt.Fprintln(os.Stderr, color.RedString("ERROR:"), err)
		}
		os.Exit(1)
	}
}
