package logging

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mdp/qrterminal/v3"
)

// ANSI color codes.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	cyan  = "\033[36m"
	dim   = "\033[2m"
)

// Uplink ASCII art.
var logoLines = [6]string{
	`  _   _       _ _       _    `,
	` | | | |_ __ | (_)_ __ | | __`,
	` | | | | '_ \| | | '_ \| |/ /`,
	` | |_| | |_) | | | | | |   < `,
	`  \___/| .__/|_|_|_| |_|_|\_\`,
	`       |_|                   `,
}

// PrintBanner prints the Uplink ASCII art logo followed by the version
// and the backend URL. Colors are used only when stderr is a TTY.
func PrintBanner(ver, backend string) {
	color := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	for i := 0; i < 6; i++ {
		if color {
			fmt.Fprintf(os.Stderr, "%s%s%s\n", bold+cyan, logoLines[i], reset)
		} else {
			fmt.Fprintf(os.Stderr, "%s\n", logoLines[i])
		}
	}

	// Info line below the art.
	if color {
		fmt.Fprintf(os.Stderr, "\n  %sversion%s %s   %sbackend%s %s\n\n",
			dim, reset, ver, dim, reset, backend)
	} else {
		fmt.Fprintf(os.Stderr, "\n  version %s   backend %s\n\n", ver, backend)
	}
}

// PrintQRCode renders a URL as a terminal QR code so the user can scan
// it with a phone instead of typing it out.
func PrintQRCode(url string) {
	qrterminal.GenerateWithConfig(url, qrterminal.Config{
		Level:      qrterminal.L,
		Writer:     os.Stderr,
		HalfBlocks: true,
		QuietZone:  1,
	})
}
