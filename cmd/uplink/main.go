package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/netdash/uplink/internal/logging"
)

var version = "dev"

func main() {
	logging.Setup()

	args := os.Args[1:]
	if len(args) > 0 {
		switch {
		case args[0] == "version":
			fmt.Println(version)
			return
		case args[0] == "run":
			args = args[1:]
		case args[0][0] == '-':
			// Bare flags: treat as "run".
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "usage: uplink [run|version] [flags]\n")
			os.Exit(1)
		}
	}

	if err := runDaemon(args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
