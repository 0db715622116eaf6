// Command chatbot answers chat commands on Discord and Twitch.
//
// Without a subcommand it serves: it loads configuration, opens the store
// (running migrations), connects every chat platform that has credentials
// and exposes /healthz, /readyz, /metrics and the /admin API. The other
// subcommands manage admins, custom commands and migrations out of band and
// print usage reports. Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/onnwee/chatbot/cli"
)

func main() {
	if err := cli.Root().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
