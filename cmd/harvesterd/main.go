package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/abir2776/extract-message-whatsapp/internal/daemon"
	"github.com/abir2776/extract-message-whatsapp/internal/session"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	// .env carries HARVESTER_VERIFY_KEY; absence is fine.
	_ = godotenv.Load()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{SessionName: sessionName}),
	)

	app.Run()
}
