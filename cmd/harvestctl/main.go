package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/config"
	"github.com/abir2776/extract-message-whatsapp/internal/daemon"
	"github.com/abir2776/extract-message-whatsapp/internal/session"
)

func main() {
	addrFlag := flag.String("addr", "", "daemon HTTP address (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	addr := *addrFlag
	if addr == "" {
		cfg, err := config.Load(session.ConfigPath())
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		addr = cfg.HTTP.Addr
	}

	c := &client{
		base: "http://" + addr,
		http: &http.Client{Timeout: 10 * time.Second},
	}

	switch args[0] {
	case "status":
		cmdStatus(c, *jsonFlag)
	case "contacts":
		cmdContacts(c, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: harvestctl [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status      Show daemon state and scan progress")
	fmt.Fprintln(os.Stderr, "  contacts    List harvested contacts, newest first")
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func cmdStatus(c *client, jsonOut bool) {
	var resp daemon.StatusResponse
	if err := c.get("/status", &resp); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Session:  %s\n", resp.Session)
	fmt.Printf("State:    %s\n", resp.State)
	fmt.Printf("Contacts: %d total, %d verified\n", resp.Total, resp.Verified)
	if resp.LastScan != nil {
		fmt.Printf("Last scan: %d batches, %d processed, %d saved\n",
			resp.LastScan.Batches, resp.LastScan.Processed, resp.LastScan.Saved)
	}
}

func cmdContacts(c *client, jsonOut bool) {
	var contacts []daemon.ContactResponse
	if err := c.get("/contacts", &contacts); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	if len(contacts) == 0 {
		fmt.Println("no contacts harvested yet")
		return
	}
	for _, contact := range contacts {
		name := contact.ChatName
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-5d %-20s %-30s %s\n", contact.ID, contact.Phone, contact.Email, name)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
