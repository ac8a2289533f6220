package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"workspace-chat/client"
	"workspace-chat/domain"
	"workspace-chat/sanitize"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `envconfig:"CHAT_SERVER_URL" default:"ws://localhost:8090/ws"`
	Pseudo    string `envconfig:"CHAT_PSEUDO"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"WARN"`
	Colours   bool   `envconfig:"CHAT_COLOURS" default:"true"`

	// Sanitizer policy knobs, comma separated.
	BlockedKeywords []string `envconfig:"CHAT_BLOCKED_KEYWORDS"`
	BlockedDomains  []string `envconfig:"CHAT_BLOCKED_DOMAINS"`
	AllowedDomains  []string `envconfig:"CHAT_ALLOWED_DOMAINS"`
	StrictLinks     bool     `envconfig:"CHAT_STRICT_LINKS" default:"false"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	sanitizer, err := sanitize.New(sanitize.Policy{
		BlockedKeywords: config.BlockedKeywords,
		BlockedDomains:  config.BlockedDomains,
		AllowedDomains:  config.AllowedDomains,
		StrictMode:      config.StrictLinks,
	})
	if err != nil {
		return exitConfig, fmt.Errorf("sanitizer policy: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := &terminal{colours: config.Colours}

	chat := client.New(config.ServerURL, sanitizer, client.Handlers{
		OnHistory: ui.printHistory,
		OnMessage: ui.printMessage,
		OnUsers:   ui.printUsers,
		OnCleared: ui.printCleared,
		OnSuccess: func(text string) { ui.notice("ok", text) },
		OnError:   func(text string) { ui.notice("error", text) },
	}, log)
	ui.chat = chat

	if err := chat.Connect(ctx); err != nil {
		return exitRuntime, err
	}
	defer chat.Close()

	if config.Pseudo != "" {
		if err := chat.SetPseudo(config.Pseudo); err != nil {
			return exitConfig, fmt.Errorf("pseudo %q: %w", config.Pseudo, err)
		}
	} else {
		ui.notice("hint", "pick a name with /pseudo <name>")
	}

	go ui.readInput()

	select {
	case <-ctx.Done():
	case <-chat.Done():
		ui.notice("error", "connection to the server lost")
		return exitRuntime, nil
	}
	return exitOK, nil
}

// terminal renders frames to stdout and turns stdin lines into
// protocol requests.
type terminal struct {
	chat    *client.Client
	colours bool

	mu        sync.Mutex
	lastLinks []sanitize.Segment
}

func (t *terminal) readInput() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			t.command(line)
			continue
		}
		if err := t.chat.Send(line); err != nil {
			t.notice("error", err.Error())
		}
	}
}

func (t *terminal) command(line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/pseudo":
		if len(fields) < 2 {
			t.notice("error", "usage: /pseudo <name>")
			return
		}
		name := strings.Join(fields[1:], " ")
		if err := t.chat.SetPseudo(name); err != nil {
			t.notice("error", err.Error())
		}
	case "/users":
		t.printUserTable()
	case "/clear":
		if err := t.chat.ClearChat(); err != nil {
			t.notice("error", err.Error())
		}
	case "/open":
		if len(fields) != 2 {
			t.notice("error", "usage: /open <link number>")
			return
		}
		t.openLink(fields[1])
	case "/quit":
		os.Exit(exitOK)
	default:
		t.notice("error", fmt.Sprintf("unknown command %s", fields[0]))
	}
}

// openLink is the only path that follows a link: an explicit user
// action handing the resolved URL to the system opener.
func (t *terminal) openLink(arg string) {
	index, err := strconv.Atoi(arg)
	if err != nil {
		t.notice("error", "usage: /open <link number>")
		return
	}

	t.mu.Lock()
	links := append([]sanitize.Segment(nil), t.lastLinks...)
	t.mu.Unlock()
	if index < 1 || index > len(links) {
		t.notice("error", fmt.Sprintf("no link #%d on screen", index))
		return
	}

	err = t.chat.OpenLink(links[index-1], func(url string) error {
		return exec.Command("xdg-open", url).Start()
	})
	if err != nil {
		t.notice("error", err.Error())
	}
}

func (t *terminal) printHistory(messages []domain.Message) {
	for _, message := range messages {
		t.printMessage(message)
	}
}

func (t *terminal) printMessage(message domain.Message) {
	segments := t.chat.Render(message)

	var body strings.Builder
	for _, segment := range segments {
		if !segment.IsLink() {
			body.WriteString(segment.Text)
			continue
		}
		t.mu.Lock()
		t.lastLinks = append(t.lastLinks, segment)
		number := len(t.lastLinks)
		t.mu.Unlock()

		label := fmt.Sprintf("%s [%d]", segment.Text, number)
		if t.colours {
			label = color.FgCyan.Render(label)
		}
		body.WriteString(label)
	}

	header := fmt.Sprintf("[%s] %s:", message.CreatedAt.Local().Format(time.TimeOnly), message.Author)
	if t.colours {
		header = color.FgGreen.Render(header)
	}
	fmt.Printf("%s %s\n", header, body.String())
}

func (t *terminal) printUsers(count int, users []string) {
	t.notice("presence", fmt.Sprintf("%d connected: %s", count, strings.Join(users, ", ")))
}

func (t *terminal) printUserTable() {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Pseudo"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, user := range t.chat.Users() {
		table.Append([]string{strconv.Itoa(i + 1), user})
	}
	table.Render()
}

func (t *terminal) printCleared(clearedBy, timestamp string) {
	t.mu.Lock()
	t.lastLinks = nil
	t.mu.Unlock()
	t.notice("presence", fmt.Sprintf("history cleared by %s at %s", clearedBy, timestamp))
}

func (t *terminal) notice(kind, text string) {
	line := fmt.Sprintf("-- %s: %s", kind, text)
	if t.colours && kind == "error" {
		line = color.FgRed.Render(line)
	}
	fmt.Println(line)
}
