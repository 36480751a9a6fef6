package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"finquery-client/internal/bootstrap"
	"finquery-client/internal/config"
	"finquery-client/internal/constant"
	"finquery-client/internal/selection"
	"finquery-client/internal/session"
	"finquery-client/internal/tracer"
	"finquery-client/internal/transcript"

	"github.com/fatih/color"
)

var (
	promptStyle = color.New(color.FgGreen, color.Bold)
	answerStyle = color.New(color.FgCyan)
	sourceStyle = color.New(color.FgYellow)
	noticeStyle = color.New(color.FgMagenta)
)

func main() {
	cfg := config.Load()

	shutdownTracer := tracer.InitTracer()
	defer func() { _ = shutdownTracer(context.Background()) }()

	container := bootstrap.NewContainer(cfg)
	defer func() { _ = container.Logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go renderLoop(ctx, container)
	go authLoop(ctx, container)

	fmt.Printf("FinQuery — ask questions about your documents (%s)\n", cfg.Api.BaseURL)
	fmt.Println("Commands: /docs /select <name> /remove <name> /upload <path> /delete <name> /clear /quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		promptStyle.Print("you> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, container, line); quit {
				return
			}
			continue
		}

		if err := container.Session.Submit(ctx, line); err != nil {
			switch {
			case errors.Is(err, session.ErrSessionBusy):
				notice("Still answering the previous question.")
			default:
				container.Logger.Error("Cli", "Query failed", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func notice(text string) {
	noticeStyle.Fprintln(os.Stdout, text)
}

// renderLoop streams transcript deltas to the terminal as the
// controller applies frames.
func renderLoop(ctx context.Context, container *bootstrap.Container) {
	messages, err := container.PubSub.Subscribe(ctx, constant.TranscriptEventsTopic)
	if err != nil {
		return
	}

	for msg := range messages {
		var evt transcript.ChangeEvent
		if err := json.Unmarshal(msg.Payload, &evt); err != nil {
			msg.Ack()
			continue
		}

		switch evt.Kind {
		case transcript.KindContent:
			answerStyle.Print(evt.Delta)
		case transcript.KindSources:
			if m, ok := container.Transcript.Get(evt.MessageId); ok && len(m.Sources) > 0 {
				fmt.Println()
				for _, citation := range m.Sources {
					if citation.Filename != "" {
						sourceStyle.Printf("  source: %s, page %d\n", citation.Filename, citation.Page)
					} else {
						sourceStyle.Printf("  source: page %d\n", citation.Page)
					}
				}
			}
		case transcript.KindClosed:
			fmt.Println()
		}
		msg.Ack()
	}
}

// authLoop surfaces credential invalidation outside the streaming core.
func authLoop(ctx context.Context, container *bootstrap.Container) {
	messages, err := container.PubSub.Subscribe(ctx, constant.AuthEventsTopic)
	if err != nil {
		return
	}
	for msg := range messages {
		notice("Session expired; signing in again on the next request.")
		msg.Ack()
	}
}

func runCommand(ctx context.Context, container *bootstrap.Container, line string) bool {
	parts := strings.SplitN(line, " ", 2)
	command := parts[0]
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch command {
	case "/quit", "/exit":
		return true

	case "/docs":
		list, err := container.Api.ListDocuments(ctx)
		if err != nil {
			notice("Could not list documents: " + err.Error())
			return false
		}
		if list.TotalDocuments == 0 {
			notice("No documents uploaded yet.")
			return false
		}
		for _, doc := range list.Documents {
			marker := " "
			if container.Selection.Contains(doc.Name) {
				marker = "*"
			}
			fmt.Printf(" %s %s (%d pages, %d chunks)\n", marker, doc.Name, doc.Pages, doc.Count)
		}

	case "/select":
		if arg == "" {
			notice("Usage: /select <name>")
			return false
		}
		if err := container.Selection.Toggle(arg); err != nil {
			if errors.Is(err, selection.ErrCapacityExceeded) {
				notice(fmt.Sprintf("You can scope a question to at most %d documents.", constant.MaxSelectedDocuments))
			}
			return false
		}
		showScope(container)

	case "/remove":
		if arg == "" {
			notice("Usage: /remove <name>")
			return false
		}
		container.Selection.Remove(arg)
		showScope(container)

	case "/upload":
		if arg == "" {
			notice("Usage: /upload <path>")
			return false
		}
		result, err := container.Api.UploadDocument(ctx, arg)
		if err != nil {
			notice("Upload failed: " + err.Error())
			return false
		}
		notice(fmt.Sprintf("Indexed %s (%d pages).", result.Filename, result.Pages))

	case "/delete":
		if arg == "" {
			notice("Usage: /delete <name>")
			return false
		}
		if _, err := container.Api.DeleteDocument(ctx, arg); err != nil {
			notice("Delete failed: " + err.Error())
			return false
		}
		container.Selection.Remove(arg)
		notice("Deleted " + arg + ".")

	case "/clear":
		if err := container.Api.ClearDocuments(ctx); err != nil {
			notice("Clear failed: " + err.Error())
			return false
		}
		for _, name := range container.Selection.Snapshot() {
			container.Selection.Remove(name)
		}
		notice("All documents cleared.")

	default:
		notice("Unknown command: " + command)
	}
	return false
}

func showScope(container *bootstrap.Container) {
	scope := container.Selection.Snapshot()
	if scope == nil {
		notice("Scope: all documents")
		return
	}
	notice("Scope: " + strings.Join(scope, ", "))
}
