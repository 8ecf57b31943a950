package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/muser-music/muser/backend/internal/config"
	"github.com/muser-music/muser/backend/internal/service/chat"
	"github.com/muser-music/muser/backend/internal/service/responder"
	"github.com/muser-music/muser/backend/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "chat: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Log lines would corrupt the alt screen; send them to a file or drop them.
	if cfg.Chat.LogFile != "" {
		f, err := tea.LogToFile(cfg.Chat.LogFile, "chat")
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	session := chat.NewSession("local", chat.Options{
		Welcome:   cfg.Chat.Welcome,
		Responder: responder.New(ctx, cfg),
		Timeout:   cfg.Chat.ResponderTimeout,
	})
	defer session.Close()

	program := tea.NewProgram(tui.NewApp(session), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
