package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/omochice/social-chat/internal/chat"
	"github.com/omochice/social-chat/internal/client"
	"github.com/omochice/social-chat/internal/config"
	"github.com/omochice/social-chat/internal/identity"
	"github.com/omochice/social-chat/internal/metrics"
	"github.com/omochice/social-chat/internal/view"
	"github.com/omochice/social-chat/pkg/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

const usage = `Commands:
  /join <user id>    open the direct conversation with a user
  /group <group id>  open a group conversation
  /leave             close the current conversation
  /reconnect         reconnect after the connection failed
  /quit              exit
Anything else is sent to the open conversation.`

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	user, err := identity.FromToken(cfg.Token, cfg.JWTSecret)
	switch {
	case errors.Is(err, identity.ErrMissingToken):
		logger.Warn("no token configured, connecting anonymously")
	case err != nil:
		return fmt.Errorf("failed to read identity: %w", err)
	default:
		logger.Info("authenticated", "user", user.ID, "username", user.Username)
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		go serveMetrics(logger, cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		Endpoint:     cfg.Endpoint,
		Token:        cfg.Token,
		PingInterval: cfg.PingInterval,
		QueueSize:    cfg.QueueSize,
		Logger:       logger,
		Metrics:      m,
	})
	defer c.Close()

	session := chat.NewSession(c, chat.WithLogger(logger), chat.WithMetrics(m))
	renderer := view.NewRenderer(os.Stdout, user.ID)

	session.Subscribe(func(snap protocol.Snapshot, ok bool) {
		if _, active := session.Store().Active(); !active {
			return
		}
		fmt.Println("----")
		renderer.Render(snap, ok, session.Unavailable())
	})
	c.OnStateChange(func(ev client.StateEvent) {
		if ev.New == client.StateErrored {
			fmt.Println(view.UnavailableText)
			fmt.Println("Type /reconnect to try again.")
		}
	})

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = c.Connect(connectCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	fmt.Println(usage)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Error("failed to read input", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, logger, c, session, line); quit {
				return nil
			}
		}
	}
}

// handleLine executes one line of input and reports whether to exit.
func handleLine(ctx context.Context, logger *slog.Logger, c *client.Client, session *chat.Session, line string) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Println(err)
		return false
	}

	switch cmd.kind {
	case cmdNone:
	case cmdQuit:
		return true
	case cmdJoin:
		if err := session.Join(cmd.conversation); err != nil {
			logger.Error("failed to join conversation", "error", err)
		}
	case cmdLeave:
		session.Leave()
	case cmdReconnect:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := c.Connect(connectCtx); err != nil {
			logger.Error("failed to reconnect", "error", err)
			return false
		}
		if err := session.Rejoin(); err != nil && !errors.Is(err, chat.ErrNoConversation) {
			logger.Error("failed to rejoin conversation", "error", err)
		}
	case cmdMessage:
		err := session.Submit(cmd.text)
		switch {
		case errors.Is(err, chat.ErrEmptySubmission):
		case errors.Is(err, chat.ErrNoConversation):
			fmt.Println("Open a conversation with /join or /group first.")
		case err != nil:
			logger.Error("failed to send message", "error", err)
		}
	}
	return false
}

type commandKind int

const (
	cmdNone commandKind = iota
	cmdMessage
	cmdJoin
	cmdLeave
	cmdReconnect
	cmdQuit
)

type command struct {
	kind         commandKind
	conversation protocol.Identity
	text         string
}

func parseCommand(line string) (command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		if trimmed == "" {
			return command{kind: cmdNone}, nil
		}
		return command{kind: cmdMessage, text: line}, nil
	}

	fields := strings.Fields(trimmed)
	switch fields[0] {
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	case "/leave":
		return command{kind: cmdLeave}, nil
	case "/reconnect":
		return command{kind: cmdReconnect}, nil
	case "/join", "/group":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("usage: %s <id>", fields[0])
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || id <= 0 {
			return command{}, fmt.Errorf("invalid id %q", fields[1])
		}
		return command{
			kind:         cmdJoin,
			conversation: protocol.Identity{ID: id, IsGroup: fields[0] == "/group"},
		}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s\n%s", fields[0], usage)
	}
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.Info("serving metrics", "addr", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", "error", err)
	}
}
