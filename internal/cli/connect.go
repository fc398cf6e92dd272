package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/agent-bridge/internal/calendar"
	"github.com/rcliao/agent-bridge/internal/events"
	"github.com/rcliao/agent-bridge/internal/identity"
	"github.com/rcliao/agent-bridge/internal/logging"
	"github.com/rcliao/agent-bridge/internal/metrics"
	"github.com/rcliao/agent-bridge/internal/router"
	"github.com/rcliao/agent-bridge/internal/transport"
)

const replHelp = `Commands:
  /event              start creating a calendar event
  /cancel             cancel the calendar event in progress
  /retry              re-send a confirmed event that failed to send
  /remember KEY VAL   store a preference
  /recall KEY         show a stored preference
  /connect            connect now (when auto_connect is off)
  /status             show connection and dialogue state
  /quit               exit
Anything else is sent as chat, or answers the current question while an
event is being created ("cancel" stops it).`

func init() {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open an interactive session with the AI backend",
		Run:   runConnect,
	}

	cmd.Flags().String("url", "", "Backend websocket URL (overrides config)")
	cmd.Flags().Bool("no-memory", false, "Do not read or write the local memory store")
	cmd.Flags().Bool("no-auto-connect", false, "Wait for /connect before dialing")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")

	RootCmd.AddCommand(cmd)
}

func runConnect(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if url, _ := cmd.Flags().GetString("url"); url != "" {
		cfg.WebSocketURL = url
	}
	if noMemory, _ := cmd.Flags().GetBool("no-memory"); noMemory {
		cfg.EnableMemory = false
	}
	if noAuto, _ := cmd.Flags().GetBool("no-auto-connect"); noAuto {
		cfg.AutoConnect = false
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.MetricsAddr = addr
	}

	logger := logging.WithComponent("cli")
	out := cmd.OutOrStdout()

	var memory router.Memory
	if cfg.EnableMemory {
		s, err := openStore(cfg)
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		memory = s
	}

	playerID := identity.NewPlayerID()
	sessionID := identity.NewSessionID()
	logger.Info().
		Str("url", cfg.WebSocketURL).
		Str("player_id", playerID).
		Str("session_id", sessionID).
		Bool("memory", cfg.EnableMemory).
		Msg("starting session")

	pub := events.NewPublisher(sessionID)
	r := router.New(router.Options{
		PlayerID:     playerID,
		SessionID:    sessionID,
		ProbeDelay:   cfg.ProbeDelay,
		ProbeText:    cfg.ProbeText,
		EnableMemory: cfg.EnableMemory,
	}, memory, pub)
	client := transport.New(transport.Options{
		URL:            cfg.WebSocketURL,
		ReconnectDelay: cfg.ReconnectDelay,
		PingInterval:   cfg.PingInterval,
		WriteTimeout:   cfg.WriteTimeout,
	}, r)
	r.SetSender(client)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var printers sync.WaitGroup
	printers.Add(1)
	go func() {
		defer printers.Done()
		for env := range pub.Subscribe("cli", 64) {
			printEvent(out, env)
		}
	}()

	var runs sync.WaitGroup
	var connectOnce sync.Once
	connect := func() {
		connectOnce.Do(func() {
			runs.Add(1)
			go func() {
				defer runs.Done()
				if err := client.Run(ctx); err != nil && !errors.Is(err, transport.ErrClosed) && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("transport stopped")
				}
			}()
		})
	}
	if cfg.AutoConnect {
		connect()
	}

	fmt.Fprintln(out, "Type /help for commands.")
	replCtx, stopRepl := context.WithCancel(ctx)
	defer stopRepl()
	lines := readLines(replCtx, os.Stdin)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if quit := handleLine(ctx, out, r, connect, line); quit {
				break loop
			}
		}
	}

	stopRepl()
	r.Close()
	client.Close()
	runs.Wait()
	pub.Close()
	printers.Wait()
}

// handleLine runs one REPL line and reports whether the session should end.
func handleLine(ctx context.Context, out io.Writer, r *router.Router, connect func(), line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if err := r.HandleUserInput(line); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
		return false
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(out, replHelp)
	case "/event":
		if err := r.StartEventFlow(); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	case "/cancel":
		if err := r.CancelEventFlow(); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	case "/retry":
		if err := r.RetryEventHandoff(); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
		}
	case "/remember":
		if len(fields) < 3 {
			fmt.Fprintln(out, "! usage: /remember KEY VALUE")
			return false
		}
		if err := r.AddMemory(ctx, fields[1], strings.Join(fields[2:], " ")); err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			return false
		}
		fmt.Fprintf(out, "Remembered %s.\n", fields[1])
	case "/recall":
		if len(fields) != 2 {
			fmt.Fprintln(out, "! usage: /recall KEY")
			return false
		}
		if v := r.GetMemory(ctx, fields[1]); v != "" {
			fmt.Fprintf(out, "%s = %s\n", fields[1], v)
		} else {
			fmt.Fprintf(out, "%s is not set\n", fields[1])
		}
	case "/connect":
		connect()
	case "/status":
		fmt.Fprintf(out, "connected=%t ready=%t flow=%s\n", r.IsConnected(), r.IsReady(), r.FlowState())
	default:
		fmt.Fprintf(out, "! unknown command %s (try /help)\n", fields[0])
	}
	return false
}

// readLines feeds scanned lines to the REPL until in is exhausted or ctx is
// done.
func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func serveMetrics(addr string) *http.Server {
	logger := logging.WithComponent("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}

// printEvent renders one UI notification for the terminal.
func printEvent(w io.Writer, env events.Envelope) {
	switch env.Type {
	case events.AIResponse:
		var d events.TextData
		if env.Decode(&d) == nil {
			fmt.Fprintf(w, "AI: %s\n", d.Text)
		}
	case events.AskQuestion:
		var d events.TextData
		if env.Decode(&d) == nil {
			fmt.Fprintf(w, "> %s\n", d.Text)
		}
	case events.EventCreated:
		var d events.EventCreatedData
		if env.Decode(&d) == nil {
			fmt.Fprintf(w, "Event created: %s on %s\n", d.Record.Name, d.Record.When.Format(calendar.DisplayTimeLayout))
		}
	case events.FlowCancelled:
		fmt.Fprintln(w, "Event creation cancelled.")
	case events.ConnectionChanged:
		var d events.ConnectionData
		if env.Decode(&d) == nil {
			if d.Connected {
				fmt.Fprintln(w, "[connected]")
			} else {
				fmt.Fprintln(w, "[disconnected]")
			}
		}
	case events.VoiceProcessed:
		var d events.VoiceData
		if env.Decode(&d) == nil {
			fmt.Fprintf(w, "You (voice): %s\n", d.Transcription)
			if d.AIResponse != "" {
				fmt.Fprintf(w, "AI: %s\n", d.AIResponse)
			}
		}
	case events.BackendError:
		var d events.TextData
		if env.Decode(&d) == nil {
			fmt.Fprintf(w, "! backend error: %s\n", d.Text)
		}
	}
}
