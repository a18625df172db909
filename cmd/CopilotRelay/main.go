package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/api"
	"github.com/BTreeMap/CopilotRelay/internal/flow"
	"github.com/BTreeMap/CopilotRelay/internal/flowise"
	"github.com/BTreeMap/CopilotRelay/internal/genai"
	"github.com/BTreeMap/CopilotRelay/internal/lockfile"
	"github.com/BTreeMap/CopilotRelay/internal/messaging"
	"github.com/BTreeMap/CopilotRelay/internal/reminder"
	"github.com/BTreeMap/CopilotRelay/internal/scheduler"
	"github.com/BTreeMap/CopilotRelay/internal/session"
	"github.com/BTreeMap/CopilotRelay/internal/twiliowhatsapp"
	"github.com/BTreeMap/CopilotRelay/internal/util"
	"github.com/BTreeMap/CopilotRelay/internal/vonage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for the instance lock file
	DefaultStateDir = "/var/lib/copilotrelay"
	// DefaultPort is the listening port when neither PORT nor API_ADDR is set
	DefaultPort = "3000"
	// DefaultPrivateKeyPath is where the Vonage signing key is read from
	DefaultPrivateKeyPath = "./private.pem"
	// DefaultLogLevel keeps debug output on, as during development
	DefaultLogLevel = "debug"
)

// Supported backends
const (
	ProviderVonage = "vonage"
	ProviderTwilio = "twilio"
	BackendFlowise = "flowise"
	BackendOpenAI  = "openai"
)

var (
	ErrUnknownProvider = errors.New("unknown messaging provider")
	ErrUnknownBackend  = errors.New("unknown AI backend")
)

func main() {
	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse command line flags", "error", err)
		os.Exit(2)
	}

	initializeLogger(*flags.logLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		slog.Error("CopilotRelay failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CopilotRelay exited successfully")
}

// Config holds environment configuration
type Config struct {
	VonageURL         string
	VonageAppID       string
	VonageKeyPath     string
	FromNumber        string
	FlowiseURL        string
	Port              string
	APIAddr           string
	WebhookPath       string
	MessagingProvider string
	AIBackend         string
	OpenAIKey         string
	RemindersEnabled  bool
	DedupCapacity     int
	DedupTTL          time.Duration
	StateDir          string
	LogLevel          string
}

// Flags holds command line flag values
type Flags struct {
	vonageURL         *string
	vonageAppID       *string
	vonageKeyPath     *string
	fromNumber        *string
	flowiseURL        *string
	port              *string
	apiAddr           *string
	webhookPath       *string
	messagingProvider *string
	aiBackend         *string
	openaiKey         *string
	reminders         *bool
	stateDir          *string
	logLevel          *string

	dedupCapacity int
	dedupTTL      time.Duration
}

// initializeLogger sets up structured logging at the given level, falling back to debug.
func initializeLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		VonageURL:         util.GetEnv("VONAGE_MESSAGES_API_URL", vonage.DefaultMessagesURL),
		VonageAppID:       os.Getenv("VONAGE_APPLICATION_ID"),
		VonageKeyPath:     util.GetEnv("VONAGE_PRIVATE_KEY_PATH", DefaultPrivateKeyPath),
		FromNumber:        os.Getenv("VONAGE_FROM_NUMBER"),
		FlowiseURL:        os.Getenv("FLOWISE_API_URL"),
		Port:              util.GetEnv("PORT", DefaultPort),
		APIAddr:           os.Getenv("API_ADDR"),
		WebhookPath:       util.GetEnv("WEBHOOK_PATH", api.DefaultWebhookPath),
		MessagingProvider: util.GetEnv("MESSAGING_PROVIDER", ProviderVonage),
		AIBackend:         util.GetEnv("AI_BACKEND", BackendFlowise),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		RemindersEnabled:  util.ParseBoolEnv("REMINDER_ENABLED", true),
		DedupCapacity:     util.ParseIntEnv("DEDUP_CAPACITY", session.DefaultDedupCapacity),
		DedupTTL:          util.ParseDurationEnv("DEDUP_TTL", session.DefaultDedupTTL),
		StateDir:          util.GetEnv("COPILOT_STATE_DIR", DefaultStateDir),
		LogLevel:          util.GetEnv("LOG_LEVEL", DefaultLogLevel),
	}

	slog.Debug("environment variables loaded",
		"VONAGE_MESSAGES_API_URL", config.VonageURL,
		"VONAGE_APPLICATION_ID_SET", config.VonageAppID != "",
		"VONAGE_PRIVATE_KEY_PATH", config.VonageKeyPath,
		"VONAGE_FROM_NUMBER_SET", config.FromNumber != "",
		"FLOWISE_API_URL_SET", config.FlowiseURL != "",
		"PORT", config.Port,
		"API_ADDR", config.APIAddr,
		"MESSAGING_PROVIDER", config.MessagingProvider,
		"AI_BACKEND", config.AIBackend,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"REMINDER_ENABLED", config.RemindersEnabled,
		"COPILOT_STATE_DIR", config.StateDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		vonageURL:         fs.String("vonage-url", config.VonageURL, "Vonage Messages API endpoint (overrides $VONAGE_MESSAGES_API_URL)"),
		vonageAppID:       fs.String("vonage-app-id", config.VonageAppID, "Vonage application ID (overrides $VONAGE_APPLICATION_ID)"),
		vonageKeyPath:     fs.String("vonage-private-key", config.VonageKeyPath, "path to the Vonage private key PEM (overrides $VONAGE_PRIVATE_KEY_PATH)"),
		fromNumber:        fs.String("from-number", config.FromNumber, "WhatsApp sender number (overrides $VONAGE_FROM_NUMBER)"),
		flowiseURL:        fs.String("flowise-url", config.FlowiseURL, "Flowise prediction endpoint (overrides $FLOWISE_API_URL)"),
		port:              fs.String("port", config.Port, "listening port (overrides $PORT)"),
		apiAddr:           fs.String("api-addr", config.APIAddr, "full listen address, takes precedence over -port (overrides $API_ADDR)"),
		webhookPath:       fs.String("webhook-path", config.WebhookPath, "inbound webhook route (overrides $WEBHOOK_PATH)"),
		messagingProvider: fs.String("messaging-provider", config.MessagingProvider, "outbound provider: vonage or twilio (overrides $MESSAGING_PROVIDER)"),
		aiBackend:         fs.String("ai-backend", config.AIBackend, "AI backend: flowise or openai (overrides $AI_BACKEND)"),
		openaiKey:         fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		reminders:         fs.Bool("reminders", config.RemindersEnabled, "run the hourly idle-user reminder sweep (overrides $REMINDER_ENABLED)"),
		stateDir:          fs.String("state-dir", config.StateDir, "state directory for the instance lock (overrides $COPILOT_STATE_DIR)"),
		logLevel:          fs.String("log-level", config.LogLevel, "log level: debug, info, warn, error (overrides $LOG_LEVEL)"),
		dedupCapacity:     config.DedupCapacity,
		dedupTTL:          config.DedupTTL,
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	slog.Debug("flags parsed",
		"vonageURL", *flags.vonageURL,
		"messagingProvider", *flags.messagingProvider,
		"aiBackend", *flags.aiBackend,
		"apiAddr", listenAddr(flags),
		"webhookPath", *flags.webhookPath,
		"reminders", *flags.reminders,
		"stateDir", *flags.stateDir)

	return flags, nil
}

// run wires the modules together and serves until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	sender, err := buildSender(flags)
	if err != nil {
		return fmt.Errorf("failed to configure messaging provider: %w", err)
	}
	querier, err := buildQuerier(flags)
	if err != nil {
		return fmt.Errorf("failed to configure AI backend: %w", err)
	}

	store := session.NewStore(buildSessionOptions(flags)...)
	messenger := messaging.NewMessenger(sender)
	dispatcher := flow.NewDispatcher(store, messenger, querier)

	if *flags.reminders {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := reminder.NewSweeper(store, messenger).Register(ctx, sched); err != nil {
			return fmt.Errorf("failed to schedule reminder sweep: %w", err)
		}
	} else {
		slog.Info("Idle reminders disabled")
	}

	server := api.NewServer(dispatcher, store, buildAPIOptions(flags)...)
	slog.Info("Bootstrapping CopilotRelay with configured modules",
		"provider", *flags.messagingProvider, "ai_backend", *flags.aiBackend, "addr", server.Addr())
	return server.Run(ctx)
}

// buildSender constructs the outbound messaging backend
func buildSender(flags Flags) (messaging.Sender, error) {
	switch strings.ToLower(*flags.messagingProvider) {
	case ProviderVonage:
		key, err := vonage.LoadPrivateKey(*flags.vonageKeyPath)
		if err != nil {
			return nil, err
		}
		issuer, err := vonage.NewTokenIssuer(*flags.vonageAppID, key)
		if err != nil {
			return nil, err
		}
		return vonage.NewClient(issuer, buildVonageOptions(flags)...)
	case ProviderTwilio:
		var opts []twiliowhatsapp.Option
		if *flags.fromNumber != "" {
			opts = append(opts, twiliowhatsapp.WithFromWhats(*flags.fromNumber))
		}
		return twiliowhatsapp.NewClient(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, *flags.messagingProvider)
	}
}

// buildVonageOptions constructs Vonage client options
func buildVonageOptions(flags Flags) []vonage.Option {
	var opts []vonage.Option
	if *flags.vonageURL != "" {
		opts = append(opts, vonage.WithEndpoint(*flags.vonageURL))
	}
	if *flags.fromNumber != "" {
		opts = append(opts, vonage.WithFrom(*flags.fromNumber))
	}
	return opts
}

// buildQuerier constructs the AI backend
func buildQuerier(flags Flags) (flow.Querier, error) {
	switch strings.ToLower(*flags.aiBackend) {
	case BackendFlowise:
		return flowise.NewClient(flowise.WithEndpoint(*flags.flowiseURL))
	case BackendOpenAI:
		return genai.NewClient(buildGenAIOptions(flags)...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, *flags.aiBackend)
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildSessionOptions constructs session store options
func buildSessionOptions(flags Flags) []session.Option {
	return []session.Option{
		session.WithDedupCapacity(flags.dedupCapacity),
		session.WithDedupTTL(flags.dedupTTL),
	}
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	return []api.Option{
		api.WithAddr(listenAddr(flags)),
		api.WithWebhookPath(*flags.webhookPath),
	}
}

// listenAddr prefers -api-addr and otherwise listens on all interfaces at -port.
func listenAddr(flags Flags) string {
	if *flags.apiAddr != "" {
		return *flags.apiAddr
	}
	return ":" + *flags.port
}
