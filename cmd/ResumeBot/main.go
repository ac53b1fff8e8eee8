package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/CampusPe/ResumeBot/internal/api"
	"github.com/CampusPe/ResumeBot/internal/genai"
	"github.com/CampusPe/ResumeBot/internal/profile"
	"github.com/CampusPe/ResumeBot/internal/resume"
	"github.com/CampusPe/ResumeBot/internal/store"
	"github.com/CampusPe/ResumeBot/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ResumeBot state data
	DefaultStateDir = "/var/lib/resumebot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "resumebot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	storeOpts := buildStoreOptions(flags)
	resumeOpts := buildResumeOptions(flags)
	profileOpts := buildProfileOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	waOpts := buildWhatsAppOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping ResumeBot with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "resume", len(resumeOpts), "profile", len(profileOpts), "genai", len(genaiOpts), "whatsapp", len(waOpts), "api", len(apiOpts))
	if err := api.Run(storeOpts, resumeOpts, profileOpts, genaiOpts, waOpts, apiOpts); err != nil {
		slog.Error("ResumeBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ResumeBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL     string
	StateDir        string
	Channel         string
	WABBWebhookURL  string
	ResumeAPIURL    string
	ResumeFallbacks string
	ResumeAPIKey    string
	PlatformAPIURL  string
	PlatformAPIKey  string
	OpenAIKey       string
	WhatsAppDSN     string
	APIAddr         string
}

// Flags holds command line flag values
type Flags struct {
	stateDir        *string
	dbDSN           *string
	channel         *string
	wabbWebhookURL  *string
	resumeAPIURL    *string
	resumeFallbacks *string
	resumeAPIKey    *string
	platformAPIURL  *string
	platformAPIKey  *string
	openaiKey       *string
	whatsappDSN     *string
	qrOutput        *string
	numeric         *bool
	apiAddr         *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("RESUMEBOT_STATE_DIR"),
		Channel:         os.Getenv("MESSAGING_CHANNEL"),
		WABBWebhookURL:  os.Getenv("WABB_WEBHOOK_URL"),
		ResumeAPIURL:    os.Getenv("RESUME_API_URL"),
		ResumeFallbacks: os.Getenv("RESUME_API_FALLBACK_URLS"),
		ResumeAPIKey:    os.Getenv("RESUME_API_KEY"),
		PlatformAPIURL:  os.Getenv("PLATFORM_API_URL"),
		PlatformAPIKey:  os.Getenv("PLATFORM_API_KEY"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		WhatsAppDSN:     os.Getenv("WHATSAPP_DB_DSN"),
		APIAddr:         os.Getenv("API_ADDR"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No RESUMEBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"RESUMEBOT_STATE_DIR", config.StateDir,
		"MESSAGING_CHANNEL", config.Channel,
		"WABB_WEBHOOK_URL_SET", config.WABBWebhookURL != "",
		"RESUME_API_URL_SET", config.ResumeAPIURL != "",
		"PLATFORM_API_URL_SET", config.PlatformAPIURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for ResumeBot data (overrides $RESUMEBOT_STATE_DIR)"),
		dbDSN:           flag.String("db-dsn", config.DatabaseURL, "database DSN for the conversation store (overrides $DATABASE_URL)"),
		channel:         flag.String("channel", config.Channel, "messaging channel: wabb, twilio or whatsmeow (overrides $MESSAGING_CHANNEL)"),
		wabbWebhookURL:  flag.String("wabb-webhook-url", config.WABBWebhookURL, "WABB automation catch URL for outbound messages (overrides $WABB_WEBHOOK_URL)"),
		resumeAPIURL:    flag.String("resume-api-url", config.ResumeAPIURL, "resume generation endpoint (overrides $RESUME_API_URL)"),
		resumeFallbacks: flag.String("resume-api-fallback-urls", config.ResumeFallbacks, "comma-separated fallback generation endpoints (overrides $RESUME_API_FALLBACK_URLS)"),
		resumeAPIKey:    flag.String("resume-api-key", config.ResumeAPIKey, "resume generation API key (overrides $RESUME_API_KEY)"),
		platformAPIURL:  flag.String("platform-api-url", config.PlatformAPIURL, "CampusPe platform base URL for profile lookups (overrides $PLATFORM_API_URL)"),
		platformAPIKey:  flag.String("platform-api-key", config.PlatformAPIKey, "CampusPe platform API key (overrides $PLATFORM_API_KEY)"),
		openaiKey:       flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for job-description analysis (overrides $OPENAI_API_KEY)"),
		whatsappDSN:     flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the whatsmeow session store (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:        flag.String("qr-output", "", "path to write login QR code (whatsmeow channel only)"),
		numeric:         flag.Bool("numeric-code", false, "use numeric login code instead of QR code (whatsmeow channel only)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"channel", *flags.channel,
		"wabbWebhookURL_set", *flags.wabbWebhookURL != "",
		"resumeAPIURL_set", *flags.resumeAPIURL != "",
		"platformAPIURL_set", *flags.platformAPIURL != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	stateDir := filepath.Dir(*flags.dbDSN)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
		return err
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildResumeOptions constructs resume generation client options
func buildResumeOptions(flags Flags) []resume.Option {
	var resumeOpts []resume.Option
	if *flags.resumeAPIURL != "" {
		resumeOpts = append(resumeOpts, resume.WithEndpoint(*flags.resumeAPIURL))
	}
	if *flags.resumeFallbacks != "" {
		var fallbacks []string
		for _, u := range strings.Split(*flags.resumeFallbacks, ",") {
			if u = strings.TrimSpace(u); u != "" {
				fallbacks = append(fallbacks, u)
			}
		}
		resumeOpts = append(resumeOpts, resume.WithFallbackEndpoints(fallbacks...))
	}
	if *flags.resumeAPIKey != "" {
		resumeOpts = append(resumeOpts, resume.WithAPIKey(*flags.resumeAPIKey))
	}
	return resumeOpts
}

// buildProfileOptions constructs platform profile lookup options
func buildProfileOptions(flags Flags) []profile.Option {
	var profileOpts []profile.Option
	if *flags.platformAPIURL != "" {
		profileOpts = append(profileOpts, profile.WithBaseURL(*flags.platformAPIURL))
	}
	if *flags.platformAPIKey != "" {
		profileOpts = append(profileOpts, profile.WithAPIKey(*flags.platformAPIKey))
	}
	return profileOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildWhatsAppOptions constructs whatsmeow configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.whatsappDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
	}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.channel != "" {
		apiOpts = append(apiOpts, api.WithChannel(*flags.channel))
	}
	if *flags.wabbWebhookURL != "" {
		apiOpts = append(apiOpts, api.WithWABBWebhookURL(*flags.wabbWebhookURL))
	}
	return apiOpts
}
