package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"multimodalchat/core"
	"multimodalchat/factories"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type options struct {
	settingsPath string
	port         int
	noBrowser    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if runLog != nil {
		runLog.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

// runLog mirrors the console log to LOG_DIR when set.
var runLog *core.RunLogWriter

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "multimodalchat",
		Short: "Chat with an assistant that draws pictures and speaks its answers",
		Long: "multimodalchat runs a terminal chat with an LLM assistant.\n" +
			"Every reply is spoken and shown, with any generated image, in a\n" +
			"browser page served from a local file server.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadEnvFiles()
			configureLogger(cmd.Name())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", "", "path to settings .json or .yaml (default $SETTINGS_PATH or ./settings.json)")
	rootCmd.PersistentFlags().IntVar(&opts.port, "port", 0, "file server port, overrides settings")
	rootCmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "don't open the viewer after each reply")

	rootCmd.AddCommand(newServeCmd(opts), newHistoryCmd(opts))
	return rootCmd
}

// loadEnvFiles loads .env.local, then .env. Variables already set win.
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil {
			core.GetLogger().With(map[string]any{"file": name}).Debug("env file not loaded")
		}
	}
}

func configureLogger(command string) {
	level := core.ParseLevel(getEnv("LOG_LEVEL", "info"))
	// stdout belongs to the chat
	console := core.NewDevelopmentLogger(os.Stderr, level)
	core.SetLogger(*console)

	logDir := getEnv("LOG_DIR", "")
	if logDir == "" {
		return
	}
	w, err := core.NewRunLogWriter(logDir, uuid.NewString(), command)
	if err != nil {
		console.Warn("run log disabled", "error", err)
		return
	}
	runLog = w
	core.SetLogger(*core.NewTeeLogger(console, w, core.LevelDebug))
	core.GetLogger().Info("writing run log", "path", w.Path())
}

// loadSettings loads SettingsConfig from file or SETTINGS_JSON_B64, applies
// flags and injects secrets from the environment.
func loadSettings(opts *options) factories.SettingsConfig {
	logger := core.GetLogger()
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			logger.With(map[string]any{"error": decErr}).Error("failed to decode SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else if settings, err = factories.SettingsConfigFromJSON(data); err != nil {
			logger.With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			logger.Info("loaded settings from SETTINGS_JSON_B64")
		}
	} else {
		settingsPath := opts.settingsPath
		if settingsPath == "" {
			settingsPath = getEnv("SETTINGS_PATH", "./settings.json")
		}
		settings, err = factories.SettingsConfigFromFile(settingsPath)
		if err != nil {
			logger.With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
			settings = factories.DefaultSettingsConfig()
		}
	}

	if opts.port != 0 {
		settings.Server.Port = opts.port
	}
	if opts.noBrowser {
		settings.OpenBrowser = false
	}

	settings.InjectAPIKeys(factories.APIKeys{
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		ElevenLabs: getEnv("ELEVENLABS_API_KEY", ""),
		Deepgram:   getEnv("DEEPGRAM_API_KEY", ""),
		Cartesia:   getEnv("CARTESIA_API_KEY", ""),
		Together:   getEnv("TOGETHER_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		DeepSeek:   getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		Fireworks:  getEnv("FIREWORKS_API_KEY", ""),
		Cerebras:   getEnv("CEREBRAS_API_KEY", ""),
		XAI:        getEnv("XAI_API_KEY", ""),
		Mistral:    getEnv("MISTRAL_API_KEY", ""),
		Perplexity: getEnv("PERPLEXITY_API_KEY", ""),
	})
	settings.InjectRedis(getEnv("REDIS_ADDR", ""), getEnv("REDIS_PASSWORD", ""), getEnvAsInt("REDIS_DB", 0))

	return settings
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		core.GetLogger().Warn(fmt.Sprintf("invalid %s, using %d", key, defaultValue), "value", valStr)
		return defaultValue
	}
	return val
}
