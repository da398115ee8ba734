package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nextcodehq/nextcode-mcp/internal/annotator"
	"github.com/nextcodehq/nextcode-mcp/internal/llm"
	"github.com/nextcodehq/nextcode-mcp/internal/mcp"
	"github.com/nextcodehq/nextcode-mcp/internal/scanner"
	"github.com/nextcodehq/nextcode-mcp/internal/settings"
	"github.com/nextcodehq/nextcode-mcp/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nextcode",
		Short: "NextCode annotation engine MCP server",
		Long:  "Serves file annotation, project sync and module-graph analysis over MCP stdio.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Printf("NextCode MCP Server\n")
				fmt.Printf("Version: %s\n", version)
				fmt.Printf("Build Time: %s\n", buildTime)
				fmt.Printf("Build Mode: %s\n", storage.BuildMode)
				fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
				return nil
			}
			return serve(cmd)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a YAML or JSON configuration file")
	rootCmd.PersistentFlags().String("api_key", "", "Annotation service API key")
	rootCmd.PersistentFlags().String("base_url", "https://api.deepseek.com", "Annotation service base URL")
	rootCmd.PersistentFlags().String("language", llm.DefaultLanguage, "Prompt language (EN or ZH)")
	rootCmd.PersistentFlags().String("chat_model", llm.DefaultChatModel, "Model used for file annotation")
	rootCmd.PersistentFlags().String("reasoner_model", llm.DefaultReasonerModel, "Model used for document selection and graph inference")
	rootCmd.PersistentFlags().Int("concurrency", annotator.DefaultConcurrency, "Max concurrent file annotations")
	rootCmd.PersistentFlags().Bool("retry_failed", false, "Re-annotate previously failed files on the next sync even if unchanged")
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")

	return rootCmd
}

// loadConfig resolves configuration from defaults, an optional config file,
// environment variables and CLI flags, lowest to highest precedence
func loadConfig(cmd *cobra.Command) error {
	viper.SetDefault("api_key", "")
	viper.SetDefault("base_url", "https://api.deepseek.com")
	viper.SetDefault("language", llm.DefaultLanguage)
	viper.SetDefault("chat_model", llm.DefaultChatModel)
	viper.SetDefault("reasoner_model", llm.DefaultReasonerModel)
	viper.SetDefault("concurrency", annotator.DefaultConcurrency)
	viper.SetDefault("retry_failed", false)

	viper.SetEnvPrefix("NEXTCODE")
	viper.AutomaticEnv()
	_ = viper.BindEnv("api_key", "NEXTCODE_API_KEY")
	_ = viper.BindEnv("base_url", "NEXTCODE_BASE_URL")
	_ = viper.BindEnv("language", "NEXTCODE_LANGUAGE")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		viper.SetConfigName("nextcode-config")
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			viper.SetConfigType("json")
			// No config file is fine; defaults, env and flags still apply
			_ = viper.ReadInConfig()
		}
	}

	for _, key := range []string{"api_key", "base_url", "language", "chat_model", "reasoner_model", "concurrency", "retry_failed"} {
		_ = viper.BindPFlag(key, cmd.Flags().Lookup(key))
	}
	return nil
}

func serve(cmd *cobra.Command) error {
	// Log startup info to stderr (stdout reserved for MCP protocol)
	log.SetOutput(os.Stderr)
	log.Printf("NextCode MCP Server v%s starting...", version)
	log.Printf("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	if err := loadConfig(cmd); err != nil {
		return err
	}

	settingsStore := settings.NewStore(settings.Settings{
		APIKey:   viper.GetString("api_key"),
		BaseURL:  viper.GetString("base_url"),
		Language: viper.GetString("language"),
	})

	scannerConfig := scanner.DefaultConfig()
	scannerConfig.RetryFailed = viper.GetBool("retry_failed")

	server := mcp.NewServer(settingsStore, mcp.Config{
		Scanner: scannerConfig,
		Annotator: annotator.Config{
			Concurrency:   viper.GetInt("concurrency"),
			ChatModel:     viper.GetString("chat_model"),
			ReasonerModel: viper.GetString("reasoner_model"),
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		log.Println("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
		server.Close()
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Println("Server stopped")
	return nil
}
