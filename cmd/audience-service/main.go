package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "audience/cmd/audience-service/docs"
	"audience/internal/audience"
	"audience/internal/config"
	"audience/internal/constants"
	"audience/internal/logger"
	"audience/pkg/logging"
)

var (
	configFile string
)

// @title           Audience Service API
// @version         1.0
// @description     Calculates the size of a customer audience described by segmentation rules

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   constants.ServiceName,
		Short: "Audience size service",
		Long:  "Audience Service counts the customers matching an ordered list of segmentation rules",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required for serve)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(compileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the audience service",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			if configFile == "" {
				configFile = os.Getenv("CONFIG_FILE")
				if configFile == "" {
					earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
					return fmt.Errorf("config file is required")
				}
			}

			cfg, err := config.Load(configFile)
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				earlyLog.Error("Failed to init logger: %v", err)
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ctx = logging.WithServiceName(ctx, constants.ServiceName)
			log.InfowCtx(ctx, "Starting Audience Service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx); err != nil {
				log.ErrorwCtx(ctx, "Failed to initialize application", "error", err)
				_ = app.Shutdown(context.Background())
				return err
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func compileCmd() *cobra.Command {
	var (
		rulesFile string
		policy    string
	)

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Print the MongoDB filter a rule set compiles to",
		Long: "Reads rules as a JSON array, or an object with a \"rules\" key, from --rules or stdin " +
			"and prints the compiled filter as relaxed extended JSON. The store is not queried.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if rulesFile != "" && rulesFile != "-" {
				f, err := os.Open(rulesFile)
				if err != nil {
					return fmt.Errorf("failed to open rules file: %w", err)
				}
				defer f.Close()
				in = f
			}

			out, err := compileRules(cmd.Context(), in, policy)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "-", "Path to a rules JSON file, - for stdin")
	cmd.Flags().StringVar(&policy, "policy", constants.CombinePolicyLegacy, "Combine policy: legacy or grouped")

	return cmd
}

func compileRules(ctx context.Context, in io.Reader, policy string) ([]byte, error) {
	var payload interface{}
	if err := json.NewDecoder(in).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	if obj, ok := payload.(map[string]interface{}); ok {
		payload = obj["rules"]
	}

	combiner, err := audience.NewCombiner(policy)
	if err != nil {
		return nil, err
	}

	svc := audience.NewService(nil, logger.NopLogger(), audience.WithCombiner(combiner))
	comp, err := svc.Compile(ctx, payload)
	if err != nil {
		return nil, err
	}

	return audience.ExtJSON(comp.Filter)
}
