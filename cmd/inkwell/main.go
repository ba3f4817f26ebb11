package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/inkwell/ai/observability/logging"
	"github.com/hrygo/inkwell/internal/profile"
	"github.com/hrygo/inkwell/internal/version"
	"github.com/hrygo/inkwell/plugin/content/memstore"
	"github.com/hrygo/inkwell/server"
	"github.com/hrygo/inkwell/store"
	"github.com/hrygo/inkwell/store/db"
)

var (
	rootCmd = &cobra.Command{
		Use:   "inkwell",
		Short: `A writing assistant that reads your project and proposes reviewable edits.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !isRunningAsSystemdService() {
				_ = godotenv.Load()
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			instanceProfile := &profile.Profile{
				Mode:            viper.GetString("mode"),
				Addr:            viper.GetString("addr"),
				Port:            viper.GetInt("port"),
				Data:            viper.GetString("data"),
				Driver:          viper.GetString("driver"),
				DSN:             viper.GetString("dsn"),
				AssistantConfig: viper.GetString("assistant-config"),
				LogLevel:        viper.GetString("log-level"),
				LogFormat:       viper.GetString("log-format"),
				Version:         version.GetCurrentVersion(viper.GetString("mode")),
			}
			instanceProfile.FromEnv()
			if err := instanceProfile.Validate(); err != nil {
				return err
			}
			logging.Setup(instanceProfile.LogLevel, instanceProfile.LogFormat)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			dbDriver, err := db.NewDBDriver(instanceProfile)
			if err != nil {
				slog.Error("failed to create db driver", "error", err)
				return err
			}
			storeInstance := store.New(dbDriver, instanceProfile)
			if err := storeInstance.Migrate(ctx); err != nil {
				slog.Error("failed to migrate", "error", err)
				return err
			}

			contentStore := memstore.New()
			if instanceProfile.IsDemo() {
				memstore.SeedDemo(contentStore)
			}

			s, err := server.NewServer(ctx, instanceProfile, storeInstance, contentStore)
			if err != nil {
				slog.Error("failed to create server", "error", err)
				return err
			}

			c := make(chan os.Signal, 1)
			signal.Notify(c, terminationSignals...)

			if err := s.Start(ctx); err != nil {
				slog.Error("failed to start server", "error", err)
				return err
			}
			printGreetings(instanceProfile)

			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			<-ctx.Done()
			return nil
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 28090)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 28090, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver (sqlite, postgres)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("assistant-config", "", "path of the assistant YAML config")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn", "assistant-config", "log-level", "log-format"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("inkwell")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("Inkwell %s started successfully!\n", profile.Version)
	if profile.IsDev() && profile.DSN != "" {
		fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
	}
	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if !profile.IsAIEnabled() {
		fmt.Fprintln(os.Stderr, "AI is disabled: set INKWELL_LLM_API_KEY to enable chat")
	}

	host := profile.Addr
	if host == "" {
		host = "localhost"
	}
	fmt.Printf("Server running at: http://%s:%d\n", host, profile.Port)
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
