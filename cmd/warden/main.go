package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/warden/pkg/credential"
	"github.com/cuemby/warden/pkg/log"
	"github.com/cuemby/warden/pkg/metrics"
	"github.com/cuemby/warden/pkg/server"
	"github.com/cuemby/warden/pkg/types"
	"github.com/cuemby/warden/pkg/value"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: "Warden - Identity management directory server",
	Long: `Warden is an identity management server: it authenticates humans
and machine accounts, stores their credentials and group memberships,
and issues sessions and API tokens, backed by a transactional,
schema-validated entry store.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Warden version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Global flags
	rootCmd.PersistentFlags().String("config", "/etc/warden/server.yaml", "Path to server configuration")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(recoverAccountCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return server.LoadConfig(path)
}

// Server commands
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the directory server",
}

var serverRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the directory server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if err := metrics.Register(); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}

		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer srv.Close()

		if cfg.MetricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
					log.Errorf("metrics listener failed", err)
				}
			}()
			log.Info(fmt.Sprintf("metrics available at http://%s/metrics", cfg.MetricsAddr))
		}

		// Block until signalled. The network front-ends attach to the
		// server handle from their own processes.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down")
		return nil
	},
}

var serverBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Provision the database and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer srv.Close()
		fmt.Printf("Database provisioned for domain %s (server %s)\n", srv.DomainName(), srv.ServerID())
		return nil
	},
}

// Database commands
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect the entry database",
}

var dbDumpEntryCmd = &cobra.Command{
	Use:   "dump-entry <uuid|name>",
	Short: "Print one entry in its stored form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer srv.Close()

		rt, err := srv.Read()
		if err != nil {
			return err
		}
		defer rt.End()

		filter := types.Eq(types.AttrName, args[0])
		if u, err := uuid.Parse(args[0]); err == nil {
			filter = types.Eq(types.AttrUUID, u.String())
		}

		hits, err := rt.Search(&server.SearchEvent{
			Ident:         types.InternalIdentity(),
			Filter:        filter,
			IncludeMasked: true,
		})
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			return fmt.Errorf("no entry matches %q", args[0])
		}
		for _, e := range hits {
			data, err := json.MarshalIndent(e, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
		}
		return nil
	},
}

// recover-account resets an account's primary credential to a generated
// password printed once.
var recoverAccountCmd = &cobra.Command{
	Use:   "recover-account <name>",
	Short: "Reset an account's primary credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		srv, err := server.New(cfg)
		if err != nil {
			return err
		}
		defer srv.Close()

		generated := uuid.New().String()
		cred, err := credential.NewGeneratedPasswordCred(generated)
		if err != nil {
			return err
		}

		wt, err := srv.Write()
		if err != nil {
			return err
		}
		err = wt.InternalModify(
			types.And(
				types.Eq(types.AttrClass, string(types.ClassAccount)),
				types.Eq(types.AttrName, args[0]),
			),
			server.Mod{
				Op:   server.ModSet,
				Attr: types.AttrPrimaryCredential,
				Set:  value.NewCredential(credential.Tagged{Tag: "primary", Cred: cred}),
			},
		)
		if err != nil {
			wt.Abort()
			return err
		}
		if err := wt.Commit(); err != nil {
			return err
		}

		fmt.Printf("Account %s reset. Generated password: %s\n", args[0], generated)
		return nil
	},
}

func init() {
	serverCmd.AddCommand(serverRunCmd)
	serverCmd.AddCommand(serverBootstrapCmd)
	dbCmd.AddCommand(dbDumpEntryCmd)
}
