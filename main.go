package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cluster-portal/pkg/config"
	"cluster-portal/pkg/kube"
	"cluster-portal/pkg/log"
	"cluster-portal/pkg/mockapi"
	"cluster-portal/pkg/portal"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cluster-portal",
	Short: "Cluster management portal",
	Long: `cluster-portal is a terminal client for the cluster-management API.

Sign in, pick a cluster and browse its alerts, logs, networks, components
and mail settings. Without a subcommand the interactive shell starts.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runShell,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"cluster-portal version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	importCmd.Flags().StringSlice("context", nil, "only import these kubeconfig contexts")
	importCmd.Flags().Bool("no-probe", false, "register clusters without contacting them")
	importCmd.Flags().String("username", "", "API username (defaults to the configured mock user)")
	importCmd.Flags().String("password", "", "API password (defaults to the configured mock password)")
	kubeconfigCmd.AddCommand(importCmd)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(mockAPICmd)
	rootCmd.AddCommand(kubeconfigCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	log.Init(log.Config{Level: c.Log.Level, JSONOutput: c.Log.JSON})
	cfg = c
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cluster-portal version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start the interactive shell",
	RunE:  runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := portal.New(cfg, portal.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	defer p.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s, type help for commands.\n", cfg.API.BaseURL)
	return p.Run(ctx, cmd.InOrStdin())
}

var mockAPICmd = &cobra.Command{
	Use:   "mock-api",
	Short: "Serve the development API with seeded fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		gin.SetMode(gin.ReleaseMode)
		s, err := mockapi.New(cfg)
		if err != nil {
			return err
		}
		return s.Run()
	},
}

var kubeconfigCmd = &cobra.Command{
	Use:   "kubeconfig",
	Short: "Work with kubeconfig files",
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Register every context of a kubeconfig file as a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contexts, _ := cmd.Flags().GetStringSlice("context")
		noProbe, _ := cmd.Flags().GetBool("no-probe")
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if username == "" {
			username = cfg.Mock.Username
		}
		if password == "" {
			password = cfg.Mock.Password
		}

		candidates, err := kube.LoadCandidates(args[0], contexts...)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return fmt.Errorf("%s has no contexts", args[0])
		}

		ctx, cancel := signalContext()
		defer cancel()

		results, err := portal.ImportClusters(ctx, cfg, username, password, candidates, !noProbe)
		if err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}

		return writeImportResults(cmd.OutOrStdout(), results)
	},
}

// writeImportResults prints results as YAML and fails if any import failed
func writeImportResults(w io.Writer, results []portal.ImportResult) error {
	out, err := yaml.Marshal(results)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			return errors.New("some contexts were not imported")
		}
	}
	return nil
}
