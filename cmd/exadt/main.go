package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/log"
	"github.com/cuemby/exadt/pkg/metrics"
	"github.com/cuemby/exadt/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const defaultContainerdSocket = "/run/containerd/containerd.sock"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()

	if path, _ := root.PersistentFlags().GetString("metrics-file"); path != "" {
		if merr := metrics.WriteTextfile(path); merr != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", merr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", describe(err))
		os.Exit(1)
	}
}

// describe turns EXAConf errors into a one-line diagnostic
func describe(err error) error {
	var integrity *exaconf.IntegrityError
	var conflict *exaconf.MergeConflictError
	var migration *exaconf.MigrationError
	switch {
	case errors.As(err, &integrity):
		return fmt.Errorf("EXAConf integrity check failed (file was modified manually?): %w", err)
	case errors.As(err, &conflict):
		return fmt.Errorf("EXAConf copies can't be merged: %w", err)
	case errors.As(err, &migration):
		return fmt.Errorf("EXAConf can't be migrated: %w", err)
	}
	return err
}

func defaultRegistry() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".exadt", "registry.db")
	}
	return filepath.Join(home, ".exadt", "registry.db")
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exadt",
		Short: "exadt - manage EXAConf clusters of containers",
		Long: `exadt creates and configures EXAConf based database clusters and runs
their nodes as containers on the local host.

A cluster is registered under a name together with the root directory
that holds its EXAConf and the node volumes.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			jsonOut, _ := cmd.Flags().GetBool("log-json")
			log.Init(log.Config{
				Level:      log.ParseLevel(level),
				JSONOutput: jsonOut,
			})
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf(
		"exadt version %s\nCommit: %s\nBuilt: %s\nEXAConf: %s\n",
		Version, Commit, BuildTime, exaconf.Version,
	))

	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Bool("log-json", false, "Log in JSON format")
	cmd.PersistentFlags().String("registry", defaultRegistry(), "Cluster registry file")
	cmd.PersistentFlags().String("metrics-file", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newCreateClusterCmd(),
		newDeleteClusterCmd(),
		newListClustersCmd(),
		newInitClusterCmd(),
		newInfoCmd(),
		newCheckCmd(),
		newUpdateCmd(),
		newMergeCmd(),
		newConfigureCmd(),
		newRemoveCmd(),
		newSetGlobalCmd(),
		newCreateFileDevicesCmd(),
		newStartClusterCmd(),
		newStopClusterCmd(),
		newDatabaseCmd("start-db", "Start a database (or all)"),
		newDatabaseCmd("stop-db", "Stop a database (or all)"),
		newDatabaseCmd("kill-db", "Force a database (or all) to stop"),
		newListDatabasesCmd(),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "exadt %s (commit %s, built %s), EXAConf %s\n",
				Version, Commit, BuildTime, exaconf.Version)
		},
	}
}

func openRegistry(cmd *cobra.Command) (*storage.BoltStore, error) {
	path, _ := cmd.Flags().GetString("registry")
	return storage.NewBoltStore(path)
}

// clusterRoot looks up the root directory of a registered cluster
func clusterRoot(cmd *cobra.Command, name string) (string, error) {
	reg, err := openRegistry(cmd)
	if err != nil {
		return "", err
	}
	defer reg.Close()
	c, err := reg.GetCluster(name)
	if err != nil {
		return "", err
	}
	return c.Root, nil
}

// openCluster opens the initialized EXAConf of a registered cluster
func openCluster(cmd *cobra.Command, name string) (*exaconf.EXAConf, error) {
	root, err := clusterRoot(cmd, name)
	if err != nil {
		return nil, err
	}
	return exaconf.Open(root, exaconf.RequireInitialized())
}
