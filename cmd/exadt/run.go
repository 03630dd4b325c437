package main

import (
	"fmt"
	"time"

	"github.com/cuemby/exadt/pkg/cluster"
	"github.com/cuemby/exadt/pkg/rpc"
	"github.com/cuemby/exadt/pkg/runtime"
	"github.com/spf13/cobra"
)

func addRuntimeFlags(cmd *cobra.Command) {
	cmd.Flags().String("containerd-socket", defaultContainerdSocket, "containerd socket")
}

func connectRuntime(cmd *cobra.Command) (*runtime.ContainerdRuntime, error) {
	socket, _ := cmd.Flags().GetString("containerd-socket")
	return runtime.NewContainerdRuntime(socket)
}

func newStartClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-cluster NAME",
		Short: "Start the node containers of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			rt, err := connectRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := cluster.StartOptions{}
			opts.Cmd, _ = cmd.Flags().GetStringSlice("cmd")
			opts.Wait, _ = cmd.Flags().GetBool("wait")
			opts.WaitTimeout, _ = cmd.Flags().GetDuration("wait-timeout")

			fmt.Fprintf(cmd.OutOrStdout(), "Starting cluster '%s' with %d node(s)...\n", args[0], conf.NumNodes())
			if err := cluster.NewOrchestrator(conf, rt, nil).Start(cmd.Context(), opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cluster '%s' started\n", args[0])
			return nil
		},
	}
	addRuntimeFlags(cmd)
	cmd.Flags().StringSlice("cmd", nil, "Command replacing the node init process")
	cmd.Flags().Bool("wait", false, "Wait until the nodes and the database daemon are up")
	cmd.Flags().Duration("wait-timeout", 10*time.Minute, "Maximum time for --wait")
	return cmd
}

func newStopClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop-cluster NAME",
		Short: "Stop and remove the node containers of a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			rt, err := connectRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			timeout, _ := cmd.Flags().GetDuration("timeout")
			if err := cluster.NewOrchestrator(conf, rt, nil).Stop(cmd.Context(), timeout); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cluster '%s' stopped\n", args[0])
			return nil
		},
	}
	addRuntimeFlags(cmd)
	cmd.Flags().Duration("timeout", cluster.DefaultStopTimeout, "Time to wait before killing the containers")
	return cmd
}

// newDatabaseCmd creates start-db, stop-db and kill-db
func newDatabaseCmd(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			rt, err := connectRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			db, _ := cmd.Flags().GetString("database")
			h := rpc.NewHandler(conf, rt)
			var ok bool
			switch use {
			case "start-db":
				ok, err = h.StartDatabase(cmd.Context(), db)
			case "stop-db":
				ok, err = h.StopDatabase(cmd.Context(), db)
			default:
				ok, err = h.KillDatabase(cmd.Context(), db)
			}
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no database '%s' in cluster '%s'", db, args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s done\n", use, db)
			return nil
		},
	}
	addRuntimeFlags(cmd)
	cmd.Flags().String("database", rpc.AllDatabases, "Database name or 'all'")
	return cmd
}

func newListDatabasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-dbs NAME",
		Short: "List the databases of a running cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			rt, err := connectRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			short, _ := cmd.Flags().GetBool("short")
			out, err := rpc.NewHandler(conf, rt).ListDatabases(cmd.Context(), short)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
	addRuntimeFlags(cmd)
	cmd.Flags().Bool("short", false, "Only print the names")
	return cmd
}
