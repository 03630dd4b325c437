package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/volume"
	"github.com/spf13/cobra"
)

func newCreateClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-cluster NAME ROOT",
		Short: "Register a new cluster with its root directory",
		Long: `Register a new cluster. The root directory holds the EXAConf and the
node volumes. It is created if it does not exist.

Examples:
  exadt create-cluster MyCluster /var/lib/exadt/MyCluster
  exadt init-cluster MyCluster --image exasol/docker-db:latest --num-nodes 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, root := args[0], args[1]
			if err := os.MkdirAll(root, 0750); err != nil {
				return fmt.Errorf("failed to create root directory: %w", err)
			}
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()

			c, err := reg.CreateCluster(name, root)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cluster '%s' created in %s\n", c.Name, c.Root)
			return nil
		},
	}
	return cmd
}

func newDeleteClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-cluster NAME",
		Short: "Unregister a cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			purge, _ := cmd.Flags().GetBool("purge")

			if purge {
				conf, err := openCluster(cmd, name)
				if err != nil {
					return err
				}
				root, err := conf.DockerRootDir()
				if err != nil {
					return err
				}
				driver, err := volume.NewLocalDriver(root)
				if err != nil {
					return err
				}
				if err := driver.DeleteNodeVolumes(conf); err != nil {
					return err
				}
				if err := os.Remove(conf.Path()); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("failed to remove %s: %w", conf.Path(), err)
				}
			}

			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()
			if err := reg.DeleteCluster(name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cluster '%s' deleted\n", name)
			return nil
		},
	}
	cmd.Flags().Bool("purge", false, "Also remove the node volumes and the EXAConf")
	return cmd
}

func newListClustersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-clusters",
		Short: "List the registered clusters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry(cmd)
			if err != nil {
				return err
			}
			defer reg.Close()
			clusters, err := reg.ListClusters()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tROOT\tINITIALIZED\tCREATED")
			for _, c := range clusters {
				initialized := "no"
				if _, err := os.Stat(filepath.Join(c.Root, exaconf.DefaultFilename)); err == nil {
					initialized = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Root, initialized, c.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func newInitClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-cluster NAME",
		Short: "Create the EXAConf of a registered cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			root, err := clusterRoot(cmd, name)
			if err != nil {
				return err
			}
			conf, err := exaconf.Open(root)
			if err != nil {
				return err
			}

			opts := exaconf.InitOptions{ClusterName: name}
			opts.Platform, _ = cmd.Flags().GetString("platform")
			opts.Image, _ = cmd.Flags().GetString("image")
			opts.DeviceType, _ = cmd.Flags().GetString("device-type")
			opts.NumNodes, _ = cmd.Flags().GetInt("num-nodes")
			opts.License, _ = cmd.Flags().GetString("license")
			opts.AddArchiveVolume, _ = cmd.Flags().GetBool("add-archive-volume")
			opts.Force, _ = cmd.Flags().GetBool("force")
			opts.TemplateMode, _ = cmd.Flags().GetBool("template")
			opts.DBVersion, _ = cmd.Flags().GetString("db-version")
			opts.OSVersion, _ = cmd.Flags().GetString("os-version")
			if owner, _ := cmd.Flags().GetString("owner"); owner != "" {
				o, err := exaconf.ParseOwner(owner)
				if err != nil {
					return err
				}
				opts.DefaultOwner = &o
			}

			if err := conf.Initialize(opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Cluster '%s' initialized with %d node(s) (%s)\n",
				name, conf.NumNodes(), conf.Path())

			if auto, _ := cmd.Flags().GetBool("auto-storage"); auto {
				return autoStorage(cmd, conf)
			}
			return nil
		},
	}
	cmd.Flags().String("platform", "Docker", "Platform (Docker or VM)")
	cmd.Flags().String("image", "", "Container image of the nodes")
	cmd.Flags().String("device-type", exaconf.DefaultDeviceType, "Storage device type (block or file)")
	cmd.Flags().Int("num-nodes", 1, "Number of nodes")
	cmd.Flags().String("license", "", "License file")
	cmd.Flags().Bool("add-archive-volume", false, "Add an archive volume")
	cmd.Flags().Bool("force", false, "Overwrite an existing EXAConf")
	cmd.Flags().Bool("template", false, "Create a template with one device per node")
	cmd.Flags().String("db-version", "", "Database version (default: the built-in one)")
	cmd.Flags().String("os-version", "", "OS version (default: the built-in one)")
	cmd.Flags().String("owner", "", "Owner of the default entities as UID:GID (default: the current user)")
	cmd.Flags().Bool("auto-storage", false, "Create file devices in the node volumes and size the data volume")
	cmd.Flags().String("max-space", "", "Upper bound for --auto-storage, e.g. '40 GiB'")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check NAME",
		Short: "Check integrity and consistency of the EXAConf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			if err := conf.CheckIntegrity(); err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}
			if ok, mod, img := conf.CheckImageCompat(); !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: EXAConf was written for image version %s, this is %s\n", img, mod)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ EXAConf of '%s' is valid (revision %d)\n", args[0], conf.Revision())
			return nil
		},
	}
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-exaconf NAME",
		Short: "Migrate the EXAConf to the current format version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			from := conf.FileVersion()
			if err := conf.UpdateSelf(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ EXAConf updated from version %s to %s\n", from, conf.FileVersion())
			return nil
		},
	}
}

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge NAME FILE...",
		Short: "Merge other copies of the EXAConf into the cluster",
		Long: `Merge takes over the copy with the highest revision and the node UUIDs
of all copies, e.g. the EXAConf files from the node volumes.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			var others []*exaconf.EXAConf
			for _, file := range args[1:] {
				other, err := exaconf.Open(filepath.Dir(file), exaconf.WithFilename(filepath.Base(file)), exaconf.RequireInitialized())
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", file, err)
				}
				others = append(others, other)
			}
			allowSelf, _ := cmd.Flags().GetBool("allow-self")
			force, _ := cmd.Flags().GetBool("force")
			if err := conf.Merge(others, allowSelf, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Merged %d cop(ies), revision is now %d\n", len(others), conf.Revision())
			return nil
		},
	}
	cmd.Flags().Bool("allow-self", false, "Keep the own copy if no other one is newer")
	cmd.Flags().Bool("force", false, "Always take one of the other copies")
	return cmd
}
