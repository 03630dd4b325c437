package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// entityKinds maps the --kind values to the functions that apply a YAML
// update to an entity.
var entityKinds = map[string]func(tx *exaconf.Tx, id string, data []byte, force bool) error{
	"node": func(tx *exaconf.Tx, id string, data []byte, force bool) error {
		var upd exaconf.NodeUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetNodeConf(id, upd, force)
	},
	"volume": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		var upd exaconf.VolumeUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetVolumeConf(id, upd)
	},
	"remote-volume": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		var upd exaconf.RemoteVolumeUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetRemoteVolumeConf(id, upd)
	},
	"database": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		var upd exaconf.DatabaseUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetDatabaseConf(id, upd)
	},
	"backup": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		db, name, err := splitID(id)
		if err != nil {
			return err
		}
		var upd exaconf.BackupUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetBackupScheduleConf(db, name, upd)
	},
	"bucketfs": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		var upd exaconf.BucketFSUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetBucketFSConf(id, upd)
	},
	"bucket": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		bfs, bucket, err := splitID(id)
		if err != nil {
			return err
		}
		var upd exaconf.BucketUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetBucketConf(bfs, bucket, upd)
	},
	"user": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		var upd exaconf.UserUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetUserConf(id, upd, exaconf.UserUpdateOptions{})
	},
	"group": func(tx *exaconf.Tx, id string, data []byte, _ bool) error {
		var upd exaconf.GroupUpdate
		if err := decode(data, &upd); err != nil {
			return err
		}
		return tx.SetGroupConf(id, upd)
	},
}

func kindNames() string {
	names := make([]string, 0, len(entityKinds))
	for k := range entityKinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// decode unmarshals a YAML update and rejects unknown keys
func decode(data []byte, v any) error {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse update: %w", err)
	}
	return nil
}

// splitID splits "parent/child" IDs of nested entities
func splitID(id string) (string, string, error) {
	parent, child, ok := strings.Cut(id, "/")
	if !ok || parent == "" || child == "" {
		return "", "", fmt.Errorf("id '%s' must have the form PARENT/NAME", id)
	}
	return parent, child, nil
}

// configure applies a YAML update to one entity in a single commit
func configure(conf *exaconf.EXAConf, kind, id string, data []byte, force bool) error {
	apply, ok := entityKinds[kind]
	if !ok {
		return fmt.Errorf("unknown kind '%s' (one of %s)", kind, kindNames())
	}
	return conf.Update(func(tx *exaconf.Tx) error {
		return apply(tx, id, data, force)
	})
}

func newConfigureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure NAME --kind KIND --id ID -f FILE",
		Short: "Change or create an entity from a YAML file",
		Long: `Apply a partial update to a node, volume, database or other entity.
Only the keys present in the file are changed. A missing entity is created.
Nested entities use PARENT/NAME IDs, e.g. "DB1/weekly" for a backup
schedule or "bfsdefault/default" for a bucket. Node updates accept "_all".

Examples:
  # node.yaml: {public_net: "192.168.16.11/24"}
  exadt configure MyCluster --kind node --id 11 -f node.yaml

  # db.yaml: {mem_size: 4096, port: 8563}
  exadt configure MyCluster --kind database --id DB1 -f db.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			id, _ := cmd.Flags().GetString("id")
			file, _ := cmd.Flags().GetString("file")
			removeDisks, _ := cmd.Flags().GetBool("remove-disks")

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			if err := configure(conf, kind, id, data, removeDisks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s '%s' updated (revision %d)\n", kind, id, conf.Revision())
			return nil
		},
	}
	cmd.Flags().String("kind", "", "Entity kind: "+kindNames())
	cmd.Flags().String("id", "", "Entity ID or name")
	cmd.Flags().StringP("file", "f", "", "YAML file with the update")
	cmd.Flags().Bool("remove-disks", false, "Nodes only: remove disks missing from the update")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// remove deletes one entity in a single commit
func remove(conf *exaconf.EXAConf, kind, id string, force bool) error {
	return conf.Update(func(tx *exaconf.Tx) error {
		switch kind {
		case "node":
			nid, err := strconv.Atoi(id)
			if err != nil {
				return fmt.Errorf("invalid node ID '%s'", id)
			}
			return tx.RemoveNode(nid, force)
		case "volume":
			return tx.RemoveVolume(id, force)
		case "remote-volume":
			return tx.RemoveRemoteVolume(id)
		case "database":
			return tx.RemoveDatabase(id)
		case "backup":
			db, name, err := splitID(id)
			if err != nil {
				return err
			}
			return tx.RemoveBackupSchedule(db, name)
		case "bucketfs":
			return tx.RemoveBucketFS(id)
		case "bucket":
			bfs, bucket, err := splitID(id)
			if err != nil {
				return err
			}
			return tx.RemoveBucket(bfs, bucket)
		case "user":
			return tx.RemoveUser(id)
		case "group":
			return tx.RemoveGroup(id)
		}
		return fmt.Errorf("unknown kind '%s' (one of %s)", kind, kindNames())
	})
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove NAME --kind KIND --id ID",
		Short: "Remove an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			id, _ := cmd.Flags().GetString("id")
			force, _ := cmd.Flags().GetBool("force")

			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			if err := remove(conf, kind, id, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s '%s' removed\n", kind, id)
			return nil
		},
	}
	cmd.Flags().String("kind", "", "Entity kind: "+kindNames())
	cmd.Flags().String("id", "", "Entity ID or name")
	cmd.Flags().Bool("force", false, "Remove nodes and volumes even if they are in use")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newSetGlobalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-global NAME",
		Short: "Change global settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			err = conf.Update(func(tx *exaconf.Tx) error {
				if flags.Changed("timezone") {
					tz, _ := flags.GetString("timezone")
					if err := tx.SetTimezone(tz); err != nil {
						return err
					}
				}
				if flags.Changed("hugepages") {
					hp, _ := flags.GetString("hugepages")
					if err := tx.SetHugepages(hp); err != nil {
						return err
					}
				}
				if flags.Changed("nameservers") {
					ns, _ := flags.GetStringSlice("nameservers")
					if err := tx.SetNameServers(ns); err != nil {
						return err
					}
				}
				if flags.Changed("networks") {
					nets, _ := flags.GetStringSlice("networks")
					if err := tx.SetNetworks(nets); err != nil {
						return err
					}
				}
				if flags.Changed("image") {
					img, _ := flags.GetString("image")
					if err := tx.UpdateDockerImage(img); err != nil {
						return err
					}
				}
				if flags.Changed("privileged") {
					priv, _ := flags.GetBool("privileged")
					if err := tx.SetDockerPrivileged(priv); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Global settings updated (revision %d)\n", conf.Revision())
			return nil
		},
	}
	cmd.Flags().String("timezone", "", "System timezone, e.g. Europe/Berlin")
	cmd.Flags().String("hugepages", "", "Hugepages: 0, host, auto or a number")
	cmd.Flags().StringSlice("nameservers", nil, "Name servers")
	cmd.Flags().StringSlice("networks", nil, "Networks: private and optionally public")
	cmd.Flags().String("image", "", "Container image")
	cmd.Flags().Bool("privileged", true, "Run privileged containers")
	return cmd
}
