package main

import (
	"fmt"
	"sort"

	"github.com/cuemby/exadt/pkg/device"
	"github.com/cuemby/exadt/pkg/exaconf"
	"github.com/cuemby/exadt/pkg/units"
	gounits "github.com/docker/go-units"
	"github.com/spf13/cobra"
)

// autoStorage creates file devices sized from the free space and grows the
// data volume to use them.
func autoStorage(cmd *cobra.Command, conf *exaconf.EXAConf) error {
	var maxSpace int64
	if s, _ := cmd.Flags().GetString("max-space"); s != "" {
		n, err := units.ToBytes(s)
		if err != nil {
			return err
		}
		maxSpace = n
	}
	internal, _ := cmd.Flags().GetBool("internal")
	h := device.NewHandler(conf)
	if err := h.AutoCreateFileDevices(internal, maxSpace); err != nil {
		return err
	}
	for _, id := range conf.NodeIDs() {
		node, err := conf.Node(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Node %d: %v\n", id, node.Devices())
	}
	if vol, err := conf.Volume("DataVolume1"); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ DataVolume1 resized to %s\n", gounits.BytesSize(float64(vol.Size)))
	}
	return nil
}

func newCreateFileDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-file-devices NAME",
		Short: "Create sparse file devices for all nodes",
		Long: `Create sparse files as storage devices of all nodes. Without --path the
files are created in the node volumes, otherwise in PATH/<node name>.

Examples:
  exadt create-file-devices MyCluster --size "20 GiB"
  exadt create-file-devices MyCluster --size "20 GiB" --num 2 --path /mnt/storage
  exadt create-file-devices MyCluster --auto --max-space "60 GiB"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := openCluster(cmd, args[0])
			if err != nil {
				return err
			}
			if auto, _ := cmd.Flags().GetBool("auto"); auto {
				return autoStorage(cmd, conf)
			}
			path, _ := cmd.Flags().GetString("path")

			sizeStr, _ := cmd.Flags().GetString("size")
			if sizeStr == "" {
				return fmt.Errorf("--size is required without --auto")
			}
			size, err := units.ToBytes(sizeStr)
			if err != nil {
				return err
			}
			disk, _ := cmd.Flags().GetString("disk")
			num, _ := cmd.Flags().GetInt("num")
			replace, _ := cmd.Flags().GetBool("replace")

			created, deleted, err := device.NewHandler(conf).CreateFileDevices(disk, num, size, path, replace)
			if err != nil {
				return err
			}

			ids := make([]int, 0, len(created))
			for id := range created {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			for _, id := range ids {
				if len(deleted[id]) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "✓ Node %d: deleted %v\n", id, deleted[id])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Node %d: created %v (%s each)\n", id, created[id], gounits.BytesSize(float64(size)))
			}
			return nil
		},
	}
	cmd.Flags().String("disk", device.DefaultDisk, "Disk the devices are added to")
	cmd.Flags().Int("num", 1, "Number of devices per node")
	cmd.Flags().String("size", "", "Size of each device, e.g. '20 GiB'")
	cmd.Flags().String("path", "", "Directory for the devices (default: the node volumes)")
	cmd.Flags().Bool("replace", false, "Remove the existing file devices first")
	cmd.Flags().Bool("auto", false, "Size the devices from the free space and grow the data volume")
	cmd.Flags().String("max-space", "", "Upper bound for --auto, e.g. '40 GiB'")
	cmd.Flags().Bool("internal", false, "With --auto: running inside a node container, create one device below /exa")
	_ = cmd.Flags().MarkHidden("internal")
	return cmd
}
