package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/notargets/meshoctree/octree"
	"github.com/notargets/meshoctree/partitions"
	"github.com/notargets/meshoctree/surface"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print how the octree would be partitioned",
	Long: `Build the octree serially and print the partition statistics of every
strategy for the configured number of ranks`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		meshFile, _ := cmd.Flags().GetString("mesh")
		surf, err := surface.FromMeshFile(meshFile)
		if err != nil {
			return err
		}
		o, err := octree.NewCreator(surf, settings).CreateOctreeBoxes(context.Background())
		if err != nil {
			return err
		}
		conn := o.LeafConnectivity()

		fmt.Printf("leaves %d, ranks %d\n", conn.NumLeaves, settings.Parallel.Ranks)
		fmt.Printf("%-10s %6s %6s %8s %9s %9s\n", "strategy", "min", "max", "avg", "imbalance", "weighted")
		for _, strategy := range []partitions.PartitionStrategy{
			partitions.BlockPartition, partitions.RoundRobin,
			partitions.GraphPartition, partitions.SpaceFillingCurve,
		} {
			pb := &partitions.PartitionBuilder{
				Leaves:        &conn,
				NumPartitions: settings.Parallel.Ranks,
				Strategy:      strategy,
			}
			layout, err := pb.BuildPartitions()
			if err != nil {
				logrus.WithError(err).WithField("strategy", strategy.String()).Warn("partitioning failed")
				continue
			}
			st := layout.PartitionStatistics()
			fmt.Printf("%-10s %6d %6d %8.1f %9.3f %9.3f\n", strategy, st.MinLeaves, st.MaxLeaves,
				st.AvgLeaves, st.Imbalance, st.WeightImbalance)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
