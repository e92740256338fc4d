package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/notargets/meshoctree/integration"
	"github.com/notargets/meshoctree/octree"
	"github.com/notargets/meshoctree/surface"
)

// buildCmd represents the build command
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the octree over a surface mesh",
	Long: `Build the octree over the boundary of a surface mesh, refine it around the
surface, classify its leaves and print a summary`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		meshFile, _ := cmd.Flags().GetString("mesh")
		if meshFile == "" {
			return errors.New("--mesh is required")
		}
		if out, _ := cmd.Flags().GetString("json"); out != "" {
			settings.Export.JSON = out
		}

		surf, err := surface.FromMeshFile(meshFile)
		if err != nil {
			return err
		}
		log := logrus.StandardLogger().WithField("mesh", filepath.Base(meshFile))
		log.WithField("triangles", surf.NumberOfTriangles()).
			WithField("edges", surf.NumberOfEdges()).Info("read surface")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		trees, err := integration.Build(ctx, surf, settings, log)
		if err != nil {
			return err
		}

		printSummary(integration.Summarize(trees))
		if settings.Export.JSON != "" {
			return writeJSON(settings.Export.JSON, trees)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().StringP("json", "j", "", "write the leaves as JSON, one file per rank when distributed")
}

func printSummary(s integration.Summary) {
	fmt.Printf("ranks %d, leaves %d\n", s.Ranks, s.Leaves)
	for _, t := range s.Types() {
		fmt.Printf("  %-8s %d\n", t, s.ByType[t])
	}
	if s.Ranks > 1 {
		for r := range s.PerRank {
			fmt.Printf("  rank %d owns %d, halo %d\n", r, s.PerRank[r], s.Halo[r])
		}
	}
}

// writeJSON writes one file per tree, suffixed with the rank when there are
// several
func writeJSON(path string, trees []*octree.Octree) error {
	for r, o := range trees {
		name := path
		if len(trees) > 1 {
			ext := filepath.Ext(path)
			name = fmt.Sprintf("%s.rank%d%s", strings.TrimSuffix(path, ext), r, ext)
		}
		f, err := os.Create(name)
		if err != nil {
			return errors.Wrap(err, "creating json export")
		}
		if err := o.WriteJSON(f); err != nil {
			f.Close()
			return errors.Wrap(err, name)
		}
		if err := f.Close(); err != nil {
			return errors.Wrap(err, name)
		}
		logrus.WithField("file", name).Info("wrote leaves")
	}
	return nil
}
