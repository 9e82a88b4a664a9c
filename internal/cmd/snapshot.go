package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/memorialmap/internal/engine"
	"github.com/MeKo-Tech/memorialmap/internal/mapview"
	"github.com/MeKo-Tech/memorialmap/internal/region"
	"github.com/MeKo-Tech/memorialmap/internal/snapshot"
	"github.com/MeKo-Tech/memorialmap/internal/types"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Render one viewport of the facility map to a PNG file",
	RunE:  runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)

	snapshotCmd.Flags().StringP("output", "o", "snapshot.png", "Output PNG path")
	snapshotCmd.Flags().String("center", "", "Viewport centre as lat,lng (default: centre of Korea)")
	snapshotCmd.Flags().IntP("zoom", "z", mapview.DefaultZoom, "Zoom level")
	snapshotCmd.Flags().Int("width", 1024, "Width in pixels")
	snapshotCmd.Flags().Int("height", 768, "Height in pixels")
	snapshotCmd.Flags().Float64("scale", 1, "Output scale factor")
	snapshotCmd.Flags().String("region", "", "Search this region, move to it and highlight it")
	snapshotCmd.Flags().StringSlice("categories", nil, "Only draw these facility categories")
	snapshotCmd.Flags().Bool("cluster", true, "Cluster markers below the clustering zoom")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"snapshot.output", "output"},
		{"snapshot.center", "center"},
		{"snapshot.zoom", "zoom"},
		{"snapshot.width", "width"},
		{"snapshot.height", "height"},
		{"snapshot.scale", "scale"},
		{"snapshot.region", "region"},
		{"snapshot.categories", "categories"},
		{"snapshot.cluster", "cluster"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, snapshotCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}
	ctx := cmd.Context()

	center := mapview.DefaultCenter
	if s := viper.GetString("snapshot.center"); s != "" {
		c, err := parseLatLng(s)
		if err != nil {
			return err
		}
		center = c
	}

	facilities, _, err := loadFacilities(ctx, viper.GetString("store"), viper.GetStringSlice("snapshot.categories"))
	if err != nil {
		return err
	}
	regions, _, err := loadRegions(ctx)
	if err != nil {
		return err
	}

	cfg := engine.DefaultConfig()
	cfg.Logger = logger
	if !viper.GetBool("snapshot.cluster") {
		cfg.Clustering.Clusterer = nil
		cfg.Clustering.MaxZoom = 0
	}

	canvas := mapview.NewCanvas(viper.GetInt("snapshot.width"), viper.GetInt("snapshot.height"), center, viper.GetInt("snapshot.zoom"))
	canvas.MarkReady()

	opts := snapshot.DefaultOptions()
	opts.Scale = viper.GetFloat64("snapshot.scale")

	path := viper.GetString("snapshot.output")
	if err := renderSnapshot(ctx, canvas, regions, cfg, facilities, viper.GetString("snapshot.region"), path, opts); err != nil {
		return err
	}

	logger.Info("Snapshot written", "output", path, "facilities", len(facilities), "zoom", canvas.Zoom())
	return nil
}

// renderSnapshot draws facilities on canvas, optionally moving to and
// highlighting a region first, and writes the PNG to path. The full list is
// drawn, not just the initial render cap.
func renderSnapshot(ctx context.Context, canvas *mapview.Canvas, regions *region.Store, cfg engine.Config,
	facilities []types.Facility, regionQuery, path string, opts snapshot.Options,
) error {
	cfg.InitialRenderCap = max(len(facilities), 1)
	cfg.WidenDelay = time.Hour

	e := engine.New(regions, cfg)
	defer e.Close()

	if err := e.SetFacilities(facilities); err != nil {
		return err
	}
	if err := e.Attach(ctx, canvas); err != nil {
		return err
	}

	if regionQuery != "" {
		cmds := e.Commands()
		m, err := cmds.SearchRegion(regionQuery)
		if errors.Is(err, region.ErrNoMatch) {
			return fmt.Errorf("no region matches %q", regionQuery)
		}
		if err != nil {
			return err
		}
		if err := cmds.PanTo(m.Lat, m.Lng, &m.Zoom); err != nil {
			return err
		}
		if _, err := cmds.HighlightRegion(m.Lat, m.Lng, m.Zoom, m.Type, m.Name); err != nil {
			return err
		}
	}
	if err := e.Idle(); err != nil {
		return err
	}

	width, height := canvas.Size()
	scene, err := snapshot.Capture(e, width, height)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := snapshot.WritePNG(f, scene, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
