package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/memorialmap/internal/datasource"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "memorialmap",
	Short: "Map marker engine for burial and memorial facilities",
	Long: `MemorialMap places burial and memorial facilities on a map.

It de-overlaps facilities sharing coordinates, renders only the markers inside
the viewport, clusters them at low zoom and highlights administrative regions
(시군구, 읍면동) from boundary datasets.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("store", "facilities.db", "Facility store (SQLite) path")
	rootCmd.PersistentFlags().String("districts", "", "District (시군구) boundary GeoJSON: URL or file path")
	rootCmd.PersistentFlags().String("subdistricts", "", "Sub-district (읍면동) boundary GeoJSON: URL or file path")
	rootCmd.PersistentFlags().String("overpass-bbox", "", "Fetch missing boundary levels from Overpass for minLon,minLat,maxLon,maxLat")
	rootCmd.PersistentFlags().String("overpass-endpoint", datasource.DefaultEndpoint, "Overpass API endpoint")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	for _, name := range []string{"store", "districts", "subdistricts", "overpass-bbox", "overpass-endpoint", "verbose", "log-format"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
}

func initConfig() {
	_ = godotenv.Load(".env")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("MEMORIALMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
