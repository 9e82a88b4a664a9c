package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/memorialmap/internal/region"
)

var searchCmd = &cobra.Command{
	Use:   "search KEYWORD",
	Short: "Resolve a region name to its centre and zoom",
	Long: `Resolve a district (시군구) or sub-district (읍면동) name against the
loaded boundary datasets and print the map centre and zoom level for it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().Bool("json", false, "Print the match as JSON")

	if err := viper.BindPFlag("search.json", searchCmd.Flags().Lookup("json")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	regions, _, err := loadRegions(cmd.Context())
	if err != nil {
		return err
	}

	keyword := strings.Join(args, " ")
	m, err := regions.Search(keyword)
	if errors.Is(err, region.ErrNoMatch) {
		return fmt.Errorf("no region matches %q", keyword)
	}
	if err != nil {
		return err
	}
	return printMatch(cmd.OutOrStdout(), m, viper.GetBool("search.json"))
}

func printMatch(w io.Writer, m region.Match, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	_, err := fmt.Fprintf(w, "%s (%s, %d boundaries)\n  center: %.6f, %.6f\n  zoom:   %d\n",
		m.Name, m.Type, m.Features, m.Lat, m.Lng, m.Zoom)
	return err
}
