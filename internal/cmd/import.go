package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/memorialmap/internal/store"
	"github.com/MeKo-Tech/memorialmap/internal/worker"
)

var importCmd = &cobra.Command{
	Use:   "import FILE...",
	Short: "Import facility JSON files into the facility store",
	Long: `Import facility records from JSON files into the SQLite facility store.

Each file holds either an array of facilities or an object with a
"facilities" array. Records are upserted by id; re-importing a facility keeps
its position in the list. Each file is imported as a whole: a file with an
invalid record, or one that fails to store, leaves no records behind.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("name", "memorialmap", "Dataset name")
	importCmd.Flags().String("description", "", "Dataset description")
	importCmd.Flags().String("version", "1.0", "Dataset version")
	importCmd.Flags().IntP("workers", "w", 0, "Number of parallel file readers (default: number of CPUs)")
	importCmd.Flags().Bool("progress", true, "Show progress bar")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"import.name", "name"},
		{"import.description", "description"},
		{"import.version", "version"},
		{"import.workers", "workers"},
		{"import.progress", "progress"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, importCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storePath := viper.GetString("store")
	workers := viper.GetInt("import.workers")
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	w, err := store.New(storePath, store.Metadata{
		Name:        viper.GetString("import.name"),
		Description: viper.GetString("import.description"),
		Version:     viper.GetString("import.version"),
		Source:      args[0],
	})
	if err != nil {
		return fmt.Errorf("failed to create facility store: %w", err)
	}

	written, failed, err := importFiles(ctx, w, args, workers, viper.GetBool("import.progress"))
	if cerr := w.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close facility store: %w", cerr)
	}
	if err != nil {
		return err
	}

	logger.Info("Import complete", "store", storePath, "facilities", written, "failed_files", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to import", failed, len(args))
	}
	return nil
}

// importFiles reads files concurrently and writes their facilities to w.
func importFiles(ctx context.Context, w *store.Writer, files []string, workers int, showProgress bool) (written, failed int, err error) {
	tasks := make([]worker.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, worker.Task{Name: f, Source: f})
	}

	progress := worker.NewProgress(len(tasks), "files", "facilities", showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		OnProgress: progress.Observe,
		Handler: worker.HandlerFunc(func(ctx context.Context, task worker.Task) (int, error) {
			facilities, err := store.ReadJSONFile(task.Source)
			if err != nil {
				return 0, err
			}
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			if err := w.WriteAll(facilities); err != nil {
				return 0, err
			}
			return len(facilities), nil
		}),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()
	logger.Info(progress.Summary())

	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Error("Failed to import file", "file", r.Task.Source, "error", r.Err)
			continue
		}
		written += r.Count
	}

	if err := w.Flush(); err != nil {
		return written, failed, fmt.Errorf("failed to flush facilities: %w", err)
	}
	return written, failed, ctx.Err()
}
