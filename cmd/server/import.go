package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/sheria-labs/registries/pkg/importer"
	"github.com/sheria-labs/registries/pkg/kit"
	"github.com/sheria-labs/registries/pkg/schema"
	"github.com/sheria-labs/registries/pkg/store"
)

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	registryID := fs.String("registry", "", "registry ID (e.g. marriages, trustees)")
	dbPath := fs.String("db", "registries.db", "path to the registry database")
	schemasDir := fs.String("schemas-dir", "", "optional schema override directory")
	charset := fs.String("charset", "", "source charset when not UTF-8 (e.g. windows-1252)")
	verbose := fs.Bool("v", false, "log progress while importing")
	fs.Parse(args)

	reg := schema.NewRegistry(*schemasDir)
	if err := reg.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur chargement schemas: %v\n", err)
		os.Exit(1)
	}

	if *registryID == "" || fs.NArg() == 0 {
		fmt.Println("Registres disponibles :")
		fmt.Println()
		for _, d := range reg.All() {
			fmt.Printf("  %-12s  %s (key: %s)\n", d.ID, d.Title, d.Key.Field)
		}
		fmt.Println()
		fmt.Println("Usage :")
		fmt.Println("  registries import --registry <id> [--db <path>] <file.csv> [more.csv ...]")
		return
	}

	desc, err := reg.Get(*registryID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Erreur ouverture base: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	if err := st.EnsureRegistry(desc); err != nil {
		fmt.Fprintf(os.Stderr, "Erreur: %v\n", err)
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Ctrl-C cancels between chunks; partial counts are kept.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng := importer.New(desc, st, logger)
	exitCode := 0

	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] ERREUR: %v\n", path, err)
			exitCode = 1
			continue
		}

		batchID := uuid.NewString()
		fileName := filepath.Base(path)
		if err := st.CreateBatch(ctx, batchID, desc.ID, fileName); err != nil {
			fmt.Fprintf(os.Stderr, "[%s] ERREUR: %v\n", fileName, err)
			exitCode = 1
			continue
		}
		st.MarkProcessing(ctx, batchID)

		fmt.Printf("[%s] Import en cours...\n", fileName)
		res, err := eng.Import(kit.WithBatchID(ctx, batchID), importer.Request{
			FileName: fileName,
			Data:     data,
			Charset:  *charset,
			BatchID:  batchID,
			Progress: func(progress int, message string, _, _ int) {
				if *verbose {
					fmt.Printf("  %3d%%  %s\n", progress, message)
				}
			},
		})
		if err != nil {
			st.FinishBatch(context.WithoutCancel(ctx), batchID, store.BatchFailed, 0, 0, 0, 1)
			fmt.Fprintf(os.Stderr, "[%s] ERREUR: %v\n", fileName, err)
			exitCode = 1
			continue
		}

		status := store.BatchCompleted
		switch {
		case res.Cancelled:
			status = store.BatchCancelled
		case !res.Success:
			status = store.BatchFailed
		}
		st.FinishBatch(context.WithoutCancel(ctx), batchID, status,
			res.Imported, res.Skipped, res.Duplicates, len(res.Errors))

		fmt.Printf("[%s] %s: %d imported, %d skipped, %d duplicates\n",
			fileName, status, res.Imported, res.Skipped, res.Duplicates)
		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "  erreur: %s\n", e)
		}
		if !res.Success {
			exitCode = 1
		}
	}
	os.Exit(exitCode)
}
