package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"

	"raven/internal/util"
	"raven/pkg/loader"
	ioloader "raven/pkg/loader/io"
	"raven/pkg/logger"
	"raven/pkg/logger/console"
	"raven/pkg/stix"
)

func main() {
	util.LoadEnv()

	input := flag.String("input", "", "bundle file or directory of bundle files")
	platform := flag.String("platform", "", "platform to filter techniques by")
	output := flag.String("output", "output", "directory for filtered bundles")
	flag.Parse()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if *input == "" || *platform == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	docs, err := loader.Load(ctx, ioloader.NewIOCorpusLoader(), *input)
	if err != nil {
		logger.Fatal("Failed to load corpus", "path", *input, "err", err)
	}
	if len(docs) == 0 {
		logger.Fatal("No bundle files found", "path", *input)
	}

	if err := os.MkdirAll(*output, 0o755); err != nil {
		logger.Fatal("Failed to create output directory", "dir", *output, "err", err)
	}

	written := 0
	for _, doc := range docs {
		filtered := stix.FilterPlatform(&doc.Bundle, *platform)
		if filtered == nil {
			logger.Warn("No techniques matched platform", "source", doc.Source, "platform", *platform)
			continue
		}

		data, err := json.MarshalIndent(filtered, "", "    ")
		if err != nil {
			logger.Fatal("Failed to marshal bundle", "source", doc.Source, "err", err)
		}

		dest := filepath.Join(*output, filepath.Base(doc.Source))
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			logger.Fatal("Failed to write bundle", "dest", dest, "err", err)
		}

		logger.Info(
			"Wrote filtered bundle",
			"dest", dest,
			"objects", len(filtered.Objects),
		)
		written++
	}

	if written == 0 {
		logger.Warn("Nothing written", "platform", *platform)
	}
}
