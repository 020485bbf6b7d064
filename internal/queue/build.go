package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raven/internal/storage"
	"raven/internal/util"
	"raven/pkg/ai"
	"raven/pkg/graph"
	"raven/pkg/leaselock"
	"raven/pkg/loader"
	ioloader "raven/pkg/loader/io"
	s3loader "raven/pkg/loader/s3"
	"raven/pkg/logger"
	"raven/pkg/stix"
	"raven/pkg/store"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// Corpus source kinds accepted in build messages.
const (
	SourceFS = "fs"
	SourceS3 = "s3"
)

// BuildMessage asks the worker to (re)build a graph snapshot from a corpus
// path. Rebuilds are full: the worker never patches an existing snapshot.
type BuildMessage struct {
	GraphID string `json:"graph_id"`
	Path    string `json:"path"`
	Source  string `json:"source"`

	// Platform, when set, runs the corpus through the attack-pattern
	// platform filter before the graph is built.
	Platform string `json:"platform,omitempty"`

	SynthesizeUnknownKeys bool `json:"synthesize_unknown_keys,omitempty"`
}

// DeleteMessage asks the worker to drop a persisted graph snapshot.
type DeleteMessage struct {
	GraphID string `json:"graph_id"`
}

// ProcessBuildMessage runs the full pipeline for one build message: load the
// corpus, build the graph, build the embedding index, and persist the
// snapshot. The snapshot write happens under a per-graph lease so concurrent
// workers cannot interleave writes for the same graph.
func ProcessBuildMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	encoder ai.TextEncoder,
	snapshots store.SnapshotStorage,
	leases *leaselock.Client,
	body string,
) error {
	var msg BuildMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("invalid build message: %w", err)
	}
	if msg.GraphID == "" || msg.Path == "" {
		return fmt.Errorf("build message missing graph_id or path")
	}

	start := time.Now()
	logger.Info("Building graph", "graph_id", msg.GraphID, "path", msg.Path, "source", msg.Source)

	corpusLoader, err := resolveLoader(msg.Source, s3Client)
	if err != nil {
		return err
	}

	docs, err := loader.Load(ctx, corpusLoader, msg.Path)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	bundles := loader.Bundles(docs)
	if msg.Platform != "" {
		bundles = filterBundles(bundles, msg.Platform)
	}

	builder := graph.NewBuilder(graph.NewBuilderParams{
		SynthesizeUnknownKeys: msg.SynthesizeUnknownKeys,
	})
	g := builder.Build(bundles)

	ks := store.NewKnowledgeStore(g, encoder)
	if err := ks.BuildIndex(ctx); err != nil {
		return fmt.Errorf("failed to build embedding index: %w", err)
	}

	err = leases.WithLease(ctx, "graph:"+msg.GraphID, leaselock.Options{
		TTL:  5 * time.Minute,
		Wait: true,
	}, func(leaseCtx context.Context) error {
		return util.RetryErrWithContext(leaseCtx, 3, func(leaseCtx context.Context) error {
			return snapshots.SaveSnapshot(leaseCtx, msg.GraphID, ks)
		})
	})
	if err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	logger.Info(
		"Graph snapshot saved",
		"graph_id", msg.GraphID,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// ProcessDeleteMessage drops the persisted snapshot named by the message.
func ProcessDeleteMessage(
	ctx context.Context,
	snapshots store.SnapshotStorage,
	leases *leaselock.Client,
	body string,
) error {
	var msg DeleteMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return fmt.Errorf("invalid delete message: %w", err)
	}
	if msg.GraphID == "" {
		return fmt.Errorf("delete message missing graph_id")
	}

	return leases.WithLease(ctx, "graph:"+msg.GraphID, leaselock.Options{
		TTL:  time.Minute,
		Wait: true,
	}, func(leaseCtx context.Context) error {
		if err := snapshots.DeleteGraph(leaseCtx, msg.GraphID); err != nil {
			return err
		}
		logger.Info("Graph snapshot deleted", "graph_id", msg.GraphID)
		return nil
	})
}

func resolveLoader(source string, s3Client *awss3.Client) (loader.CorpusLoader, error) {
	switch source {
	case SourceS3:
		if s3Client == nil {
			return nil, fmt.Errorf("s3 source requested but no S3 client configured")
		}
		return s3loader.NewS3CorpusLoaderWithClient(storage.Bucket(), s3Client), nil
	case SourceFS, "":
		return ioloader.NewIOCorpusLoader(), nil
	default:
		return nil, fmt.Errorf("unknown corpus source %q", source)
	}
}

func filterBundles(bundles []stix.Bundle, platform string) []stix.Bundle {
	out := make([]stix.Bundle, 0, len(bundles))
	for i := range bundles {
		filtered := stix.FilterPlatform(&bundles[i], platform)
		if filtered != nil {
			out = append(out, *filtered)
		}
	}
	return out
}
