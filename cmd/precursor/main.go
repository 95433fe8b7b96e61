/*************************************************************************
 * Copyright 2026 Precursor Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command precursor runs the batch triage pipeline end to end: decode,
// tag, hash, infer, aggregate, emit.
package main

import (
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/obsecurus/precursor/aggregate"
	gwlog "github.com/obsecurus/precursor/ingest/log"
	"github.com/obsecurus/precursor/inference"
	"github.com/obsecurus/precursor/pattern"
	"github.com/obsecurus/precursor/payload"
	"github.com/obsecurus/precursor/report"
	"github.com/obsecurus/precursor/similarity"
	"github.com/obsecurus/precursor/tagging"
	"github.com/obsecurus/precursor/version"
)

const (
	exitOK     = 0
	exitConfig = 2
)

type config struct {
	patternArg     string
	patternFile    string
	sigmaRulePaths stringList
	inputFolder    string
	inputMode      string
	inputBlob      string
	inputJSONKey   string

	similarityMode  string
	tlshAlgorithm   string
	tlshDiff        bool
	tlshDistance    int
	tlshLength      bool
	tlshSimOnly     bool

	singlePacket     bool
	abstainThreshold float64
	protocolTopK     int

	protocolHints      bool
	protocolHintsLimit int

	regexEngine string
	stats       bool

	printVersion bool
}

type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func parseFlags(args []string) (*config, []string, error) {
	fs := flag.NewFlagSet("precursor", flag.ContinueOnError)
	cfg := &config{}

	fs.StringVar(&cfg.patternFile, "pattern-file", "", "path to a file of newline-separated authored regex patterns")
	fs.Var(&cfg.sigmaRulePaths, "sigma-rule", "path to a Sigma YAML detection rule (repeatable)")
	fs.StringVar(&cfg.inputFolder, "input-folder", "", "directory to recursively enumerate for input records")
	fs.StringVar(&cfg.inputMode, "input-mode", "string", "input transport encoding: base64|string|hex|binary")
	fs.StringVar(&cfg.inputBlob, "input-blob", "", "process this value as one blob record instead of reading newline-delimited records from stdin")
	fs.StringVar(&cfg.inputJSONKey, "input-json-key", "", "JSON path expression evaluated against each JSON record")

	fs.StringVar(&cfg.similarityMode, "similarity-mode", string(similarity.ModeTLSH), "similarity backend: tlsh|lzjd|mrshv2|fbhash")
	fs.StringVar(&cfg.tlshAlgorithm, "tlsh-algorithm", "128_1", "TLSH algorithm tag: 48_1|128_1|128_3|256_1|256_3")
	fs.BoolVar(&cfg.tlshDiff, "tlsh-diff", false, "run all-pairs similarity diffing after ingest")
	fs.IntVar(&cfg.tlshDistance, "tlsh-distance", 100, "maximum distance, 0-100, for a pair to be recorded as neighbors")
	fs.BoolVar(&cfg.tlshLength, "tlsh-length", false, "include the length-penalty term in distance computation")
	fs.BoolVar(&cfg.tlshSimOnly, "tlsh-sim-only", false, "suppress reports with no recorded neighbors")

	fs.BoolVar(&cfg.singlePacket, "single-packet", false, "compute and re-rank per-payload protocol inference")
	fs.Float64Var(&cfg.abstainThreshold, "abstain-threshold", 0.5, "minimum top-candidate score before abstaining")
	fs.IntVar(&cfg.protocolTopK, "protocol-top-k", 3, "number of ranked protocol candidates to retain")

	fs.BoolVar(&cfg.protocolHints, "protocol-hints", false, "emit a secondary protocol-hints summary")
	fs.IntVar(&cfg.protocolHintsLimit, "protocol-hints-limit", 10, "maximum clusters listed in the protocol-hints summary")

	fs.StringVar(&cfg.regexEngine, "regex-engine", "pcre2", "regex engine compatibility check: pcre2|vectorscan")
	fs.BoolVar(&cfg.stats, "stats", false, "emit a secondary statistics summary")
	fs.BoolVar(&cfg.printVersion, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

func main() {
	logger, err := gwlog.NewStderrLogger("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "precursor: failed to initialize logger: %v\n", err)
		os.Exit(exitConfig)
	}

	cfg, positional, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.Errorf("flag parse error: %v", err)
		os.Exit(exitConfig)
	}

	if cfg.printVersion {
		version.PrintVersion(os.Stdout)
		os.Exit(exitOK)
	}

	if len(positional) > 0 {
		cfg.patternArg = positional[0]
	}

	os.Exit(run(cfg, logger, os.Stdin, os.Stdout, os.Stderr))
}

func run(cfg *config, logger *gwlog.Logger, stdin io.Reader, stdout, stderr io.Writer) int {
	store, err := buildPatternStore(cfg)
	if err != nil {
		logger.Errorf("pattern compile error: %v", err)
		return exitConfig
	}

	if cfg.regexEngine != "" {
		engine, err := pattern.RegexEngineFromString(cfg.regexEngine)
		if err != nil {
			logger.Errorf("config error: %v", err)
			return exitConfig
		}
		if engine == pattern.EngineVectorscan {
			for _, cp := range store.Patterns {
				for _, issue := range pattern.VectorscanCompatibilityIssues(cp.Source) {
					logger.Warnf("vectorscan compatibility: pattern %q: %s", cp.Source, issue)
				}
			}
		}
	}

	decodeMode := payload.Mode(cfg.inputMode)

	simMode, err := similarity.ModeFromString(cfg.similarityMode)
	if err != nil {
		logger.Errorf("config error: %v", err)
		return exitConfig
	}

	aggCfg := aggregate.Config{
		PairwiseDiff:         cfg.tlshDiff,
		Threshold:            cfg.tlshDistance,
		IncludeLengthPenalty: cfg.tlshLength,
		SinglePacket:         cfg.singlePacket,
		SimOnly:              cfg.tlshSimOnly,
		AbstainThreshold:     cfg.abstainThreshold,
		ProtocolTopK:         cfg.protocolTopK,
	}
	agg := aggregate.New(aggCfg, logger)
	counters := tagging.NewCounters()
	engine := tagging.NewEngine(store, counters)

	var payloadsMu sync.Mutex
	payloadsByKey := make(map[string][]byte)

	// processRecord is called concurrently by the worker pool below: every
	// shared collaborator it touches (agg, engine.counters, payloadsByKey)
	// guards its own state, matching aggregate's reportMu/seqMu discipline.
	processRecord := func(record []byte, origin payload.Origin) {
		agg.Stats().RecordInput()

		decoded, _, err := payload.Decode(record, decodeMode, cfg.inputJSONKey, origin)
		if err != nil {
			logger.Warnf("decode error at %s: %v", originString(origin), err)
			return
		}

		result, err := engine.Tag(decoded.Data)
		if err != nil {
			logger.Warnf("tagging error at %s: %v", originString(origin), err)
			return
		}
		if !result.Matched {
			return
		}

		hash, err := similarity.Build(decoded.Data, simMode, cfg.tlshAlgorithm)
		if err != nil {
			logger.Warnf("hash error at %s: %v", originString(origin), err)
			return
		}

		fp := report.NewFingerprint(decoded.Data)
		rep := &report.PayloadReport{
			Fingerprint:    fp,
			Tags:           result.Tags,
			SigmaRuleIDs:   result.SigmaRuleIDs,
			SimilarityHash: hash.Render(),
		}

		if cfg.singlePacket {
			rep.Inference = inference.Score(decoded.Data, result.Tags, 0, cfg.protocolTopK, cfg.abstainThreshold)
			rep.HasInference = true
		}

		payloadsMu.Lock()
		payloadsByKey[fp.String()] = decoded.Data
		payloadsMu.Unlock()

		agg.Ingest(rep, hash, len(decoded.Data))
	}

	ctx := context.Background()
	if cfg.inputBlob != "" {
		processRecord([]byte(cfg.inputBlob), payload.Origin{Kind: payload.OriginBlob})
	} else if cfg.inputFolder != "" {
		if err := walkInputFolder(ctx, cfg.inputFolder, processRecord); err != nil {
			logger.Errorf("config error: %v", err)
			return exitConfig
		}
	} else {
		records := bufferLines(stdin, payload.OriginLine, "")
		if err := runWorkerPool(ctx, records, processRecord); err != nil {
			logger.Errorf("ingest error: %v", err)
			return exitConfig
		}
	}

	if err := agg.RunPairwiseDiff(ctx); err != nil {
		logger.Errorf("pairwise diff error: %v", err)
	}

	agg.ApplySinglePacketBoost(func(key string) []byte { return payloadsByKey[key] })

	writer := bufio.NewWriter(stdout)
	for _, rep := range agg.Emit() {
		encoded, err := rep.MarshalJSON()
		if err != nil {
			logger.Warnf("marshal error for %s: %v", rep.Fingerprint, err)
			continue
		}
		writer.Write(encoded)
		writer.WriteByte('\n')
	}
	writer.Flush()

	if cfg.stats {
		env := aggregate.Environment{
			Version:          fmt.Sprintf("%d.%d.%d", version.MajorVersion, version.MinorVersion, version.PointVersion),
			SimilarityMode:   string(simMode),
			TLSHAlgorithm:    cfg.tlshAlgorithm,
			RegexEngine:      cfg.regexEngine,
			Threshold:        cfg.tlshDistance,
			SimOnly:          cfg.tlshSimOnly,
			SinglePacket:     cfg.singlePacket,
			AbstainThreshold: cfg.abstainThreshold,
		}
		if err := aggregate.EmitStatistics(stderr, agg.Stats(), env); err != nil {
			logger.Warnf("statistics emit error: %v", err)
		}
	}

	if cfg.protocolHints {
		if err := aggregate.EmitProtocolHints(stderr, agg.Emit(), cfg.protocolHintsLimit); err != nil {
			logger.Warnf("protocol-hints emit error: %v", err)
		}
	}

	return exitOK
}

func buildPatternStore(cfg *config) (*pattern.Store, error) {
	var sources []string
	if cfg.patternArg != "" {
		sources = append(sources, cfg.patternArg)
	}
	if cfg.patternFile != "" {
		data, err := os.ReadFile(cfg.patternFile)
		if err != nil {
			return nil, fmt.Errorf("reading pattern file: %w", err)
		}
		for _, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			sources = append(sources, string(line))
		}
	}

	var plans []*pattern.SigmaRulePlan
	for _, path := range cfg.sigmaRulePaths {
		plan, err := pattern.LoadSigmaRulePlan(path)
		if err != nil {
			return nil, fmt.Errorf("loading sigma rule %s: %w", path, err)
		}
		plans = append(plans, plan)
	}

	return pattern.NewStore(sources, plans)
}

// bufferedRecord is one decoded-later input line paired with the origin
// metadata used for diagnostics, queued up for the worker pool below.
type bufferedRecord struct {
	data   []byte
	origin payload.Origin
}

// runWorkerPool fans a batch of buffered records out across a bounded pool
// of workers, one goroutine slot per GOMAXPROCS, mirroring the same
// errgroup fan-out idiom RunPairwiseDiff uses for its CPU-bound work.
// process must be safe for concurrent invocation.
func runWorkerPool(ctx context.Context, records []bufferedRecord, process func(record []byte, origin payload.Origin)) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, rec := range records {
		rec := rec
		g.Go(func() error {
			process(rec.data, rec.origin)
			return nil
		})
	}
	return g.Wait()
}

// bufferLines reads every line of r into memory up front so the caller can
// dispatch them to a worker pool; kind/path fill in the origin metadata
// (OriginLine records carry no path, OriginFile records do).
func bufferLines(r io.Reader, kind payload.OriginKind, path string) []bufferedRecord {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var records []bufferedRecord
	line := 0
	for scanner.Scan() {
		line++
		record := append([]byte(nil), scanner.Bytes()...)
		records = append(records, bufferedRecord{
			data:   record,
			origin: payload.Origin{Kind: kind, Path: path, Line: line},
		})
	}
	return records
}

// walkInputFolder enumerates root sequentially, file by file, but fans each
// file's buffered lines out across the worker pool before moving to the
// next file, per the directory-input concurrency split.
func walkInputFolder(ctx context.Context, root string, process func(record []byte, origin payload.Origin)) error {
	matches, err := doublestar.Glob(os.DirFS(root), "**/*")
	if err != nil {
		return fmt.Errorf("enumerating input folder: %w", err)
	}
	for _, rel := range matches {
		full := filepath.Join(root, rel)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		f, err := os.Open(full)
		if err != nil {
			continue
		}
		records := bufferLines(f, payload.OriginFile, full)
		f.Close()
		if err := runWorkerPool(ctx, records, process); err != nil {
			return fmt.Errorf("processing %s: %w", full, err)
		}
	}
	return nil
}

func originString(o payload.Origin) string {
	switch o.Kind {
	case payload.OriginFile:
		return fmt.Sprintf("%s:%d", o.Path, o.Line)
	case payload.OriginBlob:
		return "blob"
	default:
		return fmt.Sprintf("line %d", o.Line)
	}
}
