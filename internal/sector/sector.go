// Package sector is the sector download orchestrator (component F): a
// single-flight queue of offline-archive extraction jobs, each running the
// five configured sources sequentially through an external extraction
// utility and committing the result with an atomic directory rename.
// Grounded on the desktop client's taskqueue.QueueManager (single background
// worker draining an ordered queue, done/failed buckets, status snapshot)
// and internal/video.Exporter's subprocess lifecycle (Start/Wait, stderr
// capture, context-driven cancellation).
package sector

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/walkthru/seamap-tiled/internal/apierr"
	"github.com/walkthru/seamap-tiled/internal/config"
	"github.com/walkthru/seamap-tiled/internal/pathguard"
	"github.com/walkthru/seamap-tiled/internal/tilemath"
)

// progressPattern matches the "downloaded / total" byte-count pairs the
// extraction utility writes to its standard-error stream.
var progressPattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

// ParseID parses a sector identifier in the "z/x/y" wire format (§4.F).
// Any other shape, or a negative component, is a validation failure.
func ParseID(raw string) (tilemath.Sector, error) {
	parts := strings.Split(raw, "/")
	if len(parts) != 3 {
		return tilemath.Sector{}, apierr.Validation(fmt.Sprintf("sector id %q must be z/x/y", raw), nil)
	}
	vals := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return tilemath.Sector{}, apierr.Validation(fmt.Sprintf("sector id %q must be non-negative integers", raw), err)
		}
		vals[i] = n
	}
	return tilemath.Sector{Z: vals[0], X: vals[1], Y: vals[2]}, nil
}

// Progress reports the in-flight extraction byte counts for the source
// currently running, if any.
type Progress struct {
	Sector     string
	Source     string
	Downloaded uint64
	Total      uint64
}

// Human renders the downloaded/total pair the way the orchestrator publishes
// it, e.g. "12 MB / 340 MB".
func (p Progress) Human() string {
	if p.Total == 0 {
		return ""
	}
	return humanize.Bytes(p.Downloaded) + " / " + humanize.Bytes(p.Total)
}

// Status is the snapshot returned by Orchestrator.Status, matching the
// "(active, total, done, progress)" report in §4.F.
type Status struct {
	Active   bool
	Total    int
	Done     int
	Queue    []tilemath.Sector
	Failed   []tilemath.Sector
	Progress Progress
}

// Orchestrator drives one sector download queue for one process. There is
// exactly one live extraction at a time; Enqueue starts the worker if it is
// idle, Cancel tears down the in-flight sector and drops the rest.
type Orchestrator struct {
	cfg    *config.Config
	logger zerolog.Logger

	mu                 sync.Mutex
	active             bool
	queue              []tilemath.Sector
	done               []tilemath.Sector
	failed             []tilemath.Sector
	currentSourceIndex int
	progress           Progress
	runCancel          context.CancelFunc
}

// New builds an orchestrator over cfg. It does not start any background
// work until Enqueue is called.
func New(cfg *config.Config, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With().Str("component", "sector").Logger(),
	}
}

// checkExtractor is the precondition check required "at plugin start and
// before each public operation" (§4.F): the extraction utility must resolve
// on the search path, or every operation fails with 503.
func (o *Orchestrator) checkExtractor() error {
	if _, err := exec.LookPath(o.cfg.ExtractorPath); err != nil {
		return apierr.Unavailable(fmt.Sprintf("extraction utility %q not found on PATH", o.cfg.ExtractorPath), err)
	}
	return nil
}

// Enqueue appends sectors not already queued and, if the orchestrator is
// idle, starts processing. Duplicate identifiers already in the queue are
// silently skipped.
func (o *Orchestrator) Enqueue(ids []tilemath.Sector) error {
	if err := o.checkExtractor(); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for _, id := range ids {
		dir := filepath.Join(o.cfg.PMTilesPath, id.Dir())
		if err := pathguard.Within(o.cfg.PMTilesPath, dir); err != nil {
			o.logger.Warn().Str("sector", id.Dir()).Err(err).Msg("rejected sector outside archive root")
			return apierr.Forbidden(fmt.Sprintf("sector %s escapes the archive root", id.Dir()), err)
		}
		if o.contains(id) {
			continue
		}
		o.queue = append(o.queue, id)
	}

	if !o.active && len(o.queue) > 0 {
		o.active = true
		go o.run()
	}
	return nil
}

func (o *Orchestrator) contains(id tilemath.Sector) bool {
	for _, q := range o.queue {
		if q == id {
			return true
		}
	}
	return false
}

// Status returns a snapshot of the current queue state, matching the
// reporting formula in §4.F.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.cfg.Sources)
	total := (len(o.queue) + len(o.done) + len(o.failed)) * n
	done := (len(o.done)+len(o.failed))*n + o.currentSourceIndex - 1
	if done < 0 {
		done = 0
	}

	return Status{
		Active:   o.active,
		Total:    total,
		Done:     done,
		Queue:    append([]tilemath.Sector(nil), o.queue...),
		Failed:   append([]tilemath.Sector(nil), o.failed...),
		Progress: o.progress,
	}
}

// Cancel signals the live subprocess (if any) to terminate, drops the rest
// of the queue, and returns the orchestrator to idle once the in-flight
// sector's cleanup completes in the background worker.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if !o.active {
		o.mu.Unlock()
		return
	}
	cancel := o.runCancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.logger.Info().Msg("sector download cancelled")
}

// List returns the committed sector directories under the archive root. The
// dot-prefix convention used for in-progress directories doubles as the
// list filter.
func (o *Orchestrator) List() ([]tilemath.Sector, error) {
	if err := o.checkExtractor(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(o.cfg.PMTilesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierr.IO("listing sector directories", err)
	}

	var sectors []tilemath.Sector
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, err := parseDirName(e.Name())
		if err != nil {
			continue
		}
		sectors = append(sectors, id)
	}
	return sectors, nil
}

// Delete removes a committed sector directory.
func (o *Orchestrator) Delete(id tilemath.Sector) error {
	if err := o.checkExtractor(); err != nil {
		return err
	}

	dir := filepath.Join(o.cfg.PMTilesPath, id.Dir())
	if err := pathguard.Within(o.cfg.PMTilesPath, dir); err != nil {
		return apierr.Forbidden(fmt.Sprintf("sector %s escapes the archive root", id.Dir()), err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return apierr.IO("deleting sector directory", err)
	}
	return nil
}

func parseDirName(name string) (tilemath.Sector, error) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 {
		return tilemath.Sector{}, fmt.Errorf("sector: malformed directory name %q", name)
	}
	z, err1 := strconv.Atoi(parts[0])
	x, err2 := strconv.Atoi(parts[1])
	y, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return tilemath.Sector{}, fmt.Errorf("sector: malformed directory name %q", name)
	}
	return tilemath.Sector{Z: z, X: x, Y: y}, nil
}

// run drains the queue one sector at a time until it is empty, then goes
// idle. It is started by Enqueue and never runs more than one instance at a
// time.
func (o *Orchestrator) run() {
	for {
		o.mu.Lock()
		if len(o.queue) == 0 {
			o.active = false
			o.currentSourceIndex = 0
			o.progress = Progress{}
			o.mu.Unlock()
			return
		}
		id := o.queue[0]
		ctx, cancel := context.WithCancel(context.Background())
		o.runCancel = cancel
		o.mu.Unlock()

		failed := o.processSector(ctx, id)
		cancelled := ctx.Err() != nil
		cancel()

		if cancelled {
			// Cancel() already cleared the queue; this worker's job is
			// only to clean up the sector it was mid-way through.
			os.RemoveAll(filepath.Join(o.cfg.PMTilesPath, "."+id.Dir()))
			o.mu.Lock()
			o.queue = nil
			o.active = false
			o.currentSourceIndex = 0
			o.progress = Progress{}
			o.runCancel = nil
			o.mu.Unlock()
			return
		}

		o.mu.Lock()
		o.queue = o.queue[1:]
		if failed {
			o.failed = append(o.failed, id)
		} else {
			o.done = append(o.done, id)
		}
		o.currentSourceIndex = 0
		o.progress = Progress{}
		o.runCancel = nil
		o.mu.Unlock()

		o.logger.Info().Str("sector", id.Dir()).Bool("failed", failed).Msg("sector download finished")
	}
}

// processSector runs every configured source's extraction in order,
// committing the in-progress directory on full success and removing it
// otherwise (§4.F, §4.K). It reports true if any source failed, or if ctx
// was cancelled mid-run (cleanup is then the caller's responsibility).
func (o *Orchestrator) processSector(ctx context.Context, id tilemath.Sector) bool {
	inProgressDir := filepath.Join(o.cfg.PMTilesPath, "."+id.Dir())
	finalDir := filepath.Join(o.cfg.PMTilesPath, id.Dir())

	if err := pathguard.Within(o.cfg.PMTilesPath, inProgressDir); err != nil {
		o.logger.Warn().Str("sector", id.Dir()).Err(err).Msg("sector path escaped the archive root")
		return true
	}
	if err := os.MkdirAll(inProgressDir, 0755); err != nil {
		o.logger.Error().Err(err).Str("sector", id.Dir()).Msg("creating in-progress sector directory")
		return true
	}

	bounds := tilemath.TileBounds(id.Z, id.X, id.Y)
	failed := false

	for i, name := range o.sourceNames() {
		src := o.cfg.Sources[name]

		o.mu.Lock()
		o.currentSourceIndex = i + 1
		o.progress = Progress{Sector: id.Dir(), Source: src.Name}
		o.mu.Unlock()

		out := filepath.Join(inProgressDir, src.Output)
		if err := o.extractOne(ctx, src, bounds, out); err != nil {
			o.logger.Error().Err(err).Str("sector", id.Dir()).Str("source", src.Name).Msg("source extraction failed")
			failed = true
			continue
		}
	}

	if ctx.Err() != nil {
		return true
	}

	if failed {
		os.RemoveAll(inProgressDir)
		return true
	}

	if err := os.Rename(inProgressDir, finalDir); err != nil {
		o.logger.Error().Err(err).Str("sector", id.Dir()).Msg("committing sector directory")
		os.RemoveAll(inProgressDir)
		return true
	}
	return false
}

func (o *Orchestrator) sourceNames() []string {
	names := make([]string, 0, len(o.cfg.Sources))
	for name := range o.cfg.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// extractOne spawns the extraction utility for one source and waits for it
// to finish, parsing progress from its stderr stream as it runs.
func (o *Orchestrator) extractOne(ctx context.Context, src config.Source, bounds tilemath.Bounds, out string) error {
	args := []string{
		"extract",
		src.URL,
		out,
		fmt.Sprintf("--bbox=%g,%g,%g,%g", bounds.West, bounds.South, bounds.East, bounds.North),
	}
	if src.MaxZoom > 0 {
		args = append(args, fmt.Sprintf("--maxzoom=%d", src.MaxZoom))
	}

	cmd := exec.CommandContext(ctx, o.cfg.ExtractorPath, args...)
	// exec.CommandContext defaults to SIGKILL on context cancellation; §4.F's
	// Cancel requires a SIGTERM so the extractor can clean up its own partial
	// output before the sector worker removes the in-progress directory.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("attaching extractor stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawning extractor: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.scanProgress(src.Name, stderr)
	}()

	err = cmd.Wait()
	<-done
	return err
}

// scanProgress reads size-pair progress lines ("downloaded/total") off the
// extraction utility's stderr and publishes them to Status.
func (o *Orchestrator) scanProgress(sourceName string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := progressPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		downloaded, err1 := strconv.ParseUint(m[1], 10, 64)
		total, err2 := strconv.ParseUint(m[2], 10, 64)
		if err1 != nil || err2 != nil {
			continue
		}

		o.mu.Lock()
		o.progress.Source = sourceName
		o.progress.Downloaded = downloaded
		o.progress.Total = total
		p := o.progress
		o.mu.Unlock()

		o.logger.Debug().Str("source", sourceName).Str("progress", p.Human()).Msg("extraction progress")
	}
}
