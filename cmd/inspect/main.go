// Command inspect prints frame statistics recorded by the server: runs and
// per-run summaries from the sqlite index, or raw records from the frame log.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"voxelstore.ai/internal/persistence/indexdb"
	persistlog "voxelstore.ai/internal/persistence/log"
)

type options struct {
	WorldDir string
	DBPath   string
	RunID    string
	From     uint64
	To       uint64
	FromLog  bool
	JSON     bool
}

func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		worldID = flag.String("world", "world_1", "world id")
		dbPath  = flag.String("db", "", "sqlite index path (default: <data>/worlds/<world>/index/world.sqlite)")
		runID   = flag.String("run", "", "run id to summarize (empty lists runs)")
		from    = flag.Uint64("from", 0, "first frame to print (inclusive)")
		to      = flag.Uint64("to", 0, "last frame to print (inclusive, 0 = summary only)")
		fromLog = flag.Bool("log", false, "read the zstd frame log instead of the index")
		asJSON  = flag.Bool("json", false, "print JSON instead of tables")
	)
	flag.Parse()

	opts := options{
		WorldDir: filepath.Join(*dataDir, "worlds", *worldID),
		DBPath:   *dbPath,
		RunID:    *runID,
		From:     *from,
		To:       *to,
		FromLog:  *fromLog,
		JSON:     *asJSON,
	}
	if opts.DBPath == "" {
		opts.DBPath = filepath.Join(opts.WorldDir, "index", "world.sqlite")
	}
	if err := run(context.Background(), os.Stdout, opts); err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, opts options) error {
	if opts.FromLog {
		return inspectLog(out, opts)
	}
	if _, err := os.Stat(opts.DBPath); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	idx, err := indexdb.OpenSQLite(opts.DBPath, "")
	if err != nil {
		return err
	}
	defer idx.Close()

	if opts.RunID == "" {
		runs, err := idx.Runs(ctx)
		if err != nil {
			return err
		}
		if opts.JSON {
			return json.NewEncoder(out).Encode(runs)
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tWORLD\tSEED\tSTARTED\tTUNING")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.12s\n", r.RunID, r.WorldID, r.Seed, r.StartedAt, r.TuningDigest)
		}
		return tw.Flush()
	}

	sum, err := idx.Summary(ctx, opts.RunID)
	if err != nil {
		return err
	}
	var rows []indexdb.FrameRow
	if opts.To > 0 {
		if opts.To < opts.From {
			return errors.New("-to must not be before -from")
		}
		if rows, err = idx.FrameRange(ctx, opts.RunID, opts.From, opts.To); err != nil {
			return err
		}
	}
	if opts.JSON {
		return json.NewEncoder(out).Encode(struct {
			Summary indexdb.Summary    `json:"summary"`
			Frames  []indexdb.FrameRow `json:"frames,omitempty"`
		}{sum, rows})
	}

	fmt.Fprintf(out, "run %s: frames=%s [%d..%d] skipped=%d spawned=%d removed=%d transitions=%d\n",
		sum.RunID, humanize.Comma(sum.Frames), sum.FirstFrame, sum.LastFrame,
		sum.Skipped, sum.Spawned, sum.Removed, sum.Transitions)
	fmt.Fprintf(out, "max_live=%d max_chunks=%d step_ms avg=%.3f max=%.3f last_digest_frame=%d\n",
		sum.MaxLive, sum.MaxChunks, sum.AvgStepMS, sum.MaxStepMS, sum.LastDigestedAt)
	if len(rows) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tCMDS\tREGION\tENTS\tMOVED\tSPAWN\tREMOVE\tTRANS\tLIVE\tCHUNKS\tSTEP_MS\tERROR")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.3f\t%s\n",
			r.Frame, r.Commands, r.RegionChunks, r.RegionEntities, r.Moved, r.Spawned, r.Removed,
			r.Transitions, r.LiveEntities, r.Chunks, r.StepMS, r.Error)
	}
	return tw.Flush()
}

// inspectLog scans every frame log file and prints the records in range, or a
// per-run count when no range is given.
func inspectLog(out io.Writer, opts options) error {
	files, err := persistlog.ListFiles(persistlog.FramesDir(opts.WorldDir))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no frame log files in %s", persistlog.FramesDir(opts.WorldDir))
	}

	enc := json.NewEncoder(out)
	counts := map[string]int{}
	var order []string
	for _, path := range files {
		err := persistlog.ReadFrames(path, func(r persistlog.FrameRecord) error {
			if opts.RunID != "" && r.RunID != opts.RunID {
				return nil
			}
			if _, ok := counts[r.RunID]; !ok {
				order = append(order, r.RunID)
			}
			counts[r.RunID]++
			if opts.To == 0 || r.Frame < opts.From || r.Frame > opts.To {
				return nil
			}
			if opts.JSON {
				return enc.Encode(r)
			}
			_, err := fmt.Fprintf(out, "%s frame=%d region=%d entities=%d moved=%d transitions=%d live=%d digest=%s%s\n",
				r.RunID, r.Frame, r.RegionChunks, r.RegionEnts, r.Moved, r.Transitions, r.LiveEntities,
				orDash(r.Digest), errSuffix(r.Error))
			return err
		})
		if err != nil {
			return err
		}
	}
	for _, id := range order {
		fmt.Fprintf(out, "run %s: %s frames logged\n", id, humanize.Comma(int64(counts[id])))
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func errSuffix(s string) string {
	if s == "" {
		return ""
	}
	return " error=" + s
}
