// Package pipeline converts every CT image named by a run configuration
// into its own MCNP input deck.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ct2mcnp/pkg/config"
	"ct2mcnp/pkg/ctimage"
	"ct2mcnp/pkg/deck"
	"ct2mcnp/pkg/visualization"
	"ct2mcnp/pkg/voxel"
)

// Params holds the batch conversion parameters
type Params struct {
	// Config is the run configuration shared by every image. It is only read.
	Config *config.RunConfig

	// OutputDir is the directory decks are written to; it is created if missing
	OutputDir string

	// Workers bounds the number of images converted at once; values below 1 mean 1
	Workers int

	// PreviewDir, when set, receives a middle-slice JPEG per axis of each
	// material map
	PreviewDir string

	// Log receives progress messages; logrus.StandardLogger() when nil
	Log logrus.FieldLogger
}

// Job is one image to convert
type Job struct {
	// CT is the image path
	CT string

	// Name is the deck file name, the image base name up to its first dot
	Name string
}

// Result reports the outcome of one Job
type Result struct {
	Job

	// Output is the path of the written deck; empty on failure
	Output string

	// Summary describes the classified volume; zero on failure
	Summary voxel.Summary

	Duration time.Duration
	Err      error
}

// Runner converts a batch of images
type Runner struct {
	params  Params
	results []Result
}

// NewRunner creates a runner for a copy of the given parameters
func NewRunner(params *Params) *Runner {
	p := *params
	if p.Log == nil {
		p.Log = logrus.StandardLogger()
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	return &Runner{params: p}
}

// Results returns the outcome of each job of the last Process call, in input order
func (r *Runner) Results() []Result {
	return r.results
}

// Process converts every image of the configuration. A failing image does
// not stop the others; all failures are returned joined.
func (r *Runner) Process(ctx context.Context) error {
	if err := r.params.Config.Validate(); err != nil {
		return err
	}
	if len(r.params.Config.CT) == 0 {
		return &config.ConfigurationError{Key: config.KeyCT}
	}

	jobs, err := ResolveJobs(r.params.Config.CT)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.params.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	r.results = make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.params.Workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				r.results[i] = Result{Job: job, Err: err}
				return nil
			}
			r.results[i] = r.convert(job)
			return nil
		})
	}
	// Jobs record their failure in results and never return an error.
	_ = g.Wait()

	var errs []error
	for _, res := range r.results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.CT, res.Err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) convert(job Job) (res Result) {
	log := r.params.Log.WithField("ct", job.CT)
	res.Job = job
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	log.Info("Generating input file")
	vol, err := ctimage.Read(job.CT)
	if err != nil {
		res.Err = err
		log.WithError(err).Error("Failed to read image")
		return res
	}

	d, err := deck.Build(vol, r.params.Config)
	if err != nil {
		res.Err = err
		log.WithError(err).Error("Failed to build deck")
		return res
	}

	out := filepath.Join(r.params.OutputDir, job.Name)
	if err := writeAtomic(out, d); err != nil {
		res.Err = err
		log.WithError(err).Error("Failed to write deck")
		return res
	}
	res.Output = out
	res.Summary = voxel.Summarize(d.Voxels)

	if r.params.PreviewDir != "" {
		viewer := visualization.NewViewer(d.Voxels.Index)
		if _, err := viewer.SavePreview(r.params.PreviewDir, job.Name); err != nil {
			log.WithError(err).Warn("Failed to save material preview")
		}
	}

	log.WithFields(logrus.Fields{
		"out":       out,
		"voxels":    d.Voxels.Index.Len(),
		"materials": len(res.Summary.Counts),
		"mean":      res.Summary.Mean,
		"elapsed":   time.Since(start).Round(time.Millisecond),
	}).Info("Complete")
	return res
}

// writeAtomic writes the deck to a temporary file next to path and renames
// it into place, so a failed write never leaves a truncated deck behind
func writeAtomic(path string, d *deck.Deck) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := d.Write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ResolveJobs expands the configured ct entries into jobs. A directory
// contributes every MetaImage file inside it, in name order.
func ResolveJobs(paths []string) ([]Job, error) {
	var jobs []Job
	owner := make(map[string]string)

	add := func(p string) error {
		name, _, _ := strings.Cut(filepath.Base(p), ".")
		if prev, dup := owner[name]; dup {
			return fmt.Errorf("inputs %s and %s both map to deck %q", prev, p, name)
		}
		owner[name] = p
		jobs = append(jobs, Job{CT: p, Name: name})
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("invalid CT path: %w", err)
		}
		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("invalid CT path: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() || !ctimage.Supported(e.Name()) {
				continue
			}
			if err := add(filepath.Join(p, e.Name())); err != nil {
				return nil, err
			}
		}
	}
	return jobs, nil
}
