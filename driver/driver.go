// Package driver runs the configured generation targets over a registry
// and writes the artifacts.
package driver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gwos/pcjsongen/config"
	"github.com/gwos/pcjsongen/emit"
	"github.com/gwos/pcjsongen/errors"
	"github.com/gwos/pcjsongen/jsongen"
	"github.com/gwos/pcjsongen/jsonparse"
	"github.com/gwos/pcjsongen/logger"
	"github.com/gwos/pcjsongen/model"
	"github.com/gwos/pcjsongen/schema"
	"github.com/gwos/pcjsongen/taskqueue"
	"github.com/hashicorp/go-uuid"
)

// Result describes one completed target
type Result struct {
	Run       string
	Target    string
	File      string
	Size      int
	Unchanged bool
	Stats     emit.Stats
	Duration  time.Duration
}

type emitter interface {
	Emit(w io.Writer) error
	Stats() emit.Stats
}

func newEmitter(cfg *config.Config, reg *model.Registry, target string) (emitter, error) {
	g := cfg.Generator
	switch target {
	case config.TargetSchema:
		return schema.New(reg,
			schema.WithTopLevel(g.TopLevelStructs...),
			schema.WithWrapper(g.SchemaWrapper)), nil
	case config.TargetGen:
		return jsongen.New(reg,
			jsongen.WithRoots(g.RootStructs...),
			jsongen.WithSource("pcjsongen "+target)), nil
	case config.TargetParse:
		return jsonparse.New(reg,
			jsonparse.WithRoots(g.RootStructs...),
			jsonparse.WithSource("pcjsongen "+target)), nil
	}
	return nil, fmt.Errorf("%w: %q", errors.ErrTarget, target)
}

// Render generates the target artifact in memory
func Render(cfg *config.Config, reg *model.Registry, target string) ([]byte, emit.Stats, error) {
	e, err := newEmitter(cfg, reg, target)
	if err != nil {
		return nil, nil, err
	}
	var buf bytes.Buffer
	if err := e.Emit(&buf); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", target, err)
	}
	return buf.Bytes(), e.Stats(), nil
}

// Run generates the configured targets concurrently, every target gets
// its own emitter, outputs having the same content are not rewritten
func Run(ctx context.Context, cfg *config.Config, reg *model.Registry) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	metrics := NewMetrics()
	targets := cfg.Generator.Targets
	runID, err := uuid.GenerateUUID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	runLog := logger.Run(runID)

	handler := func(task *taskqueue.Task) error {
		res := task.Args[0].(*Result)
		targetLog := logger.Target(&runLog, res.Target)
		taskStart := time.Now()
		data, stats, err := Render(cfg, reg, res.Target)
		if err != nil {
			return err
		}
		res.Stats, res.Size = stats, len(data)
		if res.Unchanged, err = writeIfChanged(res.File, data); err != nil {
			return err
		}
		res.Duration = time.Since(taskStart)
		metrics.observeTarget(res.Target, stats, res.Duration, res.Unchanged)
		targetLog.Info().
			Str("file", res.File).
			Int("size", res.Size).
			Bool("unchanged", res.Unchanged).
			Dur("duration", res.Duration).
			Msg("target done")
		return nil
	}
	handlers := map[taskqueue.Subject]taskqueue.Handler{}
	for _, t := range config.KnownTargets {
		handlers[taskqueue.Subject(t)] = handler
	}
	q := taskqueue.NewTaskQueue(
		taskqueue.WithCapacity(uint8(len(targets))),
		taskqueue.WithWorkers(uint8(cfg.Generator.Workers)),
		taskqueue.WithHandlers(handlers),
		taskqueue.WithAlarm(cfg.Generator.SlowTargetAlarm, func(task *taskqueue.Task) error {
			targetLog := logger.Target(&runLog, string(task.Subject))
			targetLog.Warn().
				Dur("alarm", cfg.Generator.SlowTargetAlarm).
				Msg("slow target")
			return nil
		}),
	)

	results := make([]Result, len(targets))
	tasks := make([]*taskqueue.Task, 0, len(targets))
	var ee []error
	for i, t := range targets {
		results[i] = Result{Run: runID, Target: t, File: cfg.OutputFile(t)}
		task, err := q.PushAsync(ctx, taskqueue.Subject(t), &results[i])
		if err != nil {
			ee = append(ee, err)
			continue
		}
		tasks = append(tasks, task)
	}
	/* tasks not started before ctx is done report its error */
	for _, task := range tasks {
		if err := <-task.Done(); err != nil {
			ee = append(ee, err)
		}
	}
	q.Close()

	metrics.observeRun(time.Since(start))
	if cfg.Generator.MetricsFile != "" {
		if err := metrics.WriteFile(cfg.Generator.MetricsFile); err != nil {
			ee = append(ee, err)
		}
	}
	if totals, err := metrics.Totals(); err == nil {
		runLog.Debug().Interface("emitted", totals).Msg("run metrics")
	}
	if err := errors.Join(ee...); err != nil {
		runLog.Err(err).Dur("duration", time.Since(start)).Msg("run failed")
		return results, err
	}
	runLog.Info().Strs("targets", targets).Dur("duration", time.Since(start)).Msg("run done")
	return results, nil
}

// writeIfChanged writes data unless the file holds the same content
func writeIfChanged(filename string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(filename); err == nil {
		h1, err1 := config.Hashsum(existing)
		h2, err2 := config.Hashsum(data)
		if err1 == nil && err2 == nil && bytes.Equal(h1, h2) {
			return true, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return false, fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return false, fmt.Errorf("%w: %v", errors.ErrOutput, err)
	}
	return false, nil
}
