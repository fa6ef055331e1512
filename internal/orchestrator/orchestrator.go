// Package orchestrator runs the console session: it reads instructions,
// extracts intents, locates each item and hands the resulting tasks to the
// motion controller one at a time.
package orchestrator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/pickplace/internal/motion"
	"github.com/mesh-intelligence/pickplace/internal/nlp"
	"github.com/mesh-intelligence/pickplace/internal/trajcache"
	"github.com/mesh-intelligence/pickplace/pkg/types"
)

// Console commands.
const (
	CommandDetect = "detect"
	CommandExit   = "exit"
)

// stepLocate is the journal step name for localization failures.
const stepLocate = "LOCATE"

// Localizer finds items in the scene.
type Localizer interface {
	Locate(ctx context.Context, item types.ItemID, tall bool) ([3]float64, error)
	Preview(ctx context.Context) ([]types.Detection, error)
}

// Mover executes pick-and-place transactions. Recover cleans up after an
// aborted one.
type Mover interface {
	PickAndPlace(ctx context.Context, cache *trajcache.Cache, task types.PickPlaceTask) (motion.Report, error)
	Recover(ctx context.Context, cache *trajcache.Cache) error
}

// Deps are the collaborators of an Orchestrator. Journal and Logger are
// optional.
type Deps struct {
	Extractor nlp.Extractor
	Localizer Localizer
	Mover     Mover
	Cache     *trajcache.Cache
	Catalog   types.Catalog
	Params    types.Params
	Journal   types.Journal
	Logger    *zap.Logger
}

// Orchestrator is the read-evaluate loop. It is single-threaded: intents run
// strictly in the order they were given.
type Orchestrator struct {
	deps   Deps
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger,
		now:    time.Now,
		newID:  newTaskID,
	}
}

// Result is what happened to one utterance.
type Result struct {
	Intents []types.Intent
	// Completed is the number of intents that ran to completion.
	Completed int
	// Err is the extraction error or the failure that aborted the utterance.
	Err error
}

// Run reads lines from in until "exit", end of input or cancellation.
func (o *Orchestrator) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	st := newStyles(out)
	readCtx, stop := context.WithCancel(ctx)
	defer stop()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-readCtx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, st.prompt.Render("> "))

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				select {
				case err := <-readErr:
					return err
				default:
					return ctx.Err()
				}
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case CommandExit:
			return nil
		case CommandDetect:
			o.preview(ctx, out, st)
			continue
		}

		res := o.Handle(ctx, line)
		o.report(out, st, res)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// Handle processes one utterance. A failed intent aborts the intents after
// it; completed intents are not undone.
func (o *Orchestrator) Handle(ctx context.Context, text string) Result {
	intents, err := o.deps.Extractor.Extract(ctx, text)
	if err != nil {
		o.logger.Info("instruction rejected", zap.String("text", text), zap.Error(err))
		return Result{Err: err}
	}

	res := Result{Intents: intents}
	for i, in := range intents {
		if err := o.runIntent(ctx, text, in); err != nil {
			res.Err = err
			for _, skipped := range intents[i+1:] {
				o.record(types.TaskRecord{
					TaskID:    o.newID(),
					Utterance: text,
					Item:      skipped.Item,
					Location:  skipped.Location,
					Outcome:   types.OutcomeSkipped,
				})
			}
			break
		}
		res.Completed++
	}
	return res
}

func (o *Orchestrator) runIntent(ctx context.Context, text string, in types.Intent) error {
	rec := types.TaskRecord{
		TaskID:    o.newID(),
		Utterance: text,
		Item:      in.Item,
		Location:  in.Location,
		StartedAt: o.now(),
	}
	logger := o.logger.With(zap.String("task", rec.TaskID), zap.Stringer("intent", in))

	coord, err := o.deps.Localizer.Locate(ctx, in.Item, o.deps.Catalog.IsTall(in.Item))
	if err != nil {
		logger.Warn("localization failed", zap.Error(err))
		rec.Outcome, rec.Step, rec.Error = types.OutcomeFailed, stepLocate, err.Error()
		o.record(rec)
		return err
	}

	task := types.NewPickPlaceTask(rec.TaskID, in.Item, coord, in.Location, o.deps.Params)
	logger.Info("starting pick-and-place", zap.Stringer("pick", task.Pick))

	report, err := o.deps.Mover.PickAndPlace(ctx, o.deps.Cache, task)
	rec.Step = report.Reached.String()
	rec.Commands = report.Commands
	rec.GraspToggles = report.GraspToggles
	if err != nil {
		var se *motion.StepError
		if errors.As(err, &se) {
			rec.Step = se.Step.String()
		}
		logger.Warn("pick-and-place failed", zap.String("step", rec.Step), zap.Error(err))
		rec.Outcome, rec.Error = types.OutcomeFailed, err.Error()
		o.record(rec)
		if ctx.Err() == nil {
			if rerr := o.deps.Mover.Recover(ctx, o.deps.Cache); rerr != nil {
				logger.Error("recovery failed", zap.Error(rerr))
			}
		}
		return err
	}

	logger.Info("pick-and-place done", zap.Int("commands", report.Commands))
	rec.Outcome = types.OutcomeSucceeded
	o.record(rec)
	return nil
}

func (o *Orchestrator) record(rec types.TaskRecord) {
	if o.deps.Journal == nil {
		return
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = o.now()
	}
	if _, err := o.deps.Journal.Record(rec); err != nil {
		o.logger.Error("recording task failed", zap.String("task", rec.TaskID), zap.Error(err))
	}
}

func (o *Orchestrator) preview(ctx context.Context, out io.Writer, st styles) {
	boxes, err := o.deps.Localizer.Preview(ctx)
	if err != nil {
		fmt.Fprintln(out, st.fail.Render("detect: "+err.Error()))
		return
	}
	if len(boxes) == 0 {
		fmt.Fprintln(out, st.dim.Render("nothing detected"))
		return
	}
	for _, b := range boxes {
		fmt.Fprintf(out, "%s %s\n", st.ok.Render(b.Label),
			st.dim.Render(fmt.Sprintf("%.2f [%.0f %.0f %.0f %.0f]", b.Confidence, b.X1, b.Y1, b.X2, b.Y2)))
	}
}

func (o *Orchestrator) report(out io.Writer, st styles, res Result) {
	if res.Intents == nil && res.Err != nil {
		fmt.Fprintln(out, st.fail.Render(res.Err.Error()))
		return
	}
	for i, in := range res.Intents {
		switch {
		case i < res.Completed:
			fmt.Fprintln(out, st.ok.Render("done    "+in.String()))
		case i == res.Completed && res.Err != nil:
			fmt.Fprintln(out, st.fail.Render("failed  "+in.String()+": "+res.Err.Error()))
		default:
			fmt.Fprintln(out, st.warn.Render("skipped "+in.String()))
		}
	}
}

func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
