package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/davebot/dave/internal/approval"
	"github.com/davebot/dave/internal/gitvc"
	"github.com/davebot/dave/internal/models"
	"github.com/davebot/dave/internal/plan"
	"github.com/davebot/dave/internal/runstore"
)

// Outcome is the terminal result of a run.
type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Config holds the per-run knobs.
type Config struct {
	// BranchPrefix is required on every plan's branch name.
	BranchPrefix string
	// MaxGrepRetries bounds the grep-augmented re-analysis rounds during
	// planning. Exhaustion fails the run.
	MaxGrepRetries int
	AppDescription string
	// Force approves the plan without waiting for a decision.
	Force  bool
	Strict bool
}

// ContextBuilder renders file contents into a single prompt block,
// summarizing oversized entries.
type ContextBuilder func(contents map[string]string) (string, error)

// Deps are the collaborators a run needs.
type Deps struct {
	Store        runstore.Store
	Channel      *approval.Channel
	Planner      Planner
	Generator    Generator
	Workspace    Workspace
	VC           VersionControl
	Grep         GrepTool
	BuildContext ContextBuilder
	Logger       *slog.Logger
}

// Orchestrator drives a generation run through planning, review, file
// generation, and commit. It is the sole producer on the event feed and the
// sole consumer of decisions.
type Orchestrator struct {
	store        runstore.Store
	channel      *approval.Channel
	planner      Planner
	generator    Generator
	ws           Workspace
	vc           VersionControl
	grep         GrepTool
	buildContext ContextBuilder
	cfg          Config
	logger       *slog.Logger
}

func New(deps Deps, cfg Config) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxGrepRetries <= 0 {
		cfg.MaxGrepRetries = 3
	}
	build := deps.BuildContext
	if build == nil {
		build = plainContext
	}
	return &Orchestrator{
		store:        deps.Store,
		channel:      deps.Channel,
		planner:      deps.Planner,
		generator:    deps.Generator,
		ws:           deps.Workspace,
		vc:           deps.VC,
		grep:         deps.Grep,
		buildContext: build,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run executes a fresh task end to end.
func (o *Orchestrator) Run(ctx context.Context, task string) (Outcome, error) {
	files, err := o.ws.ListFiles()
	if err != nil {
		return o.fail(fmt.Errorf("listing workspace files: %w", err))
	}
	originalBranch, err := o.vc.CurrentBranch()
	if err != nil {
		return o.fail(fmt.Errorf("reading current branch: %w", err))
	}

	session := &planSession{
		task:        task,
		files:       files,
		grepResults: map[string]string{},
	}

	for {
		o.channel.Publish(models.Event{Status: models.EventPlanning, Message: "analyzing task"})

		p, err := o.planUntilConfident(ctx, session)
		if err != nil {
			return o.fail(err)
		}

		p, warnings := plan.Reconcile(p, files)
		for _, w := range warnings {
			o.logger.Warn("plan reconciled", "warning", w)
		}
		if err := o.ensureBranchPrefix(p); err != nil {
			return o.fail(err)
		}

		if len(p.GenerationOrder) == 0 {
			o.channel.Publish(models.Event{
				Status:  models.EventFinished,
				Message: "nothing to do: the plan touches no files",
			})
			return OutcomeDone, nil
		}

		decision, err := o.reviewPlan(ctx, p)
		if err != nil {
			return o.fail(err)
		}

		switch decision.Kind {
		case models.DecisionReject:
			o.channel.Publish(models.Event{Status: models.EventRejected, Message: "plan rejected"})
			return OutcomeRejected, nil

		case models.DecisionFeedback:
			session.previous = p
			session.feedback = decision.Text
			continue

		case models.DecisionApprove:
			if decision.UseFastModel != nil {
				p.UseFastModel = *decision.UseFastModel
			}
			p.ContextFiles = mergeUnique(p.ContextFiles, decision.ContextFiles)

			state := &models.RunState{
				ID:             runstore.NewRunID(),
				Task:           task,
				OriginalBranch: originalBranch,
				Plan:           p,
			}
			o.persist(ctx, state)
			return o.execute(ctx, state, files)
		}
	}
}

// Resume picks up a persisted run where it stopped.
func (o *Orchestrator) Resume(ctx context.Context, runID string) (Outcome, error) {
	state, err := o.store.Load(ctx, runID)
	if err != nil {
		return o.fail(fmt.Errorf("loading run %s: %w", runID, err))
	}
	if state.Plan == nil {
		return o.fail(fmt.Errorf("run %s has no plan to resume", runID))
	}
	files, err := o.ws.ListFiles()
	if err != nil {
		return o.fail(fmt.Errorf("listing workspace files: %w", err))
	}
	o.logger.Info("resuming run",
		"run_id", runID,
		"completed", len(state.CompletedFiles),
		"remaining", len(state.RemainingFiles()))
	return o.execute(ctx, state, files)
}

// execute runs the generation and commit phases for an approved plan. The
// work queue is the plan's generation order minus the files already
// completed, so a resumed run continues exactly where it stopped.
func (o *Orchestrator) execute(ctx context.Context, state *models.RunState, files []string) (Outcome, error) {
	p := state.Plan

	if err := o.vc.CreateOrCheckout(p.BranchName); err != nil {
		return o.fail(fmt.Errorf("switching to branch %s: %w", p.BranchName, err))
	}

	// Generated content shadows what is on disk for later context builds.
	contents := make(map[string]string, len(state.ContentCache))
	for path, content := range state.ContentCache {
		contents[path] = content
	}
	known := make(map[string]bool, len(files))
	for _, f := range files {
		known[f] = true
	}

	queue := state.RemainingFiles()
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		o.channel.Publish(models.Event{
			Status:   models.EventWriting,
			FilePath: path,
			Queue:    append([]string{path}, queue...),
		})

		promptContext, err := o.buildFileContext(p, contents, path)
		if err != nil {
			return o.failGeneration(ctx, state, path, queue, err)
		}
		original, _ := o.ws.Read(path)

		result, err := o.generator.Generate(ctx, GenRequest{
			Task:            state.Task,
			Context:         promptContext,
			Path:            path,
			OriginalContent: original,
			RemainingOrder:  queue,
			AllFiles:        files,
			Strict:          o.cfg.Strict,
			FastModel:       p.UseFastModel,
		})
		if err != nil {
			return o.failGeneration(ctx, state, path, queue, fmt.Errorf("generating %s: %w", path, err))
		}
		if result.NeedsContext {
			return o.failGeneration(ctx, state, path, queue,
				fmt.Errorf("generation of %s blocked on missing context: %s", path, result.ContextRequest))
		}

		if err := o.ws.Write(path, result.Content); err != nil {
			return o.failGeneration(ctx, state, path, queue, fmt.Errorf("writing %s: %w", path, err))
		}
		contents[path] = result.Content
		state.MarkCompleted(path, result.Content)
		o.persist(ctx, state)

		diff, err := o.vc.Diff(path, result.Content)
		if err != nil {
			o.logger.Warn("diff unavailable", "path", path, "error", err)
		}
		stat, err := gitvc.DiffStat(diff)
		if err != nil {
			o.logger.Warn("diff stat unavailable", "path", path, "error", err)
		}
		o.channel.Publish(models.Event{
			Status:    models.EventFileDone,
			FilePath:  path,
			Summary:   result.Summary,
			Reasoning: result.Reasoning,
			Diff:      diff,
			DiffStat:  stat,
			Queue:     queue,
		})

		for _, extra := range result.FutureContextFiles {
			if _, ok := contents[extra]; ok {
				continue
			}
			content, err := o.ws.Read(extra)
			if err != nil {
				o.logger.Warn("requested context file unavailable", "path", extra, "error", err)
				continue
			}
			contents[extra] = content
			p.ContextFiles = mergeUnique(p.ContextFiles, []string{extra})
		}

		if added := o.appendQueueAdditions(p, result.QueueAdditions, known); len(added) > 0 {
			queue = append(queue, added...)
			o.persist(ctx, state)
			o.channel.Publish(models.Event{
				Status:  models.EventPlanUpdated,
				Message: fmt.Sprintf("queue extended with %s", strings.Join(added, ", ")),
				Queue:   queue,
				Plan:    p,
			})
		}
	}

	return o.commit(ctx, state)
}

func (o *Orchestrator) commit(ctx context.Context, state *models.RunState) (Outcome, error) {
	p := state.Plan

	message := fmt.Sprintf("feat: %s", state.Task)
	if p.Reasoning != "" {
		message += "\n\n" + p.Reasoning
	}
	if err := o.vc.CommitAndPush(p.BranchName, message); err != nil {
		return o.fail(fmt.Errorf("committing branch %s: %w", p.BranchName, err))
	}

	prURL, err := o.vc.CreatePR(fmt.Sprintf("AI-Gen: %s", state.Task), prBody(state))
	if err != nil {
		o.logger.Warn("pull request not created", "error", err)
	}

	if err := o.store.Delete(ctx, state.ID); err != nil {
		o.logger.Warn("run state not deleted", "run_id", state.ID, "error", err)
	}

	msg := fmt.Sprintf("generated %d files on %s", len(state.CompletedFiles), p.BranchName)
	if prURL != "" {
		msg += ", PR: " + prURL
	}
	o.channel.Publish(models.Event{Status: models.EventFinished, Message: msg})
	return OutcomeDone, nil
}

type planSession struct {
	task     string
	files    []string
	feedback string
	previous *models.Plan

	// grepResults accumulates across attempts and re-plans.
	grepResults map[string]string
}

// planUntilConfident drives the planning self-loop. Grep requests consume
// the bounded retry budget; clarifying questions block on the user and do
// not.
func (o *Orchestrator) planUntilConfident(ctx context.Context, s *planSession) (*models.Plan, error) {
	var confident *models.Plan

	// The first pass plus MaxGrepRetries grep-augmented passes.
	err := retryBounded(o.cfg.MaxGrepRetries+1, func(n int) (verdict, string, error) {
		for {
			result, err := o.planner.Analyze(ctx, PlanRequest{
				Task:           s.task,
				Files:          s.files,
				AppDescription: o.cfg.AppDescription,
				Feedback:       s.feedback,
				PreviousPlan:   s.previous,
				GrepResults:    s.grepResults,
			})
			if err != nil {
				return giveUp, "", fmt.Errorf("planning attempt %d: %w", n, err)
			}

			if result.Question != "" {
				answer, err := o.askUser(ctx, result.Question)
				if err != nil {
					return giveUp, "", err
				}
				if s.feedback != "" {
					s.feedback += "\n"
				}
				s.feedback += fmt.Sprintf("Q: %s\nA: %s", result.Question, answer)
				continue
			}

			if len(result.GrepQueries) > 0 {
				for _, q := range result.GrepQueries {
					out, err := o.grep.Grep(q)
					if err != nil {
						out = fmt.Sprintf("search failed: %v", err)
					}
					s.grepResults[q] = out
					o.channel.Publish(models.Event{
						Status:  models.EventToolUsed,
						Message: fmt.Sprintf("searched repository for %q", q),
					})
				}
				return retryAgain, fmt.Sprintf("requested %d searches", len(result.GrepQueries)), nil
			}

			if result.Plan == nil {
				return giveUp, "", fmt.Errorf("planner returned neither a plan, queries, nor a question")
			}
			confident = result.Plan
			return settled, "", nil
		}
	})
	if err != nil {
		return nil, fmt.Errorf("planning did not converge: %w", err)
	}
	return confident, nil
}

// askUser publishes a clarifying question and blocks until the user answers.
func (o *Orchestrator) askUser(ctx context.Context, question string) (string, error) {
	o.channel.Reset()
	o.channel.Publish(models.Event{Status: models.EventQuestion, Message: question})
	for {
		d, err := o.channel.WaitForDecision(ctx)
		if err != nil {
			return "", fmt.Errorf("waiting for answer: %w", err)
		}
		o.channel.Reset()
		if d.Kind == models.DecisionUserInput {
			return d.Text, nil
		}
		o.logger.Warn("ignoring decision while waiting for answer", "kind", d.Kind)
	}
}

// reviewPlan publishes the plan and blocks until an approve, reject, or
// feedback decision arrives. There is no deadline: the human takes as long
// as they take.
func (o *Orchestrator) reviewPlan(ctx context.Context, p *models.Plan) (*models.Decision, error) {
	if o.cfg.Force {
		o.logger.Info("plan auto-approved", "branch", p.BranchName)
		return &models.Decision{Kind: models.DecisionApprove}, nil
	}

	o.channel.Reset()
	o.channel.Publish(models.Event{Status: models.EventPlanReady, Plan: p})
	for {
		d, err := o.channel.WaitForDecision(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for plan decision: %w", err)
		}
		o.channel.Reset()
		switch d.Kind {
		case models.DecisionApprove, models.DecisionReject, models.DecisionFeedback:
			return d, nil
		}
		o.logger.Warn("ignoring decision during plan review", "kind", d.Kind)
	}
}

// buildFileContext assembles the prompt context for generating path: every
// file already generated or loaded this run, plus the plan's context files
// and the files being edited, excluding path itself. Generation order exists
// so dependencies are generated first; their fresh content must reach every
// later file.
func (o *Orchestrator) buildFileContext(p *models.Plan, contents map[string]string, path string) (string, error) {
	selected := make(map[string]string, len(contents))
	for f, cached := range contents {
		if f != path {
			selected[f] = cached
		}
	}
	for _, f := range mergeUnique(p.ContextFiles, p.FilesToEdit) {
		if f == path {
			continue
		}
		if _, ok := selected[f]; ok {
			continue
		}
		content, err := o.ws.Read(f)
		if err != nil {
			o.logger.Warn("context file unavailable", "path", f, "error", err)
			continue
		}
		contents[f] = content
		selected[f] = content
	}
	return o.buildContext(selected)
}

// appendQueueAdditions grows the generation order with paths not already
// planned or completed. The order is append-only. Each addition is also
// recorded in FilesToEdit or FilesToCreate so the persisted plan keeps the
// order covered by the edit and create sets.
func (o *Orchestrator) appendQueueAdditions(p *models.Plan, additions []string, known map[string]bool) []string {
	seen := make(map[string]bool, len(p.GenerationOrder))
	for _, f := range p.GenerationOrder {
		seen[f] = true
	}
	var added []string
	for _, f := range additions {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		p.GenerationOrder = append(p.GenerationOrder, f)
		if known[f] {
			p.FilesToEdit = append(p.FilesToEdit, f)
		} else {
			p.FilesToCreate = append(p.FilesToCreate, models.NewFile{
				Path:      f,
				Reasoning: "Requested by the generator while writing earlier files.",
			})
		}
		added = append(added, f)
	}
	return added
}

func (o *Orchestrator) ensureBranchPrefix(p *models.Plan) error {
	prefix := o.cfg.BranchPrefix
	if prefix != "" && p.BranchName != "" && !strings.HasPrefix(p.BranchName, prefix) {
		p.BranchName = prefix + p.BranchName
	}
	if err := p.ValidateBranchName(prefix); err != nil {
		return fmt.Errorf("plan branch rejected: %w", err)
	}
	return nil
}

// persist saves the run state, logging instead of failing the run when the
// store misbehaves. Losing a checkpoint costs resume granularity, not the run.
func (o *Orchestrator) persist(ctx context.Context, state *models.RunState) {
	if err := o.store.Save(ctx, state); err != nil {
		o.logger.Error("run state not saved", "run_id", state.ID, "error", err)
	}
}

// failGeneration stops the run mid-queue: the unprocessed remainder is
// reported in order, and the run state stays on disk for a later resume.
func (o *Orchestrator) failGeneration(ctx context.Context, state *models.RunState, current string, rest []string, cause error) (Outcome, error) {
	unprocessed := append([]string{current}, rest...)
	o.persist(ctx, state)
	o.channel.Publish(models.Event{
		Status:   models.EventError,
		FilePath: current,
		Message:  cause.Error(),
		Queue:    unprocessed,
	})
	o.logger.Error("run stopped",
		"run_id", state.ID,
		"completed", state.CompletedFiles,
		"unprocessed", unprocessed,
		"error", cause)
	return OutcomeFailed, fmt.Errorf("run %s stopped with %d files unprocessed: %w",
		state.ID, len(unprocessed), cause)
}

func (o *Orchestrator) fail(err error) (Outcome, error) {
	o.channel.Publish(models.Event{Status: models.EventError, Message: err.Error()})
	return OutcomeFailed, err
}

func prBody(state *models.RunState) string {
	var b strings.Builder
	b.WriteString(state.Task)
	if len(state.Plan.Steps) > 0 {
		b.WriteString("\n\n## Plan\n")
		for i, step := range state.Plan.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	return b.String()
}

func plainContext(contents map[string]string) (string, error) {
	paths := make([]string, 0, len(contents))
	for path := range contents {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&b, "--- Content of %s ---\n%s\n\n", path, contents[path])
	}
	return b.String(), nil
}

func mergeUnique(base []string, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, f := range base {
		seen[f] = true
	}
	out := base
	for _, f := range extra {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
