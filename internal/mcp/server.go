// Package mcp exposes the learning engine as MCP tools so an assistant can
// drive a learner through assessments, projects and discovery paths.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/lifecycle"
	"github.com/felixgeelhaar/pathway/internal/progress"
	"github.com/felixgeelhaar/pathway/internal/router"
)

// Engine is the lifecycle surface the tools call. *router.Router implements it.
type Engine interface {
	StartLearning(ctx context.Context, req lifecycle.StartRequest) (*domain.Program, error)
	GetProgress(ctx context.Context, programID string) (*progress.LearningProgress, error)
	SubmitResponse(ctx context.Context, programID, taskID string, resp domain.Response) (*lifecycle.SubmitResult, error)
	CompleteLearning(ctx context.Context, programID string) (*lifecycle.CompletionResult, error)
	GetNextTask(ctx context.Context, programID string) (*domain.Task, error)
	AbandonLearning(ctx context.Context, programID string) (*domain.Program, error)
	LearnerSummary(ctx context.Context, learnerID string) (*router.LearnerSummary, error)
}

// Server wraps the MCP server with Pathway functionality
type Server struct {
	mcpServer       *server.Server
	engine          Engine
	defaultLanguage string
}

// Config contains configuration for the MCP server
type Config struct {
	Engine          Engine
	DefaultLanguage string
	Version         string
}

// NewServer creates a new MCP server for Pathway
func NewServer(cfg Config) *Server {
	s := &Server{
		engine:          cfg.Engine,
		defaultLanguage: cfg.DefaultLanguage,
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "pathway",
		Version: version,
	}, server.WithInstructions(`
Pathway runs learning programs in three modes:
- assessment: timed multiple-choice questions, scored against a passing score
- pbl: project phases scored on competency (KSA) coverage
- discovery: a career skill tree where completed tasks earn XP and levels

Typical flow:
1. pathway_start with a learner and scenario
2. pathway_next_task to fetch the task to work on
3. pathway_submit for each answer or piece of work
4. pathway_progress to check standing
5. pathway_complete to evaluate the program and get feedback
`))

	s.registerTools()
	return s
}

// registerTools registers all Pathway MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("pathway_start").
		Description("Start a learning program for a learner on a scenario.").
		Handler(s.handleStart)

	s.mcpServer.Tool("pathway_next_task").
		Description("Get the task the learner should work on next.").
		Handler(s.handleNextTask)

	s.mcpServer.Tool("pathway_submit").
		Description("Submit an answer or work for a task.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("pathway_progress").
		Description("Get progress for a program.").
		Handler(s.handleProgress)

	s.mcpServer.Tool("pathway_complete").
		Description("Complete a program: evaluate every task and return feedback.").
		Handler(s.handleComplete)

	s.mcpServer.Tool("pathway_abandon").
		Description("Abandon an active program.").
		Handler(s.handleAbandon)

	s.mcpServer.Tool("pathway_summary").
		Description("Summarize a learner's programs across all modes.").
		Handler(s.handleSummary)
}

// Input/Output types for tools

type StartInput struct {
	LearnerID  string `json:"learner_id" jsonschema:"description=Learner identifier"`
	ScenarioID string `json:"scenario_id" jsonschema:"description=Scenario to play"`
	Language   string `json:"language,omitempty" jsonschema:"description=Language code such as en or zh"`
}

type StartOutput struct {
	ProgramID  string `json:"program_id"`
	Mode       string `json:"mode"`
	TotalTasks int    `json:"total_tasks"`
	Message    string `json:"message"`
}

type ProgramInput struct {
	ProgramID string `json:"program_id" jsonschema:"description=Program ID from pathway_start"`
}

type TaskOutput struct {
	Available bool         `json:"available"`
	Task      *domain.Task `json:"task,omitempty"`
}

type SubmitInput struct {
	ProgramID        string `json:"program_id" jsonschema:"description=Program ID from pathway_start"`
	TaskID           string `json:"task_id" jsonschema:"description=Task ID from pathway_next_task"`
	QuestionID       string `json:"question_id,omitempty" jsonschema:"description=Question being answered (assessment)"`
	Answer           string `json:"answer,omitempty" jsonschema:"description=Selected option (assessment)"`
	Content          string `json:"content,omitempty" jsonschema:"description=Free-text work (pbl and discovery)"`
	Solution         string `json:"solution,omitempty" jsonschema:"description=A finished solution"`
	Complete         bool   `json:"complete,omitempty" jsonschema:"description=Mark the task as finished"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty" jsonschema:"description=Seconds spent on this response"`
}

type CompleteOutput struct {
	Score    float64 `json:"score"`
	Passed   *bool   `json:"passed,omitempty"`
	Feedback string  `json:"feedback"`
	Tasks    int     `json:"evaluated_tasks"`
}

type AbandonOutput struct {
	ProgramID string `json:"program_id"`
	Status    string `json:"status"`
}

type SummaryInput struct {
	LearnerID string `json:"learner_id" jsonschema:"description=Learner identifier"`
}

// Tool handlers

func (s *Server) handleStart(ctx context.Context, input StartInput) (StartOutput, error) {
	if strings.TrimSpace(input.LearnerID) == "" || strings.TrimSpace(input.ScenarioID) == "" {
		return StartOutput{}, errors.New("learner_id and scenario_id are required")
	}
	lang := input.Language
	if lang == "" {
		lang = s.defaultLanguage
	}

	p, err := s.engine.StartLearning(ctx, lifecycle.StartRequest{
		LearnerID:  input.LearnerID,
		ScenarioID: input.ScenarioID,
		Language:   lang,
	})
	if err != nil {
		return StartOutput{}, toolError("start program", err)
	}

	return StartOutput{
		ProgramID:  p.ID,
		Mode:       string(p.Mode),
		TotalTasks: p.TotalTaskCount,
		Message:    fmt.Sprintf("Started %s program on %s. Use pathway_next_task to begin.", p.Mode, p.ScenarioID),
	}, nil
}

func (s *Server) handleNextTask(ctx context.Context, input ProgramInput) (TaskOutput, error) {
	t, err := s.engine.GetNextTask(ctx, input.ProgramID)
	if err != nil {
		return TaskOutput{}, toolError("get next task", err)
	}
	return TaskOutput{Available: t != nil, Task: t}, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (*lifecycle.SubmitResult, error) {
	if input.TaskID == "" {
		return nil, errors.New("task_id is required")
	}
	if input.TimeSpentSeconds < 0 {
		return nil, errors.New("time_spent_seconds must not be negative")
	}

	result, err := s.engine.SubmitResponse(ctx, input.ProgramID, input.TaskID, domain.Response{
		QuestionID:       input.QuestionID,
		Answer:           input.Answer,
		Content:          input.Content,
		Solution:         input.Solution,
		Complete:         input.Complete,
		TimeSpentSeconds: input.TimeSpentSeconds,
	})
	if err != nil {
		return nil, toolError("submit response", err)
	}
	return result, nil
}

func (s *Server) handleProgress(ctx context.Context, input ProgramInput) (*progress.LearningProgress, error) {
	lp, err := s.engine.GetProgress(ctx, input.ProgramID)
	if err != nil {
		return nil, toolError("get progress", err)
	}
	return lp, nil
}

func (s *Server) handleComplete(ctx context.Context, input ProgramInput) (CompleteOutput, error) {
	result, err := s.engine.CompleteLearning(ctx, input.ProgramID)
	if err != nil {
		return CompleteOutput{}, toolError("complete program", err)
	}
	return CompleteOutput{
		Score:    result.Evaluation.Score,
		Passed:   result.Passed,
		Feedback: result.Feedback,
		Tasks:    len(result.TaskEvaluations),
	}, nil
}

func (s *Server) handleAbandon(ctx context.Context, input ProgramInput) (AbandonOutput, error) {
	p, err := s.engine.AbandonLearning(ctx, input.ProgramID)
	if err != nil {
		return AbandonOutput{}, toolError("abandon program", err)
	}
	return AbandonOutput{ProgramID: p.ID, Status: p.Status.External()}, nil
}

func (s *Server) handleSummary(ctx context.Context, input SummaryInput) (*router.LearnerSummary, error) {
	if input.LearnerID == "" {
		return nil, errors.New("learner_id is required")
	}
	summary, err := s.engine.LearnerSummary(ctx, input.LearnerID)
	if err != nil {
		return nil, toolError("summarize learner", err)
	}
	return summary, nil
}

// toolError keeps the sentinel in the chain and adds a hint the assistant
// can act on.
func toolError(action string, err error) error {
	switch {
	case errors.Is(err, domain.ErrProgramNotFound):
		return fmt.Errorf("%s: %w (check the program_id from pathway_start)", action, err)
	case errors.Is(err, domain.ErrTaskCompleted):
		return fmt.Errorf("%s: %w (call pathway_next_task for the next one)", action, err)
	case errors.Is(err, domain.ErrProgramNotActive):
		return fmt.Errorf("%s: %w (start a new program with pathway_start)", action, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
