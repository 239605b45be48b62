//go:build integration

package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felixgeelhaar/pathway/internal/domain"
	"github.com/felixgeelhaar/pathway/internal/repository"
	"github.com/felixgeelhaar/pathway/internal/testutil"
)

// setupPostgres starts a PostgreSQL container and returns a migrated handle
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "pathway",
				"POSTGRES_PASSWORD": "pathway",
				"POSTGRES_DB":       "pathway",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("failed to get port: %v", err)
	}
	cfg := repository.Config{
		DSN: fmt.Sprintf("postgres://pathway:pathway@%s:%s/pathway?sslmode=disable", host, port.Port()),
	}

	version, err := repository.Migrate(ctx, cfg)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if version != 1 {
		t.Errorf("Migrate() version = %d, want 1", version)
	}

	db, err := repository.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntegration_Ping(t *testing.T) {
	db := setupPostgres(t)
	if err := repository.Ping(context.Background(), db); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestIntegration_ProgramLifecycle(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	uow := repository.NewPostgresUnitOfWork(db, repository.WithClock(func() time.Time { return now }))

	p := domain.NewProgram("learner-1", testutil.DiscoveryScenario(), "en", now)
	if err := p.Activate(now); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	task := domain.NewTask(p.ID, 0, domain.TaskTypeWelcome, now)

	tx, err := uow.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := tx.Programs().Create(ctx, p); err != nil {
		t.Fatalf("Programs().Create() error = %v", err)
	}
	if err := tx.Tasks().Create(ctx, task); err != nil {
		t.Fatalf("Tasks().Create() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	stale := *p
	p.XPEarned = 50
	if err := uow.Programs().Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if p.Version != 2 {
		t.Errorf("Version = %d, want 2", p.Version)
	}
	if err := uow.Programs().Update(ctx, &stale); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("stale Update() error = %v, want ErrConflict", err)
	}

	if err := uow.Tasks().UpdateStatus(ctx, task.ID, domain.TaskActive); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}
	got, err := uow.Tasks().FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Status != domain.TaskActive || got.StartedAt == nil {
		t.Errorf("task = %s started %v, want active with start time", got.Status, got.StartedAt)
	}

	completed, err := uow.Programs().Complete(ctx, p.ID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Status != domain.ProgramCompleted {
		t.Errorf("Status = %s, want completed", completed.Status)
	}

	list, err := uow.Programs().FindByLearner(ctx, "learner-1")
	if err != nil {
		t.Fatalf("FindByLearner() error = %v", err)
	}
	if len(list) != 1 || list[0].XPEarned != 50 {
		t.Errorf("FindByLearner() = %+v", list)
	}
}

func TestIntegration_Rollback(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	uow := repository.NewPostgresUnitOfWork(db)

	p := domain.NewProgram("learner-2", testutil.AssessmentScenario(), "en", time.Now())
	tx, err := uow.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := tx.Programs().Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if _, err := uow.Programs().FindByID(ctx, p.ID); !errors.Is(err, domain.ErrProgramNotFound) {
		t.Errorf("FindByID() error = %v, want ErrProgramNotFound", err)
	}
}

func TestIntegration_ProgramEvaluationOnce(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	uow := repository.NewPostgresUnitOfWork(db)

	p := domain.NewProgram("learner-3", testutil.ProjectScenario(), "en", time.Now())
	if err := uow.Programs().Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for i, want := range []error{nil, domain.ErrConflict} {
		e := domain.NewEvaluation(domain.ModePBL, domain.EvaluationProgram, time.Now())
		e.ProgramID = p.ID
		e.LearnerID = p.LearnerID
		e.Score = 70
		err := uow.Evaluations().Create(ctx, e)
		if want == nil && err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
		if want != nil && !errors.Is(err, want) {
			t.Errorf("Create() #%d error = %v, want %v", i, err, want)
		}
	}

	evals, err := uow.Evaluations().FindByProgram(ctx, p.ID)
	if err != nil {
		t.Fatalf("FindByProgram() error = %v", err)
	}
	if len(evals) != 1 {
		t.Errorf("FindByProgram() returned %d evaluations, want 1", len(evals))
	}
}

func TestIntegration_ScenarioRepository(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	repo := repository.NewScenarioRepository(db)

	sc := testutil.ProjectScenario()
	if err := repo.Save(ctx, sc); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := repo.FindByID(ctx, sc.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if got.Mode != domain.ModePBL {
		t.Errorf("Mode = %s, want pbl", got.Mode)
	}
	ids, err := repo.IDs(ctx)
	if err != nil {
		t.Fatalf("IDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != sc.ID {
		t.Errorf("IDs() = %v", ids)
	}
	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrScenarioNotFound) {
		t.Errorf("FindByID(missing) error = %v, want ErrScenarioNotFound", err)
	}
}
