// File: internal/tasks/agent.go
package tasks

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/config"
)

// DriverFactory opens a fresh page driver for one task run. The browser
// manager's NewSession satisfies it through a small closure.
type DriverFactory func(ctx context.Context) (schemas.PageDriver, error)

// Runner is the common face of the three task variants.
type Runner interface {
	Run(ctx context.Context) schemas.Outcome
}

// Agent selects and executes the automation task matching an actionable
// intent. Each run gets its own page driver, closed when the run ends.
type Agent struct {
	newDriver DriverFactory
	cfg       config.PortalConfig
	logger    *zap.Logger
}

// NewAgent builds the task dispatcher.
func NewAgent(newDriver DriverFactory, cfg config.PortalConfig, logger *zap.Logger) *Agent {
	return &Agent{
		newDriver: newDriver,
		cfg:       cfg,
		logger:    logger.Named("agent"),
	}
}

// Execute runs the workflow for intent and returns its terminal Outcome.
// Every failure mode is converted here; nothing propagates to crash the
// session.
func (a *Agent) Execute(ctx context.Context, intent schemas.IntentResult, publisher schemas.Publisher, solver schemas.CheckpointSolver) schemas.Outcome {
	driver, err := a.newDriver(ctx)
	if err != nil {
		a.logger.Error("Failed to open a browser session.", zap.Error(err))
		return schemas.Failure("Could not start a browser session. Please try again.")
	}
	defer driver.Close()

	e := &env{
		driver:    driver,
		solver:    solver,
		publisher: publisher,
		logger:    a.logger,
		cfg:       a.cfg,
	}

	var runner Runner
	switch intent.Intent {
	case schemas.IntentRegister:
		runner, err = NewRegistration(e, RegistrationInput{
			Name:    intent.Data.Name,
			DOB:     intent.Data.DOB,
			Gender:  intent.Data.Gender,
			Phone:   intent.Data.Phone,
			Address: intent.Data.Address,
		})
	case schemas.IntentDownload:
		runner, err = NewDownload(e, intent.Data.EID)
	case schemas.IntentUpdate:
		runner, err = NewUpdate(e, UpdateInput{
			EID:     intent.Data.EID,
			Name:    intent.Data.Name,
			Phone:   intent.Data.Phone,
			Address: intent.Data.Address,
		})
	default:
		return schemas.Failure("I don't know how to handle that request.")
	}
	if err != nil {
		a.logger.Warn("Task construction rejected the intent.", zap.Error(err))
		return schemas.Failure(err.Error())
	}

	a.logger.Info("Starting automation task.", zap.String("intent", string(intent.Intent)))
	outcome := runner.Run(ctx)
	a.logger.Info("Automation task finished.",
		zap.String("intent", string(intent.Intent)), zap.Bool("success", outcome.Success))
	return outcome
}
