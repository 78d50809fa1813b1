package main

import (
	"context"
	"errors"
	"fmt"

	cli "github.com/urfave/cli/v3"

	"github.com/fieldline/slaflow/pkg/cmd"
	"github.com/fieldline/slaflow/pkg/log"
	"github.com/fieldline/slaflow/pkg/workflow"
)

// NewValidateCommand reports structural and parameter-schema violations in
// every stored definition of a tenant.
func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the stored workflow definitions of a tenant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Workflow store URL (memory:// or postgres://...)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "tenant",
				Usage:    "Tenant whose definitions are validated",
				Required: true,
				Sources:  cli.EnvVars("TENANT_ID"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule(serviceName).With("action", "validate")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return fmt.Errorf("failed to create workflow store: %w", err)
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.Error("Failed to close workflow store", "error", err)
				}
			}()

			tenantID := command.String("tenant")

			workflows, err := store.WorkflowsByTenant(ctx, tenantID)
			if err != nil {
				return fmt.Errorf("failed to fetch workflows: %w", err)
			}

			fmt.Println("Workflow Validation Results:")
			fmt.Println("============================")

			validator := workflow.NewValidator()
			valid := 0
			invalid := 0

			for _, definition := range workflows {
				fmt.Printf("\nWorkflow: %s (%s)\n", definition.Name, definition.ID)

				err := validator.ValidateWorkflow(definition)
				if err == nil {
					fmt.Printf("  ✅ VALID\n")
					valid++

					continue
				}

				invalid++

				var validationErr *workflow.ValidationError
				if !errors.As(err, &validationErr) {
					fmt.Printf("  ❌ INVALID: %v\n", err)

					continue
				}

				for _, reason := range validationErr.Reasons {
					fmt.Printf("  ❌ INVALID: %s\n", reason)
				}
			}

			fmt.Printf("\nValidation Summary:\n")
			fmt.Printf("  Total workflows: %d\n", valid+invalid)
			fmt.Printf("  Valid workflows: %d\n", valid)
			fmt.Printf("  Invalid workflows: %d\n", invalid)

			if invalid > 0 {
				return fmt.Errorf("found %d invalid workflows", invalid)
			}

			fmt.Println("All workflow definitions are valid! ✅")

			return nil
		},
	}
}
