// Package device provides operator commands for provisioning and retiring
// sensors without going through the HTTP API.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	provusecases "github.com/resona-io/resona/internal/application/provisioning/usecases"
	"github.com/resona-io/resona/internal/infrastructure/broker"
	"github.com/resona-io/resona/internal/infrastructure/config"
	"github.com/resona-io/resona/internal/infrastructure/database"
	"github.com/resona-io/resona/internal/infrastructure/devicepki"
	"github.com/resona-io/resona/internal/infrastructure/repository"
	"github.com/resona-io/resona/internal/shared/logger"
)

var env string

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Provision and retire sensor devices",
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")

	cmd.AddCommand(
		newProvisionCommand(),
		newDeprovisionCommand(),
	)

	return cmd
}

func newProvisionCommand() *cobra.Command {
	var (
		userID   string
		name     string
		location string
	)
	cmd := &cobra.Command{
		Use:   "provision <sensor-id>",
		Short: "Create a device identity and print the one-time credential bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(func(ctx context.Context, cfg *config.Config, log logger.Interface) error {
				db := database.Get()
				ca, err := devicepki.LoadCA(&cfg.Provisioning)
				if err != nil {
					return fmt.Errorf("failed to load device CA: %w", err)
				}

				uc := provusecases.NewProvisionSensorUseCase(
					repository.NewSensorRepository(db),
					repository.NewUserRepository(db),
					broker.NewControlPlane(db),
					ca,
					&cfg.Provisioning,
					log.Named("provisioning"),
				)

				bundle, err := uc.Execute(ctx, provusecases.ProvisionSensorCommand{
					SensorID: args[0],
					UserID:   userID,
					Name:     name,
					Location: location,
				})
				if err != nil {
					return err
				}

				// The private key appears here and nowhere else.
				out, err := json.MarshalIndent(bundle, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(out))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owning user ID")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&location, "location", "", "Physical location")
	cmd.MarkFlagRequired("user")
	return cmd
}

func newDeprovisionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deprovision <sensor-id>",
		Short: "Retire a sensor and tear down its broker identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withInfra(func(ctx context.Context, cfg *config.Config, log logger.Interface) error {
				db := database.Get()
				uc := provusecases.NewDeprovisionSensorUseCase(
					repository.NewSensorRepository(db),
					repository.NewSessionRepository(db),
					broker.NewControlPlane(db),
					log.Named("provisioning"),
				)
				if err := uc.Execute(ctx, provusecases.DeprovisionSensorCommand{SensorID: args[0]}); err != nil {
					return err
				}
				fmt.Printf("sensor %s deprovisioned\n", args[0])
				return nil
			})
		},
	}
}

func withInfra(fn func(ctx context.Context, cfg *config.Config, log logger.Interface) error) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(&cfg.Logger); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fn(ctx, cfg, logger.NewLogger())
}
