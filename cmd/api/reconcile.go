package main

import (
	"encoding/json"
	"fmt"
	"time"

	"av-rental/internal/database"
	"av-rental/internal/events"
	"av-rental/internal/repository"
	"av-rental/internal/service"

	"github.com/spf13/cobra"
)

func reconcileCmd() *cobra.Command {
	var grace time.Duration

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Poll providers once for orders stuck in pending",
		Long: `Reconcile asks the payment provider for the current status of every
order still pending after the grace period and applies final statuses.
Paid orders still need their cart confirmed by the customer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("grace") {
				grace = cfg.Reconcile.Grace
			}

			ctx := cmd.Context()
			pool, err := database.NewPool(ctx, cfg.Database, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer pool.Close()

			gateways, err := newGateways(cfg.Payment, logger)
			if err != nil {
				return err
			}

			publisher, err := events.New(cfg.Events, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize event publisher: %w", err)
			}
			defer publisher.Close()

			reconciler := service.NewPendingReconciler(repository.NewOrderRepository(pool, logger), gateways, publisher, grace, logger)
			report, err := reconciler.ReconcileOnce(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", 15*time.Minute, "only reconcile orders pending longer than this")
	return cmd
}
