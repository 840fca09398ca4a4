package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/freshmart/pkg/repository"
	"github.com/spf13/cobra"
)

func auditCmd() *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "audit <order_id>",
		Short: "Print the audit trail of an order, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mongo, err := repository.NewMongoRepository(&cfg.MongoDB)
			if err != nil {
				return fmt.Errorf("failed to connect to MongoDB: %w", err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				mongo.Close(ctx)
			}()

			logs, err := mongo.GetAuditLogs(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("failed to read audit logs: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(logs)
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 50, "maximum number of entries")
	return cmd
}
