package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vargasjr/internal/action"
	"vargasjr/internal/agent"
	"vargasjr/internal/domain"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func agentCmd() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the poll loop, admin API and Slack listener until stopped",
		Long:  "Claims and routes messages every poll interval. Press Ctrl+C to stop; an in-flight run is allowed to finish.",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := action.ParseVariant(variant)
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			worker := agent.NewWorker(agent.WorkerConfig{
				Runner:   a.router,
				Interval: time.Duration(cfg.General.PollIntervalSeconds) * time.Second,
				Variant:  v,
				Logger:   logger,
			})
			g.Go(func() error { return worker.Run(gctx) })

			if cfg.Admin.Enabled {
				srv := a.adminServer()
				g.Go(func() error { return srv.Start(gctx) })
			}
			if a.slack != nil && cfg.Slack.AppToken != "" {
				g.Go(func() error {
					if err := a.slack.Listen(gctx, a.store); err != nil && gctx.Err() == nil {
						return fmt.Errorf("slack listener: %w", err)
					}
					return nil
				})
			}

			logger.Info("agent started. Press Ctrl+C to stop.", "version", version)
			err = g.Wait()
			logger.Info("agent stopped")
			return err
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "triage", "router variant: triage, followup or job")
	return cmd
}

func runOnceCmd() *cobra.Command {
	var req agent.Request
	var operation, variant string
	cmd := &cobra.Command{
		Use:   "run-once",
		Short: "Route one message and print the run output as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			req.Operation = domain.OperationType(operation)
			req.Variant = action.Variant(variant)
			printJSON(a.router.Run(context.Background(), req))
			return nil
		},
	}
	cmd.Flags().StringVar(&req.MessageID, "message-id", "", "process this message instead of the next eligible one")
	cmd.Flags().StringVar(&operation, "operation", "", "apply UNREAD or ARCHIVED to --message-id instead of routing it")
	cmd.Flags().StringVar(&variant, "variant", "triage", "router variant: triage, followup or job")
	return cmd
}

func markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <message-id> <UNREAD|ARCHIVED>",
		Short: "Apply a manual operation to a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, err := agent.ParseOperation(args[1])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			res := agent.NewManual(s, logger).Apply(context.Background(), args[0], op, "cli")
			fmt.Println(res.Message)
			if !res.Success {
				return fmt.Errorf("operation failed")
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <contact-id>",
		Short: "Show the recent conversation with a contact, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.RecentHistory(context.Background(), args[0], limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No messages found.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-8s %-6s %s\n", e.CreatedAt.Format(time.RFC3339), e.Direction, e.Kind, e.Body)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of entries")
	return cmd
}

func inboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Manage inboxes",
	}

	var label string
	add := &cobra.Command{
		Use:   "add <name> <EMAIL|SMS|SLACK|FORM|CHAT_SESSION>",
		Short: "Create an inbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseInboxKind(args[1])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			in, err := s.CreateInbox(context.Background(), domain.Inbox{Name: args[0], DisplayName: label, Kind: kind})
			if err != nil {
				return err
			}
			fmt.Printf("Created inbox %s (%s): %s\n", in.Name, in.Kind, in.ID)
			return nil
		},
	}
	add.Flags().StringVar(&label, "label", "", "display label")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List inboxes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			inboxes, err := s.ListInboxes(context.Background())
			if err != nil {
				return err
			}
			for _, in := range inboxes {
				fmt.Printf("%-36s  %-12s %s\n", in.ID, in.Kind, in.Name)
			}
			return nil
		},
	})
	return cmd
}
