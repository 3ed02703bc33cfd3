package main

import (
	"fmt"
	"strconv"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/pkg/storage"
	"github.com/spf13/cobra"
)

func deadLettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletters",
		Aliases: []string{"dl"},
		Short:   "Inspect and reconcile parked payment events",
	}

	cmd.AddCommand(deadLettersListCmd())
	cmd.AddCommand(deadLettersShowCmd())
	cmd.AddCommand(deadLettersResolveCmd())
	cmd.AddCommand(deadLettersReplayCmd())
	return cmd
}

func deadLettersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			s, err := loadServices()
			if err != nil {
				return err
			}
			letters, err := s.DeadLetters.List(cmd.Context(), models.DeadLetterStatus(status), limit)
			if err != nil {
				return err
			}

			for _, l := range letters {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6d %-32s %-22s attempts=%d %s\n",
					l.ID, l.EventID, l.Reason, l.Attempts, l.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringP("status", "s", string(models.DeadLetterStatusOpen), "open, resolved or replayed")
	cmd.Flags().IntP("limit", "n", 50, "Maximum results")
	return cmd
}

func deadLettersShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Print one dead letter with its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archived, _ := cmd.Flags().GetBool("archived")
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := loadServices()
			if err != nil {
				return err
			}
			letter, err := s.DeadLetters.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !archived {
				return printJSON(cmd, letter)
			}

			if letter.ArchiveKey == "" {
				return fmt.Errorf("dead letter %d has no archived payload", id)
			}
			if !s.Config.R2.Enabled() {
				return fmt.Errorf("R2 is not configured")
			}
			store, err := storage.NewCloudflareStorage(cmd.Context(), s.Config.R2, s.Config.ProviderTimeout)
			if err != nil {
				return err
			}
			body, err := store.Get(cmd.Context(), letter.ArchiveKey)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(body, '\n'))
			return err
		},
	}

	cmd.Flags().Bool("archived", false, "Print the payload copy kept in R2 instead of the database row")
	return cmd
}

func deadLettersResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [id]",
		Short: "Close a dead letter after manual reconciliation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, _ := cmd.Flags().GetString("note")
			if note == "" {
				return fmt.Errorf("--note is required")
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := loadServices()
			if err != nil {
				return err
			}
			letter, err := s.DeadLetters.Resolve(cmd.Context(), id, note)
			if err != nil {
				return err
			}
			return printJSON(cmd, letter)
		},
	}

	cmd.Flags().String("note", "", "What was done to reconcile the event")
	return cmd
}

func deadLettersReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [id]",
		Short: "Apply a parked event again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			s, err := loadServices()
			if err != nil {
				return err
			}
			result, err := s.Payments.ReplayDeadLetter(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid dead letter id %q", raw)
	}
	return uint(id), nil
}
