package main

import (
	"fmt"
	"strconv"

	"github.com/sefazor/storycredits/pkg/bcrypt"
	"github.com/spf13/cobra"
)

func adjustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adjust [user-id] [amount]",
		Short: "Record a manual credit adjustment (negative amounts debit)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			if reason == "" {
				return fmt.Errorf("--reason is required")
			}
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount == 0 {
				return fmt.Errorf("invalid amount %q", args[1])
			}

			s, err := loadServices()
			if err != nil {
				return err
			}
			txn, err := s.Accounts.Adjust(cmd.Context(), args[0], amount, reason)
			if err != nil {
				return err
			}
			return printJSON(cmd, txn)
		},
	}

	cmd.Flags().StringP("reason", "r", "", "Why the balance is being changed")
	return cmd
}

func auditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit [user-id]",
		Short: "Compare an account balance with the sum of its transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadServices()
			if err != nil {
				return err
			}
			report, err := s.Accounts.Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Consistent {
				return fmt.Errorf("account %s is inconsistent", args[0])
			}
			return nil
		},
	}
}

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link [customer-ref] [user-id]",
		Short: "Map a payment provider customer to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadServices()
			if err != nil {
				return err
			}
			link, err := s.Resolver.Link(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, link)
		},
	}
}

func retireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retire [user-id]",
		Short: "Stop an account from spending; purchases still land",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadServices()
			if err != nil {
				return err
			}
			if err := s.Accounts.Retire(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "account %s retired\n", args[0])
			return nil
		},
	}
}

func hashAdminKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-key [key]",
		Short: "Print the ADMIN_KEY_HASH value for an admin key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.HashSecret(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
