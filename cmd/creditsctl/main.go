package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sefazor/storycredits/internal/app"
	"github.com/sefazor/storycredits/internal/config"
	"github.com/sefazor/storycredits/internal/controller"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var Version = "dev"

// services are built on demand so that commands like hash-admin-key work
// without a database.
type services struct {
	Config      *config.Config
	DeadLetters service.DeadLetterService
	Accounts    service.AccountService
	Resolver    service.CustomerResolver
	Payments    *controller.PaymentController
}

func loadServices() (*services, error) {
	_ = godotenv.Load()

	var s services
	container := fx.New(
		fx.NopLogger,
		app.Core,
		app.Payments,
		fx.Populate(&s.Config, &s.DeadLetters, &s.Accounts, &s.Resolver, &s.Payments),
	)
	if err := container.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "creditsctl",
		Short:         "Operate the storybook credit ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(deadLettersCmd())
	rootCmd.AddCommand(adjustCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(linkCmd())
	rootCmd.AddCommand(retireCmd())
	rootCmd.AddCommand(hashAdminKeyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
