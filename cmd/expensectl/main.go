// expensectl drives the ExpenseFlow API through the optimistic client
// library: login, list, approve/reject, withdraw, delete, bulk
// transitions, and spreadsheet export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/subosito/gotenv"
	"github.com/vendorpay/expenseflow/internal/cache"
	"github.com/vendorpay/expenseflow/internal/client"
	"github.com/vendorpay/expenseflow/internal/coordinator"
	"github.com/vendorpay/expenseflow/internal/domain/entity"
	"github.com/vendorpay/expenseflow/internal/report"
	"github.com/vendorpay/expenseflow/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	baseURL := flag.String("api", envOr("EXPENSEFLOW_API_URL", "http://localhost:8080"), "API base URL")
	email := flag.String("email", os.Getenv("EXPENSEFLOW_EMAIL"), "login email")
	password := flag.String("password", os.Getenv("EXPENSEFLOW_PASSWORD"), "login password")
	status := flag.String("status", "", "status filter for list/export")
	reason := flag.String("reason", "", "rejection reason")
	output := flag.String("out", "invoices.xlsx", "output path for export")
	flag.Parse()

	_ = gotenv.Load()

	log, err := logger.New(logger.Config{Level: "info", OutputPath: "stderr", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	api := client.New(client.Config{BaseURL: *baseURL, Timeout: 30 * time.Second}, log)
	api.OnUnauthorized(func() {
		fmt.Fprintln(os.Stderr, "session expired, please log in again")
	})

	store := cache.NewStore(log)
	coord := coordinator.New(api, store, log, coordinator.WithNotify(func(n coordinator.Notification) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", n.Operation, n.Message)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "email and password are required (flags or EXPENSEFLOW_EMAIL/EXPENSEFLOW_PASSWORD)")
		os.Exit(2)
	}
	session, err := api.Login(ctx, *email, *password)
	if err != nil {
		log.Fatal("Login failed", zap.Error(err))
	}
	log.Info("Logged in",
		zap.String("user", session.User.Name),
		zap.String("role", string(session.User.Role)))

	switch args[0] {
	case "list":
		invoices, err := coord.Invoices(ctx, client.ListInvoicesParams{Status: entity.Status(*status)})
		if err != nil {
			log.Fatal("List failed", zap.Error(err))
		}
		for _, inv := range invoices {
			fmt.Printf("%s  %-9s  %8.2f  %-20s  %s\n",
				inv.ID, inv.Status, inv.Amount, inv.VendorName, inv.Description)
		}

	case "approve":
		requireID(args)
		if _, err := coord.UpdateStatus(ctx, args[1], entity.StatusApproved, ""); err != nil {
			os.Exit(1)
		}
		fmt.Println("approved")

	case "reject":
		requireID(args)
		if _, err := coord.UpdateStatus(ctx, args[1], entity.StatusRejected, *reason); err != nil {
			os.Exit(1)
		}
		fmt.Println("rejected")

	case "withdraw":
		requireID(args)
		if _, err := coord.Withdraw(ctx, args[1]); err != nil {
			os.Exit(1)
		}
		fmt.Println("withdrawn")

	case "delete":
		requireID(args)
		if err := coord.Delete(ctx, args[1]); err != nil {
			os.Exit(1)
		}
		fmt.Println("deleted")

	case "bulk-approve":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "bulk-approve requires at least one invoice id")
			os.Exit(2)
		}
		result, err := coord.BulkStatus(ctx, args[1:], entity.StatusApproved, "")
		if err != nil {
			os.Exit(1)
		}
		fmt.Printf("%s (%d updated)\n", result.Message, result.Count)

	case "export":
		invoices, err := coord.Invoices(ctx, client.ListInvoicesParams{Status: entity.Status(*status)})
		if err != nil {
			log.Fatal("List failed", zap.Error(err))
		}
		exporter := report.NewExporter(log)
		if err := exporter.Export(invoices, *output); err != nil {
			log.Fatal("Export failed", zap.Error(err))
		}

	default:
		usage()
		os.Exit(2)
	}
}

func requireID(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "invoice id required")
		os.Exit(2)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: expensectl [flags] <command>

commands:
  list                      list invoices (use -status to filter)
  approve <id>              approve a pending invoice
  reject <id> -reason s     reject a pending invoice
  withdraw <id>             withdraw your own pending invoice
  delete <id>               delete a non-approved invoice
  bulk-approve <id>...      approve several invoices at once
  export -out file.xlsx     export invoices to a spreadsheet`)
}
