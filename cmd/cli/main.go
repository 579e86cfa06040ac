package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var (
	baseURL string
	timeout time.Duration
	user    string

	// swapped in tests
	bcryptGenerate = bcrypt.GenerateFromPassword
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "escrowd-cli",
		Short: "escrowd CLI tool",
		Long:  `A command line interface for inspecting and operating an escrowd ledger node.`,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the ledger API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().StringVar(&user, "user", "", "Basic auth credentials as name:password")

	transferCmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer operations",
	}
	transferCmd.AddCommand(transferGetCmd(), transferFulfillCmd(), transferFulfillmentCmd(), transferRejectCmd())

	accountCmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}
	accountCmd.AddCommand(accountGetCmd())

	rootCmd.AddCommand(transferCmd, accountCmd, consistencyCmd(), hashPasswordCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func transferGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a transfer by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/transfers/"+args[0], nil, "")
		},
	}
}

func transferFulfillmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fulfillment <id>",
		Short: "Fetch the fulfillment of an executed transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/transfers/"+args[0]+"/fulfillment", nil, "")
		},
	}
}

func transferFulfillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fulfill <id> <fulfillment>",
		Short: "Submit a condition fulfillment for a prepared transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodPut, "/transfers/"+args[0]+"/fulfillment", strings.NewReader(args[1]), "text/plain")
		},
	}
}

func transferRejectCmd() *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject your credit on a transfer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodPut, "/transfers/"+args[0]+"/rejection", strings.NewReader(message), "application/json")
		},
	}
	cmd.Flags().StringVar(&message, "message", `{"code":"999","name":"Rejected","message":"rejected via cli"}`, "Rejection message JSON")
	return cmd
}

func accountGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Fetch an account by name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/accounts/"+args[0], nil, "")
		},
	}
}

func consistencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Run the ledger-wide conservation check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(http.MethodGet, "/consistency", nil, "")
		},
	}
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Bcrypt-hash a password for account provisioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcryptGenerate([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Println(string(hash))
			return nil
		},
	}
}

func request(method, path string, body io.Reader, contentType string) error {
	req, err := http.NewRequest(method, baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		name, password, found := strings.Cut(user, ":")
		if !found {
			return fmt.Errorf("--user must be name:password")
		}
		req.SetBasicAuth(name, password)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var parsed any
		if err := json.Unmarshal(raw, &parsed); err == nil {
			printJSON(parsed)
		} else {
			fmt.Println(string(raw))
		}
	} else {
		fmt.Println(string(raw))
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return nil
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(out))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
