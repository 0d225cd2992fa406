package cmd

import (
	"fmt"
	"strings"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/spf13/cobra"
)

var (
	agentFlag string
	typeFlag  string
)

// balanceCmd prints what an agent sent and received for one type.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show an agent's totals for a transaction type",
	Example: `  seeder balance --agent client:client-1 --type DEPOSIT`,
	RunE:    runBalance,
}

func init() {
	balanceCmd.Flags().StringVar(&agentFlag, "agent", "", "agent as kind:id (required)")
	balanceCmd.Flags().StringVar(&typeFlag, "type", string(domain.TypeDeposit), "transaction type")

	balanceCmd.MarkFlagRequired("agent")
}

func parseAgent(s string) (domain.Ref, error) {
	kind, id, ok := strings.Cut(s, ":")
	ref := domain.NewRef(kind, id)
	if !ok || ref.IsZero() {
		return domain.Ref{}, fmt.Errorf("agent must look like kind:id, got %q", s)
	}

	return ref, nil
}

func runBalance(cmd *cobra.Command, args []string) error {
	agent, err := parseAgent(agentFlag)
	if err != nil {
		return err
	}

	typ := domain.Type(typeFlag)
	l := ledgerApp.Ledger
	ctx := cmd.Context()

	sent, err := l.SumFrom(ctx, agent, typ)
	if err != nil {
		return err
	}

	received, err := l.SumTo(ctx, agent, typ)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n=== %s %s ===\n", agent, typ)
	fmt.Fprintf(out, "Sent:     %s\n", sent)
	fmt.Fprintf(out, "Received: %s\n", received)
	fmt.Fprintf(out, "Balance:  %s\n\n", received.Sub(sent))

	return nil
}
