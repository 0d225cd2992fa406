package cmd

import (
	"fmt"
	"math/rand"

	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	clients   int
	services  int
	perClient int
	seed      int64
)

// seedCmd writes a deterministic set of demo transactions.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write demo transactions",
	Long: `Write deposits from every client to random services, plus a credit
back for every fifth deposit. Each transaction carries a dedup key derived
from its position, so running the command twice writes nothing new.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&clients, "clients", 100, "number of client agents")
	seedCmd.Flags().IntVar(&services, "services", 10, "number of service agents")
	seedCmd.Flags().IntVar(&perClient, "per-client", 10, "deposits per client")
	seedCmd.Flags().Int64Var(&seed, "seed", 1, "random seed for amounts and receivers")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if clients <= 0 || services <= 0 || perClient <= 0 {
		return fmt.Errorf("--clients, --services and --per-client must be positive")
	}

	logger.Info("seeding ledger",
		zap.Int("clients", clients),
		zap.Int("services", services),
		zap.Int("per_client", perClient),
	)

	saved, err := seedLedger(cmd, ledgerApp.Ledger, rand.New(rand.NewSource(seed)))
	if err != nil {
		return err
	}

	logger.Info("seeding finished", zap.Int("transactions", saved))
	fmt.Fprintf(cmd.OutOrStdout(), "Successfully seeded %d transactions.\n", saved)

	return nil
}

func seedLedger(cmd *cobra.Command, l *ledger.Ledger, rng *rand.Rand) (int, error) {
	ctx := cmd.Context()
	saved := 0

	for c := 1; c <= clients; c++ {
		client := domain.NewRef("client", fmt.Sprintf("client-%d", c))
		batch := fmt.Sprintf("seed-batch-%d", c)

		for n := 1; n <= perClient; n++ {
			service := domain.NewRef("service", fmt.Sprintf("service-%d", rng.Intn(services)+1))
			amount := decimal.New(rng.Int63n(100000)+1, -2)

			deposit := domain.NewDeposit(client, service, amount,
				domain.WithBatchID(batch),
				domain.WithDedupKey(fmt.Sprintf("seed-%s-%d", client.ID, n)),
			)
			if _, err := l.AddTransaction(ctx, deposit); err != nil {
				return saved, fmt.Errorf("deposit %s #%d: %w", client, n, err)
			}
			saved++

			if n%5 != 0 {
				continue
			}

			credit := domain.NewCredit(service, client, amount.Div(decimal.NewFromInt(10)).Round(2),
				domain.WithBatchID(batch),
				domain.WithDedupKey(fmt.Sprintf("seed-%s-%d-credit", client.ID, n)),
			)
			if _, err := l.AddTransaction(ctx, credit); err != nil {
				return saved, fmt.Errorf("credit %s #%d: %w", client, n, err)
			}
			saved++
		}
	}

	return saved, nil
}
