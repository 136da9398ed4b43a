package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	clobclient "github.com/betdesk/gotrader/clob/client"
	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/internal/approval"
	"github.com/betdesk/gotrader/internal/chain"
	"github.com/betdesk/gotrader/internal/companion"
	"github.com/betdesk/gotrader/internal/deposit"
	"github.com/betdesk/gotrader/internal/engine"
	"github.com/betdesk/gotrader/internal/fees"
	"github.com/betdesk/gotrader/internal/relay"
	"github.com/betdesk/gotrader/internal/session"
	"github.com/betdesk/gotrader/internal/stream"
	"github.com/betdesk/gotrader/internal/wallet"
	"github.com/betdesk/gotrader/pkg/config"
	"github.com/betdesk/gotrader/pkg/logger"
	"github.com/betdesk/gotrader/pkg/persistence"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config")
	tokenID := flag.String("token", "", "outcome token to trade")
	amount := flag.Float64("amount", 0, "quote-currency amount to spend")
	sellShares := flag.Float64("sell-shares", 0, "shares to sell back after the buy (0 skips the sell leg)")
	negRisk := flag.Bool("neg-risk", false, "token belongs to a negative-risk market")
	flag.Parse()

	if err := run(*configPath, *tokenID, *amount, *sellShares, *negRisk); err != nil {
		fmt.Fprintf(os.Stderr, "trader: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, tokenID string, amount, sellShares float64, negRisk bool) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		return err
	}

	if tokenID == "" || amount <= 0 {
		return fmt.Errorf("both -token and a positive -amount are required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	chainID := types.Chain(cfg.ChainID)
	contracts, err := clobclient.GetContractConfig(chainID)
	if err != nil {
		return err
	}

	w, err := buildWallet(cfg, chainID)
	if err != nil {
		return err
	}
	owner := w.Address()
	logger.Infof("wallet: %s (%s)", owner.Hex(), w.Kind())

	chainClient, err := chain.Dial(cfg.Endpoints.RPCURL, chainID, w.PrivateKey())
	if err != nil {
		return err
	}
	defer chainClient.Close()

	// The relayer path only applies to Safe-funded backends; custodial
	// wallets transact directly.
	var relayClient *relay.Client
	var checker wallet.DeploymentChecker
	if !w.Kind().IsCustodial() {
		safe := wallet.DeriveSafeAddress(owner)
		relayClient = relay.NewClient(cfg.Endpoints.RelayHost, chainID, w, safe, builderCredsFromEnv())
		checker = relayClient
	}

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions := session.NewManager(session.Options{
		Store:    store,
		ClobHost: cfg.Endpoints.ClobHost,
		ChainID:  chainID,
		Checker:  checker,
	})
	sess, err := sessions.Initialize(ctx, w)
	if err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}
	logger.Infof("session ready: funding %s, signature type %d", sess.FundingAddr, sess.SignatureType)

	// Approval setup, driven to completion by the wizard before any
	// order is attempted.
	sponsored := !w.Kind().IsCustodial()
	var sponsor approval.Sponsor
	if relayClient != nil {
		sponsor = relayClient
	}
	orch := approval.NewOrchestrator(chainClient, sponsor, contracts,
		owner, common.HexToAddress(sess.FundingAddr))
	wizard := deposit.NewWizard(orch, sponsored)
	if err := runWizard(ctx, wizard, amount); err != nil {
		return err
	}

	// Fee plumbing: ledger, collector, reconciler for resting orders.
	ledger, err := fees.OpenLedger(cfg.Fees.LedgerPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	var comp *companion.Client
	if cfg.Endpoints.CompanionHost != "" {
		comp = companion.NewClient(cfg.Endpoints.CompanionHost)
	}
	feeCfg := fees.Config{
		Percentage: decimal.NewFromFloat(cfg.Fees.Percentage),
		Treasury:   cfg.Fees.Treasury,
	}
	sender := feeSender(chainClient, relayClient, contracts)
	var recorder fees.Recorder
	if comp != nil {
		recorder = comp
	}
	collector := fees.NewCollector(ledger, feeCfg, sender, recorder)
	reconciler := fees.NewReconciler(ledger, sessions.Client(), sender, collector.Config)
	go reconciler.Run(ctx, cfg.Refresh.FeeConfig)

	positions := engine.NewPositionStore(cfg.Endpoints.DataHost, owner.Hex())

	var orderRecorder engine.OrderRecorder
	if comp != nil {
		orderRecorder = comp
	}
	eng := engine.New(engine.Options{
		Sessions:  sessions,
		Exchange:  sessions.Client(),
		Chain:     chainClient,
		Fees:      collector,
		Recorder:  orderRecorder,
		Positions: positions,
		Contracts: contracts,
		BookTTL:   cfg.Refresh.Book,
	})

	// Live book feed plus slow-view refresh in the background.
	market := stream.NewMarketStream(stream.Config{URL: cfg.Endpoints.StreamURL})
	if err := market.Start(ctx); err != nil {
		logger.Warnf("market stream unavailable, falling back to REST books: %v", err)
	} else {
		defer market.Stop()
		if err := market.Subscribe(tokenID); err != nil {
			logger.Warnf("subscribe %s: %v", tokenID, err)
		}
		refresher := &stream.Refresher{
			Stream: market,
			Books:  eng,
			Positions: func(ctx context.Context) error {
				_, err := positions.Refresh(ctx)
				return err
			},
			FeeSink: collector,
		}
		if comp != nil {
			refresher.FeeSource = comp
		}
		go refresher.Run(ctx)
	}

	return demoRoundTrip(ctx, eng, positions, tokenID, amount, sellShares, negRisk)
}

func runWizard(ctx context.Context, wizard *deposit.Wizard, depositAmount float64) error {
	for i := 0; i < 10; i++ {
		state, err := wizard.Advance(ctx, depositAmount)
		if err != nil {
			return fmt.Errorf("setup step %s: %w", state.Step, err)
		}
		logger.Infof("setup: %s", state.Step)
		switch state.Step {
		case deposit.StepDone:
			return nil
		case deposit.StepFailed:
			return fmt.Errorf("setup failed, rerun to resume")
		}
	}
	return fmt.Errorf("setup did not converge")
}

func demoRoundTrip(ctx context.Context, eng *engine.Engine, positions *engine.PositionStore, tokenID string, amount, sellShares float64, negRisk bool) error {
	buy, err := eng.PlaceBuy(ctx, engine.BuyRequest{
		TokenID:     tokenID,
		Amount:      amount,
		TimeInForce: engine.ImmediateOrCancel,
		NegRisk:     negRisk,
	})
	if err != nil {
		return fmt.Errorf("buy: %w", err)
	}
	logger.Infof("bought %.4f shares at %.2f, total cost %s (fee %s, status %s)",
		buy.Shares, buy.Price, buy.TotalCost, buy.Fee, buy.FeeStatus)

	if sellShares <= 0 {
		return nil
	}

	pos, ok := positions.Get(tokenID)
	if !ok {
		if _, err := positions.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh positions before sell: %w", err)
		}
		pos, ok = positions.Get(tokenID)
	}
	if !ok {
		// The fill may not be indexed yet; trust the buy we just made.
		pos = engine.Position{TokenID: tokenID, Size: buy.Shares}
	}

	sell, err := eng.PlaceSell(ctx, engine.SellRequest{
		Position:    pos,
		Shares:      sellShares,
		TimeInForce: engine.ImmediateOrCancel,
		NegRisk:     negRisk,
	})
	if err != nil {
		return fmt.Errorf("sell: %w", err)
	}
	logger.Infof("sold %.4f shares at %.2f, proceeds %s (fee %s, status %s)",
		sell.Shares, sell.Price, sell.PotentialPayout, sell.Fee, sell.FeeStatus)
	return nil
}

func buildWallet(cfg *config.Config, chainID types.Chain) (*wallet.Custodial, error) {
	kind, err := wallet.ParseKind(cfg.Wallet.Backend)
	if err != nil {
		return nil, err
	}
	if !kind.IsCustodial() {
		return nil, fmt.Errorf("backend %q needs an embedding application that supplies a wallet provider; this binary runs custodial wallets only", kind)
	}
	if cfg.Wallet.PrivateKey != "" {
		return wallet.NewCustodialFromHex(cfg.Wallet.PrivateKey, chainID)
	}
	return wallet.NewCustodialFromMnemonic(cfg.Wallet.Mnemonic, cfg.Wallet.DerivationPath, chainID)
}

func openStore(cfg *config.Config) (persistence.Service, func(), error) {
	if cfg.Store.UseBadger {
		svc, err := persistence.OpenBadger(persistence.BadgerOptions{Path: cfg.Store.BadgerPath})
		if err != nil {
			return nil, nil, err
		}
		return svc, func() { _ = svc.Close() }, nil
	}
	return persistence.NewJSONFileService(cfg.Store.Dir), func() {}, nil
}

func feeSender(chainClient *chain.Client, relayClient *relay.Client, contracts *clobclient.ContractConfig) fees.Sender {
	collateral := common.HexToAddress(contracts.Collateral)
	if relayClient != nil {
		return fees.RelaySender{Relay: relayClient, Token: collateral}
	}
	return fees.ChainSender{Chain: chainClient, Token: collateral}
}

func builderCredsFromEnv() *relay.BuilderCreds {
	key := strings.TrimSpace(os.Getenv("POLY_BUILDER_API_KEY"))
	if key == "" {
		return nil
	}
	return &relay.BuilderCreds{
		Key:        key,
		Secret:     strings.TrimSpace(os.Getenv("POLY_BUILDER_SECRET")),
		Passphrase: strings.TrimSpace(os.Getenv("POLY_BUILDER_PASSPHRASE")),
	}
}
