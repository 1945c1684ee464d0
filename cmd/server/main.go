package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"goscrow/EVMRPC"
	"goscrow/allowance"
	"goscrow/config"
	"goscrow/logger"
	"goscrow/metrics"
	"goscrow/orchestrator"
	"goscrow/redis"
	"goscrow/repository"
	"goscrow/tokens"
	"goscrow/types"
	"goscrow/workers"
	"goscrow/workers/handlers"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the yaml config")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Config

	closer, err := logger.Init(cfg.Log.Level, cfg.Log.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()
	logger.Logger.Info("Starting escrow sync service")

	escrow, ok := EVMRPC.ParseAddress(cfg.EVM.EscrowAddress)
	if !ok {
		logger.Logger.Fatalf("invalid escrow address %q", cfg.EVM.EscrowAddress)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := EVMRPC.Dial(ctx, cfg.EVM.RPCList, cfg.EVM.ChainID, escrow)
	if err != nil {
		logger.Logger.Fatalf("error connecting to the ledger: %v", err)
	}
	defer client.Close()

	// without a key only reads are served; keep writer a nil interface
	var writer EVMRPC.Writer
	signer, err := EVMRPC.NewSigner(client, cfg.EVM.PrivateKey, cfg.EVM.GasLimit)
	switch {
	case err == nil:
		writer = signer
		logger.Logger.Infof("Signing as %s", types.LowerHex(signer.Account()))
	case errors.Is(err, types.ErrNoSigningIdentity) && cfg.EVM.PrivateKey == "":
		logger.Logger.Warn("No private key configured, serving reads only")
	default:
		logger.Logger.Fatalf("error loading signing key: %v", err)
	}

	m := metrics.New()
	cache := tokens.NewMetadataCache(client, m)
	repo := repository.New(client, cache, m)
	trail := orchestrator.NewTrail(cfg.Polling.AuditCap)

	var mirror *redis.Mirror
	if cfg.Server.RedisHost != "" {
		mirror = redis.New(cfg.Server.RedisHost, cfg.Server.RedisPort, cfg.Polling.AuditCap)
		defer mirror.Close()
		if err := mirror.Ping(); err != nil {
			// the mirror is advisory, the service runs without it
			logger.Logger.Warnf("Redis not reachable yet: %v", err)
		}
		repo.SetMirror(mirror)
		trail.SetSink(mirror)
	}

	orch := orchestrator.New(client, writer, allowance.NewCoordinator(client, writer, m), cache, trail, m)

	account := common.Address{}
	if writer != nil {
		account = writer.Account()
	} else if cfg.EVM.Account != "" {
		a, ok := EVMRPC.ParseAddress(cfg.EVM.Account)
		if !ok {
			logger.Logger.Fatalf("invalid account %q", cfg.EVM.Account)
		}
		account = a
	}

	sched := workers.NewScheduler(cfg.Polling.Interval, m)
	sched.Add(
		workers.NewStream(types.StreamOperations, repo.FetchOperations, func(ops []types.Operation) {
			repo.ApplyOperations(ops)
		}),
		workers.NewStream(types.StreamTokens, repo.FetchTokens, repo.ApplyTokens),
		workers.NewStream(types.StreamBalances, func(ctx context.Context) (repository.BalancesSnapshot, error) {
			return repo.FetchBalances(ctx, account)
		}, repo.ApplyBalances),
	)
	orch.SetRefresher(sched)

	if err := sched.Start(ctx); err != nil {
		logger.Logger.Fatalf("error starting polling: %v", err)
	}

	api := &handlers.API{
		Ledger:       client,
		Repository:   repo,
		Metadata:     cache,
		Orchestrator: orch,
		Poller:       sched,
		Health:       client,
	}
	if mirror != nil {
		api.Redis = mirror
	}

	workers.Worker_HTTP(workers.NewRouter(api, m.Handler(), cfg.Server.WriteRPS, cfg.Server.WriteBurst))

	sched.Stop()
	logger.Logger.Info("Escrow sync service stopped")
}
