// Command claimsync-seed registers a payer so that its premium payments can be reconciled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimsync/internal/config"
	"github.com/smallbiznis/claimsync/internal/insurance/repository"
	"github.com/smallbiznis/claimsync/internal/migration"
	"github.com/smallbiznis/claimsync/internal/observability/logger"
	"github.com/smallbiznis/claimsync/internal/seed"
	"github.com/smallbiznis/claimsync/pkg/db"
	"go.uber.org/zap"
)

func main() {
	var input seed.PayerInput
	flag.StringVar(&input.WalletAddress, "wallet", "", "payer wallet address (0x...)")
	flag.StringVar(&input.NationalID, "national-id", "", "payer national identity number")
	flag.StringVar(&input.FullName, "name", "", "payer full name")
	flag.StringVar(&input.Email, "email", "", "payer email")
	flag.StringVar(&input.Phone, "phone", "", "payer phone number")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	if err := run(input, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "claimsync-seed:", err)
		os.Exit(1)
	}
}

func run(input seed.PayerInput, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := conn.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := migration.Run(conn); err != nil {
		return err
	}

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	payer, created, err := seed.EnsurePayer(ctx, conn, repository.New(), node, input)
	if err != nil {
		return err
	}

	log.Info("payer registered",
		zap.String("payer_id", payer.ID.String()),
		zap.String("wallet", payer.WalletAddress),
		zap.String("national_id", logger.MaskIdentifier(payer.NationalID)),
		zap.Bool("created", created),
	)
	return nil
}
