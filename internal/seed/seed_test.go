package seed

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/internal/insurance/repository"
	"github.com/smallbiznis/claimsync/internal/testutil"
)

func TestEnsurePayerIsIdempotentByWallet(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := repository.New()
	ctx := context.Background()

	input := PayerInput{
		WalletAddress: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed",
		NationalID:    "3201010101010001",
		FullName:      "Siti Rahma",
		Email:         "Siti@Example.com",
	}

	first, created, err := EnsurePayer(ctx, db, repo, node, input)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if !created {
		t.Fatalf("expected payer to be created")
	}
	if first.WalletAddress != "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" {
		t.Fatalf("expected checksummed wallet, got %s", first.WalletAddress)
	}
	if first.Email != "siti@example.com" {
		t.Fatalf("expected lower-cased email, got %s", first.Email)
	}

	second, created, err := EnsurePayer(ctx, db, repo, node, input)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if created {
		t.Fatalf("expected existing payer to be reused")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same payer id, got %s and %s", first.ID, second.ID)
	}
}

func TestEnsurePayerRejectsDuplicateNationalID(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := repository.New()
	ctx := context.Background()

	if _, _, err := EnsurePayer(ctx, db, repo, node, PayerInput{
		WalletAddress: "0x00000000000000000000000000000000000000aa",
		NationalID:    "N-1",
		FullName:      "First",
	}); err != nil {
		t.Fatalf("seed first payer: %v", err)
	}

	_, _, err := EnsurePayer(ctx, db, repo, node, PayerInput{
		WalletAddress: "0x00000000000000000000000000000000000000bb",
		NationalID:    "N-1",
		FullName:      "Second",
	})
	if !errors.Is(err, domain.ErrDuplicateNationalID) {
		t.Fatalf("expected ErrDuplicateNationalID, got %v", err)
	}
}

func TestEnsurePayerValidatesInput(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	repo := repository.New()

	_, _, err := EnsurePayer(context.Background(), db, repo, node, PayerInput{WalletAddress: "nope", NationalID: "x", FullName: "y"})
	if !errors.Is(err, domain.ErrInvalidWallet) {
		t.Fatalf("expected ErrInvalidWallet, got %v", err)
	}
}
