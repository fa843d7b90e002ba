package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/claimsync/internal/insurance/domain"
	"gorm.io/gorm"
)

// PayerInput is the out-of-band registration data for one payer.
type PayerInput struct {
	WalletAddress string
	NationalID    string
	FullName      string
	Email         string
	Phone         string
}

// EnsurePayer registers a payer keyed by wallet address. Re-running with the same
// wallet returns the stored payer and created=false.
func EnsurePayer(ctx context.Context, db *gorm.DB, repo domain.Repository, genID *snowflake.Node, input PayerInput) (*domain.Payer, bool, error) {
	if db == nil {
		return nil, false, errors.New("seed database handle is required")
	}
	if repo == nil || genID == nil {
		return nil, false, errors.New("seed dependencies are required")
	}

	wallet, err := domain.NormalizeWallet(input.WalletAddress)
	if err != nil {
		return nil, false, err
	}
	nationalID := strings.TrimSpace(input.NationalID)
	if nationalID == "" {
		return nil, false, domain.ErrInvalidNationalID
	}
	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		return nil, false, domain.ErrInvalidFullName
	}

	var (
		stored  *domain.Payer
		created bool
	)
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		inserted, err := repo.InsertPayer(ctx, tx, &domain.Payer{
			ID:            genID.Generate(),
			WalletAddress: wallet,
			NationalID:    nationalID,
			FullName:      fullName,
			Email:         strings.ToLower(strings.TrimSpace(input.Email)),
			Phone:         strings.TrimSpace(input.Phone),
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return err
		}
		created = inserted

		stored, err = repo.FindPayerByWallet(ctx, tx, wallet)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrPayerNotFound
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}
