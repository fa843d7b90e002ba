package domain

import (
	"context"

	"github.com/smallbiznis/claimsync/pkg/db/pagination"
)

// PayerHistory is the read model behind the buyer history endpoint.
type PayerHistory struct {
	Payer    Payer           `json:"payer"`
	Coverage *Coverage       `json:"coverage,omitempty"`
	Payments []PaymentRecord `json:"payments"`
	Claims   []Claim         `json:"claims"`
}

type ListClaimsRequest struct {
	Wallet    string
	Status    string
	PageToken string
	PageSize  int
}

type ListClaimsResponse struct {
	Claims   []Claim             `json:"claims"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type DecisionRequest struct {
	ClaimID  string
	Decision string
	Actor    string
	Note     string
}

const (
	DecisionAccept = "accept"
	DecisionReject = "reject"
)

type Service interface {
	History(ctx context.Context, wallet string) (*PayerHistory, error)
	ListClaims(ctx context.Context, req ListClaimsRequest) (ListClaimsResponse, error)
	Decide(ctx context.Context, req DecisionRequest) (*Claim, error)
}
