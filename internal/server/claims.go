package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/claimsync/internal/audit/domain"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	obscontext "github.com/smallbiznis/claimsync/internal/observability/context"
	"github.com/smallbiznis/claimsync/pkg/db/pagination"
)

type decisionRequest struct {
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
	Note     string `json:"note"`
}

func (s *Server) ListClaims(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
		Wallet string `form:"wallet"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.insSvc.ListClaims(c.Request.Context(), insurancedomain.ListClaimsRequest{
		Wallet:    query.Wallet,
		Status:    query.Status,
		PageToken: query.PageToken,
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// DecideClaim accepts or rejects a claim on behalf of an operator.
func (s *Server) DecideClaim(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Actor) == "" {
		AbortWithError(c, newValidationError("actor", "required", "actor is required"))
		return
	}

	ctx := obscontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeOperator), strings.TrimSpace(req.Actor))
	resp, err := s.insSvc.Decide(ctx, insurancedomain.DecisionRequest{
		ClaimID:  strings.TrimSpace(c.Param("claim_id")),
		Decision: req.Decision,
		Actor:    req.Actor,
		Note:     req.Note,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
