package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	insurancedomain "github.com/smallbiznis/claimsync/internal/insurance/domain"
	"github.com/smallbiznis/claimsync/pkg/db/pagination"
)

// GetPayerHistory returns the payer with its coverage, payments and claims.
func (s *Server) GetPayerHistory(c *gin.Context) {
	resp, err := s.insSvc.History(c.Request.Context(), strings.TrimSpace(c.Param("wallet")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPayerClaims(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.insSvc.ListClaims(c.Request.Context(), insurancedomain.ListClaimsRequest{
		Wallet:    strings.TrimSpace(c.Param("wallet")),
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
