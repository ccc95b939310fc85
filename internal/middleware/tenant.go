package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/pkg/httputil"
)

const ContextBusiness = "business"

// TenantResolver looks a business up by id or slug.
type TenantResolver interface {
	Resolve(ctx context.Context, idOrSlug string) (*model.Business, error)
}

// Tenant resolves the :business path parameter and stores the business in
// the request context.
func Tenant(resolver TenantResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		business, err := resolver.Resolve(c.Request.Context(), c.Param("business"))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Set(ContextBusiness, business)
		c.Next()
	}
}

// BusinessFrom returns the business resolved by Tenant, or nil.
func BusinessFrom(c *gin.Context) *model.Business {
	if v, ok := c.Get(ContextBusiness); ok {
		if b, ok := v.(*model.Business); ok {
			return b
		}
	}
	return nil
}
