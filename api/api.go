/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/typesense/typesense-go/typesense/api"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jerry-enebeli/payrelay"
	"github.com/jerry-enebeli/payrelay/api/middleware"
	"github.com/jerry-enebeli/payrelay/config"
	"github.com/jerry-enebeli/payrelay/internal/apierror"
)

type Api struct {
	payrelay *payrelay.Payrelay
	rates    payrelay.RateReader
	router   *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/transactions", a.CreateTransaction)
	router.GET("/transactions/:id", a.GetTransactionStatus)
	router.POST("/transactions/:id/cancel", a.CancelTransaction)

	router.POST("/operators", a.CreateOperator)
	router.GET("/operators/:id", a.GetOperator)
	router.PUT("/operators/:id/balance", a.UpdateOperatorBalance)

	router.POST("/operator-actions", a.HandleOperatorAction)
	router.POST("/operator-actions/proof", a.UploadProof)
	router.GET("/proofs/:filename", a.GetProof)

	router.GET("/rates/:from/:to", a.GetRate)

	router.POST("/search/:collection", a.Search)
	return a.router
}

// NewAPI builds the gin engine. rates may be nil when the aggregator is disabled.
func NewAPI(p *payrelay.Payrelay, rates payrelay.RateReader) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	r := gin.Default()
	r.Use(otelgin.Middleware("PAYRELAY"))
	r.Use(middleware.RateLimitMiddleware(conf))
	r.Use(middleware.NewAuthMiddleware(conf).Authenticate())

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, "server running...")
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	return &Api{payrelay: p, rates: rates, router: r}
}

func respondError(c *gin.Context, err error) {
	c.JSON(apierror.MapErrorToHTTPStatus(err), gin.H{"error": err.Error()})
}

func (a Api) Search(c *gin.Context) {
	collection, passed := c.Params.Get("collection")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "collection is required. pass id in the route /:collection"})
		return
	}

	var query api.SearchCollectionParams
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := a.payrelay.Search(c.Request.Context(), collection, &query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
