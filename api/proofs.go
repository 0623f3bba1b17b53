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
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jerry-enebeli/payrelay/internal/apierror"
	"github.com/jerry-enebeli/payrelay/model"
)

// GetProof streams a recorded proof artifact.
func (a Api) GetProof(c *gin.Context) {
	filename := c.Param("filename")

	rc, contentType, err := a.payrelay.GetProofFile(c.Request.Context(), filename)
	if err != nil {
		respondError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, rc, map[string]string{
		"Cache-Control": "private, max-age=3600",
	})
}

// GetRate serves the consensus rate from the aggregator cache or the store.
func (a Api) GetRate(c *gin.Context) {
	if a.rates == nil {
		respondError(c, apierror.NewAPIError(apierror.ErrNotFound, "rate aggregation is not enabled", nil))
		return
	}
	pair := model.Pair{From: strings.ToUpper(c.Param("from")), To: strings.ToUpper(c.Param("to"))}

	rate, err := a.rates.GetRate(c.Request.Context(), pair)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rate)
}
