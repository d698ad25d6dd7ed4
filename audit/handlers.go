package audit

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// RegisterRoutes mounts the audit API on rg.
func RegisterRoutes(rg *gin.RouterGroup, svc *Service) {
	rg.GET("/schema", SchemaHandler(svc))
	rg.GET("/batches", ListBatchesHandler(svc))
	rg.DELETE("/batch/:batchId", DeleteBatchHandler(svc))
	rg.GET("/batch/:batchId/years", PartitionsHandler(svc))
	rg.GET("/batch/:batchId/status", StatusHandler(svc))
	rg.GET("/batch/:batchId/config", GetConfigHandler(svc))
	rg.PUT("/batch/:batchId/config", SaveConfigHandler(svc))
	rg.GET("/batch/:batchId/export", ExportHandler(svc))
	rg.GET("/:batchId", GetBatchHandler(svc))
	rg.PATCH("/sync/:id", SyncHandler(svc))
	rg.PATCH("/staging/:id", UpdateStagingHandler(svc))
}

// mappingFromQuery reads key_field and the map_* overrides.
func mappingFromQuery(c *gin.Context) models.FieldMapping {
	return models.FieldMapping{
		KeyField:          models.KeyField(strings.TrimSpace(c.Query("key_field"))),
		KeyColumn:         c.Query("map_edital"),
		TitleColumn:       c.Query("map_titulo"),
		DescriptionColumn: c.Query("map_descricao"),
	}
}

func anoFromQuery(c *gin.Context) *string {
	ano := strings.TrimSpace(c.Query("ano"))
	if ano == "" {
		return nil
	}
	return &ano
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewValidationError(name, "must be an integer")
	}
	return v, nil
}

func idParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, utils.NewValidationError("id", "invalid id")
	}
	return uint(id), nil
}

func SchemaHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		columns, err := svc.LegacySchema(c.Request.Context())
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.SchemaHandler", err)
			return
		}
		c.JSON(http.StatusOK, columns)
	}
}

func ListBatchesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		batches, err := svc.ListBatches(c.Request.Context())
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.ListBatchesHandler", err)
			return
		}
		c.JSON(http.StatusOK, batches)
	}
}

func DeleteBatchHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.DeleteBatch(c.Request.Context(), c.Param("batchId"))
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.DeleteBatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func PartitionsHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts, err := svc.BatchPartitions(c.Request.Context(), c.Param("batchId"))
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.PartitionsHandler", err)
			return
		}
		c.JSON(http.StatusOK, parts)
	}
}

func StatusHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := svc.BatchStatus(c.Request.Context(), c.Param("batchId"))
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.StatusHandler", err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func GetConfigHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := svc.GetBatchConfig(c.Request.Context(), c.Param("batchId"))
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.GetConfigHandler", err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

func SaveConfigHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var m models.FieldMapping
		if err := c.ShouldBindJSON(&m); err != nil {
			utils.RespondError(c, svc.logger, "audit.SaveConfigHandler", utils.BindingError(err))
			return
		}
		cfg, err := svc.SaveBatchConfig(c.Request.Context(), c.Param("batchId"), m)
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.SaveConfigHandler", err)
			return
		}
		c.JSON(http.StatusOK, cfg)
	}
}

func ExportHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		batchId := c.Param("batchId")
		rows, err := svc.ExportBatch(c.Request.Context(), batchId, anoFromQuery(c), mappingFromQuery(c))
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.ExportHandler", err)
			return
		}
		var buf bytes.Buffer
		if err := WriteWorkbook(&buf, rows); err != nil {
			utils.RespondError(c, svc.logger, "audit.ExportHandler", err)
			return
		}
		c.Header("Content-Disposition", "attachment; filename="+ExportFileName(batchId))
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func GetBatchHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := intQuery(c, "page")
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.GetBatchHandler", err)
			return
		}
		limit, err := intQuery(c, "limit")
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.GetBatchHandler", err)
			return
		}
		result, err := svc.GetBatch(c.Request.Context(), BatchQuery{
			BatchId: c.Param("batchId"),
			Ano:     anoFromQuery(c),
			Page:    page,
			Limit:   limit,
			Mapping: mappingFromQuery(c),
		})
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.GetBatchHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func SyncHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := idParam(c)
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.SyncHandler", err)
			return
		}
		var req SyncRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondError(c, svc.logger, "audit.SyncHandler", utils.BindingError(err))
			return
		}
		if err := svc.Sync(c.Request.Context(), id, req); err != nil {
			utils.RespondError(c, svc.logger, "audit.SyncHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func UpdateStagingHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := idParam(c)
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.UpdateStagingHandler", err)
			return
		}
		var patch models.StagingPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			utils.RespondError(c, svc.logger, "audit.UpdateStagingHandler", utils.BindingError(err))
			return
		}
		item, err := svc.UpdateStaging(c.Request.Context(), id, patch)
		if err != nil {
			utils.RespondError(c, svc.logger, "audit.UpdateStagingHandler", err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}
