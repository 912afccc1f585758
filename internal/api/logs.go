package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camcap/internal/api/models"
	"github.com/smazurov/camcap/internal/logging"
)

// registerLogRoutes registers log history and runtime level control.
func (s *Server) registerLogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-logs",
		Method:      http.MethodGet,
		Path:        "/api/logs",
		Summary:     "Recent Logs",
		Description: "Return the in-memory log history, oldest first, filtered by module, camera, capture operation, level or sequence",
		Tags:        []string{"logs"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.LogsRequest) (*models.LogsResponse, error) {
		minLevel, err := logging.ParseFilterLevel(input.Level)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		filter := logging.Filter{
			Module:   input.Module,
			Camera:   input.Camera,
			Op:       input.Op,
			MinLevel: minLevel,
			After:    input.After,
		}

		entries := []models.LogEntryData{}
		for _, e := range logging.History().Query(filter) {
			entries = append(entries, models.LogEntryData{
				Seq:        e.Seq,
				Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Camera:     e.Camera,
				Op:         e.Op,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		}
		return &models.LogsResponse{
			Body: models.LogsData{Entries: entries, Count: len(entries)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-log-level",
		Method:      http.MethodPut,
		Path:        "/api/logs/level",
		Summary:     "Set Log Level",
		Description: "Change the level of one module, or the default level when module is empty",
		Tags:        []string{"logs"},
		Errors:      []int{401, 422},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetLevelRequest) (*models.SetLevelResponse, error) {
		if err := logging.SetLevel(input.Body.Module, input.Body.Level); err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error(), err)
		}
		resp := &models.SetLevelResponse{}
		resp.Body.Module = input.Body.Module
		resp.Body.Level = input.Body.Level
		return resp, nil
	})
}
