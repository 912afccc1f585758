package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camcap/internal/api/models"
	"github.com/smazurov/camcap/pkg/capture"
)

func (s *Server) registerControlRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-controls",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{index}/controls",
		Summary:     "List Controls",
		Description: "List the controls the camera exposes with their current values",
		Tags:        []string{"controls"},
		Errors:      []int{401, 500, 501, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraPath) (*models.ControlListResponse, error) {
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		controls, err := session.CameraControls(ctx)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		out := make([]models.ControlData, len(controls))
		for i, c := range controls {
			out[i] = controlData(c)
		}
		return &models.ControlListResponse{
			Body: models.ControlListData{Controls: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-control",
		Method:      http.MethodPut,
		Path:        "/api/cameras/{index}/controls/{control}",
		Summary:     "Set Control",
		Description: "Validate and apply a control value, returning the control as read back from the camera",
		Tags:        []string{"controls"},
		Errors:      []int{401, 422, 500, 501, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetControlRequest) (*models.ControlResponse, error) {
		id, err := capture.ParseKnownControl(input.Control)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error(), err)
		}
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		desc, err := session.CameraControl(ctx, id)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		value, err := capture.ParseControlValue(desc.Kind, input.Body.Value, desc.Menu)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		if err := session.SetCameraControl(ctx, id, value); err != nil {
			return nil, mapCaptureError(err)
		}
		current, err := session.CameraControl(ctx, id)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		return &models.ControlResponse{Body: controlData(current)}, nil
	})
}

func controlData(c capture.CameraControl) models.ControlData {
	var menu []models.MenuEntryData
	for _, m := range c.Menu {
		menu = append(menu, models.MenuEntryData{Index: m.Index, Name: m.Name})
	}
	return models.ControlData{
		Control: c.ID.String(),
		Name:    c.Name,
		Kind:    string(c.Kind),
		Value:   c.Current.String(),
		Min:     c.Min,
		Max:     c.Max,
		Step:    c.Step,
		Default: c.Default,
		Menu:    menu,
		Flags:   c.Flags.Names(),
	}
}
