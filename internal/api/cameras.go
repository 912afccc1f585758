package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camcap/internal/api/models"
	"github.com/smazurov/camcap/internal/metrics"
	"github.com/smazurov/camcap/pkg/capture"
)

func (s *Server) registerCameraRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-cameras",
		Method:      http.MethodGet,
		Path:        "/api/cameras",
		Summary:     "List Cameras",
		Description: "Enumerate cameras on the configured backend",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 500, 501},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.CameraListResponse, error) {
		infos, err := s.options.Cameras.FindDevices()
		if err != nil {
			return nil, mapCaptureError(err)
		}
		cameras := make([]models.CameraData, len(infos))
		for i, info := range infos {
			cameras[i] = s.cameraData(info)
		}
		return &models.CameraListResponse{
			Body: models.CameraListData{Cameras: cameras, Count: len(cameras)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-camera",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{index}",
		Summary:     "Get Camera Session",
		Description: "Open a session for the camera if needed and report its state, format and counters",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 409, 422, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraPath) (*models.SessionResponse, error) {
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		return &models.SessionResponse{Body: s.sessionData(session)}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "close-camera",
		Method:      http.MethodDelete,
		Path:        "/api/cameras/{index}",
		Summary:     "Close Camera Session",
		Description: "Stop streaming and release the camera",
		Tags:        []string{"cameras"},
		Errors:      []int{401, 500},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraPath) (*struct{}, error) {
		index := capture.ParseIndex(input.Index)
		if err := s.options.Sessions.Close(ctx, index); err != nil {
			return nil, mapCaptureError(err)
		}
		if s.options.Metrics != nil {
			s.options.Metrics.Forget(index.String())
		}
		return nil, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-formats",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{index}/formats",
		Summary:     "List Formats",
		Description: "List every format the camera offers, best first",
		Tags:        []string{"formats"},
		Errors:      []int{401, 500, 501, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraPath) (*models.FormatListResponse, error) {
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		formats, err := session.CompatibleFormats(ctx)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		out := make([]models.FormatData, len(formats))
		for i, f := range formats {
			out[i] = formatData(f)
		}
		return &models.FormatListResponse{
			Body: models.FormatListData{Formats: out, Count: len(out)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-format",
		Method:      http.MethodPut,
		Path:        "/api/cameras/{index}/format",
		Summary:     "Set Format",
		Description: "Resolve a format request against the camera's formats and apply the result",
		Tags:        []string{"formats"},
		Errors:      []int{401, 422, 500, 501, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.SetFormatRequest) (*models.SessionResponse, error) {
		req, err := capture.ParseFormatRequest(input.Body.Request)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		if req.Kind != capture.RequestNone {
			formats, err := session.CompatibleFormats(ctx)
			if err != nil {
				return nil, mapCaptureError(err)
			}
			target, err := req.Resolve(formats)
			if err != nil {
				return nil, mapCaptureError(err)
			}
			if err := session.SetCameraFormat(ctx, target); err != nil {
				return nil, mapCaptureError(err)
			}
		}
		return &models.SessionResponse{Body: s.sessionData(session)}, nil
	})
}

// session returns the session for a path index, opening it if needed.
func (s *Server) session(ctx context.Context, index string) (*capture.AsyncSession, error) {
	session, err := s.options.Sessions.Get(ctx, capture.ParseIndex(index))
	if err != nil {
		return nil, mapCaptureError(err)
	}
	return session, nil
}

func (s *Server) cameraData(info capture.CameraInfo) models.CameraData {
	_, open := s.options.Sessions.Lookup(info.Index)
	return models.CameraData{
		Index:       info.Index.String(),
		Name:        info.HumanName,
		Description: info.Description,
		Misc:        info.Misc,
		Backend:     string(info.Backend),
		Session:     open,
	}
}

func (s *Server) sessionData(session *capture.AsyncSession) models.SessionData {
	info := session.Info()
	var stats metrics.Stats
	if s.options.Metrics != nil {
		stats, _ = s.options.Metrics.Stats(info.Index.String())
	}
	return models.SessionData{
		Camera: s.cameraData(info),
		State:  session.State().String(),
		Format: formatData(session.CameraFormat()),
		Stats:  stats,
	}
}

func formatData(f capture.CameraFormat) models.FormatData {
	return models.FormatData{
		Width:     f.Width(),
		Height:    f.Height(),
		FourCC:    f.Format.String(),
		FrameRate: f.FrameRate.String(),
		FPS:       f.FrameRate.Float(),
		Display:   f.String(),
	}
}
