package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/camcap/internal/api/models"
	"github.com/smazurov/camcap/internal/decode"
	"github.com/smazurov/camcap/pkg/capture"
)

func (s *Server) registerCaptureRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "open-stream",
		Method:      http.MethodPost,
		Path:        "/api/cameras/{index}/stream",
		Summary:     "Open Stream",
		Description: "Start streaming. Opening an open stream is a no-op.",
		Tags:        []string{"capture"},
		Errors:      []int{401, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraPath) (*models.StreamResponse, error) {
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		if err := session.OpenStream(ctx); err != nil {
			return nil, mapCaptureError(err)
		}
		return &models.StreamResponse{Body: models.StreamData{State: session.State().String()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-stream",
		Method:      http.MethodDelete,
		Path:        "/api/cameras/{index}/stream",
		Summary:     "Stop Stream",
		Description: "Stop streaming but keep the session",
		Tags:        []string{"capture"},
		Errors:      []int{401, 500, 503},
		Security:    withAuth(),
	}, func(ctx context.Context, input *models.CameraPath) (*models.StreamResponse, error) {
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}
		if err := session.StopStream(ctx); err != nil {
			return nil, mapCaptureError(err)
		}
		return &models.StreamResponse{Body: models.StreamData{State: session.State().String()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "snapshot",
		Method:      http.MethodGet,
		Path:        "/api/cameras/{index}/snapshot",
		Summary:     "Snapshot",
		Description: "Capture one frame. A closed stream is opened for the frame and closed again; an open stream is read from.",
		Tags:        []string{"capture"},
		Errors:      []int{401, 409, 422, 500, 503},
		Security:    withAuth(),
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Frame",
				Content: map[string]*huma.MediaType{
					"image/jpeg":               {},
					"application/octet-stream": {},
				},
			},
		},
	}, func(ctx context.Context, input *models.SnapshotRequest) (*models.SnapshotResponse, error) {
		session, err := s.session(ctx, input.Index)
		if err != nil {
			return nil, err
		}

		var buf *capture.Buffer
		if session.IsStreamOpen() {
			buf, err = session.Frame(ctx)
		} else {
			buf, err = session.OneShot(ctx)
		}
		if err != nil {
			return nil, mapCaptureError(err)
		}

		resp := &models.SnapshotResponse{
			Sequence: strconv.FormatUint(buf.Sequence(), 10),
			Format:   buf.SourceFormat().String(),
		}
		if input.Raw {
			resp.ContentType = "application/octet-stream"
			resp.Body = buf.Bytes()
			return resp, nil
		}
		jpg, err := decode.EncodeJPEG(buf, input.Quality)
		if err != nil {
			return nil, mapCaptureError(err)
		}
		resp.ContentType = "image/jpeg"
		resp.Body = jpg
		return resp, nil
	})
}
