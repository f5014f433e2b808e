package api

import (
	"context"
	"net/http"

	"github.com/ferro-labs/genai-gateway/internal/apierror"
	"github.com/ferro-labs/genai-gateway/internal/httpio"
	"github.com/ferro-labs/genai-gateway/internal/upstream"
	"github.com/ferro-labs/genai-gateway/providers"
)

type fileResponse struct {
	File *providers.File `json:"file"`
}

// uploadFile handles POST /files/upload?displayName=&mimeType= with a raw body.
func (h *Handlers) uploadFile(w http.ResponseWriter, r *http.Request) {
	displayName, err := httpio.RequireQuery(r, "displayName")
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	mimeType, err := httpio.RequireQuery(r, "mimeType")
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	data, err := httpio.ReadBody(w, r, h.maxUploadBytes())
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	if len(data) == 0 {
		apierror.Write(w, r, httpio.InvalidRequest("request body is empty"))
		return
	}

	file, err := upstream.Run(r.Context(), h.Upstream, func(ctx context.Context, call upstream.Call) (*providers.File, error) {
		return call.Provider.UploadFile(ctx, providers.FileUpload{
			DisplayName: displayName,
			MIMEType:    mimeType,
			Data:        data,
		})
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, fileResponse{File: file})
}

// fileMetadata handles GET /files/metadata?name=. A missing file is a normal
// outcome and is answered with {"file": null}.
func (h *Handlers) fileMetadata(w http.ResponseWriter, r *http.Request) {
	name, err := httpio.RequireQuery(r, "name")
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	file, err := upstream.Run(r.Context(), h.Upstream, func(ctx context.Context, call upstream.Call) (*providers.File, error) {
		f, err := call.Provider.GetFile(ctx, name)
		if providers.IsNotFound(err) {
			// The key answered correctly; absence is not a key failure.
			return nil, nil
		}
		return f, err
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, fileResponse{File: file})
}

// deleteFile handles DELETE /files?name=.
func (h *Handlers) deleteFile(w http.ResponseWriter, r *http.Request) {
	name, err := httpio.RequireQuery(r, "name")
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	err = h.Upstream.Do(r.Context(), func(ctx context.Context, call upstream.Call) error {
		return call.Provider.DeleteFile(ctx, name)
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, map[string]string{"deleted": name})
}
