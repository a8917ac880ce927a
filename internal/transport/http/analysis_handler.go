package http

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "custos/internal/errors"
	"custos/internal/infrastructure"
	"custos/internal/middleware"
	"custos/internal/services"
	api "custos/pkg/contracts/api/v1"
	"custos/pkg/contracts/domain"
)

// XLSXContentType is the media type of exported workbooks
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// multipartMemory is how much of an upload is kept in memory before spilling to disk
const multipartMemory = 8 << 20

// AnalysisHandler handles analysis HTTP requests with RFC 7807 compliance
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	validator    *middleware.Validator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	return &AnalysisHandler{
		service:      service,
		validator:    middleware.NewValidator(),
		logger:       infrastructure.WithComponent(logger, "analysis_handler"),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/", h.Upload)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Views)
		r.With(middleware.ContentTypeValidator("application/json")).Patch("/", h.Rename)
		r.Delete("/", h.Delete)
		r.Get("/rows", h.Rows)
		r.With(middleware.ContentTypeValidator("application/json")).Post("/rows/rescale", h.Rescale)
		r.Get("/accounts/{account}", h.AccountDetail)
		r.Get("/export", h.Export)
	})

	return r
}

// List handles GET /api/analyses
func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, list)
}

// Upload handles POST /api/analyses
func (h *AnalysisHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
		return
	}
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer file.Close()

	form := api.UploadForm{Name: r.FormValue("name"), FileName: header.Filename}
	if err := h.validator.ValidateStruct(form); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	a, err := h.service.Upload(r.Context(), services.UploadInput{
		Name:     form.Name,
		FileName: form.FileName,
		Reader:   file,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/analyses/"+a.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, a.Summary())
}

// Views handles GET /api/analyses/{id}
func (h *AnalysisHandler) Views(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.Views(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, views)
}

// Rows handles GET /api/analyses/{id}/rows
func (h *AnalysisHandler) Rows(w http.ResponseWriter, r *http.Request) {
	table, err := h.service.Rows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, table)
}

// AccountDetail handles GET /api/analyses/{id}/accounts/{account}
func (h *AnalysisHandler) AccountDetail(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when it is set, leaving the param escaped. Otherwise
	// the param is already decoded and a literal "%" must stay as is.
	account := chi.URLParam(r, "account")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(account)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}
		account = unescaped
	}

	detail, err := h.service.AccountDetail(r.Context(), chi.URLParam(r, "id"), account)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, detail)
}

// Rename handles PATCH /api/analyses/{id}
func (h *AnalysisHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req api.RenameRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	a, err := h.service.Rename(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, a.Summary())
}

// Delete handles DELETE /api/analyses/{id}
func (h *AnalysisHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rescale handles POST /api/analyses/{id}/rows/rescale
func (h *AnalysisHandler) Rescale(w http.ResponseWriter, r *http.Request) {
	var req api.RescaleRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ref := domain.RowRef{RowID: req.RowID, Account: req.Account}
	views, err := h.service.Rescale(r.Context(), chi.URLParam(r, "id"), ref, *req.NewTotal)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, views)
}

// Export handles GET /api/analyses/{id}/export
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	file, err := h.service.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Content)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(file.Content); err != nil {
		h.logger.WarnContext(r.Context(), "Export download interrupted",
			slog.String("file_name", file.Name),
			slog.String("error", err.Error()))
	}
}
