package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/username/portafolio/backend/src/logger"
	"github.com/username/portafolio/backend/src/models"
	"github.com/username/portafolio/backend/src/security/validation"
	"github.com/username/portafolio/backend/src/services"
	"github.com/username/portafolio/backend/src/utils"
)

// multipartOverhead is allowed on top of the file size limit for form fields and boundaries.
const multipartOverhead = 1 << 20

type UploadHandler struct {
	uploadService    services.UploadService
	maxUploadSize    int64
	supportedBrokers []string
}

// NewUploadHandler builds the handler. supportedBrokers is the upload allow-list;
// the service still decides whether a parser exists for each broker.
func NewUploadHandler(service services.UploadService, maxUploadSize int64, supportedBrokers []string) *UploadHandler {
	return &UploadHandler{
		uploadService:    service,
		maxUploadSize:    maxUploadSize,
		supportedBrokers: supportedBrokers,
	}
}

func (h *UploadHandler) HandleProcessFile(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		log.Warn("Failed to parse multipart form or request too large", "error", err, "limit", h.maxUploadSize)
		utils.SendJSONError(w, utils.CodeInvalidRequest, fmt.Sprintf("Failed to parse form or request too large (max %s)", humanize.Bytes(uint64(h.maxUploadSize))), http.StatusBadRequest)
		return
	}

	brokerKey := strings.TrimSpace(r.FormValue("brokerKey"))
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		log.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, utils.CodeInvalidRequest, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	fileName := validation.SanitizeFileName(fileHeader.Filename)
	req := validation.UploadRequest{FileName: fileName, SizeInBytes: fileHeader.Size, BrokerKey: brokerKey}
	if err := validation.ValidateUploadRequest(req, h.maxUploadSize, h.supportedBrokers); err != nil {
		utils.SendJSONError(w, utils.CodeInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file, fileName)
	if err != nil {
		log.Warn("Server-side file content validation failed", "filename", fileName, "error", err)
		utils.SendJSONError(w, utils.CodeInvalidFile, err.Error(), http.StatusBadRequest)
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = detectedContentType
	}
	log.Info("Processing upload request", "filename", fileName, "brokerKey", brokerKey, "clientType", contentType, "detectedType", detectedContentType)

	result, err := h.uploadService.ProcessFile(r.Context(), services.ProcessFileRequest{
		FileName:    fileName,
		SizeInBytes: fileHeader.Size,
		ContentType: contentType,
		BrokerKey:   brokerKey,
		Content:     file,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateFile):
			utils.SendJSONError(w, utils.CodeDuplicateFile, "This file has already been processed", http.StatusConflict)
		case errors.Is(err, services.ErrUnsupportedFile), errors.Is(err, models.ErrInvalidState):
			utils.SendJSONError(w, utils.CodeUnsupportedFile, err.Error(), http.StatusBadRequest)
		default:
			log.Error("Internal error processing upload", "filename", fileName, "error", err)
			utils.SendJSONError(w, utils.CodeInternal, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	utils.SendJSON(w, result, http.StatusOK)
}

func (h *UploadHandler) HandleGetDataPoint(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.SendJSONError(w, utils.CodeInvalidRequest, "Invalid data point id", http.StatusBadRequest)
		return
	}

	view, err := h.uploadService.GetDataPoint(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			utils.SendJSONError(w, utils.CodeNotFound, fmt.Sprintf("Data point %s not found", id), http.StatusNotFound)
			return
		}
		log.Error("Error retrieving data point", "dataPointId", id, "error", err)
		utils.SendJSONError(w, utils.CodeInternal, "An internal error occurred while retrieving the data point.", http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(view)
	if etagErr != nil {
		log.Error("Failed to generate ETag for data point", "dataPointId", id, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")
	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				log.Debug("ETag match for data point", "dataPointId", id)
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	utils.SendJSON(w, view, http.StatusOK)
}

func (h *UploadHandler) HandleGetBrokers(w http.ResponseWriter, r *http.Request) {
	utils.SendJSON(w, map[string][]string{
		"brokers":    h.uploadService.SupportedBrokers(),
		"extensions": h.uploadService.SupportedExtensions(),
	}, http.StatusOK)
}
