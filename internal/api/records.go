package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/logging"
	"devmind/datacollector/internal/services"

	"github.com/go-chi/chi/v5"
)

// ListRecordsHandler handles GET /api/v1/collector/records?platform=&is_deleted=&page=&page_size=
func ListRecordsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		filter := repositories.RecordFilter{
			OwnerID:  ownerID,
			Platform: q.Get("platform"),
		}
		if v := q.Get("is_deleted"); v != "" {
			deleted, err := strconv.ParseBool(v)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "is_deleted must be true or false")
				return
			}
			filter.IsDeleted = &deleted
		}
		filter.Page, _ = strconv.Atoi(q.Get("page"))
		filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))

		list, err := deps.Services.Records.List(r.Context(), filter)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, list)
	}
}

// GetRecordHandler handles GET /api/v1/collector/records/{record_uuid}
func GetRecordHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		record, err := deps.Services.Records.Get(r.Context(), ownerID, chi.URLParam(r, "record_uuid"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, record)
	}
}

// DownloadAttachmentHandler handles GET /api/v1/collector/records/{record_uuid}/attachments/{attachment_uuid}/download
func DownloadAttachmentHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		download, err := deps.Services.Records.OpenAttachment(r.Context(), ownerID,
			chi.URLParam(r, "record_uuid"), chi.URLParam(r, "attachment_uuid"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		streamAttachment(w, download)
	}
}

// CreateDownloadLinkHandler handles POST /api/v1/collector/records/{record_uuid}/attachments/{attachment_uuid}/link
func CreateDownloadLinkHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		link, err := deps.Services.Records.CreateDownloadLink(r.Context(), ownerID,
			chi.URLParam(r, "record_uuid"), chi.URLParam(r, "attachment_uuid"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, link)
	}
}

// SignedDownloadHandler handles GET /api/v1/collector/files/{token}. The token is the only credential.
func SignedDownloadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		download, err := deps.Services.Records.OpenSignedAttachment(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		streamAttachment(w, download)
	}
}

// RecordStatsHandler handles GET /api/v1/collector/stats
func RecordStatsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := requireOwner(w, r)
		if !ok {
			return
		}

		stats, err := deps.Services.Stats.RecordStats(r.Context(), ownerID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		respondWithSuccess(w, http.StatusOK, stats)
	}
}

func streamAttachment(w http.ResponseWriter, download *services.AttachmentDownload) {
	defer download.Content.Close()

	contentType := download.FileType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.FileName}))
	if download.FileSize >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(download.FileSize, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, download.Content); err != nil {
		logging.Warn("Attachment stream interrupted", "file", download.FileName, "error", err.Error())
	}
}
