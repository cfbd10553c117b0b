package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"devmind/datacollector/internal/common"
	"devmind/datacollector/internal/constants"
	"devmind/datacollector/internal/db/repositories"
	"devmind/datacollector/internal/models/dtos/responses"
	gormModels "devmind/datacollector/internal/models/gorm"
	"devmind/datacollector/internal/storage"
)

const downloadLinkTTL = 15 * time.Minute

// AttachmentDownload is an open attachment ready to stream. The caller closes Content.
type AttachmentDownload struct {
	FileName string
	FileType string
	FileSize int64 // size of Content, -1 when the store cannot tell
	Content  io.ReadCloser
}

// DownloadLink is a presigned single-use download URL
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RecordService is the read side over collected records and their attachments
type RecordService struct {
	records     *repositories.RawDataRecordRepo
	attachments *repositories.RawDataAttachmentRepo
	blobs       storage.BlobStore
	signer      *common.URLSignerService
	apiPrefix   string
}

// NewRecordService wires the record read side. signer may be nil, which disables presigned links.
func NewRecordService(records *repositories.RawDataRecordRepo, attachments *repositories.RawDataAttachmentRepo, blobs storage.BlobStore, signer *common.URLSignerService, apiPrefix string) *RecordService {
	return &RecordService{
		records:     records,
		attachments: attachments,
		blobs:       blobs,
		signer:      signer,
		apiPrefix:   apiPrefix,
	}
}

func (s *RecordService) List(ctx context.Context, filter repositories.RecordFilter) (*responses.RecordListResponse, error) {
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}

	items := make([]responses.RecordSummary, 0, len(records))
	for i := range records {
		items = append(items, toRecordSummary(&records[i]))
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	return &responses.RecordListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: size,
	}, nil
}

func (s *RecordService) Get(ctx context.Context, ownerID, recordUUID string) (*responses.RecordDetailResponse, error) {
	record, err := s.records.GetForOwner(ctx, ownerID, recordUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if record == nil {
		return nil, newServiceError(constants.ErrCodeRecordNotFound, nil)
	}

	attachments := make([]responses.AttachmentResponse, 0, len(record.Attachments))
	for _, att := range record.Attachments {
		attachments = append(attachments, responses.AttachmentResponse{
			UUID:         att.UUID,
			SourceFileID: att.SourceFileID,
			FileName:     att.FileName,
			FileType:     att.FileType,
			FileSize:     att.FileSize,
			FileMD5:      att.FileMD5,
			FileURL:      att.FileURL,
			DownloadURL:  s.downloadPath(record.UUID, att.UUID),
		})
	}

	return &responses.RecordDetailResponse{
		RecordSummary:  toRecordSummary(record),
		DataHash:       record.DataHash,
		RawData:        record.RawData,
		FilterMetadata: record.FilterMetadata,
		Attachments:    attachments,
	}, nil
}

// OpenAttachment resolves an owner's attachment and opens its blob
func (s *RecordService) OpenAttachment(ctx context.Context, ownerID, recordUUID, attachmentUUID string) (*AttachmentDownload, error) {
	record, err := s.records.GetByUUID(ctx, recordUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if record == nil || record.OwnerID != ownerID {
		return nil, newServiceError(constants.ErrCodeRecordNotFound, nil)
	}

	att, err := s.attachments.GetForRecord(ctx, recordUUID, attachmentUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if att == nil || att.FilePath == "" {
		return nil, newServiceError(constants.ErrCodeAttachmentNotFound, nil)
	}

	content, err := s.blobs.Open(ctx, att.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, newServiceError(constants.ErrCodeAttachmentNotFound, err)
		}
		return nil, newServiceError(constants.ErrCodeStorageUnavailable, err)
	}

	return &AttachmentDownload{
		FileName: att.FileName,
		FileType: att.FileType,
		FileSize: blobSize(content),
		Content:  content,
	}, nil
}

// CreateDownloadLink presigns a single-use download of an owner's attachment
func (s *RecordService) CreateDownloadLink(ctx context.Context, ownerID, recordUUID, attachmentUUID string) (*DownloadLink, error) {
	if s.signer == nil {
		return nil, &ServiceError{Code: constants.ErrCodeInternal, Message: "download links are not configured"}
	}

	record, err := s.records.GetByUUID(ctx, recordUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if record == nil || record.OwnerID != ownerID {
		return nil, newServiceError(constants.ErrCodeRecordNotFound, nil)
	}
	att, err := s.attachments.GetForRecord(ctx, recordUUID, attachmentUUID)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	if att == nil {
		return nil, newServiceError(constants.ErrCodeAttachmentNotFound, nil)
	}

	token, expiresAt, err := s.signer.GeneratePresignedToken(ownerID, recordUUID, attachmentUUID, downloadLinkTTL)
	if err != nil {
		return nil, newServiceError(constants.ErrCodeInternal, err)
	}
	return &DownloadLink{
		URL:       fmt.Sprintf("%s/files/%s", s.apiPrefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenSignedAttachment redeems a presigned token. The token cannot be used again.
func (s *RecordService) OpenSignedAttachment(ctx context.Context, token string) (*AttachmentDownload, error) {
	if s.signer == nil {
		return nil, newServiceError(constants.ErrCodeAttachmentNotFound, nil)
	}

	signed, err := s.signer.ValidateToken(ctx, token)
	if err != nil {
		return nil, &ServiceError{Code: constants.ErrCodeAttachmentNotFound, Message: "invalid or expired link", Err: err}
	}

	download, err := s.OpenAttachment(ctx, signed.OwnerID, signed.RecordUUID, signed.AttachmentUUID)
	if err != nil {
		return nil, err
	}
	s.signer.MarkTokenAsUsed(ctx, signed)
	return download, nil
}

func (s *RecordService) downloadPath(recordUUID, attachmentUUID string) string {
	return fmt.Sprintf("%s/records/%s/attachments/%s/download", s.apiPrefix, recordUUID, attachmentUUID)
}

// DisplayTitle is the list label of a record: the Jira summary when present, else the source id
func DisplayTitle(record *gormModels.RawDataRecord) string {
	if record.Platform == constants.PlatformJira {
		issue, _ := record.RawData["issue"].(map[string]interface{})
		fields, _ := issue["fields"].(map[string]interface{})
		if summary, ok := fields["summary"].(string); ok && summary != "" {
			return summary
		}
	}
	return record.SourceUniqueID
}

func toRecordSummary(record *gormModels.RawDataRecord) responses.RecordSummary {
	return responses.RecordSummary{
		UUID:             record.UUID,
		Platform:         record.Platform,
		SourceUniqueID:   record.SourceUniqueID,
		Title:            DisplayTitle(record),
		IsDeleted:        record.IsDeleted,
		AttachmentCount:  record.ReportedAttachmentCount(),
		SourceUpdatedAt:  record.SourceUpdatedAt,
		FirstCollectedAt: record.FirstCollectedAt,
		LastCollectedAt:  record.LastCollectedAt,
	}
}

// normalizePage mirrors the clamping done by the record repository
func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 200 {
		size = 20
	}
	return page, size
}

// blobSize reads the size from the opened blob itself; the stored row may be stale.
func blobSize(content io.ReadCloser) int64 {
	f, ok := content.(interface{ Stat() (fs.FileInfo, error) })
	if !ok {
		return -1
	}
	info, err := f.Stat()
	if err != nil {
		return -1
	}
	return info.Size()
}
