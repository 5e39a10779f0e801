package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"docverify-service/internal/client"
	"docverify-service/internal/models"
	"docverify-service/internal/store"
	"docverify-service/internal/util"
)

const documentCollection = "documents"

var (
	ErrDocumentNotFound = errors.New("document record not found")
	ErrInvalidUsername  = errors.New("invalid username")
)

// DocumentService owns OCR extraction and the per-user document records.
type DocumentService struct {
	store store.Store
	ocr   *client.OCRClient
}

func NewDocumentService(st store.Store, ocr *client.OCRClient) *DocumentService {
	return &DocumentService{store: st, ocr: ocr}
}

// ExtractAndSave sends the uploaded file to the OCR backend and upserts the
// resulting record under the username. A re-upload replaces the previous
// record for that user.
func (s *DocumentService) ExtractAndSave(ctx context.Context, username, filename string, file io.Reader) (*models.DocumentRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	extracted, err := s.ocr.Extract(ctx, filename, file)
	if err != nil {
		return nil, fmt.Errorf("ocr extraction failed for %s: %w", username, err)
	}

	now := time.Now().UTC()
	record := recordFromExtraction(username, extracted)
	record.UploadedAt = &now
	record.UpdatedAt = &now

	existing, err := s.store.FindOne(ctx, documentCollection, store.Filter{"username": username})
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("failed to load document record: %w", err)
	}
	if err == store.ErrNotFound {
		record.CreatedAt = &now
	} else if raw, ok := existing["createdAt"].(string); ok {
		if ts, parseErr := time.Parse(time.RFC3339Nano, raw); parseErr == nil {
			record.CreatedAt = &ts
		}
	}

	// Full replacement, not a merge: fields absent from the new extraction
	// must not survive from the previous upload.
	if _, err := s.store.DeleteOne(ctx, documentCollection, store.Filter{"username": username}); err != nil {
		return nil, fmt.Errorf("failed to replace document record: %w", err)
	}
	if _, err := s.store.InsertOne(ctx, documentCollection, record.ToMap()); err != nil {
		return nil, fmt.Errorf("failed to save document record: %w", err)
	}

	util.Info("document record saved",
		zap.String("username", username),
		zap.String("document_type", record.DocumentType))
	return record, nil
}

// GetByUsername returns the stored record for one user.
func (s *DocumentService) GetByUsername(ctx context.Context, username string) (*models.DocumentRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	doc, err := s.store.FindOne(ctx, documentCollection, store.Filter{"username": username})
	if err == store.ErrNotFound {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document record: %w", err)
	}
	return models.DocumentRecordFromMap(doc)
}

// Delete removes a user's stored record.
func (s *DocumentService) Delete(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidUsername
	}

	deleted, err := s.store.DeleteOne(ctx, documentCollection, store.Filter{"username": username})
	if err != nil {
		return fmt.Errorf("failed to delete document record: %w", err)
	}
	if deleted == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func recordFromExtraction(username string, data *client.ExtractedData) *models.DocumentRecord {
	return &models.DocumentRecord{
		Username:     username,
		Name:         data.Name,
		DOB:          data.DOB,
		Aadhaar:      data.AadhaarNumber,
		Address:      data.Address,
		Gender:       data.Gender,
		DocumentType: data.DocumentType,
		BloodGroup:   data.BloodGroup,
		FatherName:   data.FatherName,
		PinCode:      data.PinCode,
		State:        data.State,
		PANNumber:    data.PANNumber,
		DLNumber:     data.DLNumber,
		IssueDate:    data.IssueDate,
		Validity:     data.Validity,
	}
}
