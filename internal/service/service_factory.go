package service

import (
	"go.uber.org/zap"

	"docverify-service/internal/audit"
	"docverify-service/internal/client"
	"docverify-service/internal/config"
	"docverify-service/internal/queue"
	"docverify-service/internal/settings"
	"docverify-service/internal/store"
	"docverify-service/internal/verify"
)

// ServiceFactory wires the domain services from their shared dependencies
// and hands them to the HTTP layer.
type ServiceFactory struct {
	documentService     *DocumentService
	verificationService *VerificationService
	settingsService     *settings.Service
	submissionQueue     *queue.Queue
	logger              *zap.Logger
}

func NewServiceFactory(
	st store.Store,
	q *queue.Queue,
	ocr *client.OCRClient,
	recorder *audit.Recorder,
	settingsService *settings.Service,
	cfg *config.Config,
	logger *zap.Logger,
) *ServiceFactory {
	docs := NewDocumentService(st, ocr)
	matcher := verify.NewMatcher(cfg.Verify.FreshnessWindow)

	return &ServiceFactory{
		documentService:     docs,
		verificationService: NewVerificationService(q, matcher, recorder, docs, cfg),
		settingsService:     settingsService,
		submissionQueue:     q,
		logger:              logger,
	}
}

func (sf *ServiceFactory) DocumentService() *DocumentService {
	return sf.documentService
}

func (sf *ServiceFactory) VerificationService() *VerificationService {
	return sf.verificationService
}

func (sf *ServiceFactory) SettingsService() *settings.Service {
	return sf.settingsService
}

func (sf *ServiceFactory) SubmissionQueue() *queue.Queue {
	return sf.submissionQueue
}

// Cleanup releases any service-held resources.
func (sf *ServiceFactory) Cleanup() {
}
