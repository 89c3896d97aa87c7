package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"lenslink/internal/core/domain"
	"lenslink/internal/core/ports"
	apperrors "lenslink/pkg/errors"
	"lenslink/pkg/tracing"
	"lenslink/pkg/utils"
	"lenslink/pkg/validation"
)

// Outcome labels reported to the ScanObserver
const (
	OutcomeSuccess  = "success"
	OutcomeFailed   = "failed"
	OutcomeNotFound = "not_found"
)

// ScanObserver is notified when a capture or follow-up finishes
type ScanObserver interface {
	ObserveCapture(outcome string, duration time.Duration)
	ObserveFollowUp(outcome string, duration time.Duration)
}

// ScanService runs the capture and follow-up flows: persist the image,
// call the provider, record the answer and fan results out to clients.
type ScanService struct {
	gateway     ports.ProviderGateway
	history     ports.HistoryStore
	media       ports.MediaStore
	broadcaster ports.Broadcaster
	observer    ScanObserver
	persona     string
	now         func() time.Time
	logger      *zap.SugaredLogger
}

func NewScanService(
	gateway ports.ProviderGateway,
	history ports.HistoryStore,
	media ports.MediaStore,
	broadcaster ports.Broadcaster,
	persona string,
	logger *zap.SugaredLogger,
) *ScanService {
	return &ScanService{
		gateway:     gateway,
		history:     history,
		media:       media,
		broadcaster: broadcaster,
		persona:     persona,
		now:         time.Now,
		logger:      logger,
	}
}

var _ ports.ScanService = (*ScanService)(nil)

func (s *ScanService) SetObserver(observer ScanObserver) {
	s.observer = observer
}

// Capture analyzes one uploaded image. Every outcome is broadcast; the
// returned error is for the HTTP caller.
func (s *ScanService) Capture(ctx context.Context, req domain.CaptureRequest) (*domain.ScanRecord, error) {
	if len(req.Image) == 0 {
		return nil, apperrors.NewInvalidInputError(domain.ErrEmptyImage.Error())
	}

	start := s.now()
	recordID := utils.GenerateRecordID(start)
	provider, model := s.gateway.Resolve(req.Provider, req.Model)

	ctx, span := tracing.StartSpan(ctx, "scan.capture")
	defer span.End()
	tracing.AddSpanAttributes(ctx,
		tracing.RecordIDKey.String(recordID),
		tracing.ConnectionIDKey.String(string(req.Origin)),
		tracing.ProviderKey.String(provider),
		tracing.ModelKey.String(model),
	)

	log := s.logger.With("record_id", recordID, "connection_id", req.Origin, "provider", provider, "model", model)

	filename := recordID + utils.ImageExtension(req.Filename, req.ContentType)
	imageRef, err := s.media.Save(ctx, filename, req.ContentType, bytes.NewReader(req.Image))
	if err != nil {
		log.Errorw("Failed to store capture", "error", err)
		tracing.RecordError(ctx, err)
		s.broadcast(req.Origin, domain.MsgScanFailed, domain.ScanFailedPayload{Message: "failed to store image"})
		s.observeCapture(OutcomeFailed, start)
		return nil, apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to store image", http.StatusInternalServerError)
	}

	s.broadcast(req.Origin, domain.MsgScanStarted, domain.ScanStartedPayload{
		ImageRef: imageRef,
		Provider: provider,
		Model:    model,
	})

	persona := strings.TrimSpace(req.Persona)
	if persona == "" {
		persona = s.persona
	}

	answer, err := s.gateway.Analyze(ctx, provider, domain.AnalyzeRequest{
		Persona:  persona,
		Image:    req.Image,
		MimeType: req.ContentType,
		Model:    model,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		s.reportCaptureFailure(req.Origin, err)
		s.observeCapture(OutcomeFailed, start)
		return nil, err
	}

	finished := s.now()
	record := domain.ScanRecord{
		ID:               recordID,
		ImageRef:         imageRef,
		Answer:           answer,
		ProviderName:     provider,
		ModelName:        model,
		TimestampDisplay: utils.FormatDisplay(start),
		TimestampISO:     utils.FormatTimestamp(start),
		Thread:           []domain.ThreadEntry{},
	}

	if err := s.history.Append(ctx, record); err != nil {
		log.Warnw("Failed to persist scan record", "error", err)
	}

	s.broadcast(req.Origin, domain.MsgNewAnswer, record)
	s.broadcastHistory()
	s.observeCapture(OutcomeSuccess, start)

	log.Infow("Scan completed", "duration", finished.Sub(start))
	return &record, nil
}

func (s *ScanService) reportCaptureFailure(origin domain.ConnectionID, err error) {
	message := apperrors.UserMessage(err)
	s.broadcast(origin, domain.MsgScanFailed, domain.ScanFailedPayload{Message: message})

	if apperrors.HasCode(err, apperrors.ErrCodeConfiguration) || apperrors.HasCode(err, apperrors.ErrCodeInvalidInput) {
		if origin != "" {
			s.broadcaster.SendTo(origin, domain.ErrorMessage(message))
		}
		return
	}
	s.broadcaster.Broadcast(domain.ErrorMessage(message))
}

// FollowUp answers a question about an earlier record and appends it to the
// record's thread. Failures are reported to the asker only.
func (s *ScanService) FollowUp(ctx context.Context, cmd domain.FollowUpCommand) error {
	start := s.now()

	ctx, span := tracing.StartSpan(ctx, "scan.followup")
	defer span.End()
	tracing.AddSpanAttributes(ctx,
		tracing.RecordIDKey.String(cmd.ParentID),
		tracing.ConnectionIDKey.String(string(cmd.Origin)),
	)

	if err := s.validateFollowUp(cmd); err != nil {
		s.broadcaster.SendTo(cmd.Origin, domain.ErrorMessage(err.Error()))
		s.observeFollowUp(OutcomeFailed, start)
		return apperrors.NewInvalidInputError(err.Error())
	}

	provider, model := s.gateway.Resolve(cmd.Provider, cmd.Model)
	log := s.logger.With("record_id", cmd.ParentID, "connection_id", cmd.Origin, "provider", provider, "model", model)

	answer, err := s.gateway.AskFollowUp(ctx, provider, domain.FollowUpRequest{
		Question:  cmd.Prompt,
		Model:     model,
		Context:   cmd.Context,
		WebSearch: cmd.WebSearch,
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		s.broadcaster.SendTo(cmd.Origin, domain.ErrorMessage(apperrors.UserMessage(err)))
		s.observeFollowUp(OutcomeFailed, start)
		return err
	}

	entry := domain.ThreadEntry{
		Prompt:    cmd.Prompt,
		Answer:    answer,
		Timestamp: utils.FormatTimestamp(s.now()),
	}

	found, err := s.history.AppendToThread(ctx, cmd.ParentID, entry)
	if err != nil {
		log.Warnw("Failed to persist follow-up", "error", err)
	}
	if !found {
		notFound := apperrors.NewNotFoundError("scan record " + cmd.ParentID)
		notFound.Cause = domain.ErrRecordNotFound
		s.broadcaster.SendTo(cmd.Origin, domain.ErrorMessage(notFound.Message))
		s.observeFollowUp(OutcomeNotFound, start)
		return notFound
	}

	s.broadcast(cmd.Origin, domain.MsgFollowUpAnswer, domain.FollowUpAnswerPayload{
		ParentRecordID: cmd.ParentID,
		ThreadEntry:    entry,
	})
	s.broadcastHistory()
	s.observeFollowUp(OutcomeSuccess, start)

	log.Infow("Follow-up answered")
	return nil
}

func (s *ScanService) validateFollowUp(cmd domain.FollowUpCommand) error {
	if err := validation.ValidateRecordID(cmd.ParentID); err != nil {
		return err
	}
	return validation.ValidatePrompt(cmd.Prompt)
}

func (s *ScanService) broadcast(origin domain.ConnectionID, msgType string, payload interface{}) {
	s.broadcaster.Broadcast(domain.OutboundMessage{
		Type:     msgType,
		OriginID: origin,
		Payload:  payload,
	})
}

func (s *ScanService) broadcastHistory() {
	s.broadcaster.Broadcast(domain.OutboundMessage{
		Type:    domain.MsgHistory,
		Payload: s.history.Recent(),
	})
}

func (s *ScanService) observeCapture(outcome string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveCapture(outcome, s.now().Sub(start))
	}
}

func (s *ScanService) observeFollowUp(outcome string, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveFollowUp(outcome, s.now().Sub(start))
	}
}

// IsNotFound reports whether err is a follow-up for an unknown record
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrRecordNotFound)
}
