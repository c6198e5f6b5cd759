package services

import (
	"context"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	"lab-request-system/pkg/config"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
	"lab-request-system/pkg/requestnumber"
)

const dueDateLayout = "2006-01-02"

// numberAttempts bounds the request-number allocation retry loop. The counter
// probe is best effort; the unique constraint on request_number is what
// actually decides the race, and a losing transaction re-counts and retries.
const numberAttempts = 5

type RequestServiceInterface interface {
	Create(ctx context.Context, actorID uint64, payload dto.CreateRequestDTO) (*dto.RequestDTO, error)
	SampleReceived(ctx context.Context, actorID uint64, requestID uint64) (*dto.RequestDTO, error)
	UpdateByAnalyst(ctx context.Context, actorID uint64, requestID uint64, payload dto.AnalystUpdateDTO) (*dto.RequestDTO, error)
	UpdateByChemist(ctx context.Context, actorID uint64, requestID uint64, payload dto.ChemistUpdateDTO) (*dto.RequestDTO, error)
	FindByID(ctx context.Context, actorID uint64, requestID uint64) (*dto.RequestDTO, error)
	List(ctx context.Context, actorID uint64, filter dto.RequestListFilter) ([]dto.RequestDTO, uint64, error)
}

type requestService struct {
	requestRepo    repositories.RequestRepositoryInterface
	typeRepo       repositories.AnalysisTypeRepositoryInterface
	userRepo       repositories.UserRepositoryInterface
	attachmentRepo repositories.AttachmentRepositoryInterface
	auditRepo      repositories.AuditRepositoryInterface
	txManager      repositories.TxManagerInterface
	gate           *authz.Gate
	listCfg        config.ListConfig
	logger         *zap.Logger
	now            func() time.Time
}

func NewRequestService(
	requestRepo repositories.RequestRepositoryInterface,
	typeRepo repositories.AnalysisTypeRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	attachmentRepo repositories.AttachmentRepositoryInterface,
	auditRepo repositories.AuditRepositoryInterface,
	txManager repositories.TxManagerInterface,
	gate *authz.Gate,
	listCfg config.ListConfig,
	logger *zap.Logger,
) RequestServiceInterface {
	return &requestService{
		requestRepo:    requestRepo,
		typeRepo:       typeRepo,
		userRepo:       userRepo,
		attachmentRepo: attachmentRepo,
		auditRepo:      auditRepo,
		txManager:      txManager,
		gate:           gate,
		listCfg:        listCfg,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *requestService) Create(ctx context.Context, actorID uint64, payload dto.CreateRequestDTO) (*dto.RequestDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestCreate) {
		return nil, apperrors.NewForbiddenError("only chemists can submit analysis requests")
	}

	dueDate, err := time.Parse(dueDateLayout, payload.DueDate)
	if err != nil {
		return nil, apperrors.NewValidationError("due_date must be in YYYY-MM-DD format")
	}

	priority := constants.PriorityMedium
	if payload.Priority != "" {
		priority = constants.Priority(payload.Priority)
	}

	types, err := s.resolveTypes(ctx, payload.AnalysisTypeIDs)
	if err != nil {
		return nil, err
	}

	req := &entities.AnalysisRequest{
		ChemistID:       actor.ID,
		CompoundName:    payload.CompoundName,
		Priority:        priority,
		DueDate:         dueDate,
		Status:          constants.StatusPending,
		Description:     null.StringFromPtr(payload.Description),
		ChemistComments: null.StringFromPtr(payload.ChemistComments),
	}

	createdAt := s.now()
	for attempt := 0; attempt < numberAttempts; attempt++ {
		count, err := s.requestRepo.CountByNumberPrefix(ctx, requestnumber.Prefix(createdAt))
		if err != nil {
			return nil, err
		}
		req.RequestNumber = requestnumber.Format(createdAt, count+1)

		err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
			id, err := s.requestRepo.CreateInTx(ctx, tx, req)
			if err != nil {
				return err
			}
			req.ID = id

			if err := s.requestRepo.ReplaceAnalysisTypesInTx(ctx, tx, id, payload.AnalysisTypeIDs); err != nil {
				return err
			}

			return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
				UserID:     actor.ID,
				Action:     constants.ActionCreateRequest,
				EntityType: constants.EntityRequest,
				EntityID:   nullUint64(id),
				Changes: map[string]entities.FieldChange{
					"request_number": {Old: nil, New: req.RequestNumber},
					"status":         {Old: nil, New: constants.StatusPending.String()},
				},
			})
		})
		if err == nil {
			s.logger.Info("analysis request created",
				zap.Uint64("request_id", req.ID),
				zap.String("request_number", req.RequestNumber),
				zap.Uint64("chemist_id", actor.ID))
			return s.assemble(ctx, req, types)
		}
		if !repositories.IsUniqueViolation(err) {
			return nil, err
		}
	}

	return nil, apperrors.NewConflictError("could not allocate a unique request number", nil)
}

// SampleReceived marks the physical sample as arrived and claims the request
// for the calling analyst. The row lock makes the claim single-winner: a
// second analyst finds the request already in progress and gets a conflict.
func (s *requestService) SampleReceived(ctx context.Context, actorID uint64, requestID uint64) (*dto.RequestDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestClaim) {
		return nil, apperrors.NewForbiddenError("only analysts can receive samples")
	}

	var req *entities.AnalysisRequest
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		req, err = s.requestRepo.FindForUpdateInTx(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if req.AnalystID.Valid {
			return apperrors.NewAlreadyAssignedError("request is already assigned to an analyst")
		}
		if req.Status != constants.StatusPending {
			return apperrors.NewInvalidTransitionError(
				"cannot receive a sample for a request in status %q", req.Status)
		}

		fields := map[string]interface{}{
			"analyst_id": actor.ID,
			"status":     constants.StatusInProgress.String(),
		}
		if err := s.requestRepo.UpdateInTx(ctx, tx, requestID, fields); err != nil {
			return err
		}

		// The claim leaves two trail rows: the status transition itself and
		// the reception event that caused it.
		if err := s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionStatusChange,
			EntityType: constants.EntityRequest,
			EntityID:   nullUint64(requestID),
			Changes: map[string]entities.FieldChange{
				"status": {Old: constants.StatusPending.String(), New: constants.StatusInProgress.String()},
			},
		}); err != nil {
			return err
		}

		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionSampleReceived,
			EntityType: constants.EntityRequest,
			EntityID:   nullUint64(requestID),
			Changes: map[string]entities.FieldChange{
				"analyst_id": {Old: nil, New: actor.ID},
			},
		})
	})
	if err != nil {
		return nil, err
	}

	req.AnalystID = nullUint64(actor.ID)
	req.Status = constants.StatusInProgress

	s.logger.Info("sample received",
		zap.Uint64("request_id", requestID),
		zap.Uint64("analyst_id", actor.ID))
	return s.assemble(ctx, req, nil)
}

func (s *requestService) UpdateByAnalyst(ctx context.Context, actorID uint64, requestID uint64, payload dto.AnalystUpdateDTO) (*dto.RequestDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestUpdateAnalyst) {
		return nil, apperrors.NewForbiddenError("only analysts can update processing details")
	}

	if payload.AnalystID != nil {
		target, err := s.userRepo.FindByID(ctx, *payload.AnalystID)
		if err != nil {
			if apperrors.IsKind(err, apperrors.KindNotFound) {
				return nil, apperrors.NewValidationError("analyst %d does not exist", *payload.AnalystID)
			}
			return nil, err
		}
		if target.Role != constants.RoleAnalyst && target.Role != constants.RoleAdmin {
			return nil, apperrors.NewValidationError("user %d is not an analyst", *payload.AnalystID)
		}
	}

	var req *entities.AnalysisRequest
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		req, err = s.requestRepo.FindForUpdateInTx(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if actor.Role != constants.RoleAdmin {
			if !req.AnalystID.Valid || req.AnalystID.Uint64 != actor.ID {
				return apperrors.NewForbiddenError("request is assigned to a different analyst")
			}
		}

		fields := make(map[string]interface{})
		changes := make(map[string]entities.FieldChange)
		statusChanged := false

		if payload.AnalystID != nil && (!req.AnalystID.Valid || req.AnalystID.Uint64 != *payload.AnalystID) {
			changes["analyst_id"] = entities.FieldChange{Old: req.AnalystID.Ptr(), New: *payload.AnalystID}
			fields["analyst_id"] = *payload.AnalystID
			req.AnalystID = nullUint64(*payload.AnalystID)
		}
		if payload.Status != nil {
			next := constants.RequestStatus(*payload.Status)
			if next != req.Status {
				if !constants.CanTransition(req.Status, next) {
					return apperrors.NewInvalidTransitionError(
						"cannot move request from %q to %q", req.Status, next)
				}
				changes["status"] = entities.FieldChange{Old: req.Status.String(), New: next.String()}
				fields["status"] = next.String()
				statusChanged = true

				if next == constants.StatusCompleted {
					completedAt := s.now()
					fields["completed_at"] = completedAt
					req.CompletedAt = null.TimeFrom(completedAt)
				}
				req.Status = next
			}
		}
		if payload.AnalystComments != nil && *payload.AnalystComments != req.AnalystComments.String {
			changes["analyst_comments"] = entities.FieldChange{Old: req.AnalystComments.Ptr(), New: *payload.AnalystComments}
			fields["analyst_comments"] = *payload.AnalystComments
			req.AnalystComments = null.StringFrom(*payload.AnalystComments)
		}

		if len(fields) == 0 {
			return nil
		}

		if err := s.requestRepo.UpdateInTx(ctx, tx, requestID, fields); err != nil {
			return err
		}

		action := constants.ActionUpdateRequest
		if statusChanged {
			action = constants.ActionStatusChange
		}
		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     action,
			EntityType: constants.EntityRequest,
			EntityID:   nullUint64(requestID),
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.assemble(ctx, req, nil)
}

func (s *requestService) UpdateByChemist(ctx context.Context, actorID uint64, requestID uint64, payload dto.ChemistUpdateDTO) (*dto.RequestDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestUpdateChemist) {
		return nil, apperrors.NewForbiddenError("only chemists can edit submission details")
	}

	var newDueDate time.Time
	if payload.DueDate != nil {
		newDueDate, err = time.Parse(dueDateLayout, *payload.DueDate)
		if err != nil {
			return nil, apperrors.NewValidationError("due_date must be in YYYY-MM-DD format")
		}
	}

	var types []entities.AnalysisType
	if payload.AnalysisTypeIDs != nil {
		types, err = s.resolveTypes(ctx, payload.AnalysisTypeIDs)
		if err != nil {
			return nil, err
		}
	}

	var req *entities.AnalysisRequest
	err = s.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		req, err = s.requestRepo.FindForUpdateInTx(ctx, tx, requestID)
		if err != nil {
			return err
		}

		if actor.Role != constants.RoleAdmin && req.ChemistID != actor.ID {
			return apperrors.NewForbiddenError("request belongs to a different chemist")
		}

		fields := make(map[string]interface{})
		changes := make(map[string]entities.FieldChange)

		if payload.CompoundName != nil && *payload.CompoundName != req.CompoundName {
			changes["compound_name"] = entities.FieldChange{Old: req.CompoundName, New: *payload.CompoundName}
			fields["compound_name"] = *payload.CompoundName
			req.CompoundName = *payload.CompoundName
		}
		if payload.Priority != nil && constants.Priority(*payload.Priority) != req.Priority {
			changes["priority"] = entities.FieldChange{Old: req.Priority.String(), New: *payload.Priority}
			fields["priority"] = *payload.Priority
			req.Priority = constants.Priority(*payload.Priority)
		}
		if payload.DueDate != nil && !newDueDate.Equal(req.DueDate) {
			changes["due_date"] = entities.FieldChange{Old: req.DueDate.Format(dueDateLayout), New: *payload.DueDate}
			fields["due_date"] = newDueDate
			req.DueDate = newDueDate
		}
		if payload.Description != nil && *payload.Description != req.Description.String {
			changes["description"] = entities.FieldChange{Old: req.Description.Ptr(), New: *payload.Description}
			fields["description"] = *payload.Description
			req.Description = null.StringFrom(*payload.Description)
		}
		if payload.ChemistComments != nil && *payload.ChemistComments != req.ChemistComments.String {
			changes["chemist_comments"] = entities.FieldChange{Old: req.ChemistComments.Ptr(), New: *payload.ChemistComments}
			fields["chemist_comments"] = *payload.ChemistComments
			req.ChemistComments = null.StringFrom(*payload.ChemistComments)
		}

		typesChanged := false
		if payload.AnalysisTypeIDs != nil {
			current, err := s.typeRepo.FindByRequestID(ctx, requestID)
			if err != nil {
				return err
			}
			if !sameTypeIDs(current, payload.AnalysisTypeIDs) {
				if err := s.requestRepo.ReplaceAnalysisTypesInTx(ctx, tx, requestID, payload.AnalysisTypeIDs); err != nil {
					return err
				}
				changes["analysis_type_ids"] = entities.FieldChange{Old: typeIDs(current), New: payload.AnalysisTypeIDs}
				typesChanged = true
			}
		}

		if len(fields) == 0 && !typesChanged {
			return nil
		}

		if len(fields) > 0 {
			if err := s.requestRepo.UpdateInTx(ctx, tx, requestID, fields); err != nil {
				return err
			}
		}

		return s.auditRepo.CreateInTx(ctx, tx, &entities.AuditEntry{
			UserID:     actor.ID,
			Action:     constants.ActionUpdateRequest,
			EntityType: constants.EntityRequest,
			EntityID:   nullUint64(requestID),
			Changes:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	return s.assemble(ctx, req, types)
}

func (s *requestService) FindByID(ctx context.Context, actorID uint64, requestID uint64) (*dto.RequestDTO, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestView) {
		return nil, apperrors.NewForbiddenError("not allowed to view requests")
	}

	req, err := s.requestRepo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actor.Role == constants.RoleChemist && req.ChemistID != actor.ID {
		return nil, apperrors.NewForbiddenError("request belongs to a different chemist")
	}

	return s.assemble(ctx, req, nil)
}

// List scopes the result set by role: chemists see only their own requests,
// analysts and admins see everything the filter matches.
func (s *requestService) List(ctx context.Context, actorID uint64, filter dto.RequestListFilter) ([]dto.RequestDTO, uint64, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestView) {
		return nil, 0, apperrors.NewForbiddenError("not allowed to view requests")
	}

	if actor.Role == constants.RoleChemist {
		filter.ChemistID = actor.ID
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize, s.listCfg)

	requests, total, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uint64, 0, len(requests))
	userIDs := make([]uint64, 0, len(requests)*2)
	for i := range requests {
		ids = append(ids, requests[i].ID)
		userIDs = append(userIDs, requests[i].ChemistID)
		if requests[i].AnalystID.Valid {
			userIDs = append(userIDs, requests[i].AnalystID.Uint64)
		}
	}

	typesByRequest, err := s.typeRepo.FindByRequestIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	filesByRequest, err := s.attachmentRepo.FindAllByRequestIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	names, err := s.userRepo.FindNamesByIDs(ctx, userIDs)
	if err != nil {
		return nil, 0, err
	}

	result := make([]dto.RequestDTO, 0, len(requests))
	for i := range requests {
		req := &requests[i]
		result = append(result, *buildRequestDTO(req, typesByRequest[req.ID], names, filesByRequest[req.ID]))
	}
	return result, total, nil
}

// assemble loads the related rows for a single request and builds the view.
// types may be passed in when the caller already resolved them.
func (s *requestService) assemble(ctx context.Context, req *entities.AnalysisRequest, types []entities.AnalysisType) (*dto.RequestDTO, error) {
	var err error
	if types == nil {
		types, err = s.typeRepo.FindByRequestID(ctx, req.ID)
		if err != nil {
			return nil, err
		}
	}

	files, err := s.attachmentRepo.FindAllByRequestID(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	userIDs := []uint64{req.ChemistID}
	if req.AnalystID.Valid {
		userIDs = append(userIDs, req.AnalystID.Uint64)
	}
	names, err := s.userRepo.FindNamesByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	return buildRequestDTO(req, types, names, files), nil
}

func buildRequestDTO(req *entities.AnalysisRequest, types []entities.AnalysisType, names map[uint64]string, files []entities.Attachment) *dto.RequestDTO {
	view := &dto.RequestDTO{
		ID:              req.ID,
		RequestNumber:   req.RequestNumber,
		ChemistID:       req.ChemistID,
		AnalystID:       req.AnalystID.Ptr(),
		CompoundName:    req.CompoundName,
		AnalysisTypes:   types,
		Priority:        req.Priority.String(),
		DueDate:         req.DueDate.Format(dueDateLayout),
		Status:          req.Status.String(),
		Description:     req.Description.Ptr(),
		ChemistComments: req.ChemistComments.Ptr(),
		AnalystComments: req.AnalystComments.Ptr(),
		CreatedAt:       req.CreatedAt,
		UpdatedAt:       req.UpdatedAt,
		CompletedAt:     req.CompletedAt.Ptr(),
		ChemistName:     names[req.ChemistID],
	}
	if req.AnalystID.Valid {
		if name, ok := names[req.AnalystID.Uint64]; ok {
			view.AnalystName = &name
		}
	}
	for i := range files {
		view.ResultFiles = append(view.ResultFiles, *toResultFileDTO(&files[i]))
	}
	return view
}

// resolveTypes checks that every requested analysis type exists and is
// active.
func (s *requestService) resolveTypes(ctx context.Context, ids []uint64) ([]entities.AnalysisType, error) {
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return nil, apperrors.NewValidationError("analysis type %d is listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	types, err := s.typeRepo.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(types) != len(ids) {
		found := make(map[uint64]struct{}, len(types))
		for _, t := range types {
			found[t.ID] = struct{}{}
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return nil, apperrors.NewValidationError("analysis type %d does not exist or is inactive", id)
			}
		}
	}
	return types, nil
}

func typeIDs(types []entities.AnalysisType) []uint64 {
	ids := make([]uint64, 0, len(types))
	for _, t := range types {
		ids = append(ids, t.ID)
	}
	return ids
}

func sameTypeIDs(current []entities.AnalysisType, next []uint64) bool {
	if len(current) != len(next) {
		return false
	}
	set := make(map[uint64]struct{}, len(current))
	for _, t := range current {
		set[t.ID] = struct{}{}
	}
	for _, id := range next {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
