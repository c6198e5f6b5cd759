package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/entities"
	"lab-request-system/internal/repositories"
	apperrors "lab-request-system/pkg/errors"
)

type ReportServiceInterface interface {
	ExportRequests(ctx context.Context, actorID uint64) (*bytes.Buffer, string, error)
}

type reportService struct {
	requestRepo repositories.RequestRepositoryInterface
	typeRepo    repositories.AnalysisTypeRepositoryInterface
	userRepo    repositories.UserRepositoryInterface
	gate        *authz.Gate
	logger      *zap.Logger
}

func NewReportService(
	requestRepo repositories.RequestRepositoryInterface,
	typeRepo repositories.AnalysisTypeRepositoryInterface,
	userRepo repositories.UserRepositoryInterface,
	gate *authz.Gate,
	logger *zap.Logger,
) ReportServiceInterface {
	return &reportService{
		requestRepo: requestRepo,
		typeRepo:    typeRepo,
		userRepo:    userRepo,
		gate:        gate,
		logger:      logger,
	}
}

var exportHeaders = []string{
	"Request #", "Compound", "Analysis Types", "Chemist", "Analyst",
	"Priority", "Status", "Due Date", "Chemist Comments", "Analyst Comments",
	"Created At", "Completed At",
}

// ExportRequests renders every request into an XLSX workbook and returns it
// together with a dated file name.
func (s *reportService) ExportRequests(ctx context.Context, actorID uint64) (*bytes.Buffer, string, error) {
	actor, err := loadActor(ctx, s.userRepo, actorID)
	if err != nil {
		return nil, "", err
	}
	if !s.gate.Permitted(actor.Role, authz.ActionRequestExport) {
		return nil, "", apperrors.NewForbiddenError("only administrators can export requests")
	}

	requests, err := s.requestRepo.ListAll(ctx)
	if err != nil {
		return nil, "", err
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
		return nil, "", err
	}
	names, err := s.userRepo.FindNamesByIDs(ctx, userIDs)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Requests"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, "", err
		}
	}

	for i := range requests {
		req := &requests[i]
		row := []interface{}{
			req.RequestNumber,
			req.CompoundName,
			joinTypeCodes(typesByRequest[req.ID]),
			names[req.ChemistID],
			analystName(req, names),
			req.Priority.String(),
			req.Status.String(),
			req.DueDate.Format(dueDateLayout),
			req.ChemistComments.String,
			req.AnalystComments.String,
			req.CreatedAt.Format(time.RFC3339),
			completedAt(req),
		}
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, "", err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("requests exported",
		zap.Int("count", len(requests)),
		zap.Uint64("exported_by", actor.ID))
	return buf, fmt.Sprintf("requests_%s.xlsx", time.Now().Format("20060102")), nil
}

func joinTypeCodes(types []entities.AnalysisType) string {
	codes := make([]string, 0, len(types))
	for _, t := range types {
		codes = append(codes, t.Code)
	}
	return strings.Join(codes, ", ")
}

func analystName(req *entities.AnalysisRequest, names map[uint64]string) string {
	if !req.AnalystID.Valid {
		return ""
	}
	return names[req.AnalystID.Uint64]
}

func completedAt(req *entities.AnalysisRequest) string {
	if !req.CompletedAt.Valid {
		return ""
	}
	return req.CompletedAt.Time.Format(time.RFC3339)
}
