package services

import (
	"context"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lab-request-system/internal/authz"
	"lab-request-system/internal/dto"
	"lab-request-system/internal/entities"
	"lab-request-system/pkg/config"
	"lab-request-system/pkg/constants"
	apperrors "lab-request-system/pkg/errors"
)

type requestEnv struct {
	f        *fixture
	audit    *failingAuditRepo
	svc      RequestServiceInterface
	chemist  *entities.User
	chemist2 *entities.User
	analyst  *entities.User
	analyst2 *entities.User
	admin    *entities.User
	typeHPLC *entities.AnalysisType
	typeNMR  *entities.AnalysisType
	typeOld  *entities.AnalysisType
}

func newRequestEnv(t *testing.T) *requestEnv {
	t.Helper()
	f := newFixture()

	env := &requestEnv{
		f:        f,
		chemist:  f.addUser(entities.User{Username: "chemist1", Email: "c1@lab.local", FullName: "Anna Petrova", Role: constants.RoleChemist, IsActive: true}),
		chemist2: f.addUser(entities.User{Username: "chemist2", Email: "c2@lab.local", FullName: "Boris Ivanov", Role: constants.RoleChemist, IsActive: true}),
		analyst:  f.addUser(entities.User{Username: "analyst1", Email: "a1@lab.local", FullName: "Clara Schmidt", Role: constants.RoleAnalyst, IsActive: true}),
		analyst2: f.addUser(entities.User{Username: "analyst2", Email: "a2@lab.local", FullName: "David Mueller", Role: constants.RoleAnalyst, IsActive: true}),
		admin:    f.addUser(entities.User{Username: "admin", Email: "admin@lab.local", FullName: "Administrator", Role: constants.RoleAdmin, IsActive: true}),
		typeHPLC: f.addType(entities.AnalysisType{Code: "HPLC", Name: "HPLC", IsActive: true}),
		typeNMR:  f.addType(entities.AnalysisType{Code: "NMR", Name: "NMR Spectroscopy", IsActive: true}),
		typeOld:  f.addType(entities.AnalysisType{Code: "OLD", Name: "Retired method", IsActive: false}),
	}

	env.audit = &failingAuditRepo{fakeAuditRepo: fakeAuditRepo{f}}
	env.svc = NewRequestService(
		&fakeRequestRepo{f}, &fakeTypeRepo{f}, &fakeUserRepo{f}, &fakeAttachmentRepo{f},
		env.audit, &fakeTxManager{f}, authz.NewGate(),
		config.ListConfig{DefaultPageSize: 50, MaxPageSize: 100}, zap.NewNop())
	return env
}

func (env *requestEnv) create(t *testing.T, chemistID uint64) *dto.RequestDTO {
	t.Helper()
	req, err := env.svc.Create(context.Background(), chemistID, dto.CreateRequestDTO{
		CompoundName:    "Aspirin",
		AnalysisTypeIDs: []uint64{env.typeHPLC.ID},
		DueDate:         "2026-09-01",
	})
	require.NoError(t, err)
	return req
}

var requestNumberPattern = regexp.MustCompile(`^REQ-\d{2}[A-Z]{3}\d{2}-\d{2,}$`)

func TestCreateRequest(t *testing.T) {
	env := newRequestEnv(t)

	req, err := env.svc.Create(context.Background(), env.chemist.ID, dto.CreateRequestDTO{
		CompoundName:    "Ibuprofen",
		AnalysisTypeIDs: []uint64{env.typeHPLC.ID, env.typeNMR.ID},
		Priority:        "high",
		DueDate:         "2026-09-15",
	})
	require.NoError(t, err)

	assert.Regexp(t, requestNumberPattern, req.RequestNumber)
	assert.True(t, regexp.MustCompile(`-01$`).MatchString(req.RequestNumber))
	assert.Equal(t, constants.StatusPending.String(), req.Status)
	assert.Nil(t, req.AnalystID)
	assert.Equal(t, env.chemist.ID, req.ChemistID)
	assert.Equal(t, "high", req.Priority)
	assert.Equal(t, "2026-09-15", req.DueDate)
	assert.Len(t, req.AnalysisTypes, 2)
	assert.Equal(t, "Anna Petrova", req.ChemistName)

	second := env.create(t, env.chemist.ID)
	assert.True(t, regexp.MustCompile(`-02$`).MatchString(second.RequestNumber))

	assert.Equal(t, []string{constants.ActionCreateRequest, constants.ActionCreateRequest}, env.f.auditActions())
}

func TestCreateRequestDefaultsPriorityToMedium(t *testing.T) {
	env := newRequestEnv(t)
	req := env.create(t, env.chemist.ID)
	assert.Equal(t, constants.PriorityMedium.String(), req.Priority)
}

func TestCreateRequestRejectsUnknownOrInactiveTypes(t *testing.T) {
	env := newRequestEnv(t)

	_, err := env.svc.Create(context.Background(), env.chemist.ID, dto.CreateRequestDTO{
		CompoundName:    "Aspirin",
		AnalysisTypeIDs: []uint64{env.typeOld.ID},
		DueDate:         "2026-09-01",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	_, err = env.svc.Create(context.Background(), env.chemist.ID, dto.CreateRequestDTO{
		CompoundName:    "Aspirin",
		AnalysisTypeIDs: []uint64{999},
		DueDate:         "2026-09-01",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCreateRequestForbiddenForAnalyst(t *testing.T) {
	env := newRequestEnv(t)

	_, err := env.svc.Create(context.Background(), env.analyst.ID, dto.CreateRequestDTO{
		CompoundName:    "Aspirin",
		AnalysisTypeIDs: []uint64{env.typeHPLC.ID},
		DueDate:         "2026-09-01",
	})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestCreateRequestConcurrentNumbersAreDistinct(t *testing.T) {
	env := newRequestEnv(t)

	const workers = 5
	results := make([]*dto.RequestDTO, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = env.svc.Create(context.Background(), env.chemist.ID, dto.CreateRequestDTO{
				CompoundName:    "Paracetamol",
				AnalysisTypeIDs: []uint64{env.typeHPLC.ID},
				DueDate:         "2026-09-01",
			})
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, workers)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i].RequestNumber], "duplicate number %s", results[i].RequestNumber)
		seen[results[i].RequestNumber] = true
	}
}

func TestSampleReceivedClaimsRequest(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	claimed, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	assert.Equal(t, constants.StatusInProgress.String(), claimed.Status)
	require.NotNil(t, claimed.AnalystID)
	assert.Equal(t, env.analyst.ID, *claimed.AnalystID)
	require.NotNil(t, claimed.AnalystName)
	assert.Equal(t, "Clara Schmidt", *claimed.AnalystName)

	actions := env.f.auditActions()
	assert.Equal(t, constants.ActionSampleReceived, actions[len(actions)-1])
}

func TestSampleReceivedWritesStatusChangeAndActionEntries(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	before := len(env.f.auditActions())

	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	actions := env.f.auditActions()
	require.Len(t, actions, before+2)
	assert.Equal(t, []string{constants.ActionStatusChange, constants.ActionSampleReceived}, actions[before:])
}

func TestSampleReceivedAbortsWhenAuditWriteFails(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	env.audit.failWrites = true
	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.Error(t, err)
	env.audit.failWrites = false

	final, err := env.svc.FindByID(context.Background(), env.admin.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPending.String(), final.Status)
	assert.Nil(t, final.AnalystID)
	assert.Equal(t, []string{constants.ActionCreateRequest}, env.f.auditActions())
}

func TestSampleReceivedForbiddenForChemist(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	_, err := env.svc.SampleReceived(context.Background(), env.chemist.ID, created.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestSampleReceivedRejectsSecondClaim(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	_, err = env.svc.SampleReceived(context.Background(), env.analyst2.ID, created.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyAssigned))
}

func TestSampleReceivedSingleWinner(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	claimants := []uint64{env.analyst.ID, env.analyst2.ID}
	for i := range claimants {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.SampleReceived(context.Background(), claimants[i], created.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, apperrors.IsKind(err, apperrors.KindAlreadyAssigned))
		}
	}
	assert.Equal(t, 1, winners)

	final, err := env.svc.FindByID(context.Background(), env.admin.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress.String(), final.Status)
	require.NotNil(t, final.AnalystID)
}

func TestUpdateByAnalystCompletesRequest(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	status := constants.StatusCompleted.String()
	comments := "Purity 99.2%"
	updated, err := env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{
		Status:          &status,
		AnalystComments: &comments,
	})
	require.NoError(t, err)

	assert.Equal(t, status, updated.Status)
	require.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.AnalystComments)
	assert.Equal(t, comments, *updated.AnalystComments)

	actions := env.f.auditActions()
	assert.Equal(t, constants.ActionStatusChange, actions[len(actions)-1])
}

func TestUpdateByAnalystCancellationLeavesCompletedAtEmpty(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	status := constants.StatusCancelled.String()
	updated, err := env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, status, updated.Status)
	assert.Nil(t, updated.CompletedAt)
}

func TestUpdateByAnalystRejectsIllegalTransitions(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	back := constants.StatusPending.String()
	_, err = env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{Status: &back})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))

	done := constants.StatusCompleted.String()
	_, err = env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{Status: &done})
	require.NoError(t, err)

	cancelled := constants.StatusCancelled.String()
	_, err = env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{Status: &cancelled})
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidTransition))
}

func TestUpdateByAnalystOwnership(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	comments := "not mine"
	_, err = env.svc.UpdateByAnalyst(context.Background(), env.analyst2.ID, created.ID, dto.AnalystUpdateDTO{AnalystComments: &comments})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	// Admin can reassign to another analyst.
	updated, err := env.svc.UpdateByAnalyst(context.Background(), env.admin.ID, created.ID, dto.AnalystUpdateDTO{AnalystID: &env.analyst2.ID})
	require.NoError(t, err)
	require.NotNil(t, updated.AnalystID)
	assert.Equal(t, env.analyst2.ID, *updated.AnalystID)
}

func TestUpdateByAnalystNoOpWritesNoAudit(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	before := len(env.f.auditActions())

	status := constants.StatusInProgress.String()
	_, err = env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, before, len(env.f.auditActions()))
}

func TestUpdateByChemist(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	name := "Acetylsalicylic acid"
	updated, err := env.svc.UpdateByChemist(context.Background(), env.chemist.ID, created.ID, dto.ChemistUpdateDTO{
		CompoundName:    &name,
		AnalysisTypeIDs: []uint64{env.typeNMR.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, name, updated.CompoundName)
	require.Len(t, updated.AnalysisTypes, 1)
	assert.Equal(t, "NMR", updated.AnalysisTypes[0].Code)

	actions := env.f.auditActions()
	assert.Equal(t, constants.ActionUpdateRequest, actions[len(actions)-1])
}

func TestUpdateByChemistOwnership(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	name := "stolen"
	_, err := env.svc.UpdateByChemist(context.Background(), env.chemist2.ID, created.ID, dto.ChemistUpdateDTO{CompoundName: &name})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = env.svc.UpdateByChemist(context.Background(), env.analyst.ID, created.ID, dto.ChemistUpdateDTO{CompoundName: &name})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))
}

func TestUpdateByChemistNoOpWritesNoAudit(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)
	before := len(env.f.auditActions())

	same := "Aspirin"
	_, err := env.svc.UpdateByChemist(context.Background(), env.chemist.ID, created.ID, dto.ChemistUpdateDTO{CompoundName: &same})
	require.NoError(t, err)

	assert.Equal(t, before, len(env.f.auditActions()))
}

func TestFindByIDOwnership(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	_, err := env.svc.FindByID(context.Background(), env.chemist2.ID, created.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	_, err = env.svc.FindByID(context.Background(), env.analyst.ID, created.ID)
	assert.NoError(t, err)

	_, err = env.svc.FindByID(context.Background(), env.admin.ID, created.ID)
	assert.NoError(t, err)

	_, err = env.svc.FindByID(context.Background(), env.admin.ID, 999)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestListScopesByRole(t *testing.T) {
	env := newRequestEnv(t)
	env.create(t, env.chemist.ID)
	env.create(t, env.chemist.ID)
	env.create(t, env.chemist2.ID)

	own, total, err := env.svc.List(context.Background(), env.chemist.ID, dto.RequestListFilter{})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	for _, req := range own {
		assert.Equal(t, env.chemist.ID, req.ChemistID)
	}

	_, total, err = env.svc.List(context.Background(), env.analyst.ID, dto.RequestListFilter{})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
}

func TestListFiltersUnassigned(t *testing.T) {
	env := newRequestEnv(t)
	first := env.create(t, env.chemist.ID)
	env.create(t, env.chemist.ID)

	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, first.ID)
	require.NoError(t, err)

	unassigned := uint64(0)
	list, total, err := env.svc.List(context.Background(), env.analyst.ID, dto.RequestListFilter{AnalystID: &unassigned})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].AnalystID)

	mine := env.analyst.ID
	_, total, err = env.svc.List(context.Background(), env.analyst.ID, dto.RequestListFilter{AnalystID: &mine})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
}

func TestLifecycleProducesFullAuditTrail(t *testing.T) {
	env := newRequestEnv(t)
	created := env.create(t, env.chemist.ID)

	_, err := env.svc.SampleReceived(context.Background(), env.analyst.ID, created.ID)
	require.NoError(t, err)

	status := constants.StatusCompleted.String()
	final, err := env.svc.UpdateByAnalyst(context.Background(), env.analyst.ID, created.ID, dto.AnalystUpdateDTO{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, constants.StatusCompleted.String(), final.Status)
	require.NotNil(t, final.CompletedAt)
	assert.Equal(t, []string{
		constants.ActionCreateRequest,
		constants.ActionStatusChange,
		constants.ActionSampleReceived,
		constants.ActionStatusChange,
	}, env.f.auditActions())
}
