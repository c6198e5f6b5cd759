package constants

// --- USER ROLES ---

type UserRole string

const (
	RoleChemist UserRole = "chemist"
	RoleAnalyst UserRole = "analyst"
	RoleAdmin   UserRole = "admin"
)

func (r UserRole) String() string { return string(r) }

func IsValidRole(code string) bool {
	switch UserRole(code) {
	case RoleChemist, RoleAnalyst, RoleAdmin:
		return true
	}
	return false
}

// --- REQUEST STATUSES ---

type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

func (s RequestStatus) String() string { return string(s) }

// Terminal statuses admit no further transitions.
var FinalStatuses = []RequestStatus{
	StatusCompleted,
	StatusCancelled,
}

func IsFinalStatus(s RequestStatus) bool {
	for _, f := range FinalStatuses {
		if s == f {
			return true
		}
	}
	return false
}

// allowedTransitions is the request state machine. Claiming a sample is the
// sanctioned pending -> in_progress edge; cancellation is reachable from both
// non-terminal states.
var allowedTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

func CanTransition(from, to RequestStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func IsValidStatus(code string) bool {
	switch RequestStatus(code) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// --- PRIORITIES ---

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) String() string { return string(p) }

func IsValidPriority(code string) bool {
	switch Priority(code) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// --- AUDIT ACTIONS ---

const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionCreateRequest  = "create_request"
	ActionUpdateRequest  = "update_request"
	ActionStatusChange   = "status_change"
	ActionSampleReceived = "sample_received"
	ActionUploadFile     = "upload_file"
	ActionDownloadFile   = "download_file"
	ActionDeleteFile     = "delete_file"
	ActionCreateUser     = "create_user"
	ActionUpdateUser     = "update_user"
	ActionCreateType     = "create_analysis_type"
	ActionUpdateType     = "update_analysis_type"
)

// --- AUDIT ENTITY TYPES ---

const (
	EntityRequest      = "request"
	EntityUser         = "user"
	EntityFile         = "file"
	EntityAnalysisType = "analysis_type"
)
