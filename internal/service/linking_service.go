package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"readingclash/internal/credentials"
	"readingclash/internal/models"
	"readingclash/internal/repository"
)

// Error codes surfaced to callers on linking failures
const (
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeNotFound         = "NOT_FOUND"
	CodeAccessDisabled   = "ACCESS_DISABLED"
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeFamilyFull       = "FAMILY_FULL"
	CodeMissingFields    = "MISSING_FIELDS"
	CodeStudentNotFound  = "STUDENT_NOT_FOUND"
	CodeFamilyNotFound   = "FAMILY_NOT_FOUND"
)

var (
	ErrFamilyNotFound   = errors.New("family not found")
	ErrFamilyFull       = errors.New("family already has the maximum number of parents")
	ErrCapacityExceeded = errors.New("student already has the maximum number of linked parents")
	ErrParentNotFound   = errors.New("parent not found")
	ErrMissingFields    = errors.New("required identifiers are missing")
)

// LinkingError carries a machine-readable code alongside a short
// human-readable reason
type LinkingError struct {
	Code   string
	Reason string
}

func (e *LinkingError) Error() string {
	return e.Reason
}

func newLinkingError(code, reason string) *LinkingError {
	return &LinkingError{Code: code, Reason: reason}
}

// ValidateResult is the read-path outcome of checking an invite code
type ValidateResult struct {
	Valid            bool                   `json:"valid"`
	Student          *models.StudentSummary `json:"student,omitempty"`
	ExistingFamilyID string                 `json:"existingFamilyId,omitempty"`
	ErrorCode        string                 `json:"error,omitempty"`
	Reason           string                 `json:"reason,omitempty"`
}

// CapacityResult is the read-path outcome of a parent-capacity check
type CapacityResult struct {
	HasCapacity    bool   `json:"hasCapacity"`
	RemainingSlots int    `json:"remainingSlots"`
	ErrorCode      string `json:"error,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// LinkResult combines the linked student's summary with the family
// resolution outcome
type LinkResult struct {
	Student                models.StudentSummary `json:"student"`
	FamilyID               string                `json:"familyId,omitempty"`
	FamilyName             string                `json:"familyName,omitempty"`
	RequiresFamilyCreation bool                  `json:"requiresFamilyCreation"`
	AlreadyLinked          bool                  `json:"alreadyLinked"`
}

// JoinResult reports the outcome of joining an existing family
type JoinResult struct {
	FamilyID      string `json:"familyId"`
	FamilyName    string `json:"familyName"`
	AlreadyJoined bool   `json:"alreadyJoined"`
}

// LinkingService mediates the protocol by which a parent account becomes
// associated with student records and a shared family aggregate
type LinkingService struct {
	studentRepo *repository.StudentRepository
	parentRepo  *repository.ParentRepository
	familyRepo  *repository.FamilyRepository
	schoolRepo  *repository.SchoolRepository
}

// NewLinkingService creates a new linking service
func NewLinkingService(
	studentRepo *repository.StudentRepository,
	parentRepo *repository.ParentRepository,
	familyRepo *repository.FamilyRepository,
	schoolRepo *repository.SchoolRepository,
) *LinkingService {
	return &LinkingService{
		studentRepo: studentRepo,
		parentRepo:  parentRepo,
		familyRepo:  familyRepo,
		schoolRepo:  schoolRepo,
	}
}

// CreateOrFetchInviteCode returns the student's invite code, minting one
// on first use. Regeneration never happens: a stored code always wins,
// and existing parent links are left untouched.
func (s *LinkingService) CreateOrFetchInviteCode(studentID int64) (string, error) {
	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return "", err
	}
	if student == nil {
		return "", ErrStudentNotFound
	}
	if student.ParentInviteCode.Valid && student.ParentInviteCode.String != "" {
		return student.ParentInviteCode.String, nil
	}

	school, err := s.schoolRepo.GetSchoolByID(student.SchoolID)
	if err != nil {
		return "", err
	}
	if school == nil {
		return "", fmt.Errorf("school %d not found for student %d", student.SchoolID, studentID)
	}

	code, err := credentials.GenerateInviteCode(school.SignInCode, student.FirstName, student.LastInitial, student.Grade)
	if err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}

	set, err := s.studentRepo.SetInviteCode(studentID, code)
	if err != nil {
		return "", err
	}
	if !set {
		// another request minted a code first; return the stored one
		student, err = s.studentRepo.GetStudentByID(studentID)
		if err != nil {
			return "", err
		}
		if student == nil || !student.ParentInviteCode.Valid {
			return "", fmt.Errorf("invite code for student %d vanished during creation", studentID)
		}
		return student.ParentInviteCode.String, nil
	}
	return code, nil
}

// ValidateInviteCode resolves an invite code to its student and any
// pre-existing family. Failures come back as structured results, not
// errors.
func (s *LinkingService) ValidateInviteCode(code string) (*ValidateResult, error) {
	if !credentials.ValidInviteCodeFormat(code) {
		return &ValidateResult{
			ErrorCode: CodeInvalidFormat,
			Reason:    "Invite codes have four dash-separated parts, like TXTEST-DEMO-EMMAS5-A1B2C3D4",
		}, nil
	}

	student, err := s.studentRepo.GetStudentByInviteCode(code)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return &ValidateResult{
			ErrorCode: CodeNotFound,
			Reason:    "No student matches this invite code",
		}, nil
	}
	if !student.LinkingOpen() {
		return &ValidateResult{
			ErrorCode: CodeAccessDisabled,
			Reason:    "This student has not enabled parent linking",
		}, nil
	}

	summary, err := s.summarizeStudent(student)
	if err != nil {
		return nil, err
	}

	result := &ValidateResult{Valid: true, Student: summary}
	if student.FamilyID.Valid {
		result.ExistingFamilyID = student.FamilyID.String
	}
	return result, nil
}

// CheckParentCapacity reports whether another parent may still link to
// the student
func (s *LinkingService) CheckParentCapacity(studentID int64) (*CapacityResult, error) {
	student, err := s.studentRepo.GetStudentByID(studentID)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return &CapacityResult{
			ErrorCode: CodeStudentNotFound,
			Reason:    "No student matches this ID",
		}, nil
	}

	linked, err := s.studentRepo.CountLinkedParents(studentID)
	if err != nil {
		return nil, err
	}

	remaining := student.MaxLinkedParents - linked
	if remaining <= 0 {
		return &CapacityResult{
			HasCapacity: false,
			ErrorCode:   CodeCapacityExceeded,
			Reason:      fmt.Sprintf("%s already has %d linked parents", student.DisplayName(), student.MaxLinkedParents),
		}, nil
	}
	return &CapacityResult{HasCapacity: true, RemainingSlots: remaining}, nil
}

// LinkParentToStudent runs the order-sensitive linking protocol: resolve
// the student, resolve family membership, then append the parent link and
// school association exactly once.
func (s *LinkingService) LinkParentToStudent(parentID int64, code string, validated *ValidateResult, existingFamilyID string) (*LinkResult, error) {
	if parentID == 0 {
		return nil, newLinkingError(CodeMissingFields, "A parent ID is required")
	}

	parent, err := s.parentRepo.GetParentByID(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, newLinkingError(CodeNotFound, "No parent matches this ID")
	}

	if validated == nil || !validated.Valid || validated.Student == nil {
		validated, err = s.ValidateInviteCode(code)
		if err != nil {
			return nil, err
		}
		if !validated.Valid {
			return nil, newLinkingError(validated.ErrorCode, validated.Reason)
		}
	}
	summary := *validated.Student

	result := &LinkResult{Student: summary}

	switch {
	case existingFamilyID != "":
		join, err := s.JoinExistingFamily(parentID, existingFamilyID)
		if err != nil {
			return nil, err
		}
		result.FamilyID = join.FamilyID
		result.FamilyName = join.FamilyName

	case validated.ExistingFamilyID != "":
		join, err := s.JoinExistingFamily(parentID, validated.ExistingFamilyID)
		if err != nil {
			return nil, err
		}
		result.FamilyID = join.FamilyID
		result.FamilyName = join.FamilyName

	default:
		result.RequiresFamilyCreation = true
	}

	// the parent link and school association happen regardless of which
	// family branch fired. A retry of an already-established link is a
	// no-op success, matching JoinExistingFamily.
	alreadyLinked, err := s.studentRepo.IsParentLinked(summary.StudentID, parentID)
	if err != nil {
		return nil, err
	}
	if alreadyLinked {
		result.AlreadyLinked = true
		return result, nil
	}

	linked, err := s.studentRepo.LinkParent(summary.StudentID, parentID)
	if err != nil {
		return nil, err
	}
	if !linked {
		return nil, newLinkingError(CodeCapacityExceeded,
			fmt.Sprintf("%s already has the maximum number of linked parents", summary.StudentName))
	}

	if err := s.parentRepo.AddSchool(parentID, summary.SchoolID); err != nil {
		return nil, err
	}

	return result, nil
}

// CreateFamily writes a new family aggregate named after the parent and
// attaches every supplied student. Per-student attachment is best-effort:
// an individual failure is logged and the fan-out continues.
func (s *LinkingService) CreateFamily(parentID int64, parentLastName string, students []models.StudentSummary) (string, error) {
	if parentID == 0 || parentLastName == "" {
		return "", newLinkingError(CodeMissingFields, "A parent ID and last name are required")
	}

	familyID := uuid.New().String()
	familyName := fmt.Sprintf("The %s Family", parentLastName)

	if _, err := s.familyRepo.CreateFamily(familyID, familyName, parentID); err != nil {
		return "", err
	}
	if err := s.parentRepo.SetFamilyID(parentID, familyID); err != nil {
		return "", err
	}

	for position, summary := range students {
		if err := s.familyRepo.AddStudent(familyID, summary, position); err != nil {
			log.Printf("Failed to add student %d to family %s: %v", summary.StudentID, familyID, err)
			continue
		}
		if err := s.studentRepo.SetFamilyID(summary.StudentID, familyID); err != nil {
			log.Printf("Failed to set family on student %d: %v", summary.StudentID, err)
		}
	}

	return familyID, nil
}

// JoinExistingFamily adds a parent to an existing family and mirrors the
// family's student and school associations onto the parent. Joining a
// family you already belong to is a no-op success.
func (s *LinkingService) JoinExistingFamily(parentID int64, familyID string) (*JoinResult, error) {
	family, err := s.familyRepo.GetFamilyByID(familyID)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, newLinkingError(CodeFamilyNotFound, "No family matches this ID")
	}

	member, err := s.familyRepo.IsParentMember(familyID, parentID)
	if err != nil {
		return nil, err
	}
	if member {
		return &JoinResult{FamilyID: familyID, FamilyName: family.FamilyName, AlreadyJoined: true}, nil
	}

	added, err := s.familyRepo.AddParent(familyID, parentID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, newLinkingError(CodeFamilyFull,
			fmt.Sprintf("%s already has %d parents", family.FamilyName, models.MaxFamilyParents))
	}

	if err := s.parentRepo.SetFamilyID(parentID, familyID); err != nil {
		return nil, err
	}

	students, err := s.familyRepo.GetLinkedStudents(familyID)
	if err != nil {
		return nil, err
	}
	for _, student := range students {
		if err := s.parentRepo.AddSchool(parentID, student.SchoolID); err != nil {
			log.Printf("Failed to mirror school %d onto parent %d: %v", student.SchoolID, parentID, err)
		}
	}

	return &JoinResult{FamilyID: familyID, FamilyName: family.FamilyName}, nil
}

// GetFamilyForParent returns the parent's family with members, or nil
// when the parent has not joined one
func (s *LinkingService) GetFamilyForParent(parentID int64) (*models.FamilyWithMembers, error) {
	parent, err := s.parentRepo.GetParentByID(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrParentNotFound
	}
	if !parent.FamilyID.Valid {
		return nil, nil
	}

	family, err := s.familyRepo.GetFamilyByID(parent.FamilyID.String)
	if err != nil {
		return nil, err
	}
	if family == nil {
		return nil, nil
	}

	parentIDs, err := s.familyRepo.GetParentIDs(family.ID)
	if err != nil {
		return nil, err
	}
	parents := make([]models.Parent, 0, len(parentIDs))
	for _, id := range parentIDs {
		member, err := s.parentRepo.GetParentByID(id)
		if err != nil {
			return nil, err
		}
		if member != nil {
			parents = append(parents, *member)
		}
	}

	students, err := s.familyRepo.GetLinkedStudents(family.ID)
	if err != nil {
		return nil, err
	}

	return &models.FamilyWithMembers{Family: *family, Parents: parents, Students: students}, nil
}

// GetLinkedStudents returns summaries for every student linked directly
// to the parent, independent of family membership
func (s *LinkingService) GetLinkedStudents(parentID int64) ([]models.StudentSummary, error) {
	parent, err := s.parentRepo.GetParentByID(parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, ErrParentNotFound
	}

	studentIDs, err := s.parentRepo.GetLinkedStudentIDs(parentID)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.StudentSummary, 0, len(studentIDs))
	for _, id := range studentIDs {
		student, err := s.studentRepo.GetStudentByID(id)
		if err != nil {
			return nil, err
		}
		if student == nil {
			continue
		}
		summary, err := s.summarizeStudent(student)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// GetParentSchools returns the schools the parent has students at
func (s *LinkingService) GetParentSchools(parentID int64) ([]models.School, error) {
	schoolIDs, err := s.parentRepo.GetSchoolIDs(parentID)
	if err != nil {
		return nil, err
	}

	schools := make([]models.School, 0, len(schoolIDs))
	for _, id := range schoolIDs {
		school, err := s.schoolRepo.GetSchoolByID(id)
		if err != nil {
			return nil, err
		}
		if school != nil {
			schools = append(schools, *school)
		}
	}
	return schools, nil
}

// summarizeStudent builds the denormalized summary carried on linking
// results
func (s *LinkingService) summarizeStudent(student *models.Student) (*models.StudentSummary, error) {
	school, err := s.schoolRepo.GetSchoolByID(student.SchoolID)
	if err != nil {
		return nil, err
	}

	schoolName := ""
	if school != nil {
		schoolName = school.Name
	}

	return &models.StudentSummary{
		StudentID:   student.ID,
		StudentName: student.DisplayName(),
		SchoolName:  schoolName,
		EntityID:    student.EntityID,
		SchoolID:    student.SchoolID,
		Grade:       student.Grade,
	}, nil
}
