package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"readingclash/internal/database"
	"readingclash/internal/models"
	"readingclash/internal/repository"
)

type linkingFixture struct {
	db          *database.DB
	studentRepo *repository.StudentRepository
	parentRepo  *repository.ParentRepository
	familyRepo  *repository.FamilyRepository
	schoolRepo  *repository.SchoolRepository
	service     *LinkingService
}

func newLinkingFixture(t *testing.T) *linkingFixture {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbPath := filepath.Join(t.TempDir(), "linking_test.db")
	db, err := database.Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	if err := db.RunMigrations(filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	studentRepo := repository.NewStudentRepository(db)
	parentRepo := repository.NewParentRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)

	return &linkingFixture{
		db:          db,
		studentRepo: studentRepo,
		parentRepo:  parentRepo,
		familyRepo:  familyRepo,
		schoolRepo:  schoolRepo,
		service:     NewLinkingService(studentRepo, parentRepo, familyRepo, schoolRepo),
	}
}

func (f *linkingFixture) createSchool(t *testing.T, signInCode string) *models.School {
	t.Helper()
	entity, err := f.schoolRepo.CreateEntity("Test Diocese", "TD")
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	school, err := f.schoolRepo.CreateSchool(entity.ID, "Demo Elementary", signInCode)
	if err != nil {
		t.Fatalf("Failed to create school: %v", err)
	}
	return school
}

func (f *linkingFixture) createStudent(t *testing.T, school *models.School, firstName, lastInitial string, grade int) *models.Student {
	t.Helper()
	signInCode := firstName + lastInitial + string(rune('0'+grade))
	student, err := f.studentRepo.CreateStudent(school.EntityID, school.ID, firstName, lastInitial, grade, signInCode)
	if err != nil {
		t.Fatalf("Failed to create student: %v", err)
	}
	return student
}

func (f *linkingFixture) createParent(t *testing.T, email, lastName string) *models.Parent {
	t.Helper()
	parent, err := f.parentRepo.CreateParent(email, "hashedpass", "Test", lastName)
	if err != nil {
		t.Fatalf("Failed to create parent: %v", err)
	}
	return parent
}

func TestCreateOrFetchInviteCodeIdempotent(t *testing.T) {
	f := newLinkingFixture(t)
	school := f.createSchool(t, "TXTEST-DEMO")
	student := f.createStudent(t, school, "Emma", "S", 5)
	parent := f.createParent(t, "a@example.com", "Doe")

	first, err := f.service.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		t.Fatalf("CreateOrFetchInviteCode() error = %v", err)
	}
	if first == "" {
		t.Fatal("expected a non-empty invite code")
	}

	// a parent links between the two calls
	if _, err := f.studentRepo.LinkParent(student.ID, parent.ID); err != nil {
		t.Fatalf("LinkParent() error = %v", err)
	}

	second, err := f.service.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		t.Fatalf("CreateOrFetchInviteCode() error = %v", err)
	}
	if second != first {
		t.Errorf("second call returned %q, want %q", second, first)
	}

	linked, err := f.studentRepo.GetLinkedParentIDs(student.ID)
	if err != nil {
		t.Fatalf("GetLinkedParentIDs() error = %v", err)
	}
	if len(linked) != 1 || linked[0] != parent.ID {
		t.Errorf("linked parents = %v, want [%d]", linked, parent.ID)
	}
}

func TestValidateInviteCode(t *testing.T) {
	f := newLinkingFixture(t)
	school := f.createSchool(t, "TXTEST-DEMO")
	student := f.createStudent(t, school, "Emma", "S", 5)

	code, err := f.service.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		t.Fatalf("CreateOrFetchInviteCode() error = %v", err)
	}

	t.Run("invalid format", func(t *testing.T) {
		result, err := f.service.ValidateInviteCode("not-enough")
		if err != nil {
			t.Fatalf("ValidateInviteCode() error = %v", err)
		}
		if result.Valid || result.ErrorCode != CodeInvalidFormat {
			t.Errorf("result = %+v, want INVALID_FORMAT", result)
		}
	})

	t.Run("unknown code", func(t *testing.T) {
		result, err := f.service.ValidateInviteCode("AA-BB-CC-DD")
		if err != nil {
			t.Fatalf("ValidateInviteCode() error = %v", err)
		}
		if result.Valid || result.ErrorCode != CodeNotFound {
			t.Errorf("result = %+v, want NOT_FOUND", result)
		}
	})

	t.Run("valid code", func(t *testing.T) {
		result, err := f.service.ValidateInviteCode(code)
		if err != nil {
			t.Fatalf("ValidateInviteCode() error = %v", err)
		}
		if !result.Valid {
			t.Fatalf("result = %+v, want valid", result)
		}
		if result.Student.StudentName != "Emma S." {
			t.Errorf("student name = %q, want %q", result.Student.StudentName, "Emma S.")
		}
		if result.Student.Grade != 5 {
			t.Errorf("grade = %d, want 5", result.Student.Grade)
		}
		if result.ExistingFamilyID != "" {
			t.Errorf("existing family = %q, want none", result.ExistingFamilyID)
		}
	})
}

func TestCheckParentCapacity(t *testing.T) {
	f := newLinkingFixture(t)
	school := f.createSchool(t, "TXTEST-DEMO")
	student := f.createStudent(t, school, "Emma", "S", 5)

	result, err := f.service.CheckParentCapacity(student.ID)
	if err != nil {
		t.Fatalf("CheckParentCapacity() error = %v", err)
	}
	if !result.HasCapacity || result.RemainingSlots != 2 {
		t.Errorf("result = %+v, want 2 remaining slots", result)
	}

	for i, email := range []string{"a@example.com", "b@example.com"} {
		parent := f.createParent(t, email, "Doe")
		linked, err := f.studentRepo.LinkParent(student.ID, parent.ID)
		if err != nil || !linked {
			t.Fatalf("LinkParent() #%d = %v, %v", i+1, linked, err)
		}
	}

	result, err = f.service.CheckParentCapacity(student.ID)
	if err != nil {
		t.Fatalf("CheckParentCapacity() error = %v", err)
	}
	if result.HasCapacity {
		t.Errorf("result = %+v, want no capacity", result)
	}
	if result.ErrorCode != CodeCapacityExceeded {
		t.Errorf("error code = %q, want CAPACITY_EXCEEDED", result.ErrorCode)
	}

	missing, err := f.service.CheckParentCapacity(99999)
	if err != nil {
		t.Fatalf("CheckParentCapacity() error = %v", err)
	}
	if missing.ErrorCode != CodeStudentNotFound {
		t.Errorf("error code = %q, want STUDENT_NOT_FOUND", missing.ErrorCode)
	}
}

// Two parents link through the same code, a family forms around the first,
// the second joins it, and a third parent is turned away.
func TestLinkingEndToEnd(t *testing.T) {
	f := newLinkingFixture(t)
	school := f.createSchool(t, "TXTEST-DEMO")
	student := f.createStudent(t, school, "Emma", "S", 5)

	code, err := f.service.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		t.Fatalf("CreateOrFetchInviteCode() error = %v", err)
	}

	parentA := f.createParent(t, "a@example.com", "Doe")
	parentB := f.createParent(t, "b@example.com", "Doe")
	parentC := f.createParent(t, "c@example.com", "Smith")

	// parent A links; no family exists yet
	linkA, err := f.service.LinkParentToStudent(parentA.ID, code, nil, "")
	if err != nil {
		t.Fatalf("LinkParentToStudent(A) error = %v", err)
	}
	if !linkA.RequiresFamilyCreation {
		t.Fatalf("linkA = %+v, want requiresFamilyCreation", linkA)
	}

	familyID, err := f.service.CreateFamily(parentA.ID, "Doe", []models.StudentSummary{linkA.Student})
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}

	family, err := f.familyRepo.GetFamilyByID(familyID)
	if err != nil || family == nil {
		t.Fatalf("GetFamilyByID() = %v, %v", family, err)
	}
	if family.FamilyName != "The Doe Family" {
		t.Errorf("family name = %q, want %q", family.FamilyName, "The Doe Family")
	}

	linked, err := f.studentRepo.GetLinkedParentIDs(student.ID)
	if err != nil {
		t.Fatalf("GetLinkedParentIDs() error = %v", err)
	}
	if len(linked) != 1 || linked[0] != parentA.ID {
		t.Fatalf("linked parents = %v, want [%d]", linked, parentA.ID)
	}

	// parent B links with the same code and joins the existing family
	linkB, err := f.service.LinkParentToStudent(parentB.ID, code, nil, "")
	if err != nil {
		t.Fatalf("LinkParentToStudent(B) error = %v", err)
	}
	if linkB.RequiresFamilyCreation {
		t.Fatalf("linkB = %+v, want joined family", linkB)
	}
	if linkB.FamilyID != familyID {
		t.Errorf("linkB family = %q, want %q", linkB.FamilyID, familyID)
	}

	linked, err = f.studentRepo.GetLinkedParentIDs(student.ID)
	if err != nil {
		t.Fatalf("GetLinkedParentIDs() error = %v", err)
	}
	if len(linked) != 2 || linked[0] != parentA.ID || linked[1] != parentB.ID {
		t.Fatalf("linked parents = %v, want [%d %d]", linked, parentA.ID, parentB.ID)
	}

	parentCount, err := f.familyRepo.CountParents(familyID)
	if err != nil {
		t.Fatalf("CountParents() error = %v", err)
	}
	if parentCount != 2 {
		t.Errorf("family parents = %d, want 2", parentCount)
	}

	// a third parent fails on the family's parent cap
	_, err = f.service.LinkParentToStudent(parentC.ID, code, nil, "")
	if err == nil {
		t.Fatal("LinkParentToStudent(C) succeeded, want FAMILY_FULL")
	}
	var linkErr *LinkingError
	if !errors.As(err, &linkErr) || linkErr.Code != CodeFamilyFull {
		t.Errorf("error = %v, want FAMILY_FULL", err)
	}
}

func TestLinkParentToStudentRetry(t *testing.T) {
	f := newLinkingFixture(t)
	school := f.createSchool(t, "TXTEST-DEMO")
	student := f.createStudent(t, school, "Emma", "S", 5)
	parent := f.createParent(t, "a@example.com", "Doe")

	code, err := f.service.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		t.Fatalf("CreateOrFetchInviteCode() error = %v", err)
	}

	first, err := f.service.LinkParentToStudent(parent.ID, code, nil, "")
	if err != nil {
		t.Fatalf("LinkParentToStudent() error = %v", err)
	}
	if first.AlreadyLinked {
		t.Fatalf("first link = %+v, want a fresh link", first)
	}

	// a double-submit of the same code is a no-op success
	retry, err := f.service.LinkParentToStudent(parent.ID, code, nil, "")
	if err != nil {
		t.Fatalf("LinkParentToStudent() retry error = %v", err)
	}
	if !retry.AlreadyLinked {
		t.Fatalf("retry = %+v, want alreadyLinked", retry)
	}

	linked, err := f.studentRepo.GetLinkedParentIDs(student.ID)
	if err != nil {
		t.Fatalf("GetLinkedParentIDs() error = %v", err)
	}
	if len(linked) != 1 || linked[0] != parent.ID {
		t.Fatalf("linked parents = %v, want [%d]", linked, parent.ID)
	}

	// retrying after the family exists resolves the family and still
	// leaves the link untouched
	familyID, err := f.service.CreateFamily(parent.ID, "Doe", []models.StudentSummary{first.Student})
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}

	retry, err = f.service.LinkParentToStudent(parent.ID, code, nil, "")
	if err != nil {
		t.Fatalf("LinkParentToStudent() post-family retry error = %v", err)
	}
	if !retry.AlreadyLinked {
		t.Fatalf("post-family retry = %+v, want alreadyLinked", retry)
	}
	if retry.FamilyID != familyID {
		t.Errorf("retry family = %q, want %q", retry.FamilyID, familyID)
	}

	linked, err = f.studentRepo.GetLinkedParentIDs(student.ID)
	if err != nil {
		t.Fatalf("GetLinkedParentIDs() error = %v", err)
	}
	if len(linked) != 1 {
		t.Fatalf("linked parents = %v, want a single link", linked)
	}
}

func TestJoinExistingFamily(t *testing.T) {
	f := newLinkingFixture(t)
	parentA := f.createParent(t, "a@example.com", "Doe")
	parentB := f.createParent(t, "b@example.com", "Doe")

	familyID, err := f.service.CreateFamily(parentA.ID, "Doe", nil)
	if err != nil {
		t.Fatalf("CreateFamily() error = %v", err)
	}

	t.Run("family not found", func(t *testing.T) {
		_, err := f.service.JoinExistingFamily(parentB.ID, "no-such-family")
		var linkErr *LinkingError
		if !errors.As(err, &linkErr) || linkErr.Code != CodeFamilyNotFound {
			t.Errorf("error = %v, want FAMILY_NOT_FOUND", err)
		}
	})

	t.Run("join then rejoin", func(t *testing.T) {
		join, err := f.service.JoinExistingFamily(parentB.ID, familyID)
		if err != nil {
			t.Fatalf("JoinExistingFamily() error = %v", err)
		}
		if join.AlreadyJoined {
			t.Error("first join reported alreadyJoined")
		}

		again, err := f.service.JoinExistingFamily(parentB.ID, familyID)
		if err != nil {
			t.Fatalf("JoinExistingFamily() rejoin error = %v", err)
		}
		if !again.AlreadyJoined {
			t.Error("rejoin did not report alreadyJoined")
		}
	})

	t.Run("family full", func(t *testing.T) {
		parentC := f.createParent(t, "c@example.com", "Smith")
		_, err := f.service.JoinExistingFamily(parentC.ID, familyID)
		var linkErr *LinkingError
		if !errors.As(err, &linkErr) || linkErr.Code != CodeFamilyFull {
			t.Errorf("error = %v, want FAMILY_FULL", err)
		}
	})
}
