package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/admissions-api/internal/dto"
	"github.com/noah-isme/admissions-api/internal/models"
	appErrors "github.com/noah-isme/admissions-api/pkg/errors"
)

type academicYearFinder interface {
	FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error)
	FindActiveAcademicYear(ctx context.Context) (*models.AcademicYear, error)
}

type studentStore interface {
	FindByNumberOrEmail(ctx context.Context, studentNumber, email string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	LinkUser(ctx context.Context, studentID, userID string) error
	NextSequence(ctx context.Context, alphaCode, numericCode string) (int, error)
}

type portalUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type studentNumberWriter interface {
	SetStudentNumber(ctx context.Context, id, studentNumber string) error
}

type enrollmentStore interface {
	FindByApplicantExternalID(ctx context.Context, externalID string) (*models.StudentEnrollment, error)
	Create(ctx context.Context, enrollment *models.StudentEnrollment) error
	FindActiveCurriculum(ctx context.Context, programID string, yearLevel, semester int) (*models.CourseCurriculum, error)
	ListCurriculumCourses(ctx context.Context, curriculumID string) ([]models.CurriculumCourse, error)
	ListEnrolledCourseIDs(ctx context.Context, enrollmentID string) ([]string, error)
	AddCourses(ctx context.Context, enrollmentID string, courseIDs []string) ([]models.EnrolledCourse, error)
}

// CampusConfig identifies the campus in student numbers.
type CampusConfig struct {
	AlphaCode   string
	NumericCode string
}

// FormatStudentNumber builds <alpha><yy><numeric><seq:4>, for example "MN24010007".
func FormatStudentNumber(alphaCode string, startYear int, numericCode string, sequence int) string {
	return fmt.Sprintf("%s%02d%s%04d", strings.ToUpper(alphaCode), startYear%100, numericCode, sequence)
}

// EnrollmentMaterializer turns an officially enrolled applicant into a Student
// with a StudentEnrollment and its curriculum courses. Calling it again for
// the same applicant only fills in what is missing.
type EnrollmentMaterializer struct {
	years       academicYearFinder
	students    studentStore
	users       portalUserStore
	applicants  studentNumberWriter
	enrollments enrollmentStore
	campus      CampusConfig
	logger      *zap.Logger
}

// NewEnrollmentMaterializer constructs the materializer.
func NewEnrollmentMaterializer(years academicYearFinder, students studentStore, users portalUserStore, applicants studentNumberWriter, enrollments enrollmentStore, campus CampusConfig, logger *zap.Logger) *EnrollmentMaterializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentMaterializer{
		years:       years,
		students:    students,
		users:       users,
		applicants:  applicants,
		enrollments: enrollments,
		campus:      campus,
		logger:      logger,
	}
}

// Materialize runs every creation step for applicant.
func (m *EnrollmentMaterializer) Materialize(ctx context.Context, applicant *models.Applicant, req dto.EnrollRequest) (*dto.EnrollmentResult, error) {
	year, err := m.academicYear(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	student, err := m.ensureStudent(ctx, applicant, year)
	if err != nil {
		return nil, err
	}
	result := &dto.EnrollmentResult{Student: student, CreatedCourses: []models.EnrolledCourse{}}

	if student.UserID == nil {
		creds, err := m.ensurePortalAccount(ctx, student)
		if err != nil {
			return nil, err
		}
		result.Portal = creds
	}

	if applicant.StudentNumber == nil || *applicant.StudentNumber != student.StudentNumber {
		if err := m.applicants.SetStudentNumber(ctx, applicant.ID, student.StudentNumber); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record student number")
		}
		number := student.StudentNumber
		applicant.StudentNumber = &number
	}

	enrollment, err := m.ensureEnrollment(ctx, applicant, student, year, req)
	if err != nil {
		return nil, err
	}
	result.Enrollment = enrollment

	reason, err := m.assignCourses(ctx, enrollment, result)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		result.NeedsManualReview = true
		result.ManualReviewReason = reason
		m.logger.Warn("enrollment needs manual course review", zap.String("student_number", student.StudentNumber), zap.String("reason", reason))
	}
	return result, nil
}

func (m *EnrollmentMaterializer) academicYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	var (
		year *models.AcademicYear
		err  error
	)
	if id != "" {
		year, err = m.years.FindAcademicYear(ctx, id)
	} else {
		year, err = m.years.FindActiveAcademicYear(ctx)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if id != "" {
				return nil, appErrors.Clone(appErrors.ErrValidation, "academic year not found")
			}
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no active academic year")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	return year, nil
}

func (m *EnrollmentMaterializer) ensureStudent(ctx context.Context, applicant *models.Applicant, year *models.AcademicYear) (*models.Student, error) {
	number := ""
	if applicant.StudentNumber != nil {
		number = *applicant.StudentNumber
	}
	existing, err := m.students.FindByNumberOrEmail(ctx, number, applicant.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}

	seq, err := m.students.NextSequence(ctx, m.campus.AlphaCode, m.campus.NumericCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate student number")
	}
	student := &models.Student{
		StudentNumber: FormatStudentNumber(m.campus.AlphaCode, year.StartYear, m.campus.NumericCode, seq),
		FullName:      applicant.FullName,
		Email:         strings.ToLower(strings.TrimSpace(applicant.Email)),
		Phone:         applicant.Phone,
		BirthDate:     applicant.BirthDate,
		Active:        true,
	}
	if err := m.students.Create(ctx, student); err != nil {
		// a concurrent enrollment of the same applicant may have won the insert
		if winner, findErr := m.students.FindByNumberOrEmail(ctx, "", applicant.Email); findErr == nil {
			return winner, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	m.logger.Info("student created", zap.String("student_number", student.StudentNumber), zap.String("applicant_id", applicant.ID))
	return student, nil
}

// ensurePortalAccount links an existing account with the student's email or
// creates one. Credentials are only returned for a new account.
func (m *EnrollmentMaterializer) ensurePortalAccount(ctx context.Context, student *models.Student) (*dto.PortalCredentials, error) {
	var creds *dto.PortalCredentials
	user, err := m.users.FindByEmail(ctx, student.Email)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		password, genErr := generateTemporaryPassword()
		if genErr != nil {
			return nil, appErrors.Wrap(genErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate portal password")
		}
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, appErrors.Wrap(hashErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash portal password")
		}
		user = &models.User{
			Email:        student.Email,
			PasswordHash: string(hash),
			FullName:     student.FullName,
			Role:         models.RoleStudent,
			Active:       true,
		}
		if err := m.users.Create(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create portal account")
		}
		creds = &dto.PortalCredentials{Email: user.Email, TemporaryPassword: password}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up portal account")
	}

	if err := m.students.LinkUser(ctx, student.ID, user.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link portal account")
	}
	userID := user.ID
	student.UserID = &userID
	return creds, nil
}

func (m *EnrollmentMaterializer) ensureEnrollment(ctx context.Context, applicant *models.Applicant, student *models.Student, year *models.AcademicYear, req dto.EnrollRequest) (*models.StudentEnrollment, error) {
	existing, err := m.enrollments.FindByApplicantExternalID(ctx, applicant.ExternalID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up enrollment")
	}
	yearLevel := req.YearLevel
	if yearLevel <= 0 {
		yearLevel = 1
	}
	semester := req.Semester
	if semester <= 0 {
		semester = 1
	}
	enrollment := &models.StudentEnrollment{
		StudentID:           student.ID,
		ApplicantExternalID: applicant.ExternalID,
		ProgramID:           applicant.ProgramID,
		AcademicYearID:      year.ID,
		YearLevel:           yearLevel,
		Semester:            semester,
	}
	if err := m.enrollments.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// assignCourses enrolls the curriculum courses not yet on the enrollment. It
// returns a manual review reason when no course can be assigned.
func (m *EnrollmentMaterializer) assignCourses(ctx context.Context, enrollment *models.StudentEnrollment, result *dto.EnrollmentResult) (string, error) {
	if enrollment.ProgramID == nil || *enrollment.ProgramID == "" {
		return "applicant has no program", nil
	}
	curriculum, err := m.enrollments.FindActiveCurriculum(ctx, *enrollment.ProgramID, enrollment.YearLevel, enrollment.Semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Sprintf("no active curriculum for year level %d semester %d", enrollment.YearLevel, enrollment.Semester), nil
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	courses, err := m.enrollments.ListCurriculumCourses(ctx, curriculum.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum courses")
	}
	if len(courses) == 0 {
		return "curriculum has no courses", nil
	}
	enrolled, err := m.enrollments.ListEnrolledCourseIDs(ctx, enrollment.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled courses")
	}
	have := make(map[string]bool, len(enrolled))
	for _, id := range enrolled {
		have[id] = true
	}
	var missing []string
	for _, c := range courses {
		if !have[c.CourseID] {
			missing = append(missing, c.CourseID)
		}
	}
	if len(missing) == 0 {
		return "", nil
	}
	created, err := m.enrollments.AddCourses(ctx, enrollment.ID, missing)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign courses")
	}
	result.CreatedCourses = append(result.CreatedCourses, created...)
	return "", nil
}

func generateTemporaryPassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
