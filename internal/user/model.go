package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role partitions principals. The wire values are kept from the original
// platform API ("formateur" = instructor, "visiteur" = learner).
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "formateur"
	RoleLearner    Role = "visiteur"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleInstructor, RoleLearner:
		return true
	}
	return false
}

// DefaultAdminPermissions granted to a newly created administrator.
var DefaultAdminPermissions = []string{
	"manage-users",
	"manage-courses",
	"manage-payments",
	"view-statistics",
}

// User is the base principal record shared by all three roles. Exactly one
// of Admin/Instructor/Learner is set, selected by Role; the role never
// changes after creation.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	FirstName   string    `bun:"first_name,notnull" json:"firstName"`
	LastName    string    `bun:"last_name,notnull" json:"lastName"`
	Email       string    `bun:"email,notnull,unique" json:"email"`
	PhoneNumber string    `bun:"phone_number,notnull" json:"phoneNumber"`

	// Stored as an argon2id hash; never serialized outward.
	PasswordHash string `bun:"password_hash,notnull" json:"-"`

	Role Role `bun:"role,notnull" json:"role"`

	IsActive      bool `bun:"is_active,notnull,default:true" json:"isActive"`
	EmailVerified bool `bun:"email_verified,notnull,default:false" json:"emailVerified"`

	// Present only while a verification window is open; cleared together.
	EmailVerificationToken     *string    `bun:"email_verification_token" json:"-"`
	EmailVerificationExpiresAt *time.Time `bun:"email_verification_expires_at" json:"-"`

	// Declared for a future reset flow; no route issues or consumes these.
	PasswordResetToken     *string    `bun:"password_reset_token" json:"-"`
	PasswordResetExpiresAt *time.Time `bun:"password_reset_expires_at" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`

	Admin      *AdminProfile      `bun:"rel:has-one,join:id=user_id" json:"-"`
	Instructor *InstructorProfile `bun:"rel:has-one,join:id=user_id" json:"-"`
	Learner    *LearnerProfile    `bun:"rel:has-one,join:id=user_id" json:"-"`
}

// AdminProfile extends a principal with administrator fields.
type AdminProfile struct {
	bun.BaseModel `bun:"table:admin_profiles,alias:ap" json:"-"`

	UserID      uuid.UUID  `bun:"user_id,pk,type:uuid" json:"-"`
	Permissions []string   `bun:"permissions,array" json:"permissions"`
	LastLoginAt *time.Time `bun:"last_login_at" json:"lastLogin"`
}

// CertificateKind is the storage kind of an uploaded credential.
type CertificateKind string

const (
	CertificateLink CertificateKind = "link"
	CertificateFile CertificateKind = "file"
)

// Certificate is an instructor credential record, stored as jsonb.
type Certificate struct {
	Name       string          `json:"name"`
	Kind       CertificateKind `json:"kind"`
	Value      string          `json:"value"`
	UploadedAt time.Time       `json:"uploadedAt"`
}

// Project is an instructor portfolio record, stored as jsonb.
type Project struct {
	Name        string          `json:"name"`
	Kind        CertificateKind `json:"kind"`
	Value       string          `json:"value"`
	Description string          `json:"description"`
	UploadedAt  time.Time       `json:"uploadedAt"`
}

// InstructorProfile extends a principal with instructor fields. IsApproved
// stays false until an administrator signs off; unapproved instructors are
// excluded from instructor-only capabilities by the approval gate.
type InstructorProfile struct {
	bun.BaseModel `bun:"table:instructor_profiles,alias:ip" json:"-"`

	UserID       uuid.UUID     `bun:"user_id,pk,type:uuid" json:"-"`
	Skills       []string      `bun:"skills,array" json:"skills"`
	Certificates []Certificate `bun:"certificates,type:jsonb" json:"certificates"`
	Projects     []Project     `bun:"projects,type:jsonb" json:"projects"`
	Bio          string        `bun:"bio" json:"bio"`

	IsApproved      bool       `bun:"is_approved,notnull,default:false" json:"isApproved"`
	ApprovedBy      *uuid.UUID `bun:"approved_by,type:uuid" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `bun:"approved_at" json:"approvedAt,omitempty"`
	RejectionReason *string    `bun:"rejection_reason" json:"rejectionReason,omitempty"`

	Earnings     float64 `bun:"earnings,notnull,default:0" json:"earnings"`
	StudentCount int     `bun:"student_count,notnull,default:0" json:"studentCount"`
	Rating       float64 `bun:"rating,notnull,default:0" json:"rating"`
	ReviewCount  int     `bun:"review_count,notnull,default:0" json:"reviewCount"`
}

// Enrollment is a learner course-enrollment record, stored as jsonb.
type Enrollment struct {
	CourseID          uuid.UUID  `json:"courseId"`
	EnrolledAt        time.Time  `json:"enrolledAt"`
	Progress          int        `json:"progress"` // 0-100
	Completed         bool       `json:"completed"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	CertificateIssued bool       `json:"certificateIssued"`
	CertificateURL    string     `json:"certificateUrl,omitempty"`
}

// LearnerProfile extends a principal with learner fields.
type LearnerProfile struct {
	bun.BaseModel `bun:"table:learner_profiles,alias:lp" json:"-"`

	UserID           uuid.UUID    `bun:"user_id,pk,type:uuid" json:"-"`
	SkillsNeeded     []string     `bun:"skills_needed,array" json:"skillsNeeded"`
	Interests        []string     `bun:"interests,array" json:"interests"`
	Enrollments      []Enrollment `bun:"enrollments,type:jsonb" json:"enrollments"`
	Wishlist         []uuid.UUID  `bun:"wishlist,array,type:uuid[]" json:"wishlist"`
	CompletedCourses int          `bun:"completed_courses,notnull,default:0" json:"completedCourses"`
}
