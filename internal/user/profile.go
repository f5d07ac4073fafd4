package user

import (
	"time"

	"github.com/google/uuid"
)

// baseProfile is the public shape shared by all roles. The secret and the
// one-time tokens never appear here.
type baseProfile struct {
	ID            uuid.UUID `json:"id"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Email         string    `json:"email"`
	PhoneNumber   string    `json:"phoneNumber"`
	Role          Role      `json:"role"`
	IsActive      bool      `json:"isActive"`
	EmailVerified bool      `json:"emailVerified"`
	CreatedAt     time.Time `json:"createdAt"`
}

type adminPublicProfile struct {
	baseProfile
	Permissions []string   `json:"permissions"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
}

type instructorPublicProfile struct {
	baseProfile
	Skills       []string      `json:"skills"`
	Certificates []Certificate `json:"certificates"`
	Projects     []Project     `json:"projects"`
	Bio          string        `json:"bio"`
	IsApproved   bool          `json:"isApproved"`
	Earnings     float64       `json:"earnings"`
	StudentCount int           `json:"studentCount"`
	Rating       float64       `json:"rating"`
	ReviewCount  int           `json:"reviewCount"`
}

type learnerPublicProfile struct {
	baseProfile
	SkillsNeeded     []string     `json:"skillsNeeded"`
	Interests        []string     `json:"interests"`
	Enrollments      []Enrollment `json:"enrollments"`
	Wishlist         []uuid.UUID  `json:"wishlist"`
	CompletedCourses int          `json:"completedCourses"`
}

// PublicProfile returns the role-shaped public view of u: the base fields
// plus the extension payload for its role, flattened for the wire. Slice
// fields are always present in the output, empty rather than null.
func (u *User) PublicProfile() any {
	base := baseProfile{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		PhoneNumber:   u.PhoneNumber,
		Role:          u.Role,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}

	switch u.Role {
	case RoleAdmin:
		p := adminPublicProfile{baseProfile: base, Permissions: []string{}}
		if u.Admin != nil {
			p.Permissions = orEmpty(u.Admin.Permissions)
			p.LastLogin = u.Admin.LastLoginAt
		}
		return p
	case RoleInstructor:
		p := instructorPublicProfile{
			baseProfile:  base,
			Skills:       []string{},
			Certificates: []Certificate{},
			Projects:     []Project{},
		}
		if u.Instructor != nil {
			p.Skills = orEmpty(u.Instructor.Skills)
			p.Certificates = orEmpty(u.Instructor.Certificates)
			p.Projects = orEmpty(u.Instructor.Projects)
			p.Bio = u.Instructor.Bio
			p.IsApproved = u.Instructor.IsApproved
			p.Earnings = u.Instructor.Earnings
			p.StudentCount = u.Instructor.StudentCount
			p.Rating = u.Instructor.Rating
			p.ReviewCount = u.Instructor.ReviewCount
		}
		return p
	case RoleLearner:
		p := learnerPublicProfile{
			baseProfile:  base,
			SkillsNeeded: []string{},
			Interests:    []string{},
			Enrollments:  []Enrollment{},
			Wishlist:     []uuid.UUID{},
		}
		if u.Learner != nil {
			p.SkillsNeeded = orEmpty(u.Learner.SkillsNeeded)
			p.Interests = orEmpty(u.Learner.Interests)
			p.Enrollments = orEmpty(u.Learner.Enrollments)
			p.Wishlist = orEmpty(u.Learner.Wishlist)
			p.CompletedCourses = u.Learner.CompletedCourses
		}
		return p
	}
	return base
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
