package model

// Faculty is a staff member. Parent references are optional and may point at
// any level of the hierarchy.
type Faculty struct {
	Base
	Name         string `gorm:"size:256;not null" json:"name" validate:"required,max=256"`
	Email        string `gorm:"size:256" json:"email" validate:"omitempty,email"`
	Phone        string `gorm:"size:64" json:"phone"`
	UniversityID string `gorm:"size:36;index" json:"universityId"`
	CollegeID    string `gorm:"size:36;index" json:"collegeId"`
	DepartmentID string `gorm:"size:36;index" json:"departmentId"`
	Status       string `gorm:"size:32" json:"status"`
	Bio          string `gorm:"type:text" json:"bio"`
}

// TableName keeps the plural form used on the wire.
func (Faculty) TableName() string { return "faculty" }

// Student is enrolled in a program.
type Student struct {
	Base
	Name             string      `gorm:"size:256;not null" json:"name" validate:"required,max=256"`
	Email            string      `gorm:"size:256" json:"email" validate:"omitempty,email"`
	RegisteredNumber string      `gorm:"size:64;index" json:"registeredNumber"`
	Phone            string      `gorm:"size:64" json:"phone"`
	EnrollmentYear   int         `json:"enrollmentYear" validate:"omitempty,gte=1900,lte=2200"`
	GraduationYear   int         `json:"graduationYear" validate:"omitempty,gte=1900,lte=2200,gtefield=EnrollmentYear"`
	CollegeID        string      `gorm:"size:36;index" json:"collegeId"`
	DepartmentID     string      `gorm:"size:36;index" json:"departmentId"`
	ProgramID        string      `gorm:"size:36;index" json:"programId"`
	Credentials      Credentials `gorm:"embedded;embeddedPrefix:credentials_" json:"credentials"`
}

// Credentials holds the student's login name. Secrets are never stored here.
type Credentials struct {
	Username string `gorm:"size:128" json:"username"`
}
