package model

import "gorm.io/datatypes"

// Department belongs to a College and owns a set of programs.
type Department struct {
	Base
	Name         string  `gorm:"size:256;not null" json:"name" validate:"required,max=256"`
	Head         Head    `gorm:"embedded;embeddedPrefix:head_" json:"head"`
	ContactEmail string  `gorm:"size:256" json:"contactEmail" validate:"omitempty,email"`
	ContactPhone string  `gorm:"size:64" json:"contactPhone"`
	Email        string  `gorm:"size:256" json:"email" validate:"omitempty,email"`
	Address      Address `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	College      string  `gorm:"size:36;index;not null" json:"college" validate:"required"`

	// Programs is a set of Program ids; order carries no meaning.
	Programs datatypes.JSONSlice[string] `json:"programs"`
}

// Head is the department head.
type Head struct {
	Name  string `gorm:"size:256" json:"name"`
	Phone string `gorm:"size:64" json:"phone"`
}

// Address locates a department on campus.
type Address struct {
	RoomNumber string `gorm:"size:64" json:"roomNumber"`
	Building   string `gorm:"size:128" json:"building"`
}

// Program levels.
const (
	LevelDiploma       = "diploma"
	LevelUndergraduate = "undergraduate"
	LevelPostgraduate  = "postgraduate"
	LevelDoctorate     = "doctorate"
	LevelProfessional  = "professional"
)

// Program belongs to a Department.
type Program struct {
	Base
	Name                string `gorm:"size:256;not null" json:"name" validate:"required,max=256"`
	Type                string `gorm:"size:64" json:"type"`
	Level               string `gorm:"size:32" json:"level" validate:"omitempty,oneof=diploma undergraduate postgraduate doctorate professional"`
	Duration            int    `json:"duration" validate:"omitempty,gte=1,lte=10"`
	Department          string `gorm:"size:36;index;not null" json:"department" validate:"required"`
	Syllabus            string `gorm:"size:1024" json:"syllabus" validate:"omitempty,url"`
	EligibilityCriteria string `gorm:"type:text" json:"eligibilityCriteria"`
}
