package model

// University is the root of the hierarchy.
type University struct {
	Base
	Name string `gorm:"size:256;not null" json:"name" validate:"required,max=256"`
}

// College belongs to a University.
type College struct {
	Base
	Name       string   `gorm:"size:256;not null" json:"name" validate:"required,max=256"`
	Dean       string   `gorm:"size:256" json:"dean"`
	AdminEmail string   `gorm:"size:256" json:"adminEmail" validate:"omitempty,email"`
	Location   Location `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	University string   `gorm:"size:36;index;not null" json:"university" validate:"required"`
}

// Location is a postal location.
type Location struct {
	Country string `gorm:"size:128" json:"country"`
	State   string `gorm:"size:128" json:"state"`
	City    string `gorm:"size:128" json:"city"`
	Address string `gorm:"size:512" json:"address"`
}
