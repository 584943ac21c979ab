package store

import "time"

// Course is a row of the courses table.
type Course struct {
	ID           uint   `gorm:"primaryKey" json:"-" yaml:"-"`
	Code         string `gorm:"column:course_code;uniqueIndex;not null" json:"course_code" yaml:"course_code"`
	Prefix       string `gorm:"column:course_prefix;size:4;not null;index" json:"course_prefix" yaml:"course_prefix"`
	Number       string `gorm:"column:course_number;size:10;not null" json:"course_number" yaml:"course_number"`
	Name         string `gorm:"column:course_name;not null" json:"course_name" yaml:"course_name"`
	DeliveryType string `gorm:"column:course_delivery_type" json:"course_delivery_type" yaml:"course_delivery_type"`
	Prereqs      string `gorm:"column:prereqs" json:"prereqs" yaml:"prereqs"`
	Hours        string `gorm:"column:hours" json:"hours" yaml:"hours"`
	Fees         string `gorm:"column:fees" json:"fees" yaml:"fees"`
	Description  string `gorm:"column:course_description" json:"course_description" yaml:"course_description"`
	Link         string `gorm:"column:course_link" json:"course_link" yaml:"course_link"`

	Schedules []Schedule `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"schedules" yaml:"schedules"`
}

// TableName pins the table name.
func (Course) TableName() string { return "courses" }

// Schedule is a row of the schedules table. Times are "HH:MM:SS" or NULL.
type Schedule struct {
	ID        uint      `gorm:"primaryKey" json:"-" yaml:"-"`
	CourseID  uint      `gorm:"not null;index" json:"-" yaml:"-"`
	StartDate time.Time `gorm:"type:date;not null" json:"start_date" yaml:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null" json:"end_date" yaml:"end_date"`
	DayOfWeek string    `gorm:"column:day_of_week;not null" json:"day_of_week" yaml:"day_of_week"`
	StartTime *string   `gorm:"type:time" json:"start_time" yaml:"start_time"`
	EndTime   *string   `gorm:"type:time" json:"end_time" yaml:"end_time"`
}

// TableName pins the table name.
func (Schedule) TableName() string { return "schedules" }
