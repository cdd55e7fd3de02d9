package model

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	StatusPending TaskStatus = "PENDING"
	StatusRunning TaskStatus = "RUNNING"
	StatusSuccess TaskStatus = "SUCCESS"
	StatusFailed  TaskStatus = "FAILED"
	// StatusDeleted marks a local deletion that was recorded but not transferred.
	StatusDeleted TaskStatus = "DELETED"
)

type History struct {
	gorm.Model
	TaskID     string     `gorm:"index"`
	Attempt    int        `gorm:"not null;default:1"`
	Target     string     `gorm:"index"`
	Status     TaskStatus `gorm:"not null"`
	SrcPath    string     `gorm:"not null"`
	DstPath    string
	Messages   string
	FinishedAt time.Time `gorm:"not null"`
}
