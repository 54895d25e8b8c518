package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is the owning entity for audits and schedules. Full project CRUD
// lives outside this service; the scheduler only needs the current site URL,
// which is always read fresh at trigger time.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	SiteURL   string    `json:"site_url"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProject creates a project record
func NewProject(name, siteURL string) *Project {
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		SiteURL:   siteURL,
		CreatedAt: time.Now(),
	}
}
