package models

import "time"

// Instance is a configured remote n8n deployment. The API key is stored
// alongside the URL and never serialized into API responses.
type Instance struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"       validate:"required"`
	URL       string    `json:"url"        validate:"required,url"`
	APIKey    string    `json:"-"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCredentials reports whether the instance carries everything the
// orchestrator needs to dispatch a trigger.
func (i *Instance) HasCredentials() bool {
	return i.URL != "" && i.APIKey != ""
}
