// internal/models/backend.go
package models

import "time"

// BackendType is the protocol family of a registered AI.
type BackendType string

const (
	BackendTypeAPI      BackendType = "api"
	BackendTypeBot      BackendType = "bot"
	BackendTypeLocalAI  BackendType = "local_ai"
	BackendTypeCustomAI BackendType = "custom_ai"

	// BackendTypeAny is only meaningful as a request preference.
	BackendTypeAny BackendType = "any"
)

// BackendTypes lists every registrable type in wire order.
var BackendTypes = []BackendType{
	BackendTypeAPI,
	BackendTypeBot,
	BackendTypeLocalAI,
	BackendTypeCustomAI,
}

// Valid reports whether t is a registrable backend type.
func (t BackendType) Valid() bool {
	for _, known := range BackendTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Connection config keys understood by the dispatcher.
const (
	ConfigEndpoint = "endpoint"
	ConfigAPIKey   = "api_key"
	ConfigModule   = "module"
)

// BackendDescriptor is a registered AI.
type BackendDescriptor struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Type             BackendType            `json:"type"`
	Description      string                 `json:"description"`
	PerformanceScore float64                `json:"performance_score"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// ConfigString returns a string connection config value, or "" when absent
// or not a string.
func (d BackendDescriptor) ConfigString(key string) string {
	if d.ConnectionConfig == nil {
		return ""
	}
	s, _ := d.ConnectionConfig[key].(string)
	return s
}

// ModuleName is the adapter module a non-api backend resolves to. It falls
// back to the descriptor id.
func (d BackendDescriptor) ModuleName() string {
	if m := d.ConfigString(ConfigModule); m != "" {
		return m
	}
	return d.ID
}

// NewDescriptor is the caller-supplied part of a descriptor on add.
type NewDescriptor struct {
	Name             string                 `json:"name"`
	Type             BackendType            `json:"type"`
	Description      string                 `json:"description"`
	PerformanceScore float64                `json:"performance_score"`
	ConnectionConfig map[string]interface{} `json:"connection_config"`
}

// DescriptorPatch is a partial update. Nil fields are left unchanged and
// ConnectionConfig is merged key by key.
type DescriptorPatch struct {
	Name             *string                `json:"name,omitempty"`
	Type             *BackendType           `json:"type,omitempty"`
	Description      *string                `json:"description,omitempty"`
	PerformanceScore *float64               `json:"performance_score,omitempty"`
	ConnectionConfig map[string]interface{} `json:"connection_config,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p DescriptorPatch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Description == nil &&
		p.PerformanceScore == nil && len(p.ConnectionConfig) == 0
}

// Apply returns d with the patch merged in. d is not modified.
func (p DescriptorPatch) Apply(d BackendDescriptor) BackendDescriptor {
	out := d
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.PerformanceScore != nil {
		out.PerformanceScore = *p.PerformanceScore
	}

	merged := make(map[string]interface{}, len(d.ConnectionConfig)+len(p.ConnectionConfig))
	for k, v := range d.ConnectionConfig {
		merged[k] = v
	}
	for k, v := range p.ConnectionConfig {
		merged[k] = v
	}
	out.ConnectionConfig = merged
	return out
}
