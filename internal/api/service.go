package api

import (
	"context"
	"fmt"
	"net/http"
)

// Service describes an enrichment service (reconciliator or extender) as
// listed by the backend.
type Service struct {
	ID          string      `json:"id"`
	RelativeURL string      `json:"relativeUrl"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	FormParams  []FormParam `json:"formParams,omitempty"`
}

// FormParam is one configurable input of an enrichment service.
type FormParam struct {
	ID          string        `json:"id"`
	InputType   string        `json:"inputType,omitempty"`
	Description string        `json:"description,omitempty"`
	Label       string        `json:"label,omitempty"`
	InfoText    string        `json:"infoText,omitempty"`
	Rules       []string      `json:"rules,omitempty"`
	Options     []ParamOption `json:"options,omitempty"`
}

// ParamOption is one selectable value of a form parameter.
type ParamOption struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Value string `json:"value,omitempty"`
}

// Required reports whether the parameter carries the "required" rule.
func (p FormParam) Required() bool {
	for _, rule := range p.Rules {
		if rule == "required" {
			return true
		}
	}
	return false
}

// Parameter is the normalized view of a service parameter used by the CLI.
type Parameter struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Mandatory   bool          `json:"mandatory"`
	Description string        `json:"description,omitempty"`
	Label       string        `json:"label,omitempty"`
	InfoText    string        `json:"infoText,omitempty"`
	Options     []ParamOption `json:"options,omitempty"`
}

// ServiceParameters groups a service's parameters by whether they are
// mandatory.
type ServiceParameters struct {
	Mandatory []Parameter `json:"mandatory"`
	Optional  []Parameter `json:"optional"`
}

// listServices fetches and cleans a service catalog, dropping entries that
// lack the identifying fields.
func (c *Client) listServices(ctx context.Context, path string) ([]Service, error) {
	var services []Service
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &services); err != nil {
		return nil, err
	}
	cleaned := make([]Service, 0, len(services))
	for _, svc := range services {
		if svc.ID == "" || svc.Name == "" {
			continue
		}
		cleaned = append(cleaned, svc)
	}
	return cleaned, nil
}

// findService locates a service by id within a fetched catalog.
func findService(services []Service, id string) (Service, error) {
	for _, svc := range services {
		if svc.ID == id {
			return svc, nil
		}
	}
	return Service{}, NotFoundError{Message: fmt.Sprintf("service %q not found", id)}
}

// normalizeParams converts a service's form parameters into the CLI view.
func normalizeParams(params []FormParam) []Parameter {
	out := make([]Parameter, 0, len(params))
	for _, p := range params {
		out = append(out, Parameter{
			Name:        p.ID,
			Type:        p.InputType,
			Mandatory:   p.Required(),
			Description: p.Description,
			Label:       p.Label,
			InfoText:    p.InfoText,
			Options:     p.Options,
		})
	}
	return out
}
