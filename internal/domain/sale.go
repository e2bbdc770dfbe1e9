package domain

import "time"

// Sale is a single order reported by the sales source.
type Sale struct {
	ID           string
	CreatedAt    time.Time
	ProductName  string
	Email        string
	CustomFields []CustomField // upstream order
}

// CustomField is one buyer-supplied checkout field.
type CustomField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FieldKeys returns the custom field keys in their stored order.
func (s Sale) FieldKeys() []string {
	keys := make([]string, len(s.CustomFields))
	for i, f := range s.CustomFields {
		keys[i] = f.Key
	}
	return keys
}

// InviteResult is the outcome of a collaborator invitation. It is a value,
// not an error: failures carry the upstream status and message.
type InviteResult struct {
	Success bool
	Status  int
	Error   string
}

// ConnectionCheck is the result of an interactive credentials test.
type ConnectionCheck struct {
	Success bool   `json:"success"`
	User    string `json:"user,omitempty"`
	Email   string `json:"email,omitempty"`
	Repo    string `json:"repo,omitempty"`
	Error   string `json:"error,omitempty"`
}
