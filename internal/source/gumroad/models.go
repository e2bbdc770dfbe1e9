package gumroad

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sale_inviter/internal/domain"
)

// SalesResponse represents the Gumroad /v2/sales response structure.
type SalesResponse struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	NextPageKey string    `json:"next_page_key"`
	Sales       []APISale `json:"sales"`
}

type APISale struct {
	ID           string       `json:"id"`
	CreatedAt    string       `json:"created_at"`
	ProductName  string       `json:"product_name"`
	Email        string       `json:"email"`
	CustomFields CustomFields `json:"custom_fields"`
}

// UserResponse represents the Gumroad /v2/user response structure.
type UserResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	User    APIUser `json:"user"`
}

type APIUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CustomFields keeps checkout fields in the order Gumroad sent them.
// Non-string values (checkboxes, numbers) are kept as their JSON text.
type CustomFields []domain.CustomField

func (c *CustomFields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}
	// An empty set of fields is sometimes sent as an array.
	if data[0] == '[' {
		*c = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("custom_fields: expected object, got %v", tok)
	}

	var fields CustomFields
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("custom_fields: unexpected key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("custom_fields: value of %q: %w", key, err)
		}
		fields = append(fields, domain.CustomField{Key: key, Value: rawString(raw)})
	}

	*c = fields
	return nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}
