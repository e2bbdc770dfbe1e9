package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sale_inviter/internal/domain"
)

func fields(kv ...string) []domain.CustomField {
	out := make([]domain.CustomField, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, domain.CustomField{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name    string
		fields  []domain.CustomField
		want    string
		wantErr error
	}{
		{
			name:   "github username with at sign",
			fields: fields("GitHub Username", "@octocat"),
			want:   "octocat",
		},
		{
			name:    "no matching key",
			fields:  fields("Note", "n/a"),
			wantErr: domain.ErrNoUsernameField,
		},
		{
			name:    "empty after trim",
			fields:  fields("git_user", "  "),
			wantErr: domain.ErrEmptyUsername,
		},
		{
			name:    "only an at sign",
			fields:  fields("Git", " @ "),
			wantErr: domain.ErrEmptyUsername,
		},
		{
			name:   "user keyword in upper case",
			fields: fields("Company", "Acme", "YOUR USER NAME", " hubot "),
			want:   "hubot",
		},
		{
			name:   "localized keyword",
			fields: fields("Kullanıcı adı", "mona"),
			want:   "mona",
		},
		{
			name:    "no fields",
			fields:  nil,
			wantErr: domain.ErrNoUsernameField,
		},
	}

	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Extract(tt.fields)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractor_FirstMatchWinsInReceivedOrder(t *testing.T) {
	f := fields("Username (store)", "buyer42", "GitHub handle", "octocat")

	got, err := New().Extract(f)
	require.NoError(t, err)
	assert.Equal(t, "buyer42", got)
}

func TestExtractor_FirstMatchEmptyDoesNotFallThrough(t *testing.T) {
	f := fields("git", "", "github user", "octocat")

	_, err := New().Extract(f)
	assert.ErrorIs(t, err, domain.ErrEmptyUsername)
}

func TestExtractor_SortedOrder(t *testing.T) {
	f := fields("Username (store)", "buyer42", "GitHub handle", "octocat")

	got, err := New(WithKeyOrder(OrderSorted)).Extract(f)
	require.NoError(t, err)
	assert.Equal(t, "octocat", got)
	assert.Equal(t, "Username (store)", f[0].Key, "input must not be reordered")
}

func TestExtractor_CustomKeywords(t *testing.T) {
	got, err := New(WithKeywords("handle")).Extract(fields("GitHub user", "a", "Handle", "b"))
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}
