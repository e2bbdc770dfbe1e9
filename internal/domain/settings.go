package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings keys as persisted by the stores.
const (
	KeyGumroadAccessToken     = "gumroad_access_token"
	KeyGitHubAccessToken      = "github_access_token"
	KeyGitHubOwner            = "github_owner"
	KeyGitHubRepo             = "github_repo"
	KeyRepoMappings           = "repo_mappings"
	KeyPollingIntervalMinutes = "polling_interval_minutes"
	KeyAutoLaunch             = "auto_launch"
	KeyLastCheckTime          = "last_check_time"
	KeyLastResetAt            = "last_reset_at"
)

// SettingKeys lists every key the stores accept.
var SettingKeys = []string{
	KeyGumroadAccessToken,
	KeyGitHubAccessToken,
	KeyGitHubOwner,
	KeyGitHubRepo,
	KeyRepoMappings,
	KeyPollingIntervalMinutes,
	KeyAutoLaunch,
	KeyLastCheckTime,
	KeyLastResetAt,
}

const DefaultPollingIntervalMinutes = 10

// EpochSentinel marks "never checked" and requests a full resync.
var EpochSentinel = time.Unix(0, 0).UTC()

// IsEpochSentinel reports whether t is the zero time or any date up to the end
// of 2020, which the sales fetcher treats as "fetch everything".
func IsEpochSentinel(t time.Time) bool {
	return t.IsZero() || t.UTC().Year() <= 2020
}

// RepoMapping routes sales whose product name contains Keyword to a specific
// repository. Mappings are stored and editable but the job always uses the
// default owner/repo.
type RepoMapping struct {
	ID                 string `json:"id"`
	ProductNameKeyword string `json:"product_name_keyword" binding:"required"`
	Owner              string `json:"github_owner" binding:"required"`
	Repo               string `json:"github_repo" binding:"required"`
}

// Settings is the full persisted configuration and operational state.
type Settings struct {
	GumroadAccessToken     string        `json:"gumroad_access_token"`
	GitHubAccessToken      string        `json:"github_access_token"`
	GitHubOwner            string        `json:"github_owner"`
	GitHubRepo             string        `json:"github_repo"`
	RepoMappings           []RepoMapping `json:"repo_mappings"`
	PollingIntervalMinutes int           `json:"polling_interval_minutes"`
	AutoLaunch             bool          `json:"auto_launch"`
	LastCheckTime          time.Time     `json:"last_check_time"`
	LastResetAt            time.Time     `json:"last_reset_at"`
}

// DefaultSettings mirrors the values a fresh store reports.
func DefaultSettings() *Settings {
	return &Settings{
		RepoMappings:           []RepoMapping{},
		PollingIntervalMinutes: DefaultPollingIntervalMinutes,
		LastCheckTime:          EpochSentinel,
	}
}

// MissingRequired returns the keys the job needs but that are empty.
func (s *Settings) MissingRequired() []string {
	var missing []string
	if strings.TrimSpace(s.GumroadAccessToken) == "" {
		missing = append(missing, KeyGumroadAccessToken)
	}
	if strings.TrimSpace(s.GitHubAccessToken) == "" {
		missing = append(missing, KeyGitHubAccessToken)
	}
	if strings.TrimSpace(s.GitHubOwner) == "" {
		missing = append(missing, KeyGitHubOwner)
	}
	if strings.TrimSpace(s.GitHubRepo) == "" {
		missing = append(missing, KeyGitHubRepo)
	}
	return missing
}

// PollingInterval is the timer period: the configured minutes, at least one
// minute, and ten minutes when unset or non-positive.
func (s *Settings) PollingInterval() time.Duration {
	minutes := s.PollingIntervalMinutes
	if minutes <= 0 {
		minutes = DefaultPollingIntervalMinutes
	}
	return time.Duration(max(minutes, 1)) * time.Minute
}

// Target returns the repository a sale should be invited to. Repo mappings are
// not consulted; every sale goes to the default owner/repo.
func (s *Settings) Target(_ Sale) (owner, repo string) {
	return s.GitHubOwner, s.GitHubRepo
}

// Apply parses a raw stored value into the matching field.
func (s *Settings) Apply(key, value string) error {
	switch key {
	case KeyGumroadAccessToken:
		s.GumroadAccessToken = value
	case KeyGitHubAccessToken:
		s.GitHubAccessToken = value
	case KeyGitHubOwner:
		s.GitHubOwner = value
	case KeyGitHubRepo:
		s.GitHubRepo = value
	case KeyRepoMappings:
		var mappings []RepoMapping
		if value != "" {
			if err := json.Unmarshal([]byte(value), &mappings); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
			}
		}
		if mappings == nil {
			mappings = []RepoMapping{}
		}
		s.RepoMappings = mappings
	case KeyPollingIntervalMinutes:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		s.PollingIntervalMinutes = n
	case KeyAutoLaunch:
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		s.AutoLaunch = b
	case KeyLastCheckTime, KeyLastResetAt:
		t, err := ParseTime(value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSetting, key, err)
		}
		if key == KeyLastCheckTime {
			s.LastCheckTime = t
		} else {
			s.LastResetAt = t
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return nil
}

// SettingsFromMap decodes a raw key/value snapshot on top of the defaults.
// Unknown keys are ignored so older rows never break a load.
func SettingsFromMap(values map[string]string) (*Settings, error) {
	s := DefaultSettings()
	for _, key := range SettingKeys {
		value, ok := values[key]
		if !ok {
			continue
		}
		if err := s.Apply(key, value); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ValidateSetting checks that value is acceptable for key.
func ValidateSetting(key, value string) error {
	var s Settings
	return s.Apply(key, value)
}

// FormatTime is the persisted representation of timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTime reads a persisted timestamp; an empty value is the zero time.
func ParseTime(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
}

// EncodeMappings serializes repo mappings for storage.
func EncodeMappings(mappings []RepoMapping) (string, error) {
	if mappings == nil {
		mappings = []RepoMapping{}
	}
	b, err := json.Marshal(mappings)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Masked returns a copy safe to show: tokens are reduced to their last four characters.
func (s *Settings) Masked() Settings {
	m := *s
	m.GumroadAccessToken = maskToken(s.GumroadAccessToken)
	m.GitHubAccessToken = maskToken(s.GitHubAccessToken)
	return m
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}
