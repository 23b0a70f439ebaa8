package models

import (
	"strings"
	"time"
)

// StepID is one onboarding prerequisite a teacher completes before activation.
type StepID string

const (
	StepPreferences  StepID = "preferences"
	StepDocuments    StepID = "documents"
	StepPrice        StepID = "price"
	StepVideo        StepID = "video"
	StepAvailability StepID = "availability"
	StepWallet       StepID = "wallet"
	StepActivate     StepID = "activate"
)

// StepOrder is the traversal order of the onboarding flow. Routing always
// picks the earliest pending step from this list, never the backend's order.
var StepOrder = []StepID{
	StepPreferences,
	StepDocuments,
	StepPrice,
	StepVideo,
	StepAvailability,
	StepWallet,
}

const RouteTeacherHome = "/teacher/home"

var stepRoutes = map[StepID]string{
	StepPreferences:  "/onboarding/preferences",
	StepDocuments:    "/onboarding/documents",
	StepPrice:        "/onboarding/price",
	StepVideo:        "/onboarding/video",
	StepAvailability: "/onboarding/availability",
	StepWallet:       "/onboarding/wallet",
	StepActivate:     "/onboarding/activate",
}

func RouteForStep(step StepID) string {
	return stepRoutes[step]
}

// ActivationStatus is the canonical form of the upstream check payload.
// Missing and Flags are kept as two sources on purpose: the backend reports
// either one depending on the endpoint version, and routing takes their union.
type ActivationStatus struct {
	IsActive  bool            `json:"is_active"`
	Missing   []StepID        `json:"missing"`
	Flags     map[StepID]bool `json:"flags"`
	CheckedAt time.Time       `json:"checked_at"`
}

// Pending unions both sources: a step is pending if the missing list names it
// or its flag is explicitly false. A flag saying complete never overrides the
// missing list.
func (s ActivationStatus) Pending() map[StepID]bool {
	pending := make(map[StepID]bool, len(StepOrder))
	for _, step := range s.Missing {
		pending[step] = true
	}
	for step, done := range s.Flags {
		if !done {
			pending[step] = true
		}
	}
	return pending
}

// NextStep returns the earliest pending step in StepOrder. An inactive
// account with nothing pending still owes the final activate call. The second
// return is false only for an active account.
func (s ActivationStatus) NextStep() (StepID, bool) {
	if s.IsActive {
		return "", false
	}
	pending := s.Pending()
	for _, step := range StepOrder {
		if pending[step] {
			return step, true
		}
	}
	return StepActivate, true
}

func (s ActivationStatus) NextRoute() string {
	step, ok := s.NextStep()
	if !ok {
		return RouteTeacherHome
	}
	return stepRoutes[step]
}

// stepAliases folds the key spellings seen across backend versions into
// canonical steps. Lookups happen after lowercasing and stripping has_/is_
// prefixes, so "hasDocuments", "has_documents" and "documents" all land here.
var stepAliases = map[string]StepID{
	"preference":     StepPreferences,
	"preferences":    StepPreferences,
	"document":       StepDocuments,
	"documents":      StepDocuments,
	"docs":           StepDocuments,
	"price":          StepPrice,
	"prices":         StepPrice,
	"rate":           StepPrice,
	"video":          StepVideo,
	"intro_video":    StepVideo,
	"availability":   StepAvailability,
	"schedule":       StepAvailability,
	"wallet":         StepWallet,
	"payment_method": StepWallet,
	"activate":       StepActivate,
	"activation":     StepActivate,
}

// CanonicalStep maps one raw backend key or list entry to a StepID.
func CanonicalStep(raw string) (StepID, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.TrimPrefix(key, "has_")
	key = strings.TrimPrefix(key, "is_")
	// camelCase flags arrive as e.g. "hasdocuments" after lowercasing
	key = strings.TrimPrefix(key, "has")
	step, ok := stepAliases[key]
	return step, ok
}

var missingListKeys = []string{"missing", "missing_steps", "missingsteps", "steps_missing", "pending_steps"}

var activeKeys = []string{"is_active", "isactive", "active", "activated"}

// NormalizeActivation turns a raw upstream payload into the canonical status.
// The payload may carry an explicit missing list, per-step boolean flags, or
// both; unknown keys are dropped rather than failing the whole response.
func NormalizeActivation(raw map[string]interface{}) ActivationStatus {
	status := ActivationStatus{
		Missing: []StepID{},
		Flags:   map[StepID]bool{},
	}

	for _, key := range activeKeys {
		if v, ok := raw[key]; ok {
			if b, ok := v.(bool); ok {
				status.IsActive = b
				break
			}
		}
	}

	seen := map[StepID]bool{}
	for _, key := range missingListKeys {
		list, ok := raw[key].([]interface{})
		if !ok {
			continue
		}
		for _, entry := range list {
			name, ok := entry.(string)
			if !ok {
				continue
			}
			if step, ok := CanonicalStep(name); ok && !seen[step] {
				seen[step] = true
				status.Missing = append(status.Missing, step)
			}
		}
	}

	for key, v := range raw {
		b, ok := v.(bool)
		if !ok {
			continue
		}
		if isActiveKey(key) {
			continue
		}
		if step, ok := CanonicalStep(key); ok {
			status.Flags[step] = b
		}
	}

	return status
}

func isActiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, a := range activeKeys {
		if k == a {
			return true
		}
	}
	return false
}
