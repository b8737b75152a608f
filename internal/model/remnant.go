package model

import "time"

type Status string

const (
	StatusAvailable Status = "Available"
	StatusSold      Status = "Sold"
	StatusHold      Status = "Hold"
)

// Remnant is one offcut parsed from a job page files row.
type Remnant struct {
	ID        int
	Width     int
	Height    int
	LShaped   bool
	SubWidth  *int // nil unless LShaped
	SubHeight *int
	Status    Status
	Thickness string
	Material  string
	Name      string

	SourceImageURL string
}

type SyncOutcome string

const (
	SyncChanged  SyncOutcome = "changed"
	SyncNoChange SyncOutcome = "no_change"
)

// ParseSyncOutcome reads the verdict returned by sync_remnant. Anything that
// is not "changed" counts as no change.
func ParseSyncOutcome(s string) SyncOutcome {
	if SyncOutcome(s) == SyncChanged {
		return SyncChanged
	}
	return SyncNoChange
}

type Photo struct {
	Hash      string
	Path      string
	PublicURL string
	SyncedAt  time.Time
}

// ListedRemnant is a stored remnant row as served by the listing API.
type ListedRemnant struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Material       string     `json:"material"`
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	Thickness      string     `json:"thickness"`
	LShape         bool       `json:"l_shape"`
	LWidth         *int       `json:"l_width"`
	LHeight        *int       `json:"l_height"`
	Status         string     `json:"status"`
	Image          *string    `json:"image"`
	ImagePath      *string    `json:"image_path"`
	SourceImageURL *string    `json:"source_image_url"`
	IsActive       bool       `json:"is_active"`
	DeletedAt      *time.Time `json:"deleted_at"`
	LastSeenAt     *time.Time `json:"last_seen_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
}
