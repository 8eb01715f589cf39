package music

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const (
	GenreNewAge = "newage"
	GenreRetro  = "retro"

	MoodHappy = "happy"
	MoodSad   = "sad"
	MoodGrand = "grand"

	TempoSlow     = "slow"
	TempoModerate = "moderate"
	TempoFast     = "fast"

	FormatMP3  = "mp3"
	FormatMIDI = "midi"

	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// GenerateRequest is the body of POST /music.
type GenerateRequest struct {
	Genre string `json:"genre" binding:"required,oneof=newage retro"`
	Mood  string `json:"mood" binding:"required,oneof=happy sad grand"`
	Tempo string `json:"tempo" binding:"required,oneof=slow moderate fast"`
	// Seed makes a song reproducible. A random one is drawn when omitted.
	Seed   *int64 `json:"seed"`
	Format string `json:"format" binding:"omitempty,oneof=mp3 midi"`
}

// Sections is the ordered song structure. Postgres stores it as text[], other
// drivers as the same array literal in a text column.
type Sections []string

func (s Sections) Value() (driver.Value, error) {
	return pq.StringArray(s).Value()
}

func (s *Sections) Scan(src interface{}) error {
	return (*pq.StringArray)(s).Scan(src)
}

func (Sections) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Generation records one POST /music request.
type Generation struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	Genre     string    `gorm:"type:varchar(16);not null"`
	Mood      string    `gorm:"type:varchar(16);not null"`
	Tempo     string    `gorm:"type:varchar(16);not null"`
	Format    string    `gorm:"type:varchar(8);not null"`
	Seed      int64     `gorm:"not null"`
	BPM       int       `gorm:"not null;default:0"`
	Bars      int       `gorm:"not null;default:0"`
	Sections  Sections
	Status    string `gorm:"type:varchar(16);not null;index"`
	Message   string `gorm:"type:varchar(255)"`
	ExpiresAt *time.Time
	CreatedAt time.Time `gorm:"not null;index"`
}

func (Generation) TableName() string {
	return "music_generations"
}

func (g *Generation) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// GenerationResponse is the API view of a Generation.
type GenerationResponse struct {
	ID        uuid.UUID  `json:"id"`
	Genre     string     `json:"genre"`
	Mood      string     `json:"mood"`
	Tempo     string     `json:"tempo"`
	Format    string     `json:"format"`
	Seed      int64      `json:"seed"`
	BPM       int        `json:"bpm"`
	Bars      int        `json:"bars"`
	Sections  []string   `json:"sections"`
	Status    string     `json:"status"`
	Message   string     `json:"message,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (g *Generation) ToResponse() GenerationResponse {
	sections := []string(g.Sections)
	if sections == nil {
		sections = []string{}
	}
	return GenerationResponse{
		ID:        g.ID,
		Genre:     g.Genre,
		Mood:      g.Mood,
		Tempo:     g.Tempo,
		Format:    g.Format,
		Seed:      g.Seed,
		BPM:       g.BPM,
		Bars:      g.Bars,
		Sections:  sections,
		Status:    g.Status,
		Message:   g.Message,
		ExpiresAt: g.ExpiresAt,
		CreatedAt: g.CreatedAt,
	}
}
