package repo

import (
	"time"

	"gorm.io/gorm"

	"hostelhub.org/internal/ids"
)

// TenantBound is implemented by every tenant-bearing entity pointer.
type TenantBound interface {
	EntityID() string
	TenantKey() string
	SetTenantKey(string)
}

// Room statuses.
const (
	RoomAvailable   = "available"
	RoomOccupied    = "occupied"
	RoomMaintenance = "maintenance"
)

// Room is a bookable room inside a hostel.
type Room struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	TenantID  string    `gorm:"size:26;not null;index;uniqueIndex:rooms_tenant_number" json:"tenant_id"`
	Number    string    `gorm:"size:32;not null;uniqueIndex:rooms_tenant_number" json:"number"`
	Floor     int       `json:"floor"`
	Capacity  int       `gorm:"not null;default:1" json:"capacity"`
	Status    string    `gorm:"size:16;not null;default:available" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Room) TableName() string { return "rooms" }

func (r *Room) EntityID() string      { return r.ID }
func (r *Room) TenantKey() string     { return r.TenantID }
func (r *Room) SetTenantKey(t string) { r.TenantID = t }

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	if r.Status == "" {
		r.Status = RoomAvailable
	}
	return nil
}

// Complaint statuses.
const (
	ComplaintOpen     = "open"
	ComplaintResolved = "resolved"
)

// Complaint is a resident-reported issue.
type Complaint struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	TenantID  string    `gorm:"size:26;not null;index" json:"tenant_id"`
	RoomID    *string   `gorm:"size:26" json:"room_id,omitempty"`
	AuthorID  string    `gorm:"size:26;not null" json:"author_id"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Body      string    `json:"body"`
	Status    string    `gorm:"size:16;not null;default:open" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Complaint) TableName() string { return "complaints" }

func (c *Complaint) EntityID() string      { return c.ID }
func (c *Complaint) TenantKey() string     { return c.TenantID }
func (c *Complaint) SetTenantKey(t string) { c.TenantID = t }

func (c *Complaint) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = ids.New()
	}
	if c.Status == "" {
		c.Status = ComplaintOpen
	}
	return nil
}
