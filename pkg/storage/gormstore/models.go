package gormstore

import (
	"time"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

// identityModel corresponds to the 'identities' table.
type identityModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"not null"`
	Address       string
	Kind          string `gorm:"index"`
	Status        string `gorm:"not null;index"`
	PicturePath   string
	CreatedAtNano int64 `gorm:"column:created_at_ns;not null;index"`
}

func (identityModel) TableName() string {
	return "identities"
}

// sightingModel corresponds to the 'sightings' table.
type sightingModel struct {
	ID            string `gorm:"primaryKey;size:36"`
	IdentityID    string `gorm:"not null;index"`
	Name          string
	Address       string
	PicturePath   string
	Status        string `gorm:"not null;index"`
	Latitude      string
	Longitude     string
	SessionID     string `gorm:"index"`
	Distance      float64
	CreatedAtNano int64 `gorm:"column:created_at_ns;not null;index"`
}

func (sightingModel) TableName() string {
	return "sightings"
}

func fromIdentity(i *storage.Identity) identityModel {
	return identityModel{
		ID:            i.ID,
		Name:          i.Name,
		Address:       i.Address,
		Kind:          string(i.Kind),
		Status:        string(i.Status),
		PicturePath:   i.PicturePath,
		CreatedAtNano: i.CreatedAt.UnixNano(),
	}
}

func (m identityModel) toIdentity() storage.Identity {
	return storage.Identity{
		ID:          m.ID,
		Name:        m.Name,
		Address:     m.Address,
		Kind:        storage.Kind(m.Kind),
		Status:      storage.Status(m.Status),
		PicturePath: m.PicturePath,
		CreatedAt:   time.Unix(0, m.CreatedAtNano).UTC(),
	}
}

func fromSighting(s *storage.Sighting) sightingModel {
	return sightingModel{
		ID:            s.ID,
		IdentityID:    s.IdentityID,
		Name:          s.Name,
		Address:       s.Address,
		PicturePath:   s.PicturePath,
		Status:        string(s.Status),
		Latitude:      s.Latitude,
		Longitude:     s.Longitude,
		SessionID:     s.SessionID,
		Distance:      s.Distance,
		CreatedAtNano: s.CreatedAt.UnixNano(),
	}
}

func (m sightingModel) toSighting() storage.Sighting {
	return storage.Sighting{
		ID:          m.ID,
		IdentityID:  m.IdentityID,
		Name:        m.Name,
		Address:     m.Address,
		PicturePath: m.PicturePath,
		Status:      storage.Status(m.Status),
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
		SessionID:   m.SessionID,
		Distance:    m.Distance,
		CreatedAt:   time.Unix(0, m.CreatedAtNano).UTC(),
	}
}
