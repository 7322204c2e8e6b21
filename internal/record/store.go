package record

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrUnknownProfile is returned for a profile name the store does not hold.
var ErrUnknownProfile = errors.New("unknown upload profile")

// Profile is one upload destination of a project.
type Profile struct {
	ID        uint   `gorm:"primarykey"`
	ProjectID string `gorm:"uniqueIndex:idx_project_profile;not null"`
	Name      string `gorm:"uniqueIndex:idx_project_profile;not null"`
	IsDefault bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stamp records the last successful upload of one path for one profile.
// UploadedAt is stored as unix nanoseconds so comparisons against file
// modification times keep their full precision.
type Stamp struct {
	ID         uint   `gorm:"primarykey"`
	ProfileID  uint   `gorm:"uniqueIndex:idx_profile_path;not null"`
	Path       string `gorm:"uniqueIndex:idx_profile_path;not null"`
	UploadedAt int64  `gorm:"not null"`
	Hash       string
	Size       int64
	UpdatedAt  time.Time
}

// ProfileSpec describes a profile as configured.
type ProfileSpec struct {
	Name    string
	Default bool
}

// Store keeps the profiles and stamps of a single project in sqlite.
type Store struct {
	db        *gorm.DB
	projectID string
}

// Open opens (creating if needed) the database at dbPath for the project
// rooted at localRoot. The project id is the cleaned root path.
func Open(dbPath, localRoot string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&Profile{}, &Stamp{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	root := filepath.Clean(localRoot)
	return &Store{db: db, projectID: root}, nil
}

// ProjectID identifies the project this store belongs to.
func (s *Store) ProjectID() string { return s.projectID }

// SyncProfiles makes the stored profile list match specs. Profiles no
// longer configured are removed together with their stamps.
func (s *Store) SyncProfiles(specs []ProfileSpec) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(specs))
		for _, sp := range specs {
			keep = append(keep, sp.Name)
			p := Profile{ProjectID: s.projectID, Name: sp.Name, IsDefault: sp.Default}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"is_default", "updated_at"}),
			}).Create(&p).Error
			if err != nil {
				return fmt.Errorf("failed to save profile %s: %w", sp.Name, err)
			}
		}

		var stale []Profile
		q := tx.Where("project_id = ?", s.projectID)
		if len(keep) > 0 {
			q = q.Where("name NOT IN ?", keep)
		}
		if err := q.Find(&stale).Error; err != nil {
			return err
		}
		for _, p := range stale {
			if err := tx.Where("profile_id = ?", p.ID).Delete(&Stamp{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Profiles lists the project's profiles in name order.
func (s *Store) Profiles() ([]Profile, error) {
	var out []Profile
	err := s.db.Where("project_id = ?", s.projectID).Order("name").Find(&out).Error
	return out, err
}

// IsValid reports whether name is a known profile of this project.
func (s *Store) IsValid(name string) bool {
	_, err := s.profile(name)
	return err == nil
}

// DefaultProfile returns the name of the profile marked default, if any.
func (s *Store) DefaultProfile() (string, bool) {
	var p Profile
	err := s.db.Where("project_id = ? AND is_default = ?", s.projectID, true).Order("name").First(&p).Error
	if err != nil {
		return "", false
	}
	return p.Name, true
}

// Get returns the last upload time of path for profile.
func (s *Store) Get(profile, path string) (time.Time, bool, error) {
	st, err := s.Stamp(profile, path)
	if err != nil || st == nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, st.UploadedAt), true, nil
}

// Stamp returns the stored stamp of path, or nil when none exists.
func (s *Store) Stamp(profile, path string) (*Stamp, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	var stamps []Stamp
	if err := s.db.Where("profile_id = ? AND path = ?", p.ID, path).Limit(1).Find(&stamps).Error; err != nil {
		return nil, err
	}
	if len(stamps) == 0 {
		return nil, nil
	}
	return &stamps[0], nil
}

// Content describes the bytes sent for a file.
type Content struct {
	Hash string
	Size int64
}

// ReadContent hashes the file at path.
func ReadContent(path string) (Content, error) {
	f, err := os.Open(path)
	if err != nil {
		return Content{}, err
	}
	defer f.Close()

	h := xxhash.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Content{}, err
	}
	return Content{Hash: fmt.Sprintf("%x", h.Sum(nil)), Size: n}, nil
}

// Set records a successful upload of path at t.
func (s *Store) Set(profile, path string, t time.Time) error {
	return s.SetContent(profile, path, t, Content{})
}

// SetContent records a successful upload of path at t together with the
// content that was sent.
func (s *Store) SetContent(profile, path string, t time.Time, c Content) error {
	p, err := s.profile(profile)
	if err != nil {
		return err
	}
	st := Stamp{ProfileID: p.ID, Path: path, UploadedAt: t.UnixNano(), Hash: c.Hash, Size: c.Size}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"uploaded_at", "hash", "size", "updated_at"}),
	}).Create(&st).Error
}

// Stamps returns every stamp of profile.
func (s *Store) Stamps(profile string) ([]Stamp, error) {
	p, err := s.profile(profile)
	if err != nil {
		return nil, err
	}
	var out []Stamp
	err = s.db.Where("profile_id = ?", p.ID).Order("path").Find(&out).Error
	return out, err
}

// Reset forgets every stamp of profile, so the whole project shows as
// never uploaded.
func (s *Store) Reset(profile string) (int64, error) {
	p, err := s.profile(profile)
	if err != nil {
		return 0, err
	}
	res := s.db.Where("profile_id = ?", p.ID).Delete(&Stamp{})
	return res.RowsAffected, res.Error
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) profile(name string) (*Profile, error) {
	var ps []Profile
	if err := s.db.Where("project_id = ? AND name = ?", s.projectID, name).Limit(1).Find(&ps).Error; err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return &ps[0], nil
}

