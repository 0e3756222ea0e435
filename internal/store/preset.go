package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Preset is a named, tool-scoped saved parameter set, available to Pro and
// Max tier accounts only.
type Preset struct {
	ID        string
	UserID    string
	Name      string
	Tool      string
	Params    string // JSON
	IsDefault bool
	CreatedAt time.Time
}

// CreatePreset inserts a new preset owned by userID. If makeDefault is set, any
// existing default for (userID, tool) is deactivated first in the same
// transaction (tx.Begin, deactivate, activate, tx.Commit), enforcing a
// single is_default row per (user_id, tool).
func (s *Store) CreatePreset(userID, name, tool, paramsJSON string, makeDefault bool) (Preset, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Preset{}, fmt.Errorf("store: create preset: %w", err)
	}
	defer tx.Rollback()

	if makeDefault {
		if _, err := tx.Exec(`UPDATE presets SET is_default = 0 WHERE user_id = ? AND tool = ?`, userID, tool); err != nil {
			return Preset{}, fmt.Errorf("store: create preset: clear default: %w", err)
		}
	}

	id := uuid.New().String()
	if _, err := tx.Exec(
		`INSERT INTO presets (id, user_id, name, tool, params, is_default) VALUES (?, ?, ?, ?, ?, ?)`,
		id, userID, name, tool, paramsJSON, makeDefault,
	); err != nil {
		return Preset{}, fmt.Errorf("store: create preset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Preset{}, fmt.Errorf("store: create preset: %w", err)
	}
	return s.GetPreset(userID, id)
}

// SetDefault atomically makes preset id the sole default for its
// (user_id, tool) pair, mirroring store/strategy.go's SetActive.
func (s *Store) SetDefault(userID, id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: set default preset: %w", err)
	}
	defer tx.Rollback()

	var tool string
	if err := tx.QueryRow(`SELECT tool FROM presets WHERE id = ? AND user_id = ?`, id, userID).Scan(&tool); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("store: preset %s not found for user", id)
		}
		return fmt.Errorf("store: set default preset: %w", err)
	}
	if _, err := tx.Exec(`UPDATE presets SET is_default = 0 WHERE user_id = ? AND tool = ?`, userID, tool); err != nil {
		return fmt.Errorf("store: set default preset: %w", err)
	}
	if _, err := tx.Exec(`UPDATE presets SET is_default = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: set default preset: %w", err)
	}
	return tx.Commit()
}

// ListPresets returns userID's presets sorted created_at desc.
func (s *Store) ListPresets(userID string) ([]Preset, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, tool, params, is_default, created_at FROM presets WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list presets: %w", err)
	}
	defer rows.Close()

	var out []Preset
	for rows.Next() {
		var p Preset
		var createdAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Tool, &p.Params, &p.IsDefault, &createdAt); err != nil {
			return nil, fmt.Errorf("store: list presets: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPreset fetches one preset, scoped to userID.
func (s *Store) GetPreset(userID, id string) (Preset, error) {
	var p Preset
	var createdAt string
	err := s.db.QueryRow(
		`SELECT id, user_id, name, tool, params, is_default, created_at FROM presets WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.Tool, &p.Params, &p.IsDefault, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Preset{}, fmt.Errorf("store: preset %s not found for user", id)
	}
	if err != nil {
		return Preset{}, fmt.Errorf("store: get preset %s: %w", id, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

// DeletePreset removes a preset owned by userID. Deleting a preset that
// does not exist (or belongs to another user) is a no-op success, so
// repeated or racing deletes never surface an error.
func (s *Store) DeletePreset(userID, id string) error {
	_, err := s.db.Exec(`DELETE FROM presets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("store: delete preset %s: %w", id, err)
	}
	return nil
}

// UpdatePresetParams overwrites a preset's saved params, ownership checked.
func (s *Store) UpdatePresetParams(userID, id, paramsJSON string) error {
	res, err := s.db.Exec(`UPDATE presets SET params = ? WHERE id = ? AND user_id = ?`, paramsJSON, id, userID)
	if err != nil {
		return fmt.Errorf("store: update preset %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update preset %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("store: preset %s not found for user", id)
	}
	return nil
}

// shareTokenBytes is the raw entropy length of a generated share token,
// before hex encoding.
const shareTokenBytes = 24

// CreateShareToken marks a Pro+ preset shareable, generating an opaque
// token and storing only its bcrypt hash. The plaintext token is returned
// once and never persisted.
func (s *Store) CreateShareToken(userID, id string) (string, error) {
	if _, err := s.GetPreset(userID, id); err != nil {
		return "", err
	}
	raw := make([]byte, shareTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("store: create share token: %w", err)
	}
	token := hex.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("store: create share token: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE presets SET share_token_hash = ? WHERE id = ? AND user_id = ?`, string(hash), id, userID); err != nil {
		return "", fmt.Errorf("store: create share token: %w", err)
	}
	return token, nil
}

// RedeemShareToken looks up the preset matching token against every
// outstanding share-token hash and returns it read-only. Bcrypt hashes
// cannot be looked up by indexed equality, so this scans shared presets;
// the table is expected to stay small enough that this is acceptable.
func (s *Store) RedeemShareToken(token string) (Preset, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, tool, params, is_default, created_at, share_token_hash FROM presets WHERE share_token_hash != ''`,
	)
	if err != nil {
		return Preset{}, fmt.Errorf("store: redeem share token: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Preset
		var createdAt, hash string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Tool, &p.Params, &p.IsDefault, &createdAt, &hash); err != nil {
			return Preset{}, fmt.Errorf("store: redeem share token: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) == nil {
			p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
			return p, nil
		}
	}
	if err := rows.Err(); err != nil {
		return Preset{}, fmt.Errorf("store: redeem share token: %w", err)
	}
	return Preset{}, fmt.Errorf("store: share token not recognized")
}
