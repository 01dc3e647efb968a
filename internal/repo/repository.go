package repo

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sander-remitly/packer/internal/logger"
	"github.com/sander-remitly/packer/internal/models"
	"go.uber.org/zap"
)

// Repository handles data persistence
type Repository struct {
	db *sql.DB
}

// Stats summarizes what is stored
type Stats struct {
	TotalSolutions int     `json:"total_solutions"`
	EmptySolutions int     `json:"empty_solutions"`
	AverageCost    float64 `json:"average_cost"`
}

// New opens (or creates) the database at dbPath
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	repo := &Repository{db: db}
	if err := repo.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return repo, nil
}

// initialize creates the database schema
func (r *Repository) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS limits (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		max_capacity INTEGER NOT NULL,
		max_items INTEGER NOT NULL,
		max_weight REAL NOT NULL,
		max_cost REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS solutions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		capacity INTEGER NOT NULL,
		items TEXT NOT NULL,
		selected TEXT NOT NULL,
		output TEXT NOT NULL,
		total_cost REAL NOT NULL,
		total_weight REAL NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_solutions_timestamp ON solutions(timestamp DESC);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// GetLimits returns the stored limits, or the defaults when none are stored
func (r *Repository) GetLimits() (models.Limits, error) {
	var limits models.Limits
	err := r.db.QueryRow(
		"SELECT max_capacity, max_items, max_weight, max_cost FROM limits WHERE id = 1",
	).Scan(&limits.MaxCapacity, &limits.MaxItems, &limits.MaxWeight, &limits.MaxCost)

	if err == sql.ErrNoRows {
		return models.DefaultLimits(), nil
	}
	if err != nil {
		return models.Limits{}, fmt.Errorf("failed to get limits: %w", err)
	}

	return limits, nil
}

// SetLimits replaces the stored limits
func (r *Repository) SetLimits(limits models.Limits) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM limits"); err != nil {
		return err
	}

	_, err = tx.Exec(
		"INSERT INTO limits (id, max_capacity, max_items, max_weight, max_cost) VALUES (1, ?, ?, ?, ?)",
		limits.MaxCapacity, limits.MaxItems, limits.MaxWeight, limits.MaxCost,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// SaveSolution records a solved package in the history
func (r *Repository) SaveSolution(pkg models.Package, selected []int, totalCost, totalWeight float64) error {
	if selected == nil {
		selected = []int{}
	}

	itemsJSON, err := json.Marshal(pkg.Items)
	if err != nil {
		return err
	}

	selectedJSON, err := json.Marshal(selected)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO solutions (capacity, items, selected, output, total_cost, total_weight)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query, pkg.Capacity, string(itemsJSON), string(selectedJSON),
		models.FormatSelection(selected), totalCost, totalWeight)
	return err
}

// GetHistory retrieves the most recent solutions, newest first
func (r *Repository) GetHistory(limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, capacity, items, selected, output, total_cost, total_weight, timestamp
		FROM solutions
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.HistoryEntry
	for rows.Next() {
		var entry models.HistoryEntry
		var itemsJSON, selectedJSON string

		err := rows.Scan(
			&entry.ID,
			&entry.Capacity,
			&itemsJSON,
			&selectedJSON,
			&entry.Output,
			&entry.TotalCost,
			&entry.TotalWeight,
			&entry.Timestamp,
		)
		if err != nil {
			logger.Log.Warn("Error scanning row", zap.Error(err))
			continue
		}

		if err := json.Unmarshal([]byte(itemsJSON), &entry.Items); err != nil {
			logger.Log.Warn("Error unmarshaling items", zap.Int("id", entry.ID), zap.Error(err))
			continue
		}

		if err := json.Unmarshal([]byte(selectedJSON), &entry.Selected); err != nil {
			logger.Log.Warn("Error unmarshaling selection", zap.Int("id", entry.ID), zap.Error(err))
			continue
		}

		history = append(history, entry)
	}

	return history, rows.Err()
}

// ClearHistory clears all solution history
func (r *Repository) ClearHistory() error {
	_, err := r.db.Exec("DELETE FROM solutions")
	return err
}

// GetStats returns statistics about the stored solutions
func (r *Repository) GetStats() (Stats, error) {
	var stats Stats
	var avg sql.NullFloat64

	err := r.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN output = '-' THEN 1 ELSE 0 END), 0), AVG(total_cost)
		FROM solutions
	`).Scan(&stats.TotalSolutions, &stats.EmptySolutions, &avg)
	if err != nil {
		return Stats{}, err
	}

	if avg.Valid {
		stats.AverageCost = avg.Float64
	}

	return stats, nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping() error {
	return r.db.Ping()
}
