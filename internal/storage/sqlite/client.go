package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/storage/models"
	"github.com/claims-agent/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS corpus_chunks (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		source_document TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_fingerprint ON corpus_chunks(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_chunks_position ON corpus_chunks(position);

	CREATE TABLE IF NOT EXISTS decision_history (
		id TEXT PRIMARY KEY,
		claim_text TEXT NOT NULL,
		normalized_text TEXT NOT NULL,
		decision TEXT NOT NULL,
		amount REAL,
		justification TEXT,
		clause_references TEXT,
		emergency_override INTEGER DEFAULT 0,
		confidence REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_created ON decision_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decision_history(decision);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveCorpus replaces any cached corpus with the given chunks under the
// given fingerprint. Chunks and embeddings must be index-aligned.
func (c *Client) SaveCorpus(fingerprint string, records []models.ChunkRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM corpus_chunks`); err != nil {
		return fmt.Errorf("failed to clear corpus cache: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO corpus_chunks (id, fingerprint, position, text, source_document, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range records {
		_, err := stmt.Exec(
			r.ID,
			fingerprint,
			r.Position,
			r.Text,
			r.SourceDocument,
			encodeEmbedding(r.Embedding),
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit corpus: %w", err)
	}

	logger.Info("Corpus cached",
		zap.String("fingerprint", fingerprint),
		zap.Int("chunks", len(records)),
	)

	return nil
}

// LoadCorpus returns the cached chunks for the fingerprint, in position
// order, or an empty slice when the cache holds a different corpus.
func (c *Client) LoadCorpus(fingerprint string) ([]models.ChunkRecord, error) {
	query := `
		SELECT id, position, text, source_document, embedding, created_at
		FROM corpus_chunks
		WHERE fingerprint = ?
		ORDER BY position ASC
	`

	rows, err := c.db.Query(query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	defer rows.Close()

	var records []models.ChunkRecord
	for rows.Next() {
		var r models.ChunkRecord
		var blob []byte
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Position, &r.Text, &r.SourceDocument, &blob, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Fingerprint = fingerprint
		r.Embedding = decodeEmbedding(blob)
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) InsertDecision(record *models.DecisionRecord) error {
	refsJSON, _ := json.Marshal(record.ClauseReferences)

	override := 0
	if record.EmergencyOverride {
		override = 1
	}

	query := `
		INSERT INTO decision_history (id, claim_text, normalized_text, decision, amount,
			justification, clause_references, emergency_override, confidence, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.ClaimText,
		record.NormalizedText,
		record.Decision,
		record.Amount,
		record.Justification,
		string(refsJSON),
		override,
		record.Confidence,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	logger.Info("Decision recorded",
		zap.String("decision_id", record.ID),
		zap.String("decision", record.Decision),
		zap.Float64("confidence", record.Confidence),
	)

	return nil
}

func (c *Client) GetDecisionHistory(limit int) ([]models.DecisionRecord, error) {
	query := `
		SELECT id, claim_text, normalized_text, decision, amount, justification,
			clause_references, emergency_override, confidence, latency_ms, created_at
		FROM decision_history
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get decision history: %w", err)
	}
	defer rows.Close()

	var records []models.DecisionRecord
	for rows.Next() {
		var r models.DecisionRecord
		var refsJSON string
		var override int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.ClaimText, &r.NormalizedText, &r.Decision, &r.Amount,
			&r.Justification, &refsJSON, &override, &r.Confidence, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		json.Unmarshal([]byte(refsJSON), &r.ClauseReferences)
		r.EmergencyOverride = override != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
