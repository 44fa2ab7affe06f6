package plasmocore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

func encodeFloatVector(v []float64) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SQLiteLogger is an optional mirror of RunLogger's CSV/YAML output: the
// same scalar, frequency, and genotype rows, written instead to a single
// SQLite database so a sample run can be queried directly rather than
// globbed and parsed off disk. Each table is namespaced by chainID, so one
// database can hold every chain of a run.
type SQLiteLogger struct {
	db      *sql.DB
	chainID int
}

// OpenSQLiteDB opens (creating if absent) the SQLite database at path.
func OpenSQLiteDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewSQLiteLogger opens path and prepares it to mirror chainID's output.
func NewSQLiteLogger(path string, chainID int) (*SQLiteLogger, error) {
	db, err := OpenSQLiteDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteLogger{db: db, chainID: chainID}, nil
}

func (l *SQLiteLogger) scalarTable() string { return fmt.Sprintf("scalar%03d", l.chainID) }
func (l *SQLiteLogger) freqTable() string   { return fmt.Sprintf("frequency%03d", l.chainID) }
func (l *SQLiteLogger) genotypeTable() string {
	return fmt.Sprintf("genotype%03d", l.chainID)
}

// Init creates one table per quantity RunLogger also tracks: scalar
// parameters, per-locus allele frequencies (stored as a JSON-encoded array
// rather than one column per allele, since allele counts vary by locus),
// and per-infection genotypes (an infection's own genotype and its latent
// parent's share a table, distinguished by is_latent).
func (l *SQLiteLogger) Init() error {
	stmts := []string{
		fmt.Sprintf(`create table if not exists %s (
			id integer not null primary key,
			label text not null,
			step integer not null,
			value real not null
		)`, l.scalarTable()),
		fmt.Sprintf(`create table if not exists %s (
			id integer not null primary key,
			locus text not null,
			step integer not null,
			frequencies text not null
		)`, l.freqTable()),
		fmt.Sprintf(`create table if not exists %s (
			id integer not null primary key,
			infection_id text not null,
			locus text not null,
			is_latent integer not null,
			step integer not null,
			genotype text not null
		)`, l.genotypeTable()),
	}
	for _, stmt := range stmts {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteScalar inserts one (label, step, value) row.
func (l *SQLiteLogger) WriteScalar(label string, step int, value float64) error {
	stmt := fmt.Sprintf("insert into %s(label, step, value) values(?, ?, ?)", l.scalarTable())
	_, err := l.db.Exec(stmt, label, step, value)
	return err
}

// WriteFrequencies inserts one row holding a locus' allele-frequency vector,
// JSON-encoded.
func (l *SQLiteLogger) WriteFrequencies(locusLabel string, step int, freq []float64) error {
	encoded, err := encodeFloatVector(freq)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("insert into %s(locus, step, frequencies) values(?, ?, ?)", l.freqTable())
	_, err = l.db.Exec(stmt, locusLabel, step, encoded)
	return err
}

// WriteGenotype inserts one row recording an infection's genotype at one
// locus at the given step; isLatent marks a row holding the infection's
// latent parent's genotype rather than the infection's own.
func (l *SQLiteLogger) WriteGenotype(infectionID, locusLabel string, isLatent bool, step int, g Genotype) error {
	stmt := fmt.Sprintf("insert into %s(infection_id, locus, is_latent, step, genotype) values(?, ?, ?, ?, ?)", l.genotypeTable())
	latent := 0
	if isLatent {
		latent = 1
	}
	_, err := l.db.Exec(stmt, infectionID, locusLabel, latent, step, g.String())
	return err
}

// Close closes the underlying database handle.
func (l *SQLiteLogger) Close() error {
	return l.db.Close()
}
