package simulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for unknown jobs and deployments.
var ErrNotFound = errors.New("not found")

// migrations are applied in order, once each.
var migrations = []string{
	`CREATE TABLE jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		site TEXT NOT NULL,
		name TEXT NOT NULL,
		start_at INTEGER NOT NULL,
		end_at INTEGER NOT NULL,
		walltime INTEGER NOT NULL,
		types TEXT NOT NULL DEFAULT '',
		queue TEXT NOT NULL DEFAULT '',
		project TEXT NOT NULL DEFAULT '',
		submitted_at INTEGER NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX jobs_site_interval ON jobs (site, start_at, end_at);
	CREATE TABLE job_nodes (
		job_id INTEGER NOT NULL REFERENCES jobs (id),
		node TEXT NOT NULL
	);
	CREATE TABLE job_networks (
		job_id INTEGER NOT NULL REFERENCES jobs (id),
		kind TEXT NOT NULL,
		network TEXT NOT NULL
	);`,
	`CREATE TABLE deployments (
		id TEXT PRIMARY KEY,
		site TEXT NOT NULL,
		nodes TEXT NOT NULL,
		environment TEXT NOT NULL,
		vlan TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		result TEXT NOT NULL DEFAULT '{}'
	);
	CREATE TABLE vlan_members (
		site TEXT NOT NULL,
		vlan TEXT NOT NULL,
		node TEXT NOT NULL,
		interface TEXT NOT NULL,
		PRIMARY KEY (site, node, interface)
	);`,
}

// jobRecord is a stored job with its allocation.
type jobRecord struct {
	ID          int64
	Site        string
	Name        string
	Start       int64
	End         int64
	Walltime    int64
	Types       []string
	Queue       string
	Project     string
	SubmittedAt int64
	Deleted     bool
	Nodes       []string
	Networks    []allocated
}

// allocated is a network unit held by a job.
type allocated struct {
	Kind    string
	Network string
}

type deploymentRecord struct {
	ID          string
	Site        string
	Nodes       []string
	Environment string
	VLAN        string
	Status      string
	Result      map[string]string
}

// Store persists the simulator state.
type Store struct {
	db *sql.DB
}

// OpenStore opens the database at path, in memory when path is empty, and
// applies pending migrations.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, i+1)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateJob stores j and its allocation and sets j.ID.
func (s *Store) CreateJob(ctx context.Context, j *jobRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO jobs
			(site, name, start_at, end_at, walltime, types, queue, project, submitted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			j.Site, j.Name, j.Start, j.End, j.Walltime, strings.Join(j.Types, ","), j.Queue, j.Project, j.SubmittedAt)
		if err != nil {
			return fmt.Errorf("failed to insert job: %w", err)
		}
		if j.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		for _, n := range j.Nodes {
			if _, err := tx.ExecContext(ctx, `INSERT INTO job_nodes (job_id, node) VALUES (?, ?)`, j.ID, n); err != nil {
				return fmt.Errorf("failed to insert job node: %w", err)
			}
		}
		for _, n := range j.Networks {
			if _, err := tx.ExecContext(ctx, `INSERT INTO job_networks (job_id, kind, network) VALUES (?, ?, ?)`, j.ID, n.Kind, n.Network); err != nil {
				return fmt.Errorf("failed to insert job network: %w", err)
			}
		}
		return nil
	})
}

const jobColumns = `id, site, name, start_at, end_at, walltime, types, queue, project, submitted_at, deleted`

// Job returns the job id of site.
func (s *Store) Job(ctx context.Context, site string, id int64) (*jobRecord, error) {
	jobs, err := s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE site = ? AND id = ?`, site, id)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job %d on %s: %w", id, site, ErrNotFound)
	}
	return jobs[0], nil
}

// Jobs returns the jobs of site, filtered by name when it is not empty.
func (s *Store) Jobs(ctx context.Context, site, name string) ([]*jobRecord, error) {
	if name == "" {
		return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE site = ? ORDER BY id`, site)
	}
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE site = ? AND name = ? ORDER BY id`, site, name)
}

// Overlapping returns the jobs of site holding resources in [from, to).
func (s *Store) Overlapping(ctx context.Context, site string, from, to int64) ([]*jobRecord, error) {
	return s.queryJobs(ctx, `SELECT `+jobColumns+` FROM jobs
		WHERE site = ? AND start_at < ? AND end_at > ? AND end_at > start_at ORDER BY id`, site, to, from)
}

// EndingAfter returns the end dates of the jobs of site ending after t.
func (s *Store) EndingAfter(ctx context.Context, site string, t int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT end_at FROM jobs
		WHERE site = ? AND end_at > ? AND end_at > start_at ORDER BY end_at`, site, t)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ends []int64
	for rows.Next() {
		var e int64
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		ends = append(ends, e)
	}
	return ends, rows.Err()
}

// DeleteJob marks a job deleted and releases its resources from at on.
func (s *Store) DeleteJob(ctx context.Context, site string, id, at int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET deleted = 1, end_at = MIN(end_at, MAX(start_at, ?))
		WHERE site = ? AND id = ?`, at, site, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %d on %s: %w", id, site, ErrNotFound)
	}
	return nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]*jobRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	var jobs []*jobRecord
	for rows.Next() {
		var (
			j     jobRecord
			types string
		)
		if err := rows.Scan(&j.ID, &j.Site, &j.Name, &j.Start, &j.End, &j.Walltime,
			&types, &j.Queue, &j.Project, &j.SubmittedAt, &j.Deleted); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if types != "" {
			j.Types = strings.Split(types, ",")
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// The single connection must be free before loading allocations.
	_ = rows.Close()

	for _, j := range jobs {
		if err := s.loadAllocation(ctx, j); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

func (s *Store) loadAllocation(ctx context.Context, j *jobRecord) error {
	rows, err := s.db.QueryContext(ctx, `SELECT node FROM job_nodes WHERE job_id = ? ORDER BY rowid`, j.ID)
	if err != nil {
		return err
	}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			_ = rows.Close()
			return err
		}
		j.Nodes = append(j.Nodes, n)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT kind, network FROM job_networks WHERE job_id = ? ORDER BY rowid`, j.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var a allocated
		if err := rows.Scan(&a.Kind, &a.Network); err != nil {
			return err
		}
		j.Networks = append(j.Networks, a)
	}
	return rows.Err()
}

// CreateDeployment stores d.
func (s *Store) CreateDeployment(ctx context.Context, d *deploymentRecord) error {
	nodes, err := json.Marshal(d.Nodes)
	if err != nil {
		return err
	}
	result, err := json.Marshal(d.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO deployments (id, site, nodes, environment, vlan, status, result)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, d.ID, d.Site, string(nodes), d.Environment, d.VLAN, d.Status, string(result))
	if err != nil {
		return fmt.Errorf("failed to insert deployment: %w", err)
	}
	return nil
}

// Deployment returns the deployment id of site.
func (s *Store) Deployment(ctx context.Context, site, id string) (*deploymentRecord, error) {
	var (
		d             deploymentRecord
		nodes, result string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, site, nodes, environment, vlan, status, result
		FROM deployments WHERE site = ? AND id = ?`, site, id).
		Scan(&d.ID, &d.Site, &nodes, &d.Environment, &d.VLAN, &d.Status, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deployment %s on %s: %w", id, site, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query deployment: %w", err)
	}
	if err := json.Unmarshal([]byte(nodes), &d.Nodes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(result), &d.Result); err != nil {
		return nil, err
	}
	return &d, nil
}

// FinishDeployment records the outcome of a deployment.
func (s *Store) FinishDeployment(ctx context.Context, id, status string, result map[string]string) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE deployments SET status = ?, result = ? WHERE id = ?`, status, string(raw), id)
	return err
}

// SetVLANMember places a node device in a VLAN, leaving any other VLAN.
func (s *Store) SetVLANMember(ctx context.Context, site, vlan, node, iface string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO vlan_members (site, vlan, node, interface) VALUES (?, ?, ?, ?)
		ON CONFLICT (site, node, interface) DO UPDATE SET vlan = excluded.vlan`, site, vlan, node, iface)
	if err != nil {
		return fmt.Errorf("failed to set vlan member: %w", err)
	}
	return nil
}

// VLANMembers returns the node devices of a VLAN as node/interface pairs.
func (s *Store) VLANMembers(ctx context.Context, site, vlan string) ([][2]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node, interface FROM vlan_members
		WHERE site = ? AND vlan = ? ORDER BY node, interface`, site, vlan)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out [][2]string
	for rows.Next() {
		var m [2]string
		if err := rows.Scan(&m[0], &m[1]); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
