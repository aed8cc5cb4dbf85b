// Package database persists the results of a pipeline run to MySQL/MariaDB or
// SQLite.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"saas-growth/pkg/metrics"
	"saas-growth/pkg/models"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// ErrIncompleteDSN is returned for a URL DSN missing user, host or database.
var ErrIncompleteDSN = errors.New("incomplete dsn (user/host/db)")

const dateLayout = "2006-01-02"

// Open DSN mariadb:// or mysql:// → MySQL driver format, sqlite://path → SQLite.
// The returned string names the driver in use.
func Open(dsn string) (*sql.DB, string, error) {
	if path, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		if strings.TrimSpace(path) == "" {
			return nil, "", fmt.Errorf("%w: sqlite path is required", ErrIncompleteDSN)
		}
		db, err := sql.Open("sqlite", filepath.Clean(path)+"?_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite db: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, "sqlite", nil
	}

	mysqlDSN, err := toMySQLDSN(dsn)
	if err != nil {
		return nil, "", err
	}
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		return nil, "", fmt.Errorf("open mysql db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, "mysql", nil
}

func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}
		user := ""
		pass := ""
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}
		host := u.Host
		db := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || db == "" {
			return "", ErrIncompleteDSN
		}
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&interpolateParams=true",
			user, pass, host, db), nil
	}
	return dsn, nil
}

// Both MySQL and SQLite accept this DDL. Dates are stored as YYYY-MM-DD text.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS saas_users (
		run_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(16) NOT NULL,
		sign_up_date VARCHAR(10) NOT NULL,
		acquisition_channel VARCHAR(32) NOT NULL,
		initial_plan VARCHAR(8) NOT NULL,
		current_plan VARCHAR(8) NOT NULL,
		activated INTEGER NOT NULL,
		converted_to_paid INTEGER NOT NULL,
		conversion_date VARCHAR(10) NULL,
		num_upgrades INTEGER NOT NULL,
		num_downgrades INTEGER NOT NULL,
		churned INTEGER NOT NULL,
		churn_date VARCHAR(10) NULL,
		lifetime_days INTEGER NOT NULL,
		cac DOUBLE NOT NULL,
		PRIMARY KEY (run_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS saas_forecasts (
		run_id VARCHAR(36) NOT NULL,
		scenario VARCHAR(16) NOT NULL,
		month VARCHAR(10) NOT NULL,
		mrr DOUBLE NOT NULL,
		arr DOUBLE NOT NULL,
		active_customers INTEGER NOT NULL,
		new_customers INTEGER NOT NULL,
		churned_customers INTEGER NOT NULL,
		PRIMARY KEY (run_id, scenario, month)
	)`,
	`CREATE TABLE IF NOT EXISTS saas_kpis (
		run_id VARCHAR(36) NOT NULL PRIMARY KEY,
		snapshot_date VARCHAR(10) NOT NULL,
		current_mrr DOUBLE NOT NULL,
		current_arr DOUBLE NOT NULL,
		active_customers INTEGER NOT NULL,
		projected_arr_12m DOUBLE NOT NULL,
		ltv_cac_ratio DOUBLE NOT NULL,
		churn_risk_pct DOUBLE NOT NULL
	)`,
}

// Run is the slice of a pipeline run written to the database.
type Run struct {
	ID        string
	Users     []models.User
	Forecasts []models.ForecastPoint
	KPI       metrics.KPISnapshot
}

// SaveRun creates the tables if needed and writes the run in one transaction.
func SaveRun(ctx context.Context, db *sql.DB, run Run) error {
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertUsers(ctx, tx, run.ID, run.Users); err != nil {
		return err
	}
	if err := insertForecasts(ctx, tx, run.ID, run.Forecasts); err != nil {
		return err
	}
	k := run.KPI
	if _, err := tx.ExecContext(ctx, `INSERT INTO saas_kpis
		(run_id, snapshot_date, current_mrr, current_arr, active_customers, projected_arr_12m, ltv_cac_ratio, churn_risk_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, k.SnapshotDate.Format(dateLayout), k.CurrentMRR, k.CurrentARR, k.ActiveCustomers,
		k.ProjectedARR12m, k.LTVCACRatio, k.ChurnRiskPct); err != nil {
		return fmt.Errorf("insert kpis: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertUsers(ctx context.Context, tx *sql.Tx, runID string, users []models.User) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO saas_users
		(run_id, user_id, sign_up_date, acquisition_channel, initial_plan, current_plan,
		 activated, converted_to_paid, conversion_date, num_upgrades, num_downgrades,
		 churned, churn_date, lifetime_days, cac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare users: %w", err)
	}
	defer stmt.Close()

	for _, u := range users {
		if _, err := stmt.ExecContext(ctx, runID, u.UserID, u.SignUpDate.Format(dateLayout),
			string(u.AcquisitionChannel), string(u.InitialPlan), string(u.CurrentPlan),
			boolInt(u.Activated), boolInt(u.ConvertedToPaid), nullDate(u.ConversionDate),
			u.NumUpgrades, u.NumDowngrades,
			boolInt(u.Churned), nullDate(u.ChurnDate), u.LifetimeDays, u.CAC); err != nil {
			return fmt.Errorf("insert user %s: %w", u.UserID, err)
		}
	}
	return nil
}

func insertForecasts(ctx context.Context, tx *sql.Tx, runID string, points []models.ForecastPoint) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO saas_forecasts
		(run_id, scenario, month, mrr, arr, active_customers, new_customers, churned_customers)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare forecasts: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, runID, p.Scenario, p.Month.Format(dateLayout),
			metrics.Round2(p.MRR), metrics.Round2(p.ARR), p.ActiveCustomers, p.NewCustomers, p.ChurnedCustomers); err != nil {
			return fmt.Errorf("insert forecast %s %s: %w", p.Scenario, p.Month.Format(dateLayout), err)
		}
	}
	return nil
}

// LoadForecasts reads back the forecast rows of a run ordered by scenario and month.
func LoadForecasts(ctx context.Context, db *sql.DB, runID string) ([]models.ForecastPoint, error) {
	rows, err := db.QueryContext(ctx, `SELECT scenario, month, mrr, arr, active_customers, new_customers, churned_customers
		FROM saas_forecasts WHERE run_id = ? ORDER BY scenario, month`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ForecastPoint
	for rows.Next() {
		var (
			p     models.ForecastPoint
			month string
		)
		if err := rows.Scan(&p.Scenario, &month, &p.MRR, &p.ARR, &p.ActiveCustomers, &p.NewCustomers, &p.ChurnedCustomers); err != nil {
			return nil, err
		}
		if p.Month, err = time.Parse(dateLayout, month); err != nil {
			return nil, fmt.Errorf("parse month %q: %w", month, err)
		}
		p.NetNewCustomers = p.NewCustomers - p.ChurnedCustomers
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountUsers returns the number of users stored for a run.
func CountUsers(ctx context.Context, db *sql.DB, runID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM saas_users WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
