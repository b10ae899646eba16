package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Job-Filter-Service/pkg/postgres"
	"github.com/lib/pq"
)

// Source produces the records the membership indexes are built from.
type Source interface {
	Load(ctx context.Context) ([]Record, error)
}

// fileRecord is the on-disk shape of one processed job.
type fileRecord struct {
	ID          ID                  `json:"ID"`
	Date        string              `json:"date"`
	Title       string              `json:"title"`
	Company     string              `json:"company"`
	Location    string              `json:"location"`
	URL         string              `json:"url"`
	Description string              `json:"description"`
	Words       map[string][]string `json:"_words"`
}

// FileSource reads a JSON array of processed jobs, each carrying its word
// lists under "_words".
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]Record, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening job data %s: %w", s.Path, err)
	}
	defer f.Close()
	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading job data %s: %w", s.Path, err)
	}
	slog.Default().With("component", "job-loader").Info("job data loaded", "path", s.Path, "jobs", len(records))
	return records, nil
}

// Decode parses a processed job array. Word lists for unknown fields are
// ignored.
func Decode(r io.Reader) ([]Record, error) {
	var raw []fileRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding jobs: %w", err)
	}
	records := make([]Record, 0, len(raw))
	seen := make(map[ID]struct{}, len(raw))
	for i, fr := range raw {
		if fr.ID == "" {
			return nil, fmt.Errorf("job at index %d has no ID", i)
		}
		if _, dup := seen[fr.ID]; dup {
			return nil, fmt.Errorf("duplicate job ID %s", fr.ID)
		}
		seen[fr.ID] = struct{}{}
		date, err := ParseDate(fr.Date)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", fr.ID, err)
		}
		words := make(map[Field][]string, len(fr.Words))
		for name, list := range fr.Words {
			field, ok := ParseField(name)
			if !ok {
				continue
			}
			if list != nil {
				words[field] = list
			}
		}
		records = append(records, Record{
			Job: Job{
				ID:          fr.ID,
				Date:        date,
				Title:       fr.Title,
				Company:     fr.Company,
				Location:    fr.Location,
				URL:         fr.URL,
				Description: fr.Description,
			},
			Words: words,
		})
	}
	return records, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresSource reads processed jobs from a table whose word lists are
// text[] columns named "<field>_words". A NULL array is missing data.
type PostgresSource struct {
	client *postgres.Client
	table  string
}

func NewPostgresSource(client *postgres.Client, table string) (*PostgresSource, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSource{client: client, table: table}, nil
}

func (s *PostgresSource) query() string {
	return fmt.Sprintf(
		`SELECT id, posted_at, title, company, location, url, description, title_words, location_words
		 FROM %s ORDER BY posted_at DESC, id`, s.table)
}

func (s *PostgresSource) Load(ctx context.Context) ([]Record, error) {
	var records []Record
	err := s.client.InTx(ctx, &sql.TxOptions{ReadOnly: true}, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.query())
		if err != nil {
			return fmt.Errorf("querying %s: %w", s.table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				job                                        Job
				id                                         string
				title, company, location, url, description sql.NullString
				titleWords, locationWords                  pq.StringArray
			)
			if err := rows.Scan(&id, &job.Date, &title, &company, &location, &url, &description, &titleWords, &locationWords); err != nil {
				return fmt.Errorf("scanning job row: %w", err)
			}
			job.ID = ID(id)
			job.Date = job.Date.UTC()
			job.Title = title.String
			job.Company = company.String
			job.Location = location.String
			job.URL = url.String
			job.Description = description.String
			words := make(map[Field][]string, len(Fields))
			if titleWords != nil {
				words[FieldTitle] = []string(titleWords)
			}
			if locationWords != nil {
				words[FieldLocation] = []string(locationWords)
			}
			records = append(records, Record{Job: job, Words: words})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	slog.Default().With("component", "job-loader").Info("job data loaded", "table", s.table, "jobs", len(records))
	return records, nil
}
